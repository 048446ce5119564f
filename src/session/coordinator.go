package session

import "sync"

// Coordinator tracks live sessions and carries the global stop
// request between the engine and the connection loops. One instance
// serves the whole engine; sessions poll it once per pass.
type Coordinator struct {
	mu     sync.Mutex
	cond   *sync.Cond
	active int
	stop   bool
}

// NewCoordinator returns an idle coordinator.
func NewCoordinator() *Coordinator {
	c := &Coordinator{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// ConnectionOpened counts a session in. Call before its loop starts.
func (c *Coordinator) ConnectionOpened() {
	c.mu.Lock()
	c.active++
	c.mu.Unlock()
}

// ConnectionClosed counts a session out and wakes any drain waiter.
func (c *Coordinator) ConnectionClosed() {
	c.mu.Lock()
	c.active--
	c.mu.Unlock()
	c.cond.Broadcast()
}

// Active returns the number of live sessions.
func (c *Coordinator) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// StopRequested reports whether a drain is in progress. Session loops
// poll it once per pass and start a graceful close when it turns true.
func (c *Coordinator) StopRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop
}

// StopAndDrain blocks until every live session has closed. With no
// live sessions it returns immediately. The stop flag is reset before
// returning, so new sessions may attach afterwards and a later
// StopAndDrain works the same way.
func (c *Coordinator) StopAndDrain() {
	c.mu.Lock()
	for c.active != 0 {
		c.stop = true
		c.cond.Wait()
	}
	c.stop = false
	c.mu.Unlock()
}
