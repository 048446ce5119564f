// Package bridge relays debugger traffic through Redis pub/sub so
// external tooling can observe sessions and inject events into them.
// The engine runs fine without it; a failed Start leaves the engine in
// standalone mode.
package bridge

// Bridge mirrors outbound debugger messages to external observers and
// carries externally published events toward live sessions.
type Bridge interface {
	// Publish mirrors one outbound message of a connection.
	Publish(connID string, event []byte) error

	// Start connects and begins listening for injected events.
	Start() error

	// Stop disconnects and waits for the listener to exit.
	Stop() error

	// Available reports whether the bridge is connected and relaying.
	Available() bool
}

// RedisConfig holds connection settings for the Redis bridge.
type RedisConfig struct {
	Addr     string // Redis address, default "localhost:6379"
	Password string // Redis password, default ""
	DB       int    // Redis database number, default 0
	Prefix   string // channel prefix, default "debugsock:"
}

// DefaultRedisConfig returns a RedisConfig with the default settings.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:   "localhost:6379",
		Prefix: "debugsock:",
	}
}

// Compile-time interface assertion.
var _ Bridge = (*RedisBridge)(nil)
