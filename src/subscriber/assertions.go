package subscriber

// Compile-time interface assertions.
var (
	_ Module = (*CPUCore)(nil)
	_ Module = (*GameMeta)(nil)
)
