package vm

// Execution limits and default capacities.
const (
	// DefaultMaxSteps bounds a run to guard against runaway prototypes fed
	// to the VM from a decoded image; 0 disables the limit.
	DefaultMaxSteps = 1_000_000

	// DefaultStackCapacity is the initial register stack allocation.
	DefaultStackCapacity = 16

	// DefaultLogCapacity is the initial instruction-log allocation.
	DefaultLogCapacity = 1024

	// DefaultTraceMaxEntries bounds the execution trace buffer.
	DefaultTraceMaxEntries = 100_000
)
