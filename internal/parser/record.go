package parser

// Record is a single metric scraped from a log line.
type Record struct {
	// Test is the identifier in effect when the line was read,
	// e.g. "01_tritonbench/softmax" or "test_jsd.py::test_correctness[0.1]".
	Test   string
	Kernel string
	// Value is in milliseconds for GPUTime and ExecTime, kilobytes for MemoryKB.
	Value      float64
	Kind       Kind
	SourceFile string
	LineNumber int
}

// Kind identifies which metric a record carries.
type Kind int

const (
	KindUnknown Kind = iota
	KindGPUTime
	KindExecTime
	KindMemoryKB
)

func (k Kind) String() string {
	switch k {
	case KindGPUTime:
		return "gpu_time"
	case KindExecTime:
		return "exec_time"
	case KindMemoryKB:
		return "memory_kb"
	default:
		return "unknown"
	}
}

// KindSet selects the metric kinds a parse emits.
type KindSet uint8

// Kinds builds a KindSet from the given kinds.
func Kinds(kinds ...Kind) KindSet {
	var s KindSet
	for _, k := range kinds {
		s |= 1 << uint(k)
	}
	return s
}

// Has reports whether k is in the set.
func (s KindSet) Has(k Kind) bool {
	return s&(1<<uint(k)) != 0
}
