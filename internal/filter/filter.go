package filter

import (
	"regexp"
	"strings"

	"github.com/sanbench/internal/parser"
)

// Options defines all available filter criteria.
type Options struct {
	// TestRegex keeps records whose test identifier matches.
	TestRegex *regexp.Regexp
	// KernelRegex keeps records whose kernel name matches. Records without a
	// kernel name (memory samples) never match a kernel regex.
	KernelRegex *regexp.Regexp
	// ExcludeKernels drops records whose kernel name is in the set.
	ExcludeKernels map[string]bool
}

// ParseKernelList splits a comma-separated kernel list into a set.
func ParseKernelList(s string) map[string]bool {
	if s == "" {
		return nil
	}
	set := make(map[string]bool)
	for _, k := range strings.Split(s, ",") {
		k = strings.TrimSpace(k)
		if k != "" {
			set[k] = true
		}
	}
	return set
}

// Apply filters a slice of Record in place, returning the filtered slice.
func Apply(records []parser.Record, opts Options) []parser.Record {
	if isNoop(opts) {
		return records
	}

	n := 0
	for i := range records {
		if match(&records[i], &opts) {
			records[n] = records[i]
			n++
		}
	}
	return records[:n]
}

func isNoop(opts Options) bool {
	return opts.TestRegex == nil &&
		opts.KernelRegex == nil &&
		len(opts.ExcludeKernels) == 0
}

func match(r *parser.Record, opts *Options) bool {
	if opts.TestRegex != nil && !opts.TestRegex.MatchString(r.Test) {
		return false
	}
	if opts.KernelRegex != nil && (r.Kernel == "" || !opts.KernelRegex.MatchString(r.Kernel)) {
		return false
	}
	if len(opts.ExcludeKernels) > 0 && opts.ExcludeKernels[r.Kernel] {
		return false
	}
	return true
}
