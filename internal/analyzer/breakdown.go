package analyzer

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sanbench/internal/parser"
)

// Compile stages in pipeline order, then kernel execution.
const (
	StageAST       = "AST parsing"
	StageTTIR      = "TTIR"
	StageTTGIR     = "TTGIR"
	StageLLIR      = "LLIR"
	StagePTX       = "PTX"
	StageCUBIN     = "CUBIN"
	StageExecution = "Execution"
)

// Stages lists every measured stage of a compute-sanitizer run.
var Stages = []string{StageAST, StageTTIR, StageTTGIR, StageLLIR, StagePTX, StageCUBIN, StageExecution}

// compileMarkers map a compile log phrase to its stage.
var compileMarkers = []struct {
	phrase string
	stage  string
}{
	{"AST parsing", StageAST},
	{"ttir compilation", StageTTIR},
	{"ttgir compilation", StageTTGIR},
	{"llir compilation", StageLLIR},
	{"ptx compilation", StagePTX},
	{"cubin compilation", StageCUBIN},
}

// Breakdown files inside each case directory.
const (
	CompileFile   = "compile.txt"
	ExecutionFile = "execution.txt"
	Z3File        = "z3.txt"
	EndToEndFile  = "end_to_end.txt"
)

var (
	// test_geglu.py::test_correctness[dtype0-32] AST parsing took 0.05 seconds
	caseIDRe   = regexp.MustCompile(`^\S*::\S*\[[^\]]*\]`)
	tookRe     = regexp.MustCompile(`took\s+([-+]?[0-9]*\.?[0-9]+(?:[eE][-+]?[0-9]+)?)\s+seconds`)
	// Forward kernel elapsed time: 1.25 ms / kernel elapsed time: 0.2 seconds
	elapsedRe  = regexp.MustCompile(`elapsed time:\s*([-+]?[0-9]*\.?[0-9]+(?:[eE][-+]?[0-9]+)?)\s*(ms|seconds?)`)
	endToEndRe = regexp.MustCompile(`(compute-sanitizer|z3):\s*([0-9]*\.?[0-9]+)\s*(?:seconds?|s)?`)
)

// Breakdown is one case's time split, in seconds.
type Breakdown struct {
	Source string
	// Stages holds compile stage and execution times under compute-sanitizer.
	Stages map[string]float64
	// Z3 is the triton-sanitizer kernel time.
	Z3 float64
	// ComputeSanitizer and TritonSanitizer are end-to-end wall times; zero
	// when end_to_end.txt is missing.
	ComputeSanitizer float64
	TritonSanitizer  float64
}

// Measured sums the stage times.
func (b Breakdown) Measured() float64 {
	var sum float64
	for _, s := range Stages {
		sum += b.Stages[s]
	}
	return sum
}

// EndToEnd is the compute-sanitizer wall time, or the measured sum when
// none was recorded.
func (b Breakdown) EndToEnd() float64 {
	if b.ComputeSanitizer > 0 {
		return b.ComputeSanitizer
	}
	return b.Measured()
}

// Others is the end-to-end time no stage accounts for.
func (b Breakdown) Others() float64 {
	if o := b.EndToEnd() - b.Measured(); o > 0 {
		return o
	}
	return 0
}

// Percent expresses v as a share of the end-to-end time.
func (b Breakdown) Percent(v float64) float64 {
	if e := b.EndToEnd(); e > 0 {
		return v / e * 100
	}
	return 0
}

// Label drops the repository prefix from the source directory name.
func (b Breakdown) Label() string {
	if _, rest, ok := strings.Cut(b.Source, "_"); ok {
		return rest
	}
	return b.Source
}

// caseTracker notes whether a test header has been seen: a pytest id, or a
// "test case 3: torch.Size([2, 3])" line from script benchmarks.
type caseTracker struct {
	active bool
}

func (c *caseTracker) observe(line string) {
	if caseIDRe.MatchString(line) || strings.Contains(line, "test case") {
		c.active = true
	}
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

// ParseCompile sums the compile stage times of r in seconds. Timings seen
// before the first test header are ignored.
func ParseCompile(r io.Reader) (map[string]float64, error) {
	out := make(map[string]float64)
	var tc caseTracker
	err := parser.ForEachLine(r, func(line string) {
		line = strings.TrimSpace(line)
		tc.observe(line)
		if !tc.active {
			return
		}
		m := tookRe.FindStringSubmatch(line)
		if m == nil {
			return
		}
		v, ok := parseNumber(m[1])
		if !ok {
			return
		}
		for _, cm := range compileMarkers {
			if strings.Contains(line, cm.phrase) {
				out[cm.stage] += v
				return
			}
		}
	})
	return out, errors.Wrap(err, "compile log")
}

// ParseExecution sums the kernel elapsed times of r in milliseconds. Times
// seen before the first test header are ignored.
func ParseExecution(r io.Reader) (float64, error) {
	var total float64
	var tc caseTracker
	err := parser.ForEachLine(r, func(line string) {
		line = strings.TrimSpace(line)
		tc.observe(line)
		if !tc.active {
			return
		}
		total += elapsedMillis(line)
	})
	return total, errors.Wrap(err, "execution log")
}

// ParseZ3 sums every "kernel elapsed time" of r in milliseconds.
func ParseZ3(r io.Reader) (float64, error) {
	var total float64
	err := parser.ForEachLine(r, func(line string) {
		if strings.Contains(line, "kernel elapsed time:") {
			total += elapsedMillis(line)
		}
	})
	return total, errors.Wrap(err, "z3 log")
}

func elapsedMillis(line string) float64 {
	m := elapsedRe.FindStringSubmatch(line)
	if m == nil {
		return 0
	}
	v, ok := parseNumber(m[1])
	if !ok {
		return 0
	}
	if m[2] != "ms" {
		v *= 1000
	}
	return v
}

// ParseEndToEnd reads the compute-sanitizer and z3 wall times in seconds.
// A later line for the same tool replaces an earlier one.
func ParseEndToEnd(r io.Reader) (computeSanitizer, z3 float64, err error) {
	err = parser.ForEachLine(r, func(line string) {
		m := endToEndRe.FindStringSubmatch(line)
		if m == nil {
			return
		}
		v, ok := parseNumber(m[2])
		if !ok {
			return
		}
		if m[1] == "compute-sanitizer" {
			computeSanitizer = v
		} else {
			z3 = v
		}
	})
	return computeSanitizer, z3, errors.Wrap(err, "end-to-end log")
}

// LoadBreakdowns reads every case directory under dir that holds both a
// compile and an execution log, in name order. z3 and end-to-end logs are
// optional.
func LoadBreakdowns(dir string) ([]Breakdown, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", dir)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []Breakdown
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		caseDir := filepath.Join(dir, e.Name())
		if !exists(filepath.Join(caseDir, CompileFile)) || !exists(filepath.Join(caseDir, ExecutionFile)) {
			log.WithField("dir", caseDir).Debug("skipping directory without compile and execution logs")
			continue
		}
		b, err := loadBreakdown(caseDir)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func loadBreakdown(dir string) (Breakdown, error) {
	b := Breakdown{Source: filepath.Base(dir)}

	if err := readWith(filepath.Join(dir, CompileFile), func(r io.Reader) error {
		stages, err := ParseCompile(r)
		b.Stages = stages
		return err
	}); err != nil {
		return b, err
	}
	if err := readWith(filepath.Join(dir, ExecutionFile), func(r io.Reader) error {
		ms, err := ParseExecution(r)
		b.Stages[StageExecution] = ms / 1000
		return err
	}); err != nil {
		return b, err
	}

	if path := filepath.Join(dir, Z3File); exists(path) {
		if err := readWith(path, func(r io.Reader) error {
			ms, err := ParseZ3(r)
			b.Z3 = ms / 1000
			return err
		}); err != nil {
			return b, err
		}
	}
	if path := filepath.Join(dir, EndToEndFile); exists(path) {
		if err := readWith(path, func(r io.Reader) error {
			cs, z3, err := ParseEndToEnd(r)
			b.ComputeSanitizer, b.TritonSanitizer = cs, z3
			return err
		}); err != nil {
			return b, err
		}
	}
	return b, nil
}

func readWith(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return errors.Wrap(fn(f), path)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
