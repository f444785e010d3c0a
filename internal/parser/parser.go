package parser

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Result holds the outcome of parsing a log file.
type Result struct {
	Records      []Record
	SkippedLines int
	TotalLines   int
	Source       string
}

// ErrNoMatch is returned by ParseMetric when no enabled rule matches the line.
var ErrNoMatch = errors.New("no metric rule matched")

// Test header lines written by the runner, plus pytest ids echoed by pytest -s:
//
//	Test Number: 01
//	Test: tritonbench/softmax_optimize
//	test_fused_linear_jsd.py::test_correctness_functional[dtype0]
var (
	testNumberRe = regexp.MustCompile(`Test Number:\s+(\d+)`)
	testNameRe   = regexp.MustCompile(`Test:\s+(.+)`)
	pytestIDRe   = regexp.MustCompile(`(test_\w+\.py::\S+)`)
)

type metricRule struct {
	kind Kind
	re   *regexp.Regexp
	// kernelGroup is the submatch index of the kernel name, 0 if the line has none.
	kernelGroup int
	valueGroup  int
}

// metricRules are tried in order; the first enabled rule that matches wins.
var metricRules = []metricRule{
	// [liger][triton] kernel=_jsd_kernel cpu_launch_ms=3.136 gpu_time_ms=119.417
	{
		kind:        KindGPUTime,
		re:          regexp.MustCompile(`\[liger\]\[triton\]\s+kernel=(\S+)\s+cpu_launch_ms=[\d.]+\s+gpu_time_ms=([\d.]+)`),
		kernelGroup: 1,
		valueGroup:  2,
	},
	// [triton-profiler] kernel=matmul_kernel [M=256, N=256, K=128] cpu_launch_ms=0.037 gpu_time_ms=0.029
	{
		kind:        KindGPUTime,
		re:          regexp.MustCompile(`\[triton-profiler\]\s+kernel=(\S+)(?:\s+\[.*?\])?\s+cpu_launch_ms=[\d.]+\s+gpu_time_ms=([\d.]+)`),
		kernelGroup: 1,
		valueGroup:  2,
	},
	// Untagged profiler output.
	{
		kind:        KindGPUTime,
		re:          regexp.MustCompile(`kernel=(\S+)(?:\s+\[.*?\])?\s+cpu_launch_ms=[\d.]+\s+gpu_time_ms=([\d.]+)`),
		kernelGroup: 1,
		valueGroup:  2,
	},
	// Triton-Viz: execution time for _jsd_kernel: 3.326 ms
	{
		kind:        KindExecTime,
		re:          regexp.MustCompile(`Triton-Viz:\s+execution time for\s+(\S+):\s+([\d.]+)\s+ms`),
		kernelGroup: 1,
		valueGroup:  2,
	},
	// /usr/bin/time -v summary.
	{
		kind:       KindMemoryKB,
		re:         regexp.MustCompile(`Maximum resident set size \(kbytes\):\s*(\d+)`),
		valueGroup: 1,
	},
}

// ParseMetric matches line against the metric rules enabled in kinds.
// It returns ErrNoMatch if nothing matched, or a conversion error if the
// matching rule captured malformed numeric text.
func ParseMetric(line string, kinds KindSet) (kernel string, value float64, kind Kind, err error) {
	for i := range metricRules {
		r := &metricRules[i]
		if !kinds.Has(r.kind) {
			continue
		}
		m := r.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[r.valueGroup], 64)
		if err != nil {
			return "", 0, r.kind, errors.Wrapf(err, "bad %s value %q", r.kind, m[r.valueGroup])
		}
		if r.kernelGroup > 0 {
			kernel = m[r.kernelGroup]
		}
		return kernel, v, r.kind, nil
	}
	return "", 0, KindUnknown, ErrNoMatch
}

// testTracker follows the "current test" as header lines go by.
type testTracker struct {
	number  string
	current string
}

func (t *testTracker) observe(line string) {
	if m := testNumberRe.FindStringSubmatch(line); m != nil {
		t.number = m[1]
	}
	if m := testNameRe.FindStringSubmatch(line); m != nil {
		name := strings.TrimSpace(m[1])
		if t.number != "" && name != "" {
			name = t.number + "_" + name
		}
		t.current = name
	}
	if m := pytestIDRe.FindStringSubmatch(line); m != nil {
		t.current = m[1]
	}
}

// maxLineSize caps a single log line. pytest -s output can carry very long
// tensor dumps on one line; longer lines are skipped, not fatal.
var maxLineSize = 16 * 1024 * 1024

// lineReader yields lines of any length, flagging those over maxLineSize.
type lineReader struct {
	br  *bufio.Reader
	buf []byte
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{br: bufio.NewReaderSize(r, 64*1024)}
}

// next returns the next line without its line ending. tooLong is set when the
// line exceeded maxLineSize; its text is then discarded. err is io.EOF after
// the last line.
func (lr *lineReader) next() (line string, tooLong bool, err error) {
	lr.buf = lr.buf[:0]
	read := false
	for {
		chunk, isPrefix, err := lr.br.ReadLine()
		if err != nil {
			if err == io.EOF && read {
				break
			}
			return "", false, err
		}
		read = true
		if !tooLong {
			if len(lr.buf)+len(chunk) > maxLineSize {
				tooLong = true
				lr.buf = lr.buf[:0]
			} else {
				lr.buf = append(lr.buf, chunk...)
			}
		}
		if !isPrefix {
			break
		}
	}
	if tooLong {
		return "", true, nil
	}
	return string(lr.buf), false, nil
}

// ForEachLine calls fn with every line of r, skipping lines over
// maxLineSize. It stops at the first read error.
func ForEachLine(r io.Reader, fn func(line string)) error {
	lr := newLineReader(r)
	for {
		line, tooLong, err := lr.next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "read")
		}
		if !tooLong {
			fn(line)
		}
	}
}

// ParseReader reads all lines from r and extracts records of the given kinds.
// Lines seen before any test header yield nothing. Lines over maxLineSize are
// counted as skipped. If reading fails part way, the error is logged and the
// records read so far are kept.
func ParseReader(r io.Reader, sourceFile string, kinds KindSet) Result {
	result := Result{Source: sourceFile}
	lr := newLineReader(r)

	var tracker testTracker
	lineNum := 0

	for {
		line, tooLong, err := lr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.WithFields(log.Fields{"file": sourceFile, "line": lineNum + 1}).WithError(err).Error("error reading log file")
			break
		}
		lineNum++
		if tooLong {
			result.SkippedLines++
			log.WithFields(log.Fields{"file": sourceFile, "line": lineNum}).Debug("skipping overlong line")
			continue
		}
		tracker.observe(line)

		kernel, value, kind, err := ParseMetric(line, kinds)
		if err == ErrNoMatch {
			continue
		}
		if err != nil {
			result.SkippedLines++
			log.WithFields(log.Fields{"file": sourceFile, "line": lineNum}).WithError(err).Debug("skipping malformed metric line")
			continue
		}
		if tracker.current == "" {
			continue
		}
		result.Records = append(result.Records, Record{
			Test:       tracker.current,
			Kernel:     kernel,
			Value:      value,
			Kind:       kind,
			SourceFile: sourceFile,
			LineNumber: lineNum,
		})
	}
	result.TotalLines = lineNum

	return result
}

// ParseFile opens path and parses it with ParseReader. A missing file is
// reported as a warning and yields an empty result.
func ParseFile(path string, kinds KindSet) Result {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("file", path).Warn("file not found")
		} else {
			log.WithField("file", path).WithError(err).Error("error parsing log file")
		}
		return Result{Source: path}
	}
	defer f.Close()

	return ParseReader(f, path, kinds)
}

// FirstMetric scans r for the first line carrying a metric of the given kind,
// ignoring test headers. ok is false if no such line exists.
func FirstMetric(r io.Reader, kind Kind) (value float64, ok bool, err error) {
	lr := newLineReader(r)
	kinds := Kinds(kind)
	for {
		line, tooLong, err := lr.next()
		if err == io.EOF {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, errors.Wrap(err, "read")
		}
		if tooLong {
			continue
		}
		_, v, _, err := ParseMetric(line, kinds)
		if err != nil {
			continue
		}
		return v, true, nil
	}
}

// FirstMetricFile is FirstMetric over the file at path. Read errors are
// logged and reported as "not found".
func FirstMetricFile(path string, kind Kind) (float64, bool) {
	f, err := os.Open(path)
	if err != nil {
		log.WithField("file", path).WithError(err).Error("error reading log file")
		return 0, false
	}
	defer f.Close()

	v, ok, err := FirstMetric(f, kind)
	if err != nil {
		log.WithField("file", path).WithError(err).Error("error reading log file")
		return 0, false
	}
	return v, ok
}
