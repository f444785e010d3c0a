package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sanbench/internal/config"
)

// Status is the outcome of one test run.
type Status string

const (
	StatusPassed  Status = "PASSED"
	StatusFailed  Status = "FAILED"
	StatusTimeout Status = "TIMEOUT"
	StatusError   Status = "ERROR"
)

// DefaultTimeout bounds a single test invocation.
const DefaultTimeout = 300 * time.Second

const (
	profilerEnv     = "ENABLE_TRITON_PROFILER"
	profilerPlugin  = "pytest_triton_profiler"
	profilerWrapper = "tritonbench_profiler_wrapper.py"
	timeLayout      = "2006-01-02T15:04:05.000000"
	timePrefix      = "/usr/bin/time -v"
)

var separator = strings.Repeat("=", 80)

// Result is the outcome of running one test under one configuration.
type Result struct {
	Number     string
	Status     Status
	Elapsed    time.Duration
	Error      string
	OutputFile string
}

// ProgressFunc is called after each test finishes.
type ProgressFunc func(processed, total int, current string)

// Runner executes tests under environment configurations, strictly one at
// a time.
type Runner struct {
	OutputDir string
	// HarnessDir holds the benchmark submodules and profiler helpers. It is
	// prepended to PYTHONPATH.
	HarnessDir string
	Timeout    time.Duration
	Exec       Executor
	// Environ returns the base environment; os.Environ when nil.
	Environ func() []string
	// Env overrides the variables of every descriptor.
	Env map[string]string
	// TimeMemory prefixes commands with /usr/bin/time -v when the
	// descriptor does not already.
	TimeMemory bool
	Now        func() time.Time
	OnProgress ProgressFunc
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Run executes every test under every descriptor, configuration by
// configuration. The test counter restarts for each configuration. If ctx
// is cancelled the partial report is returned with ctx's error.
func (r *Runner) Run(ctx context.Context, tests []Test, descriptors []config.Descriptor) (*Report, error) {
	rep := newReport(tests)
	if len(tests) == 0 {
		return rep, nil
	}

	harness, err := filepath.Abs(r.HarnessDir)
	if err != nil {
		return rep, errors.Wrapf(err, "resolve harness dir %s", r.HarnessDir)
	}
	exe := r.Exec
	if exe == nil {
		exe = ExecExecutor{}
	}

	total := len(tests) * len(descriptors)
	done := 0
	for _, d := range descriptors {
		log.WithFields(log.Fields{"config": d.Key, "tests": len(tests)}).Info(d.Description)
		for i, t := range tests {
			if err := ctx.Err(); err != nil {
				return rep, err
			}
			res := r.runOne(ctx, exe, harness, t, d, i+1, len(tests))
			rep.record(t.Name, d.Key, res)

			entry := log.WithFields(log.Fields{
				"config":  d.Key,
				"test":    t.Display(),
				"status":  res.Status,
				"elapsed": fmt.Sprintf("%.2fs", res.Elapsed.Seconds()),
			})
			if res.Error != "" {
				entry = entry.WithField("error", res.Error)
			}
			entry.Debug("test finished")

			done++
			if r.OnProgress != nil {
				r.OnProgress(done, total, t.Name)
			}
		}
	}
	return rep, nil
}

// PadNumber zero-pads n to the width of total.
func PadNumber(n, total int) string {
	return fmt.Sprintf("%0*d", len(strconv.Itoa(total)), n)
}

// LogFileName is the per-test log name inside a configuration directory.
func LogFileName(number string, t Test) string {
	name := number + "_" + t.Repo.Name + "_" + stem(t.File)
	if t.Function != "" {
		name += "_" + t.Function
	}
	return name + ".log"
}

func (r *Runner) runOne(ctx context.Context, exe Executor, harness string, t Test, d config.Descriptor, n, total int) Result {
	res := Result{Number: PadNumber(n, total)}

	dir := filepath.Join(r.OutputDir, d.Group, d.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		res.Status = StatusError
		res.Error = err.Error()
		return res
	}
	res.OutputFile = filepath.Join(dir, LogFileName(res.Number, t))

	env := r.environment(d, harness)
	if r.TimeMemory {
		d = withTimePrefix(d)
	}
	args, workDir := BuildCommand(t, d, env, harness)

	f, err := os.Create(res.OutputFile)
	if err != nil {
		res.Status = StatusError
		res.Error = err.Error()
		return res
	}
	defer f.Close()

	start := r.now()
	writeHeader(f, res.Number, t.Name, d, env, args, start)

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	code, err := exe.Run(runCtx, Command{Args: args, Env: EnvList(env), Dir: workDir}, f)
	cancel()

	end := r.now()
	res.Elapsed = end.Sub(start)

	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		res.Status = StatusTimeout
		res.Error = fmt.Sprintf("Test exceeded %s timeout", timeout)
	case err != nil:
		res.Status = StatusError
		res.Error = err.Error()
	case code != 0:
		res.Status = StatusFailed
		res.Error = fmt.Sprintf("Return code: %d", code)
	default:
		res.Status = StatusPassed
	}

	writeFooter(f, end, res)
	return res
}

func (r *Runner) environ() []string {
	if r.Environ != nil {
		return r.Environ()
	}
	return os.Environ()
}

// environment is the process environment for one run under d.
func (r *Runner) environment(d config.Descriptor, harness string) map[string]string {
	env := MergeEnv(r.environ(), d.Env, harness)
	for _, k := range d.Unset {
		delete(env, k)
	}
	for k, v := range r.Env {
		env[k] = v
	}
	return env
}

func withTimePrefix(d config.Descriptor) config.Descriptor {
	if strings.HasPrefix(d.CommandPrefix, timePrefix) {
		return d
	}
	d.CommandPrefix = strings.TrimSpace(timePrefix + " " + d.CommandPrefix)
	return d
}

func writeHeader(w io.Writer, number, name string, d config.Descriptor, env map[string]string, args []string, start time.Time) {
	fmt.Fprintf(w, "Test Number: %s\n", number)
	fmt.Fprintf(w, "Test: %s\n", name)
	fmt.Fprintf(w, "Environment: %s\n", d.Key)
	for _, k := range d.LogEnv {
		fmt.Fprintf(w, "%s: %s\n", k, env[k])
	}
	fmt.Fprintf(w, "Command: %s\n", strings.Join(args, " "))
	fmt.Fprintf(w, "Start Time: %s\n", start.Format(timeLayout))
	fmt.Fprintln(w, separator)
}

func writeFooter(w io.Writer, end time.Time, res Result) {
	fmt.Fprintf(w, "\n%s\n", separator)
	fmt.Fprintf(w, "End Time: %s\n", end.Format(timeLayout))
	fmt.Fprintf(w, "Elapsed Time: %.4f seconds\n", res.Elapsed.Seconds())
	fmt.Fprintf(w, "Status: %s\n", res.Status)
	if res.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", res.Error)
	}
}

// MergeEnv overlays the descriptor env on base and prefixes PYTHONPATH with
// the harness directory.
func MergeEnv(base []string, overlay map[string]string, harness string) map[string]string {
	env := make(map[string]string, len(base)+len(overlay)+1)
	for _, kv := range base {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		env[k] = v
	}
	for k, v := range overlay {
		env[k] = v
	}
	if pp, ok := env["PYTHONPATH"]; ok && pp != "" {
		env["PYTHONPATH"] = harness + string(os.PathListSeparator) + pp
	} else {
		env["PYTHONPATH"] = harness
	}
	return env
}

// EnvList flattens env into sorted KEY=VALUE pairs.
func EnvList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// BuildCommand assembles the argument list and working directory for t.
func BuildCommand(t Test, d config.Descriptor, env map[string]string, harness string) ([]string, string) {
	testDir := filepath.Join(harness, t.Repo.TestDir)
	profiling := env[profilerEnv] == "1"

	var cmd []string
	if t.Repo.SpecialHandling {
		rel, err := filepath.Rel(testDir, t.File)
		if err != nil {
			rel = t.File
		}
		cmd = strings.Fields(t.Repo.TestCommand)
		if profiling {
			cmd = append(cmd, filepath.Join(harness, profilerWrapper))
		}
		cmd = append(cmd, rel)
	} else {
		target := filepath.Base(t.File)
		if t.Function != "" {
			target += "::" + t.Function
		}
		cmd = append(strings.Fields(t.Repo.TestCommand), target)
		if profiling && len(cmd) > 0 && strings.Contains(cmd[0], "pytest") {
			cmd = append([]string{cmd[0], "-p", profilerPlugin}, cmd[1:]...)
		}
	}

	return append(d.PrefixArgs(), cmd...), testDir
}
