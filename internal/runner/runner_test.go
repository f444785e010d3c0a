package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sanbench/internal/config"
)

type fakeExec struct {
	mu    sync.Mutex
	calls []Command
	// code by the test target, matched as a substring of the joined args.
	codes  map[string]int
	errs   map[string]error
	block  bool
	output string
}

func (f *fakeExec) Run(ctx context.Context, cmd Command, out io.Writer) (int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()

	if f.output != "" {
		fmt.Fprint(out, f.output)
	}
	if f.block {
		<-ctx.Done()
		return -1, ctx.Err()
	}
	joined := strings.Join(cmd.Args, " ")
	for k, err := range f.errs {
		if strings.Contains(joined, k) {
			return -1, err
		}
	}
	for k, code := range f.codes {
		if strings.Contains(joined, k) {
			return code, nil
		}
	}
	return 0, nil
}

// stepClock advances by step on every call.
func stepClock(step time.Duration) func() time.Time {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

var pytestRepo = config.Repo{
	Name:        "liger_kernel",
	TestDir:     "liger/test",
	TestPattern: "test_*.py",
	TestCommand: "pytest -s --assert=plain",
}

var scriptRepo = config.Repo{
	Name:            "tritonbench",
	TestDir:         "tb",
	TestCommand:     "python",
	SpecialHandling: true,
	SearchDirs:      []string{"EVAL"},
}

func TestPadNumber(t *testing.T) {
	tests := []struct {
		n, total int
		want     string
	}{
		{1, 5, "1"},
		{3, 12, "03"},
		{7, 100, "007"},
		{100, 100, "100"},
	}
	for _, tt := range tests {
		if got := PadNumber(tt.n, tt.total); got != tt.want {
			t.Errorf("PadNumber(%d, %d) = %q, want %q", tt.n, tt.total, got, tt.want)
		}
	}
}

func TestLogFileName(t *testing.T) {
	whole := Test{Repo: scriptRepo, File: "/x/tb/EVAL/add.py"}
	if got := LogFileName("02", whole); got != "02_tritonbench_add.log" {
		t.Errorf("LogFileName = %q", got)
	}
	fn := Test{Repo: pytestRepo, File: "/x/test_rms.py", Function: "test_fwd"}
	if got := LogFileName("11", fn); got != "11_liger_kernel_test_rms_test_fwd.log" {
		t.Errorf("LogFileName = %q", got)
	}
}

func TestMergeEnv(t *testing.T) {
	env := MergeEnv([]string{"HOME=/root", "PYTHONPATH=/opt/lib", "BROKEN"}, map[string]string{"HOME": "/tmp", "A": "1"}, "/h")
	if env["HOME"] != "/tmp" || env["A"] != "1" {
		t.Errorf("overlay not applied: %v", env)
	}
	if env["PYTHONPATH"] != "/h"+string(os.PathListSeparator)+"/opt/lib" {
		t.Errorf("PYTHONPATH = %q", env["PYTHONPATH"])
	}
	if _, ok := env["BROKEN"]; ok {
		t.Error("entry without '=' should be dropped")
	}

	bare := MergeEnv(nil, nil, "/h")
	if bare["PYTHONPATH"] != "/h" {
		t.Errorf("PYTHONPATH = %q", bare["PYTHONPATH"])
	}
}

func TestBuildCommand(t *testing.T) {
	timed := config.Descriptor{Key: "k", CommandPrefix: "/usr/bin/time -v triton-sanitizer"}
	plain := config.Descriptor{Key: "p"}
	profile := map[string]string{"ENABLE_TRITON_PROFILER": "1"}

	tests := []struct {
		name    string
		test    Test
		desc    config.Descriptor
		env     map[string]string
		want    string
		wantDir string
	}{
		{
			name:    "pytest function",
			test:    Test{Repo: pytestRepo, File: "/h/liger/test/test_rms.py", Function: "test_fwd"},
			desc:    timed,
			want:    "/usr/bin/time -v triton-sanitizer pytest -s --assert=plain test_rms.py::test_fwd",
			wantDir: "/h/liger/test",
		},
		{
			name:    "pytest whole file",
			test:    Test{Repo: pytestRepo, File: "/h/liger/test/test_rms.py"},
			desc:    plain,
			want:    "pytest -s --assert=plain test_rms.py",
			wantDir: "/h/liger/test",
		},
		{
			name:    "pytest profiled",
			test:    Test{Repo: pytestRepo, File: "/h/liger/test/test_rms.py", Function: "test_fwd"},
			desc:    plain,
			env:     profile,
			want:    "pytest -p pytest_triton_profiler -s --assert=plain test_rms.py::test_fwd",
			wantDir: "/h/liger/test",
		},
		{
			name:    "script",
			test:    Test{Repo: scriptRepo, File: "/h/tb/EVAL/ops/add.py"},
			desc:    timed,
			want:    "/usr/bin/time -v triton-sanitizer python EVAL/ops/add.py",
			wantDir: "/h/tb",
		},
		{
			name:    "script profiled",
			test:    Test{Repo: scriptRepo, File: "/h/tb/EVAL/add.py"},
			desc:    plain,
			env:     profile,
			want:    "python /h/tritonbench_profiler_wrapper.py EVAL/add.py",
			wantDir: "/h/tb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, dir := BuildCommand(tt.test, tt.desc, tt.env, "/h")
			if got := strings.Join(args, " "); got != tt.want {
				t.Errorf("args = %q, want %q", got, tt.want)
			}
			if dir != tt.wantDir {
				t.Errorf("dir = %q, want %q", dir, tt.wantDir)
			}
		})
	}
}

func TestRun(t *testing.T) {
	out := t.TempDir()
	harness := t.TempDir()
	exe := &fakeExec{
		codes:  map[string]int{"test_b": 2},
		errs:   map[string]error{"test_c": fmt.Errorf("exec: not found")},
		output: "hello from test\n",
	}
	r := &Runner{
		OutputDir:  out,
		HarnessDir: harness,
		Exec:       exe,
		Environ:    func() []string { return []string{"PATH=/bin"} },
		Now:        stepClock(1500 * time.Millisecond),
	}

	file := filepath.Join(harness, pytestRepo.TestDir, "test_x.py")
	tests := []Test{
		{Repo: pytestRepo, File: file, Function: "test_a", Name: "liger_kernel/test_x/test_a"},
		{Repo: pytestRepo, File: file, Function: "test_b", Name: "liger_kernel/test_x/test_b"},
		{Repo: pytestRepo, File: file, Function: "test_c", Name: "liger_kernel/test_x/test_c"},
	}
	descs := []config.Descriptor{
		{Key: "baseline_x", Group: "baseline", Name: "x", Env: map[string]string{"A": "1"}, CommandPrefix: "/usr/bin/time -v"},
		{Key: "triton_x", Group: "triton_sanitizer", Name: "x", CommandPrefix: "triton-sanitizer"},
	}

	var progress []int
	r.OnProgress = func(done, total int, _ string) {
		if total != 6 {
			t.Errorf("progress total = %d, want 6", total)
		}
		progress = append(progress, done)
	}

	rep, err := r.Run(context.Background(), tests, descs)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(exe.calls) != 6 {
		t.Fatalf("calls = %d, want 6", len(exe.calls))
	}
	if len(progress) != 6 || progress[5] != 6 {
		t.Errorf("progress = %v", progress)
	}

	first := exe.calls[0]
	if got := strings.Join(first.Args, " "); got != "/usr/bin/time -v pytest -s --assert=plain test_x.py::test_a" {
		t.Errorf("first command = %q", got)
	}
	if first.Dir != filepath.Join(harness, pytestRepo.TestDir) {
		t.Errorf("dir = %q", first.Dir)
	}
	env := strings.Join(first.Env, "\n")
	if !strings.Contains(env, "A=1") || !strings.Contains(env, "PYTHONPATH="+harness) {
		t.Errorf("env missing overlay: %v", first.Env)
	}

	rows := rep.Rows()
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	wantCells := [][]string{
		{"1.5000", "1.5000"},
		{"FAILED", "FAILED"},
		{"ERROR", "ERROR"},
	}
	for i, row := range rows {
		if row.Number != fmt.Sprint(i+1) {
			t.Errorf("row %d number = %q", i, row.Number)
		}
		for j, key := range []string{"baseline_x", "triton_x"} {
			if got := row.Cell(key); got != wantCells[i][j] {
				t.Errorf("%s[%s] = %q, want %q", row.Name, key, got, wantCells[i][j])
			}
		}
		if got := row.Cell("missing"); got != NotRun {
			t.Errorf("missing key cell = %q", got)
		}
	}

	logPath := filepath.Join(out, "baseline", "x", "2_liger_kernel_test_x_test_b.log")
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	log := string(data)
	for _, want := range []string{
		"Test Number: 2\n",
		"Test: liger_kernel/test_x/test_b\n",
		"Environment: baseline_x\n",
		"Command: /usr/bin/time -v pytest -s --assert=plain test_x.py::test_b\n",
		"Start Time: 2024-05-01T12:00:",
		strings.Repeat("=", 80) + "\n",
		"hello from test\n",
		"Elapsed Time: 1.5000 seconds\n",
		"Status: FAILED\n",
		"Error: Return code: 2\n",
	} {
		if !strings.Contains(log, want) {
			t.Errorf("log missing %q:\n%s", want, log)
		}
	}

	sums := rep.Summaries([]string{"baseline_x", "unused", "triton_x"})
	if len(sums) != 2 {
		t.Fatalf("summaries = %d, want 2", len(sums))
	}
	s := sums[0]
	if s.Key != "baseline_x" || s.Total() != 3 || s.Passed != 1 || s.Failed != 1 || s.Errors != 1 {
		t.Errorf("summary = %+v", s)
	}
	if s.TotalTime != 1500*time.Millisecond {
		t.Errorf("total time = %v", s.TotalTime)
	}
}

func TestRunEnvironmentOverlay(t *testing.T) {
	out := t.TempDir()
	harness := t.TempDir()
	exe := &fakeExec{}
	r := &Runner{
		OutputDir:  out,
		HarnessDir: harness,
		Exec:       exe,
		Environ: func() []string {
			return []string{"PATH=/bin", "PYTORCH_NO_CUDA_MEMORY_CACHING=1"}
		},
		Env:        map[string]string{"EXTRA": "x", "TRITON_ALWAYS_COMPILE": "0"},
		TimeMemory: true,
		Now:        stepClock(time.Second),
	}
	tests := []Test{{Repo: scriptRepo, File: filepath.Join(harness, "tb", "EVAL", "add.py"), Name: "tritonbench/add"}}
	descs := []config.Descriptor{{
		Key:    "address_sanitizer_compile_no_cache",
		Group:  "address_sanitizer",
		Name:   "compile_no_cache",
		Env:    map[string]string{"TRITON_ALWAYS_COMPILE": "1", "TRITON_ENABLE_ASAN": "1", "HSA_XNACK": "1"},
		Unset:  []string{"PYTORCH_NO_CUDA_MEMORY_CACHING"},
		LogEnv: []string{"TRITON_ENABLE_ASAN", "HSA_XNACK"},
	}}

	if _, err := r.Run(context.Background(), tests, descs); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(exe.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(exe.calls))
	}
	call := exe.calls[0]
	if got := strings.Join(call.Args, " "); got != "/usr/bin/time -v python EVAL/add.py" {
		t.Errorf("args = %q", got)
	}

	env := make(map[string]string)
	for _, kv := range call.Env {
		k, v, _ := strings.Cut(kv, "=")
		env[k] = v
	}
	wantEnv := []struct {
		key  string
		want string
		set  bool
	}{
		{"TRITON_ENABLE_ASAN", "1", true},
		{"EXTRA", "x", true},
		{"TRITON_ALWAYS_COMPILE", "0", true},
		{"PATH", "/bin", true},
		{"PYTORCH_NO_CUDA_MEMORY_CACHING", "", false},
	}
	for _, tt := range wantEnv {
		got, ok := env[tt.key]
		if ok != tt.set || got != tt.want {
			t.Errorf("env[%s] = %q (set %v), want %q (set %v)", tt.key, got, ok, tt.want, tt.set)
		}
	}

	data, err := os.ReadFile(filepath.Join(out, "address_sanitizer", "compile_no_cache", "1_tritonbench_add.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	want := "Environment: address_sanitizer_compile_no_cache\nTRITON_ENABLE_ASAN: 1\nHSA_XNACK: 1\nCommand: "
	if !strings.Contains(string(data), want) {
		t.Errorf("log header missing %q:\n%s", want, data)
	}
}

func TestWithTimePrefix(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"", "/usr/bin/time -v"},
		{"compute-sanitizer", "/usr/bin/time -v compute-sanitizer"},
		{"/usr/bin/time -v triton-sanitizer", "/usr/bin/time -v triton-sanitizer"},
	}
	for _, tt := range tests {
		got := withTimePrefix(config.Descriptor{CommandPrefix: tt.prefix}).CommandPrefix
		if got != tt.want {
			t.Errorf("withTimePrefix(%q) = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestRunTimeout(t *testing.T) {
	r := &Runner{
		OutputDir:  t.TempDir(),
		HarnessDir: t.TempDir(),
		Timeout:    20 * time.Millisecond,
		Exec:       &fakeExec{block: true},
		Environ:    func() []string { return nil },
	}
	tests := []Test{{Repo: scriptRepo, File: "/h/tb/EVAL/add.py", Name: "tritonbench/add"}}
	descs := []config.Descriptor{{Key: "k", Group: "g", Name: "n"}}

	rep, err := r.Run(context.Background(), tests, descs)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	rows := rep.Rows()
	res := rows[0].Cells["k"]
	if res.Status != StatusTimeout {
		t.Fatalf("status = %s, want TIMEOUT", res.Status)
	}
	if !strings.Contains(res.Error, "timeout") {
		t.Errorf("error = %q", res.Error)
	}
	if rows[0].Cell("k") != "TIMEOUT" {
		t.Errorf("cell = %q", rows[0].Cell("k"))
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exe := &fakeExec{}
	r := &Runner{OutputDir: t.TempDir(), HarnessDir: t.TempDir(), Exec: exe}
	tests := []Test{{Repo: scriptRepo, File: "/h/tb/EVAL/add.py", Name: "tritonbench/add"}}
	descs := []config.Descriptor{{Key: "k", Group: "g", Name: "n"}}

	rep, err := r.Run(ctx, tests, descs)
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(exe.calls) != 0 {
		t.Errorf("calls = %d, want 0", len(exe.calls))
	}
	if rep.Rows()[0].Cell("k") != NotRun {
		t.Error("cancelled run should leave cells empty")
	}
}

func TestRunNoTests(t *testing.T) {
	r := &Runner{OutputDir: t.TempDir(), Exec: &fakeExec{}}
	rep, err := r.Run(context.Background(), nil, []config.Descriptor{{Key: "k", Group: "g", Name: "n"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Rows()) != 0 || len(rep.Summaries([]string{"k"})) != 0 {
		t.Error("expected an empty report")
	}
}
