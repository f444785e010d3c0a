package analyzer

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const compileLog = `AST parsing took 9.0 seconds
test_geglu.py::test_correctness[dtype0-32] AST parsing took 0.05 seconds
ttir compilation took 0.01 seconds
ttgir compilation took 0.02 seconds
llir compilation took 0.30 seconds
ptx compilation took 0.08 seconds
cubin compilation took 0.16 seconds
test_geglu.py::test_correctness[dtype1-64]
AST parsing took 0.10 seconds
cubin compilation took bogus seconds
test case 1: torch.Size([2, 3, 4, 5])
llir compilation took 0.03 seconds
`

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestParseCompile(t *testing.T) {
	got, err := ParseCompile(strings.NewReader(compileLog))
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]float64{
		StageAST:   0.15,
		StageTTIR:  0.01,
		StageTTGIR: 0.02,
		StageLLIR:  0.33,
		StagePTX:   0.08,
		StageCUBIN: 0.16,
	}
	for stage, w := range want {
		if !near(got[stage], w) {
			t.Errorf("%s = %v, want %v", stage, got[stage], w)
		}
	}
	if _, ok := got[StageExecution]; ok {
		t.Error("compile log should not yield execution time")
	}
}

func TestParseExecution(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{
			name:  "header with forward and backward",
			input: "test_jsd.py::test_jsd[0.1] Forward kernel elapsed time: 1.5 ms\ntest_jsd.py::test_jsd[0.5] Backward kernel elapsed time: 2.5 ms\n",
			want:  4,
		},
		{
			name:  "seconds under test case",
			input: "test case 1\nkernel elapsed time: 0.25 seconds\nkernel elapsed time: 1 second\n",
			want:  1250,
		},
		{
			name:  "before any header",
			input: "kernel elapsed time: 3 ms\ntest case 2\nkernel elapsed time: 4 ms\n",
			want:  4,
		},
		{
			name:  "no timings",
			input: "collected 3 items\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExecution(strings.NewReader(tt.input))
			if err != nil {
				t.Fatal(err)
			}
			if !near(got, tt.want) {
				t.Errorf("got %v ms, want %v", got, tt.want)
			}
		})
	}
}

func TestParseZ3(t *testing.T) {
	input := "kernel elapsed time: 10 ms\nkernel elapsed time: 0.5 seconds\nother elapsed time: 99 ms\nkernel elapsed time: ms\n"
	got, err := ParseZ3(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if !near(got, 510) {
		t.Errorf("got %v ms, want 510", got)
	}
}

func TestParseEndToEnd(t *testing.T) {
	tests := []struct {
		input  string
		wantCS float64
		wantZ3 float64
	}{
		{"compute-sanitizer: 33.33s\nz3: 4.45s\n", 33.33, 4.45},
		{"compute-sanitizer: 8 seconds\nz3: 1 second\n", 8, 1},
		{"z3: 2s\n", 0, 2},
		{"", 0, 0},
	}
	for _, tt := range tests {
		cs, z3, err := ParseEndToEnd(strings.NewReader(tt.input))
		if err != nil {
			t.Fatal(err)
		}
		if !near(cs, tt.wantCS) || !near(z3, tt.wantZ3) {
			t.Errorf("ParseEndToEnd(%q) = %v, %v, want %v, %v", tt.input, cs, z3, tt.wantCS, tt.wantZ3)
		}
	}
}

func writeCase(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLoadBreakdowns(t *testing.T) {
	root := t.TempDir()
	writeCase(t, filepath.Join(root, "tritonbench_softmax"), map[string]string{
		CompileFile:   "test case 1\nllir compilation took 2 seconds\n",
		ExecutionFile: "test case 1\nkernel elapsed time: 500 ms\n",
	})
	writeCase(t, filepath.Join(root, "ligerkernel_geglu"), map[string]string{
		CompileFile:   compileLog,
		ExecutionFile: "test_geglu.py::test_correctness[dtype0-32] Forward kernel elapsed time: 14.2 ms\n",
		Z3File:        "kernel elapsed time: 20.31 ms\n",
		EndToEndFile:  "compute-sanitizer: 23.56s\nz3: 9.22s\n",
	})
	writeCase(t, filepath.Join(root, "incomplete"), map[string]string{CompileFile: "x\n"})
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadBreakdowns(root)
	if err != nil {
		t.Fatalf("LoadBreakdowns: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("breakdowns = %d, want 2", len(got))
	}

	liger, tb := got[0], got[1]
	if liger.Source != "ligerkernel_geglu" || liger.Label() != "geglu" {
		t.Errorf("first = %q (%q)", liger.Source, liger.Label())
	}
	if !near(liger.Stages[StageExecution], 0.0142) || !near(liger.Z3, 0.02031) {
		t.Errorf("execution = %v, z3 = %v", liger.Stages[StageExecution], liger.Z3)
	}
	if !near(liger.EndToEnd(), 23.56) || !near(liger.TritonSanitizer, 9.22) {
		t.Errorf("end-to-end = %v, %v", liger.EndToEnd(), liger.TritonSanitizer)
	}
	if !near(liger.Others(), 23.56-liger.Measured()) {
		t.Errorf("others = %v", liger.Others())
	}

	if !near(tb.Percent(tb.Stages[StageLLIR]), 80) || (Breakdown{}).Percent(1) != 0 {
		t.Errorf("percent = %v", tb.Percent(tb.Stages[StageLLIR]))
	}
	if !near(tb.Measured(), 2.5) || !near(tb.EndToEnd(), 2.5) || tb.Others() != 0 {
		t.Errorf("tritonbench measured = %v, end-to-end = %v, others = %v", tb.Measured(), tb.EndToEnd(), tb.Others())
	}

	if _, err := LoadBreakdowns(filepath.Join(root, "missing")); err == nil {
		t.Error("expected error for a missing directory")
	}
}
