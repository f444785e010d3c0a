package runner

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sanbench/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestParseWhitelist(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		scripts bool
		want    Whitelist
	}{
		{
			name:  "pytest entries",
			input: "# comment\ntest_rms.py::test_fwd\n\ntest_rms.py::test_bwd\ntest_add.py::test_x\nnot_an_entry.py\n",
			want: Whitelist{
				"test_rms": {"test_fwd", "test_bwd"},
				"test_add": {"test_x"},
			},
		},
		{
			name:    "script entries",
			input:   "add.py\nmul.py\nadd.py\n",
			scripts: true,
			want:    Whitelist{"add": nil, "mul": nil},
		},
		{
			name:  "empty",
			input: "# nothing\n\n",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWhitelist(strings.NewReader(tt.input), tt.scripts)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseWhitelist() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadWhitelistMissing(t *testing.T) {
	wl, err := LoadWhitelist(filepath.Join(t.TempDir(), "nope.txt"), pytestRepo)
	if err != nil || wl != nil {
		t.Errorf("LoadWhitelist(missing) = %v, %v", wl, err)
	}
}

func TestTestFunctions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test_rms.py")
	writeFile(t, path, `import pytest

def helper():
    pass

def test_fwd(x):
    pass

class TestGroup:
    def test_method(self):
        pass

def test_fwd(y):
    pass

def testing_not_matched():
    pass
`)
	got, err := TestFunctions(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"test_fwd", "test_method"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TestFunctions() = %v, want %v", got, want)
	}
}

func TestTestFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "liger/test/test_b.py"), "")
	writeFile(t, filepath.Join(root, "liger/test/test_a.py"), "")
	writeFile(t, filepath.Join(root, "liger/test/test_skip.py"), "")
	writeFile(t, filepath.Join(root, "liger/test/helper.py"), "")
	writeFile(t, filepath.Join(root, "tb/EVAL/ops/add.py"), "")
	writeFile(t, filepath.Join(root, "tb/EVAL/__init__.py"), "")
	writeFile(t, filepath.Join(root, "tb/EVAL/__pycache__/add.py"), "")
	writeFile(t, filepath.Join(root, "tb/other/ignored.py"), "")

	repo := pytestRepo
	repo.SkipTests = []string{"test_skip.py"}
	got, err := TestFiles(root, repo)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(root, "liger/test/test_a.py"),
		filepath.Join(root, "liger/test/test_b.py"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("pytest files = %v, want %v", got, want)
	}

	got, err = TestFiles(root, scriptRepo)
	if err != nil {
		t.Fatal(err)
	}
	want = []string{filepath.Join(root, "tb/EVAL/ops/add.py")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("script files = %v, want %v", got, want)
	}

	missing := config.Repo{Name: "gone", TestDir: "nowhere", TestPattern: "*.py"}
	if got, err := TestFiles(root, missing); err != nil || got != nil {
		t.Errorf("missing dir = %v, %v", got, err)
	}
}

func TestPrepareTests(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "liger/test/test_a.py"), "def test_one():\n    pass\ndef test_two():\n    pass\n")
	writeFile(t, filepath.Join(root, "liger/test/test_b.py"), "x = 1\n")
	writeFile(t, filepath.Join(root, "tb/EVAL/add.py"), "")
	writeFile(t, filepath.Join(root, "tb/EVAL/mul.py"), "")

	names := func(tests []Test) []string {
		var out []string
		for _, tt := range tests {
			out = append(out, tt.Name)
		}
		return out
	}

	tests := []struct {
		name       string
		whitelists map[string]Whitelist
		want       []string
	}{
		{
			name: "no whitelist",
			want: []string{
				"liger_kernel/test_a/test_one",
				"liger_kernel/test_a/test_two",
				"liger_kernel/test_b",
				"tritonbench/add",
				"tritonbench/mul",
			},
		},
		{
			name: "whitelisted",
			whitelists: map[string]Whitelist{
				"liger_kernel": {"test_a": {"test_two"}},
				"tritonbench":  {"mul": nil},
			},
			want: []string{
				"liger_kernel/test_a/test_two",
				"tritonbench/mul",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PrepareTests(root, []config.Repo{pytestRepo, scriptRepo}, tt.whitelists)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(names(got), tt.want) {
				t.Errorf("PrepareTests() = %v, want %v", names(got), tt.want)
			}
		})
	}
}
