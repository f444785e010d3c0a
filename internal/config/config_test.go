package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	r, err := Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}

	if got := len(r.Descriptors()); got != 30 {
		t.Errorf("descriptors = %d, want 30", got)
	}

	wantGroups := map[string]int{
		"baseline":                 4,
		"compute_sanitizer":        4,
		"triton_sanitizer":         4,
		"kernel_time_liger_kernel": 3,
		"kernel_time":              3,
		"kernel_time_tritonbench":  3,
		"ablation_studies":         5,
		"address_sanitizer":        4,
	}
	for g, n := range wantGroups {
		if got := len(r.Group(g)); got != n {
			t.Errorf("group %s = %d, want %d", g, got, n)
		}
	}

	names := r.RepoNames()
	if strings.Join(names, ",") != "liger_kernel,flag_gems,tritonbench" {
		t.Errorf("RepoNames() = %v", names)
	}
	tb, ok := r.Repo("tritonbench")
	if !ok || !tb.SpecialHandling || len(tb.SearchDirs) != 3 {
		t.Errorf("tritonbench = %+v", tb)
	}
}

func TestLookup(t *testing.T) {
	r, err := Default()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		key        string
		wantPrefix []string
		wantEnv    map[string]string
		wantUnset  []string
	}{
		{
			key:        "baseline_compile_no_cache",
			wantPrefix: []string{"/usr/bin/time", "-v"},
			wantEnv:    map[string]string{"TRITON_ALWAYS_COMPILE": "1", "PYTORCH_NO_CUDA_MEMORY_CACHING": "1"},
		},
		{
			key:        "triton_sanitizer_no_compile_with_cache",
			wantPrefix: []string{"/usr/bin/time", "-v", "triton-sanitizer"},
			wantEnv:    map[string]string{"TRITON_ALWAYS_COMPILE": "0"},
		},
		{
			key:     "kernel_time_baseline",
			wantEnv: map[string]string{"ENABLE_TRITON_PROFILER": "1"},
		},
		{
			key:        "ablation_symbol_loop",
			wantPrefix: []string{"triton-sanitizer"},
			wantEnv: map[string]string{
				"SANITIZER_ENABLE_SYMBOL_CACHE": "1",
				"SANITIZER_ENABLE_LOOP_CACHE":   "1",
				"SANITIZER_ENABLE_GRID_CACHE":   "0",
				"SANITIZER_ENABLE_KERNEL_CACHE": "0",
			},
		},
		{
			key: "address_sanitizer_no_compile_no_cache",
			wantEnv: map[string]string{
				"TRITON_ENABLE_ASAN":             "1",
				"HSA_XNACK":                      "1",
				"PYTORCH_NO_HIP_MEMORY_CACHING":  "1",
				"HSA_DISABLE_FRAGMENT_ALLOCATOR": "1",
				"AMDGCN_USE_BUFFER_OPS":          "0",
			},
			wantUnset: []string{"PYTORCH_NO_CUDA_MEMORY_CACHING"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			d, ok := r.Lookup(tt.key)
			if !ok {
				t.Fatalf("%s not found", tt.key)
			}
			if strings.Join(d.PrefixArgs(), " ") != strings.Join(tt.wantPrefix, " ") {
				t.Errorf("PrefixArgs() = %v, want %v", d.PrefixArgs(), tt.wantPrefix)
			}
			for k, v := range tt.wantEnv {
				if d.Env[k] != v {
					t.Errorf("Env[%s] = %q, want %q", k, d.Env[k], v)
				}
			}
			if strings.Join(d.Unset, ",") != strings.Join(tt.wantUnset, ",") {
				t.Errorf("Unset = %v, want %v", d.Unset, tt.wantUnset)
			}
			for _, k := range d.Unset {
				if _, ok := d.Env[k]; ok {
					t.Errorf("%s is both set and unset", k)
				}
			}
		})
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	r, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	d, _ := r.Lookup("baseline_compile_no_cache")
	d.Env["TRITON_ALWAYS_COMPILE"] = "changed"

	again, _ := r.Lookup("baseline_compile_no_cache")
	if again.Env["TRITON_ALWAYS_COMPILE"] != "1" {
		t.Error("registry was mutated through a returned descriptor")
	}
}

func TestSelect(t *testing.T) {
	r, err := Default()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		groups  []string
		wantLen int
		wantErr bool
	}{
		{"single", []string{"baseline"}, 4, false},
		{"all", []string{"all"}, 12, false},
		{"two", []string{"ablation_studies", "kernel_time"}, 8, false},
		{"repeated", []string{"baseline", "baseline"}, 4, false},
		{"unknown", []string{"nope"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Select(tt.groups)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestSelectRepos(t *testing.T) {
	r, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	all, err := r.SelectRepos([]string{"all"})
	if err != nil || len(all) != 3 {
		t.Errorf("SelectRepos(all) = %d, %v", len(all), err)
	}
	if _, err := r.SelectRepos([]string{"unknown"}); err == nil {
		t.Error("expected error for unknown repo")
	}
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "duplicate key",
			doc: `configs:
  - {key: a, group: g, name: n}
  - {key: a, group: g, name: m}
`,
		},
		{
			name: "missing group",
			doc: `configs:
  - {key: a, name: n}
`,
		},
		{
			name: "missing name",
			doc: `configs:
  - {key: a, group: g}
`,
		},
		{
			name: "unknown default group",
			doc: `default_groups: [x]
configs:
  - {key: a, group: g, name: n}
`,
		},
		{
			name: "unknown field",
			doc: `configs:
  - {key: a, group: g, name: n, colour: red}
`,
		},
		{
			name: "set and unset",
			doc: `configs:
  - {key: a, group: g, name: n, env: {X: "1"}, unset: [X]}
`,
		},
		{
			name: "repo without test dir",
			doc: `repos:
  - {name: r}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs.yaml")
	doc := `default_groups: [g]
configs:
  - key: g_one
    group: g
    name: one
    env: {A: "1"}
    command_prefix: "echo"
repos:
  - {name: r, test_dir: tests/, test_pattern: "test_*.py", test_command: pytest}
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	ds, err := r.Select([]string{"all"})
	if err != nil || len(ds) != 1 || ds[0].Key != "g_one" {
		t.Errorf("Select(all) = %+v, %v", ds, err)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
