// Package config holds the registry of environment configurations and
// benchmark repositories the runner executes against.
package config

import (
	"bytes"
	_ "embed"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed configs.yaml
var defaultYAML []byte

// AllGroups selects the registry's default groups in Select.
const AllGroups = "all"

// Descriptor is one named environment configuration.
type Descriptor struct {
	Key           string            `yaml:"key"`
	Group         string            `yaml:"group"`
	Name          string            `yaml:"name"`
	Description   string            `yaml:"description"`
	Env           map[string]string `yaml:"env"`
	CommandPrefix string            `yaml:"command_prefix"`
	// Unset names variables removed from the inherited environment.
	Unset []string `yaml:"unset"`
	// LogEnv names variables echoed into each log header.
	LogEnv []string `yaml:"log_env"`
}

// PrefixArgs splits the command prefix into words.
func (d Descriptor) PrefixArgs() []string {
	return strings.Fields(d.CommandPrefix)
}

func (d Descriptor) clone() Descriptor {
	env := make(map[string]string, len(d.Env))
	for k, v := range d.Env {
		env[k] = v
	}
	d.Env = env
	d.Unset = append([]string(nil), d.Unset...)
	d.LogEnv = append([]string(nil), d.LogEnv...)
	return d
}

// Repo describes one benchmark repository.
type Repo struct {
	Name            string   `yaml:"name"`
	TestDir         string   `yaml:"test_dir"`
	TestPattern     string   `yaml:"test_pattern"`
	TestCommand     string   `yaml:"test_command"`
	SkipTests       []string `yaml:"skip_tests"`
	Whitelist       string   `yaml:"whitelist_file"`
	SpecialHandling bool     `yaml:"special_handling"`
	// SearchDirs are the subdirectories of TestDir scanned for scripts when
	// SpecialHandling is set.
	SearchDirs []string `yaml:"search_dirs"`
}

type document struct {
	DefaultGroups []string     `yaml:"default_groups"`
	Configs       []Descriptor `yaml:"configs"`
	Repos         []Repo       `yaml:"repos"`
}

// Registry is an immutable set of descriptors and repositories.
type Registry struct {
	descriptors   []Descriptor
	byKey         map[string]int
	groups        []string
	defaultGroups []string
	repos         []Repo
}

// Default parses the embedded registry.
func Default() (*Registry, error) {
	return Parse(defaultYAML)
}

// Load reads a registry from a YAML file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return r, nil
}

// Parse decodes and validates a registry document.
func Parse(data []byte) (*Registry, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode registry")
	}

	r := &Registry{byKey: make(map[string]int)}
	seenGroup := make(map[string]bool)
	for i, d := range doc.Configs {
		switch {
		case d.Key == "":
			return nil, errors.Errorf("config %d: missing key", i)
		case d.Group == "":
			return nil, errors.Errorf("config %s: missing group", d.Key)
		case d.Name == "":
			return nil, errors.Errorf("config %s: missing name", d.Key)
		}
		if _, dup := r.byKey[d.Key]; dup {
			return nil, errors.Errorf("duplicate config key %s", d.Key)
		}
		for _, k := range d.Unset {
			if _, ok := d.Env[k]; ok {
				return nil, errors.Errorf("config %s: %s is both set and unset", d.Key, k)
			}
		}
		r.byKey[d.Key] = len(r.descriptors)
		r.descriptors = append(r.descriptors, d.clone())
		if !seenGroup[d.Group] {
			seenGroup[d.Group] = true
			r.groups = append(r.groups, d.Group)
		}
	}

	for _, g := range doc.DefaultGroups {
		if !seenGroup[g] {
			return nil, errors.Errorf("default group %s has no configs", g)
		}
	}
	r.defaultGroups = doc.DefaultGroups

	seenRepo := make(map[string]bool)
	for i, repo := range doc.Repos {
		if repo.Name == "" {
			return nil, errors.Errorf("repo %d: missing name", i)
		}
		if seenRepo[repo.Name] {
			return nil, errors.Errorf("duplicate repo %s", repo.Name)
		}
		if repo.TestDir == "" {
			return nil, errors.Errorf("repo %s: missing test_dir", repo.Name)
		}
		seenRepo[repo.Name] = true
		r.repos = append(r.repos, repo)
	}
	return r, nil
}

// Descriptors returns every descriptor in declaration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	for i, d := range r.descriptors {
		out[i] = d.clone()
	}
	return out
}

// Keys returns every descriptor key in declaration order.
func (r *Registry) Keys() []string {
	out := make([]string, len(r.descriptors))
	for i, d := range r.descriptors {
		out[i] = d.Key
	}
	return out
}

// Lookup finds a descriptor by key.
func (r *Registry) Lookup(key string) (Descriptor, bool) {
	i, ok := r.byKey[key]
	if !ok {
		return Descriptor{}, false
	}
	return r.descriptors[i].clone(), true
}

// Group returns the descriptors of one group in declaration order.
func (r *Registry) Group(name string) []Descriptor {
	var out []Descriptor
	for _, d := range r.descriptors {
		if d.Group == name {
			out = append(out, d.clone())
		}
	}
	return out
}

// Groups lists group names in order of first declaration.
func (r *Registry) Groups() []string {
	out := make([]string, len(r.groups))
	copy(out, r.groups)
	return out
}

// Select resolves group names to descriptors, in the order the groups are
// given. "all" stands for the default groups.
func (r *Registry) Select(groups []string) ([]Descriptor, error) {
	var names []string
	for _, g := range groups {
		if g == AllGroups {
			names = r.defaultGroups
			break
		}
		names = append(names, g)
	}

	var out []Descriptor
	seen := make(map[string]bool)
	for _, g := range names {
		ds := r.Group(g)
		if len(ds) == 0 {
			return nil, errors.Errorf("unknown config group %q (have %s)", g, strings.Join(r.groups, ", "))
		}
		for _, d := range ds {
			if !seen[d.Key] {
				seen[d.Key] = true
				out = append(out, d)
			}
		}
	}
	return out, nil
}

// Repo finds a repository by name.
func (r *Registry) Repo(name string) (Repo, bool) {
	for _, repo := range r.repos {
		if repo.Name == name {
			return repo, true
		}
	}
	return Repo{}, false
}

// RepoNames lists repository names in declaration order.
func (r *Registry) RepoNames() []string {
	out := make([]string, len(r.repos))
	for i, repo := range r.repos {
		out[i] = repo.Name
	}
	return out
}

// SelectRepos resolves repository names; "all" selects every repository.
func (r *Registry) SelectRepos(names []string) ([]Repo, error) {
	for _, n := range names {
		if n == AllGroups {
			out := make([]Repo, len(r.repos))
			copy(out, r.repos)
			return out, nil
		}
	}
	out := make([]Repo, 0, len(names))
	for _, n := range names {
		repo, ok := r.Repo(n)
		if !ok {
			return nil, errors.Errorf("unknown repository %q (have %s)", n, strings.Join(r.RepoNames(), ", "))
		}
		out = append(out, repo)
	}
	return out, nil
}
