package runner

import (
	"bufio"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sanbench/internal/config"
)

// Test is one runnable unit: a whole file, or a single function in it.
type Test struct {
	Repo     config.Repo
	File     string
	Function string
	Name     string
}

// Display is the file (and function) as shown on the console.
func (t Test) Display() string {
	if t.Function != "" {
		return filepath.Base(t.File) + "::" + t.Function
	}
	return filepath.Base(t.File)
}

// Whitelist maps a test file stem to the functions to run. An empty list
// means the whole file.
type Whitelist map[string][]string

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ParseWhitelist reads one entry per line. Script repos list file names;
// pytest repos list "file.py::function". Blank lines and '#' comments are
// ignored. A whitelist with no entries is nil.
func ParseWhitelist(r io.Reader, scripts bool) (Whitelist, error) {
	wl := make(Whitelist)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if scripts {
			s := stem(line)
			if _, ok := wl[s]; !ok {
				wl[s] = nil
			}
			continue
		}
		file, fn, ok := strings.Cut(line, "::")
		if !ok {
			continue
		}
		s := stem(file)
		wl[s] = append(wl[s], fn)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read whitelist")
	}
	if len(wl) == 0 {
		return nil, nil
	}
	return wl, nil
}

// LoadWhitelist reads a whitelist file for repo. A missing file yields nil.
func LoadWhitelist(path string, repo config.Repo) (Whitelist, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "open whitelist %s", path)
	}
	defer f.Close()
	return ParseWhitelist(f, repo.SpecialHandling)
}

var testFuncRe = regexp.MustCompile(`^\s*def\s+(test_\w+)\s*\(`)

// TestFunctions lists the test_ functions defined in a pytest file, in
// source order, including nested definitions.
func TestFunctions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var funcs []string
	seen := make(map[string]bool)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		m := testFuncRe.FindStringSubmatch(sc.Text())
		if m == nil || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		funcs = append(funcs, m[1])
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "scan %s", path)
	}
	return funcs, nil
}

// TestFiles lists the test files of repo under root, minus skip_tests.
func TestFiles(root string, repo config.Repo) ([]string, error) {
	dir := filepath.Join(root, repo.TestDir)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		log.WithFields(log.Fields{"repo": repo.Name, "dir": dir}).Warn("test directory does not exist")
		return nil, nil
	}

	var files []string
	if repo.SpecialHandling {
		for _, sub := range repo.SearchDirs {
			base := filepath.Join(dir, sub)
			if _, err := os.Stat(base); err != nil {
				continue
			}
			err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return nil
				}
				if d.IsDir() {
					if d.Name() == "__pycache__" {
						return filepath.SkipDir
					}
					return nil
				}
				if strings.HasSuffix(d.Name(), ".py") && !strings.HasPrefix(d.Name(), "__") {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, errors.Wrapf(err, "walk %s", base)
			}
		}
	} else {
		matches, err := filepath.Glob(filepath.Join(dir, repo.TestPattern))
		if err != nil {
			return nil, errors.Wrapf(err, "bad test pattern %q", repo.TestPattern)
		}
		sort.Strings(matches)
		files = matches
	}

	if len(repo.SkipTests) > 0 {
		skip := make(map[string]bool, len(repo.SkipTests))
		for _, s := range repo.SkipTests {
			skip[s] = true
		}
		n := 0
		for _, f := range files {
			if !skip[filepath.Base(f)] {
				files[n] = f
				n++
			}
		}
		files = files[:n]
	}
	return files, nil
}

// PrepareTests expands every repository into its test list. Repositories
// with a whitelist run only the listed files; pytest repositories without
// one run every discovered test function.
func PrepareTests(root string, repos []config.Repo, whitelists map[string]Whitelist) ([]Test, error) {
	var tests []Test
	for _, repo := range repos {
		files, err := TestFiles(root, repo)
		if err != nil {
			return nil, err
		}
		wl := whitelists[repo.Name]
		if wl != nil {
			log.WithFields(log.Fields{"repo": repo.Name, "files": len(wl)}).Info("using whitelist")
		}

		for _, file := range files {
			s := stem(file)
			whole := Test{Repo: repo, File: file, Name: repo.Name + "/" + s}

			if wl != nil {
				fns, listed := wl[s]
				if !listed {
					continue
				}
				if repo.SpecialHandling || len(fns) == 0 {
					tests = append(tests, whole)
					continue
				}
				for _, fn := range fns {
					tests = append(tests, Test{Repo: repo, File: file, Function: fn, Name: whole.Name + "/" + fn})
				}
				continue
			}

			if repo.SpecialHandling {
				tests = append(tests, whole)
				continue
			}
			fns, err := TestFunctions(file)
			if err != nil {
				log.WithField("file", file).WithError(err).Warn("could not find test functions")
			}
			if len(fns) == 0 {
				tests = append(tests, whole)
				continue
			}
			for _, fn := range fns {
				tests = append(tests, Test{Repo: repo, File: file, Function: fn, Name: whole.Name + "/" + fn})
			}
		}
	}
	return tests, nil
}
