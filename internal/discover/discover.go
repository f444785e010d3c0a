package discover

import (
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrRootNotFound is returned when the user-supplied output directory does
// not exist.
var ErrRootNotFound = errors.New("output directory not found")

// Namespaces are the intermediate directories the runner nests
// configurations under, tried after "<base>/<config>".
var (
	KernelTimeNamespaces = []string{"kernel_time_liger_kernel", "kernel_time_tritonbench", "kernel_time"}
	AblationNamespaces   = []string{"ablation_studies"}
)

// CheckRoot reports ErrRootNotFound if dir is missing or not a directory.
func CheckRoot(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrap(ErrRootNotFound, dir)
		}
		return errors.Wrapf(err, "cannot access %s", dir)
	}
	if !info.IsDir() {
		return errors.Wrapf(ErrRootNotFound, "%s is not a directory", dir)
	}
	return nil
}

// ConfigDir returns the first existing directory among "<base>/<config>"
// and "<base>/<ns>/<config>" for each namespace in order. ok is false if
// none exists.
func ConfigDir(base, config string, namespaces []string) (string, bool) {
	candidates := make([]string, 0, len(namespaces)+1)
	candidates = append(candidates, filepath.Join(base, config))
	for _, ns := range namespaces {
		candidates = append(candidates, filepath.Join(base, ns, config))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c, true
		}
	}
	return "", false
}

// FindLogFiles collects run.log and every *.log below the configuration
// directory, de-duplicated and ordered by file number. A configuration with
// no matching layout yields an empty list and no error.
func FindLogFiles(base, config string, namespaces []string) ([]string, error) {
	dir, ok := ConfigDir(base, config, namespaces)
	if !ok {
		return nil, nil
	}

	var files []string
	seen := make(map[string]bool)
	add := func(path string) {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if !seen[abs] {
			seen[abs] = true
			files = append(files, path)
		}
	}

	runLog := filepath.Join(dir, "run.log")
	if info, err := os.Stat(runLog); err == nil && !info.IsDir() {
		add(runLog)
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.WithField("path", path).WithError(err).Debug("skipping unreadable path")
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if isLogFile(path) {
			add(path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "error walking directory %s", dir)
	}

	SortByNumber(files)
	return files, nil
}

func isLogFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".log")
}

var fileNumberRe = regexp.MustCompile(`(\d+)_`)

// FileNumber returns the first "<digits>_" in the base name of path, or +Inf.
func FileNumber(path string) float64 {
	m := fileNumberRe.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return math.Inf(1)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return math.Inf(1)
	}
	return float64(n)
}

// SortByNumber orders paths by FileNumber, then by path.
func SortByNumber(paths []string) {
	sort.Slice(paths, func(i, j int) bool {
		ni, nj := FileNumber(paths[i]), FileNumber(paths[j])
		if ni != nj {
			return ni < nj
		}
		return paths[i] < paths[j]
	})
}

// CategoryLogs lists the *.log files directly inside dir, sorted by name.
func CategoryLogs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", dir)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// MemoryLogsDir picks the memory log subdirectory of base: subdir when
// given, otherwise the first of triton_sanitizer and baseline that exists.
func MemoryLogsDir(base, subdir string) (string, error) {
	if subdir != "" {
		dir := filepath.Join(base, subdir)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return "", errors.Errorf("directory %s not found", dir)
		}
		return dir, nil
	}
	for _, name := range []string{"triton_sanitizer", "baseline"} {
		dir := filepath.Join(base, name)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, nil
		}
	}
	return "", errors.Errorf("could not auto-detect subdirectory in %s", base)
}
