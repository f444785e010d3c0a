package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sanbench/internal/config"
	"github.com/sanbench/internal/output"
	"github.com/sanbench/internal/runner"
)

type runOptions struct {
	Repos         []string
	ConfigGroups  []string
	OutputDir     string
	Whitelist     string
	WhitelistRepo string
	Timeout       time.Duration
	ConfigsFile   string
	HarnessDir    string
	Env           map[string]string
	Memory        bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs the benchmark tests under each configuration",
	Long: `Discovers the tests of each selected repository and runs every test under
every configuration of the selected groups, one at a time. Each run writes
a log under <output-dir>/<group>/<name>/, and a results CSV with the
elapsed time or status of every test is written to the output directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTests(cmd.Context(), cmd.OutOrStdout(), runOpts, nil)
	},
}

func init() {
	f := runCmd.Flags()
	f.StringSliceVar(&runOpts.Repos, "repos", []string{config.AllGroups}, "repositories to test, or all")
	f.StringSliceVar(&runOpts.ConfigGroups, "config-groups", []string{"baseline"}, "configuration groups to run; all runs the default groups")
	f.StringVar(&runOpts.OutputDir, "output-dir", "test_outputs", "base directory for test outputs")
	f.StringVar(&runOpts.Whitelist, "whitelist", "", "whitelist file for --whitelist-repo")
	f.StringVar(&runOpts.WhitelistRepo, "whitelist-repo", "", "repository the --whitelist applies to")
	f.DurationVar(&runOpts.Timeout, "timeout", runner.DefaultTimeout, "per-test timeout")
	f.StringVar(&runOpts.ConfigsFile, "configs", "", "registry YAML file (default: built-in)")
	f.StringVar(&runOpts.HarnessDir, "harness-dir", ".", "directory holding the benchmark repositories and profiler helpers")
	f.StringToStringVar(&runOpts.Env, "env", nil, "extra KEY=VALUE variables overriding every configuration")
	f.BoolVar(&runOpts.Memory, "memory", false, "wrap each command in /usr/bin/time -v to record peak memory")
	rootCmd.AddCommand(runCmd)
}

// runTests runs the selected tests. exec overrides the process executor.
func runTests(ctx context.Context, w io.Writer, o runOptions, exec runner.Executor) error {
	if (o.Whitelist == "") != (o.WhitelistRepo == "") {
		return errors.New("--whitelist and --whitelist-repo must be given together")
	}
	reg, err := loadRegistry(o.ConfigsFile)
	if err != nil {
		return err
	}
	repos, err := reg.SelectRepos(o.Repos)
	if err != nil {
		return err
	}
	descriptors, err := reg.Select(o.ConfigGroups)
	if err != nil {
		return err
	}
	whitelists, err := loadWhitelists(o, reg, repos)
	if err != nil {
		return err
	}

	tests, err := runner.PrepareTests(o.HarnessDir, repos, whitelists)
	if err != nil {
		return err
	}

	repoNames := make([]string, len(repos))
	for i, r := range repos {
		repoNames[i] = r.Name
	}
	log.WithFields(log.Fields{
		"output_dir": o.OutputDir,
		"repos":      strings.Join(repoNames, ","),
		"configs":    len(descriptors),
		"tests":      len(tests),
	}).Info("starting test run")

	r := &runner.Runner{
		OutputDir:  o.OutputDir,
		HarnessDir: o.HarnessDir,
		Timeout:    o.Timeout,
		Exec:       exec,
		Env:        o.Env,
		TimeMemory: o.Memory,
	}
	if output.IsTerminal(os.Stderr) {
		pb := output.NewProgressBar(os.Stderr, "tests")
		r.OnProgress = pb.Update
	}

	rep, runErr := r.Run(ctx, tests, descriptors)
	if runErr != nil {
		log.WithError(runErr).Warn("test run interrupted, saving partial results")
	}

	if err := os.MkdirAll(o.OutputDir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", o.OutputDir)
	}
	path := filepath.Join(o.OutputDir, fmt.Sprintf("results_%s.csv", time.Now().Format("20060102_150405")))
	if err := writeCSVFile(path, func(f io.Writer) error {
		return output.WriteResultsCSV(f, reg.Keys(), rep.Rows())
	}); err != nil {
		return err
	}
	log.WithField("path", path).Info("results saved")

	output.WriteRunSummary(w, rep.Summaries(reg.Keys()))
	return errors.Wrap(runErr, "test run")
}

// loadWhitelists reads the explicit whitelist, then each selected
// repository's own whitelist file under the harness dir when it exists.
func loadWhitelists(o runOptions, reg *config.Registry, repos []config.Repo) (map[string]runner.Whitelist, error) {
	whitelists := make(map[string]runner.Whitelist)
	if o.Whitelist != "" {
		repo, ok := reg.Repo(o.WhitelistRepo)
		if !ok {
			return nil, errors.Errorf("unknown repository %q for --whitelist-repo", o.WhitelistRepo)
		}
		if _, err := os.Stat(o.Whitelist); err != nil {
			return nil, errors.Wrap(err, "whitelist")
		}
		wl, err := runner.LoadWhitelist(o.Whitelist, repo)
		if err != nil {
			return nil, err
		}
		whitelists[repo.Name] = wl
		log.WithFields(log.Fields{"repo": repo.Name, "file": o.Whitelist}).Info("loaded whitelist")
	}

	for _, repo := range repos {
		if repo.Whitelist == "" || whitelists[repo.Name] != nil {
			continue
		}
		path := filepath.Join(o.HarnessDir, repo.Whitelist)
		wl, err := runner.LoadWhitelist(path, repo)
		if err != nil {
			return nil, err
		}
		if wl != nil {
			whitelists[repo.Name] = wl
			log.WithFields(log.Fields{"repo": repo.Name, "file": path}).Info("auto-loaded whitelist")
		}
	}
	return whitelists, nil
}
