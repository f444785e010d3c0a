package main

import (
	"context"
	"os"
	"regexp"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sanbench/internal/discover"
	"github.com/sanbench/internal/filter"
	"github.com/sanbench/internal/output"
	"github.com/sanbench/internal/parser"
	"github.com/sanbench/internal/worker"
)

// parseFlags are the log parsing flags shared by the log analysis commands.
type parseFlags struct {
	Workers       int
	Test          string
	Kernel        string
	ExcludeKernel string
}

func (f *parseFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.Workers, "workers", 1, "number of concurrent parse workers")
	cmd.Flags().StringVar(&f.Test, "test", "", "only count tests whose identifier matches this regex")
	cmd.Flags().StringVar(&f.Kernel, "kernel", "", "only count kernels whose name matches this regex")
	cmd.Flags().StringVar(&f.ExcludeKernel, "exclude-kernel", "", "comma-separated kernel names to drop")
}

func (f parseFlags) filterOptions() (filter.Options, error) {
	opts := filter.Options{ExcludeKernels: filter.ParseKernelList(f.ExcludeKernel)}
	if f.Test != "" {
		re, err := regexp.Compile(f.Test)
		if err != nil {
			return opts, errors.Wrapf(err, "invalid --test regex %q", f.Test)
		}
		opts.TestRegex = re
	}
	if f.Kernel != "" {
		re, err := regexp.Compile(f.Kernel)
		if err != nil {
			return opts, errors.Wrapf(err, "invalid --kernel regex %q", f.Kernel)
		}
		opts.KernelRegex = re
	}
	return opts, nil
}

// findLogs locates a configuration's logs, warning when there are none.
func findLogs(dir, config string, namespaces []string) ([]string, error) {
	files, err := discover.FindLogFiles(dir, config, namespaces)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		log.WithFields(log.Fields{"config": config, "dir": dir}).Warn("no log files found for config")
	}
	return files, nil
}

// parseLogs parses files with a worker pool, drawing a progress bar when
// stderr is a terminal.
func parseLogs(ctx context.Context, files []string, kinds parser.KindSet, f parseFlags) ([]parser.Result, error) {
	opts, err := f.filterOptions()
	if err != nil {
		return nil, err
	}
	pool := &worker.Pool{
		Workers:    f.Workers,
		Kinds:      kinds,
		FilterOpts: opts,
	}
	if len(files) > 1 && output.IsTerminal(os.Stderr) {
		pb := output.NewProgressBar(os.Stderr, "files")
		pool.OnProgress = pb.Update
	}
	return pool.Process(ctx, files)
}
