package main

import (
	"io"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sanbench/internal/analyzer"
	"github.com/sanbench/internal/discover"
	"github.com/sanbench/internal/output"
)

var memorySubdir string

var memoryCmd = &cobra.Command{
	Use:   "memory [directory]",
	Short: "Reports peak memory usage per cache setting",
	Long: `Reads the "Maximum resident set size" line of every log under each cache
setting directory and reports the average, minimum and maximum. The log
subdirectory defaults to triton_sanitizer, falling back to baseline.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		return analyzeMemory(cmd.OutOrStdout(), dir, memorySubdir)
	},
}

func init() {
	memoryCmd.Flags().StringVar(&memorySubdir, "subdir", "", "log subdirectory to analyze (default: auto-detect)")
	rootCmd.AddCommand(memoryCmd)
}

func analyzeMemory(w io.Writer, dir, subdir string) error {
	if err := discover.CheckRoot(dir); err != nil {
		return err
	}
	logsDir, err := discover.MemoryLogsDir(dir, subdir)
	if err != nil {
		log.WithError(err).Error("no memory logs to analyze")
		return nil
	}

	output.WriteMemoryHeader(w, filepath.Base(logsDir), logsDir)
	var usages []analyzer.MemoryUsage
	for _, cat := range analyzer.MemoryCategories {
		catDir := filepath.Join(logsDir, cat)
		logs, err := discover.CategoryLogs(catDir)
		if err != nil {
			log.WithField("dir", catDir).Warn("category directory not found")
			continue
		}
		u := analyzer.MeasureMemory(cat, logs)
		output.WriteMemoryCategory(w, u)
		usages = append(usages, u)
	}
	output.WriteMemorySummary(w, usages)
	return nil
}
