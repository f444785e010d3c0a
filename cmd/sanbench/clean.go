package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cleanPattern string
	cleanYes     bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Removes generated test output directories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cleanOutputs(cmd.InOrStdin(), cmd.OutOrStdout(), cleanPattern, cleanYes)
	},
}

func init() {
	cleanCmd.Flags().StringVar(&cleanPattern, "pattern", "test_outputs*", "glob of directories to remove")
	cleanCmd.Flags().BoolVarP(&cleanYes, "yes", "y", false, "remove without asking")
	rootCmd.AddCommand(cleanCmd)
}

// cleanOutputs removes the directories matching pattern once confirmed.
func cleanOutputs(in io.Reader, w io.Writer, pattern string, yes bool) error {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return errors.Wrapf(err, "bad pattern %q", pattern)
	}
	var dirs []string
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.IsDir() {
			dirs = append(dirs, m)
		}
	}
	if len(dirs) == 0 {
		fmt.Fprintf(w, "No directories found matching pattern: %s\n", pattern)
		return nil
	}
	sort.Strings(dirs)

	fmt.Fprintf(w, "Found %d directories to remove:\n", len(dirs))
	for _, d := range dirs {
		fmt.Fprintf(w, "  - %s\n", d)
	}
	if !yes {
		fmt.Fprint(w, "\nAre you sure you want to delete these directories? (y/n) ")
		answer, _ := bufio.NewReader(in).ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Fprintln(w, "Cleanup cancelled.")
			return nil
		}
	}

	removed := 0
	for _, d := range dirs {
		if err := os.RemoveAll(d); err != nil {
			log.WithField("dir", d).WithError(err).Error("remove failed")
			continue
		}
		removed++
	}
	fmt.Fprintf(w, "Removed %d directories.\n", removed)
	return nil
}
