package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sanbench/internal/config"
	"github.com/sanbench/internal/runner"
)

var (
	configsFile  string
	configsGroup string
)

var configsCmd = &cobra.Command{
	Use:   "configs",
	Short: "Lists the environment configurations and repositories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry(configsFile)
		if err != nil {
			return err
		}
		return listConfigs(cmd.OutOrStdout(), reg, configsGroup)
	},
}

func init() {
	configsCmd.Flags().StringVar(&configsFile, "configs", "", "registry YAML file (default: built-in)")
	configsCmd.Flags().StringVar(&configsGroup, "group", "", "only list this group")
	rootCmd.AddCommand(configsCmd)
}

func loadRegistry(path string) (*config.Registry, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}

func listConfigs(w io.Writer, reg *config.Registry, group string) error {
	ds := reg.Descriptors()
	if group != "" {
		if ds = reg.Group(group); len(ds) == 0 {
			return errors.Errorf("unknown config group %q (have %s)", group, strings.Join(reg.Groups(), ", "))
		}
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tGROUP\tENV\tDESCRIPTION")
	for _, d := range ds {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Key, d.Group, strings.Join(runner.EnvList(d.Env), " "), d.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if group == "" {
		fmt.Fprintf(w, "\nRepositories: %s\n", strings.Join(reg.RepoNames(), ", "))
	}
	return nil
}
