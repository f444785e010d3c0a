package main

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sanbench/internal/analyzer"
	"github.com/sanbench/internal/plot"
)

// ablationBarLabels name the bars in AblationConfigs order.
var ablationBarLabels = []string{"No Cache", "+ Symbol", "+ Loop", "+ Grid", "+ Kernel"}

var plotOut string

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Renders figures from results CSVs",
}

var plotAblationCmd = &cobra.Command{
	Use:   "ablation <csv>",
	Short: "Bar chart of total kernel time per ablation config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := analyzer.ReadTableFile(args[0])
		if err != nil {
			return err
		}
		totals := analyzer.AblationTotals(t)
		bars := make([]plot.Bar, len(totals))
		for i, v := range totals {
			bars[i] = plot.Bar{Label: ablationBarLabels[i], Value: v}
		}
		return savePlot(plotOut, "ablation.png", func(path string) error {
			return plot.AblationBars(bars, path)
		})
	},
}

var plotScatterCmd = &cobra.Command{
	Use:   "scatter <csv>",
	Short: "Scatter of compute-sanitizer time against triton-sanitizer speedup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := analyzer.ReadTableFile(args[0])
		if err != nil {
			return err
		}
		points := analyzer.KernelScatter(t)
		if len(points) == 0 {
			return errors.Errorf("%s has no rows with all three kernel times", args[0])
		}
		return savePlot(plotOut, "speedup_scatter.png", func(path string) error {
			return plot.SpeedupScatter(points, path)
		})
	},
}

var plotBreakdownCmd = &cobra.Command{
	Use:   "breakdown <directory>",
	Short: "Stacked bars of compile stage and execution share per case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cases, err := loadBreakdowns(args[0])
		if err != nil {
			return err
		}
		return savePlot(plotOut, "performance_breakdown.png", func(path string) error {
			return plot.BreakdownBars(cases, path)
		})
	},
}

func init() {
	plotCmd.PersistentFlags().StringVarP(&plotOut, "output", "o", "", "figure file; the extension picks the format")
	plotCmd.AddCommand(plotAblationCmd, plotScatterCmd, plotBreakdownCmd)
	rootCmd.AddCommand(plotCmd)
}

func savePlot(path, fallback string, render func(string) error) error {
	if path == "" {
		path = fallback
	}
	if err := render(path); err != nil {
		return err
	}
	log.WithField("path", path).Info("figure saved")
	return nil
}
