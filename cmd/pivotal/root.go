package main

import (
	"github.com/spf13/cobra"

	"github.com/wizenheimer/pivotal"
)

// app is the state shared by the subcommands once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    *Config
	logger *pivotal.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "pivotal",
		Short: "Pivot-based similarity search over vector files",
		Long: `pivotal builds compact pivot indexes over vector files and answers
range and k-nearest-neighbor queries against them.

Examples:
  pivotal build --input points.txt --output points.pvt --pivots 20
  pivotal search --index points.pvt --query "0.5,0.5" --k 5
  pivotal bench --index points.pvt --queries queries.txt --k 10`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format (text, json)")

	root.AddCommand(newBuildCmd(a), newSearchCmd(a), newBenchCmd(a))
	return root
}

// init loads the config file and applies the persistent flag overrides.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = cfg.Log.Logger()
	return nil
}
