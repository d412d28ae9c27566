// fstree stages a declarative manifest onto a directory and flushes it to disk.
package main

import (
	"errors"
	"io"
	"os"

	"github.com/brettbedarf/fstree/config"
	"github.com/brettbedarf/fstree/internal/util"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// errExit signals a non-zero exit after the command reported its own error
var errExit = errors.New("exit")

// rootFlags are shared by every subcommand
type rootFlags struct {
	configPath string
	verbose    int
}

// run executes the CLI with args and returns the exit code
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errExit) {
			root.PrintErrln("fstree:", err)
		}
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "fstree",
		Short:         "Stage directory trees in memory and flush them to disk",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "",
		"Path to a YAML or JSON config file")
	root.PersistentFlags().IntVarP(&flags.verbose, "verbose", "v", config.InfoVerbose,
		"Log verbosity between 1 (error) and 5 (trace)")
	root.CompletionOptions.DisableDefaultCmd = true
	root.AddCommand(
		newApplyCmd(flags, stdout, stderr),
		newLsCmd(flags, stdout, stderr),
	)
	return root
}

// loadConfig reads the config file if one was given and applies the
// verbosity flag when it was set explicitly. It also initializes logging.
func loadConfig(cmd *cobra.Command, flags *rootFlags, stderr io.Writer) (*config.Config, error) {
	cfg := config.NewDefaultConfig()
	if flags.configPath != "" {
		var err error
		if cfg, err = config.NewConfigFromFile(flags.configPath); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Merge(&config.ConfigOverride{LogLvl: &flags.verbose})
	}
	util.InitializeLoggerTo(stderr, cfg.LogLvl)
	return cfg, nil
}
