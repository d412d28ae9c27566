package main

import (
	"fmt"
	"io"

	"github.com/brettbedarf/fstree"
	"github.com/brettbedarf/fstree/config"
	"github.com/brettbedarf/fstree/factories"
	"github.com/brettbedarf/fstree/internal/util"
	"github.com/brettbedarf/fstree/manifest"
	"github.com/spf13/cobra"
)

func newApplyCmd(flags *rootFlags, stdout, stderr io.Writer) *cobra.Command {
	var (
		manifestPath string
		dryRun       bool
	)
	cmd := &cobra.Command{
		Use:   "apply <root>",
		Short: "Apply a manifest to the directory at root",
		Long: `Loads the manifest, stages every entry on an in-memory tree over root and
flushes the tree. Parent directories are created as needed. Deleting a
path that does not exist is not an error.

With --dry-run the tree is staged and summarized but nothing is written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags, stderr)
			if err != nil {
				return err
			}
			return cmdApply(args[0], manifestPath, dryRun, cfg, stdout)
		},
	}
	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "Path to a YAML or JSON manifest")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Stage the manifest without flushing")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}

func cmdApply(rootPath, manifestPath string, dryRun bool, cfg *config.Config, stdout io.Writer) error {
	logger := util.GetLogger("main")
	factories.RegisterBuiltins(nil, factories.SyncedFactoryType)

	entries, err := manifest.LoadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}
	logger.Debug().Str("manifest", manifestPath).Int("entries", len(entries)).Msg("Manifest loaded")

	tree := fstree.Open(rootPath, cfg)
	if err := tree.Apply(entries); err != nil {
		return fmt.Errorf("apply manifest: %w", err)
	}

	if dryRun {
		fmt.Fprintf(stdout, "%d entries staged on %s\n", len(entries), rootPath) //nolint:errcheck // best-effort stdout
		for _, name := range tree.Root.PendingDeletes() {
			fmt.Fprintf(stdout, "delete %s\n", name) //nolint:errcheck // best-effort stdout
		}
		return nil
	}

	if err := tree.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", rootPath, err)
	}
	logger.Info().Str("root", rootPath).Int("entries", len(entries)).Msg("Manifest applied")
	return nil
}
