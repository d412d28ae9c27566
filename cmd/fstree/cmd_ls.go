package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/brettbedarf/fstree"
	"github.com/brettbedarf/fstree/filesystem"
	"github.com/spf13/cobra"
)

func newLsCmd(flags *rootFlags, stdout, stderr io.Writer) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "ls <root>",
		Short: "List the visible children of root",
		Long: `Lists the children of root the way the tree sees them: ignored names from
the config are left out and directories end with a slash.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags, stderr)
			if err != nil {
				return err
			}
			tree := fstree.Open(args[0], cfg)
			return list(tree.Root, 0, recursive, stdout)
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Descend into subdirectories")
	return cmd
}

func list(dir *filesystem.Directory, depth int, recursive bool, stdout io.Writer) error {
	nodes, err := dir.Nodes()
	if err != nil {
		return err
	}
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		sub, isDir := filesystem.AsDirectory(n)
		if !isDir {
			fmt.Fprintf(stdout, "%s%s\n", indent, n.Name()) //nolint:errcheck // best-effort stdout
			continue
		}
		fmt.Fprintf(stdout, "%s%s/\n", indent, n.Name()) //nolint:errcheck // best-effort stdout
		if recursive {
			if err := list(sub, depth+1, recursive, stdout); err != nil {
				return err
			}
		}
	}
	return nil
}
