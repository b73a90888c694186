// Package cmd wires the pgl-sync command line onto the config, preflight and
// pathsync packages.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/paulschiretz/pgl-sync/pkg/buildinfo"
	"github.com/paulschiretz/pgl-sync/pkg/flagparse"
)

// NewRootCommand builds the pgl-sync command tree. Errors are returned to the
// caller instead of being printed so main can log them once.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "pgl-sync",
		Short: "One-shot directory synchronizer",
		Long: buildinfo.Name + " makes a destination directory reflect a source directory.\n" +
			"With --sha256 it detects files and directories that were moved or renamed\n" +
			"on the source side and moves them at the destination instead of copying again.",
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(buildinfo.Name + " version {{.Version}}\n")

	root.AddCommand(
		newSyncCommand(flagparse.Dir),
		newSyncCommand(flagparse.File),
		newVersionCommand(),
	)
	return root
}
