package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/paulschiretz/pgl-sync/pkg/buildinfo"
	"github.com/paulschiretz/pgl-sync/pkg/flagparse"
)

// RunVersion prints the application version.
func RunVersion(w io.Writer, appName, appVersion string) error {
	_, err := fmt.Fprintf(w, "%s version %s\n", appName, appVersion)
	return err
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   flagparse.Version.String(),
		Short: "Print the " + buildinfo.Name + " version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunVersion(cmd.OutOrStdout(), buildinfo.Name, buildinfo.Version)
		},
	}
}
