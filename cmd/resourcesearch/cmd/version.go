package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/resourcesearch/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var asJSON, short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the resourcesearch version, its commit and the bleve version it indexes with.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			switch {
			case short:
				_, err := fmt.Fprintln(out, version.Version)
				return err
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(version.Get())
			default:
				_, err := fmt.Fprintln(out, version.String())
				return err
			}
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print build information as JSON")
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")

	return cmd
}
