package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deepakmehta1/travel-mcp-prod/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of travel-agent",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.Info())
		},
	}
}
