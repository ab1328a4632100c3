package cli

import (
	"github.com/spf13/cobra"

	"github.com/duckpond-io/pondctl/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve notebook tools over MCP on stdio",
	Long: `Exposes notebook management as MCP tools (list, read, create, start,
stop, query) for editor and agent integrations. Speaks the protocol on
stdin/stdout, so all logging goes to stderr.`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	client := newAPIClient(cfg, logger)

	return mcpserver.New(client).ServeStdio()
}
