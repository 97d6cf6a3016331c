package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tgops/internal/mcpserver"
)

func serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve operations as MCP tools on 127.0.0.1",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exec, err := env.executor()
			if err != nil {
				return err
			}
			if port == 0 {
				port = env.cfg.MCPPort
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			server := mcpserver.New(exec, env.log.With("component", "mcp"))
			if err := server.Start(port); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), server.Endpoint())
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Stop(shutdownCtx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default mcp_port from config.yaml)")
	return cmd
}
