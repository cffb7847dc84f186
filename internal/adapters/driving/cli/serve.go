package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/dirsync/internal/adapters/driving/mcp"
	"github.com/custodia-labs/dirsync/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync scheduler as a daemon",
	Long: `Runs the directory sync on the configured schedule until interrupted.

The configuration file is watched; a changed scheduler interval or delta
flag applies from the next run. With --mcp-addr the run history is also
served over MCP streamable HTTP.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("mcp-addr", "", "also serve MCP over HTTP on this address, e.g. :8080")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if scheduler == nil || runHistory == nil {
		return errNotConfigured
	}
	mcpAddr, err := cmd.Flags().GetString("mcp-addr")
	if err != nil {
		return fmt.Errorf("getting mcp-addr flag: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return scheduler.Start(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		return scheduler.Stop()
	})

	if application != nil {
		g.Go(func() error {
			return application.Watch(ctx)
		})
	}

	if mcpAddr != "" {
		server, err := mcp.NewServer(&mcp.Ports{History: runHistory, Runs: runCoordinator})
		if err != nil {
			return err
		}
		g.Go(func() error {
			return server.RunHTTP(ctx, mcpAddr)
		})
	}

	logger.Info("dirsync serving; press Ctrl+C to stop")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
