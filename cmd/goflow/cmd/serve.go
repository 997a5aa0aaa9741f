package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/blingmoon/simple-goflow/internal/api"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the process start and work item http api",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := app.cfg.HTTP.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}
		server := api.NewServer(app.service, addr, app.registry, app.logger)
		if _, err := server.Start(); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()
		app.logger.Info("shutting down http server")
		if err := server.Stop(context.Background()); err != nil {
			app.logger.Error("stop http server failed", zap.Error(err))
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address, overrides http.addr in the config")
}
