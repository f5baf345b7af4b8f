package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/visagium/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the Visagium HTTP API.
The API exposes registration, recognition, deletion and the attendance
ledger to a camera client, plus Prometheus metrics and a live log stream.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	if port := mustGetInt(cmd, "port"); port > 0 {
		b.cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		b.cfg.Web.Host = host
	}

	server := web.NewServer(b.cfg, web.Deps{
		Engine:    b.engine,
		Extractor: b.extractor,
		Ledger:    b.ledger,
		Stream:    logStream,
		Gatherer:  b.registry,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Visagium API on http://%s:%d\n", b.cfg.Web.Host, b.cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
