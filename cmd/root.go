package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/visagium/internal/logger"
)

var (
	captureDir string
	logStream  *logger.Stream
)

var rootCmd = &cobra.Command{
	Use:   "visagium",
	Short: "Face recognition attendance engine",
	Long: `Visagium enrolls people from face captures, recognizes them in camera
frames and records attendance once per session window. Records can be
mirrored to a remote employee store.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&captureDir, "capture", "", "Directory to save remote store responses for testing")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
	logStream = logger.SetupDefault(os.Stderr, logger.ParseLevel(os.Getenv("LOG_LEVEL")))
}
