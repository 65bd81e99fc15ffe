package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ironsheep/snapsum/internal/config"
	"github.com/ironsheep/snapsum/internal/logging"
	"github.com/ironsheep/snapsum/internal/ocr"
	"github.com/ironsheep/snapsum/internal/recognition"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli carries the flags and configuration shared by every subcommand.
type cli struct {
	configPath string
	logLevel   string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "snapsum",
		Short: "Recognize the numbers in an image and sum them",
		Long: "snapsum reads numbers from an image or a screen region with Tesseract OCR\n" +
			"and adds them up. Without a subcommand it opens the desktop app.",
		Version:           Version,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		RunE:              c.runGUI,
	}
	root.SetVersionTemplate(fmt.Sprintf("snapsum %s\n  Build time: %s\n  Git commit: %s\n", Version, BuildTime, GitCommit))

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default is snapsum.json in the user config dir)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn or error (overrides the config)")

	root.AddCommand(
		c.guiCmd(),
		c.sumCmd(),
		c.totalCmd(),
		c.mcpCmd(),
		c.watchCmd(),
		c.configCmd(),
	)
	return root
}

// setup loads the configuration and configures logging. Logs always go to
// stderr; stdout is reserved for results and the MCP protocol.
func (c *cli) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format == "json")

	logging.For("main").WithField("version", Version).Debug("configuration loaded")
	c.cfg = cfg
	return nil
}

// newWorker starts a recognition worker whose Tesseract client is created on
// the first request.
func (c *cli) newWorker() *recognition.Worker {
	cfg := c.cfg
	factory := func() (ocr.Engine, error) {
		engine, err := ocr.NewTesseract(cfg.TesseractOptions())
		if err != nil {
			return nil, err
		}
		return engine, nil
	}
	return recognition.NewWorker(factory, recognition.Options{SignedNumbers: cfg.OCR.SignedNumbers})
}

// closeWorker stops w and logs a failure to release the engine.
func closeWorker(w *recognition.Worker) {
	if err := w.Close(); err != nil {
		logging.For("main").WithError(err).Warn("failed to close recognition worker")
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
