package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/drawing-checker/backend/internal/config"
	"github.com/spf13/cobra"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const appName = "drawing-checker"

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Drawing QA checker",
		Long: `Reviews engineering drawings against a QA checklist.

The latest revision of every uploaded drawing is extracted, assessed by the
reasoning service, scored and written out as a DOCX report. PDF drawings also
get an annotated copy marking the flagged checklist items.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (XML), defaults to "+config.DefaultFileName+" next to the executable")

	cmd.AddCommand(serveCmd(&configPath), reviewCmd(&configPath))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// loadConfig reads the XML config, creating it with defaults on first run, and
// installs the slog default handler at the configured level.
func loadConfig(configPath string) (*config.AppConfig, string, error) {
	if configPath == "" {
		exePath, err := os.Executable()
		if err != nil {
			return nil, "", fmt.Errorf("get executable path: %w", err)
		}
		configPath = filepath.Join(filepath.Dir(exePath), config.DefaultFileName)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, "", err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	slog.SetDefault(logger)
	return cfg, configPath, nil
}
