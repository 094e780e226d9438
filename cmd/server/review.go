package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/drawing-checker/backend/internal/models"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	colorRed    = color.New(color.FgRed, color.Bold)
	colorGreen  = color.New(color.FgGreen, color.Bold)
	colorYellow = color.New(color.FgYellow)
	colorCyan   = color.New(color.FgCyan)
)

func reviewCmd(configPath *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "review <file|dir>...",
		Short: "Review drawings from the command line",
		Long: `Reviews local drawings without starting the server.

Every argument is a drawing, a .zip bundle, or a directory whose files are all
submitted. Reports are written to the configured reports directory.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReview(cmd.Context(), *configPath, args, asJSON, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the session result as JSON")
	return cmd
}

func runReview(ctx context.Context, configPath string, paths []string, asJSON bool, out io.Writer) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer a.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := a.manager.CreateSession()
	if err != nil {
		return err
	}

	files, err := collectFiles(paths)
	if err != nil {
		return err
	}
	for _, path := range files {
		if err := addFile(a, sess.ID, path); err != nil {
			return err
		}
	}

	if err := a.manager.Start(sess.ID); err != nil {
		return err
	}
	final, err := a.manager.Wait(ctx, sess.ID)
	if err != nil {
		return err
	}
	if final.Status == models.SessionStatusError {
		return fmt.Errorf("review failed: %s", final.Error)
	}

	result, ok := a.manager.GetResult(sess.ID)
	if !ok {
		return fmt.Errorf("no result for session %s", sess.ID)
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printResult(out, result)
	return nil
}

// collectFiles expands directories into their regular files, without recursion.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !st.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.Type().IsRegular() {
				files = append(files, filepath.Join(p, e.Name()))
			}
		}
	}
	return files, nil
}

func addFile(a *app, sessionID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = a.manager.AddFile(sessionID, filepath.Base(path), f)
	return err
}

func riskColor(risk models.RiskTier) *color.Color {
	switch risk {
	case models.RiskLow:
		return colorGreen
	case models.RiskMedium:
		return colorYellow
	default:
		return colorRed
	}
}

func printResult(out io.Writer, result *models.SessionResult) {
	colorCyan.Fprintf(out, "Session %s\n\n", result.SessionID)

	fmt.Fprintf(out, "%-40s %-10s %s\n", "DRAWING", "SCORE", "RISK")
	for _, r := range result.Reports {
		if r.Outcome != nil {
			score := fmt.Sprintf("%v/%d", r.Outcome.Score, r.Outcome.Total)
			fmt.Fprintf(out, "%-40s %-10s %s\n", r.Drawing, score, riskColor(r.Outcome.Risk).Sprint(r.Outcome.Risk))
		}
		if r.Error != nil {
			fmt.Fprintf(out, "%-40s %-10s %s\n", r.Drawing, "-", colorRed.Sprintf("%s: %s", r.Error.Kind, r.Error.Message))
		}
	}

	fmt.Fprintln(out)
	for _, r := range result.Reports {
		if r.Outcome == nil {
			continue
		}
		if r.Outcome.ReportPath != "" {
			fmt.Fprintf(out, "report   %s\n", r.Outcome.ReportPath)
		}
		if r.Outcome.AnnotatedPath != "" {
			fmt.Fprintf(out, "overlay  %s\n", r.Outcome.AnnotatedPath)
		}
	}
	if failed := result.Failed(); failed > 0 {
		colorYellow.Fprintf(out, "\n%d of %d drawings failed\n", failed, len(result.Reports))
	}
}
