package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	domain "github.com/bryanwahyu/neurally/internal/domain/analysis"
	"github.com/bryanwahyu/neurally/internal/middleware"
)

func newAnalyzeCmd(configPath *string) *cobra.Command {
	var (
		testType string
		csvOut   string
	)
	cmd := &cobra.Command{
		Use:   "analyze --test SV [--csv out.csv] files...",
		Short: "Run one analysis without the window and print the aggregate CSV",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runAnalyze(ctx, *configPath, testType, csvOut, args, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&testType, "test", "SV", "test type: SV, SR or PR")
	cmd.Flags().StringVar(&csvOut, "csv", "", "write the CSV here instead of stdout")
	return cmd
}

func runAnalyze(ctx context.Context, configPath, testType, csvOut string, files []string, stdout io.Writer) error {
	tt, err := middleware.ValidateTestType(testType)
	if err != nil {
		return err
	}
	abs := make([]string, 0, len(files))
	for _, f := range files {
		p, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", f, err)
		}
		abs = append(abs, p)
	}
	paths, err := middleware.ValidateFilePaths(abs)
	if err != nil {
		return err
	}

	c, err := build(ctx, configPath)
	if err != nil {
		return err
	}
	defer c.Close()

	out, err := c.svc.Invoke(ctx, domain.Request{TestType: tt, FilePaths: paths})
	if err != nil {
		var ce *domain.CollaboratorError
		if errors.As(err, &ce) {
			if !c.app.Packaged && ce.Stderr != "" {
				fmt.Fprintln(os.Stderr, ce.Stderr)
			}
			return fmt.Errorf("%s (%s)", ce.Kind.UserMessage(), ce.Kind)
		}
		return err
	}

	sess := c.svc.Load(tt, out)
	defer c.svc.WaitArchived()
	if sess.Result.Kind == domain.KindError {
		return fmt.Errorf("analysis failed: %s", sess.Result.Message)
	}

	csv, _, err := c.svc.AggregateCSV()
	if err != nil {
		return err
	}
	if csvOut == "" {
		_, err = io.WriteString(stdout, csv)
		return err
	}
	if err := os.WriteFile(csvOut, []byte(csv), 0o644); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	c.log.WithField("file", csvOut).WithField("files", len(sess.Result.Files)).Info("csv written")
	return nil
}
