package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/benjaminschreck/go-resumefit/pkg/resumefit"
	"github.com/benjaminschreck/go-resumefit/pkg/resumefit/runlog"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: resumefit <command> [flags]")
	fmt.Fprintln(os.Stderr, "\nCommands:")
	fmt.Fprintln(os.Stderr, "  optimize -in <resume.docx> -role <role> -description <file|text>   Tailor a resume")
	fmt.Fprintln(os.Stderr, "  extract  -in <resume.docx>                                         Print the rewriter payload")
	fmt.Fprintln(os.Stderr, "  serve                                                              Run the HTTP API")
	fmt.Fprintln(os.Stderr, "  mcp                                                                Serve MCP tools over stdio")
	fmt.Fprintln(os.Stderr, "  runs                                                               List recorded runs")
	fmt.Fprintln(os.Stderr, "  version                                                            Show version information")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch command, args := os.Args[1], os.Args[2:]; command {
	case "version":
		fmt.Println("resumefit version " + version)
	case "optimize":
		err = runOptimize(ctx, args)
	case "extract":
		err = runExtract(args)
	case "serve":
		err = runServe(ctx, args)
	case "mcp":
		err = runMCP(ctx, args)
	case "runs":
		err = runRuns(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}
	if err != nil {
		slog.Error("command failed", "error", err)
		if raw := resumefit.RawResponse(err); raw != "" {
			fmt.Fprintln(os.Stderr, "\nRaw rewriter response:\n"+raw)
		}
		os.Exit(1)
	}
}

// loadConfig reads the optional config file, falling back to the environment.
func loadConfig(path string) (*resumefit.Config, error) {
	if path == "" {
		cfg := resumefit.ConfigFromEnvironment()
		return cfg, cfg.Validate()
	}
	return resumefit.LoadConfig(path)
}

// setup builds the logger, the optional run log and the pipeline. The
// returned cleanup closes the run log.
func setup(ctx context.Context, cfg *resumefit.Config) (*resumefit.Pipeline, func(), error) {
	logger := resumefit.NewLogger(os.Stderr, cfg)
	slog.SetDefault(logger)

	rw, err := resumefit.NewGeminiRewriter(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	opts := []resumefit.Option{resumefit.WithLogger(logger)}
	cleanup := func() {}
	if cfg.RunLogPath != "" {
		store, err := runlog.Open(cfg.RunLogPath)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, resumefit.WithRecorder(store))
		cleanup = func() { store.Close() }
	}

	pipe, err := resumefit.New(cfg, rw, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return pipe, cleanup, nil
}

func runOptimize(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("optimize", flag.ExitOnError)
	in := fs.String("in", "", "input .docx resume")
	role := fs.String("role", "", "target job role")
	description := fs.String("description", "", "job description text, or @file to read it from a file")
	out := fs.String("out", "", "output path (default: next to the input, named after the role)")
	mode := fs.String("mode", "", "reconstruction mode override (patch, tree)")
	configPath := fs.String("config", "", "YAML config file")
	fs.Parse(args)

	if *in == "" || *role == "" || *description == "" {
		fs.Usage()
		return errors.New("-in, -role and -description are required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *mode != "" {
		cfg.Mode = resumefit.Mode(*mode)
	}

	desc := *description
	if len(desc) > 1 && desc[0] == '@' {
		data, err := os.ReadFile(desc[1:])
		if err != nil {
			return fmt.Errorf("read description: %w", err)
		}
		desc = string(data)
	}

	document, err := os.ReadFile(*in)
	if err != nil {
		return fmt.Errorf("read %s: %w", *in, err)
	}

	pipe, cleanup, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := pipe.Optimize(ctx, resumefit.Input{Document: document, Role: *role, Description: desc})
	if err != nil {
		return err
	}

	target := *out
	if target == "" {
		target = filepath.Join(filepath.Dir(*in), res.Filename)
	}
	if err := os.WriteFile(target, res.Document, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}

	analysis := res.Analysis.Sanitized()
	fmt.Printf("Optimized resume written to %s (run %s)\n", target, res.RunID)
	fmt.Printf("\nStrong points:\n%s\n\nWeak points:\n%s\n\nChanges made:\n%s\n",
		analysis.StrongPoints, analysis.WeakPoints, analysis.ChangesMade)
	return nil
}

func runExtract(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	in := fs.String("in", "", "input .docx resume")
	mode := fs.String("mode", "", "reconstruction mode override (patch, tree)")
	configPath := fs.String("config", "", "YAML config file")
	fs.Parse(args)

	if *in == "" {
		fs.Usage()
		return errors.New("-in is required")
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *mode != "" {
		cfg.Mode = resumefit.Mode(*mode)
	}
	slog.SetDefault(resumefit.NewLogger(os.Stderr, cfg))

	document, err := os.ReadFile(*in)
	if err != nil {
		return fmt.Errorf("read %s: %w", *in, err)
	}

	// extraction never reaches the rewriter
	noop := resumefit.RewriterFunc(func(context.Context, resumefit.RewriteRequest) (string, error) {
		return "", errors.New("rewriter not available during extract")
	})
	pipe, err := resumefit.New(cfg, noop)
	if err != nil {
		return err
	}
	ex, err := pipe.Extract(document)
	if err != nil {
		return err
	}
	fmt.Println(ex.Payload)
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file")
	listen := fs.String("listen", "", "listen address override")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	pipe, cleanup, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	pipe.RegisterHTTP(r)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http server starting", "addr", cfg.Listen, "mode", string(cfg.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runMCP(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	pipe, cleanup, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := mcp.NewServer(&mcp.Implementation{Name: "resumefit", Version: version}, nil)
	pipe.RegisterMCP(srv)
	slog.Info("mcp server starting on stdio", "mode", string(cfg.Mode))
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file")
	limit := fs.Int("limit", 20, "number of runs to list")
	failure := fs.Bool("last-failure", false, "show the most recent failure with its raw response")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if cfg.RunLogPath == "" {
		return errors.New("runlog_path is not configured")
	}
	store, err := runlog.Open(cfg.RunLogPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if *failure {
		rec, err := store.LastFailure(ctx)
		if errors.Is(err, runlog.ErrNoRecord) {
			fmt.Println("No failed runs recorded")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("Run %s (%s) failed at %s in %s stage: %s\n", rec.RunID, rec.Mode, rec.At.Format(time.RFC3339), rec.Stage, rec.Error)
		if rec.Raw != "" {
			fmt.Println("\nRaw rewriter response:\n" + rec.Raw)
		}
		return nil
	}

	runs, err := store.Runs(ctx, *limit)
	if err != nil {
		return err
	}
	for _, run := range runs {
		fmt.Printf("%s  %-5s  %-13s  %s  %s\n", run.RunID, run.Mode, run.State,
			run.Started.Format(time.RFC3339), run.Updated.Sub(run.Started).Round(time.Millisecond))
	}
	return nil
}
