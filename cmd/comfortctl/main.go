package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/comfortsense/comfort-analytics/internal/adapter/brick"
	"github.com/comfortsense/comfort-analytics/internal/adapter/mortar"
	"github.com/comfortsense/comfort-analytics/internal/domain"
	"github.com/comfortsense/comfort-analytics/internal/observability"
	"github.com/comfortsense/comfort-analytics/internal/pipeline"
	"github.com/comfortsense/comfort-analytics/internal/portfolio"
	"github.com/comfortsense/comfort-analytics/internal/report"
	"github.com/comfortsense/comfort-analytics/internal/store"
)

var (
	// Global flags
	verbose       bool
	portfolioPath string
	dbPath        string
	mortarURL     string
	mortarToken   string
	timeout       time.Duration

	// evaluate flags
	evalSource string
	window     time.Duration
	endAt      string
	format     string
	output     string
	workers    int
	saveRun    bool
)

var rootCmd = &cobra.Command{
	Use:   "comfortctl",
	Short: "Thermal comfort analytics over building portfolios",
	Long: `comfortctl evaluates air-temperature comfort indices for a portfolio
of buildings. Sensor points are resolved through Brick metadata and series
come from a Mortar testbed or the local archive.`,
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate the portfolio once and print the report",
	Long: `Evaluates every building in the portfolio over one study window and
renders the portfolio report.

Example:
  comfortctl evaluate --window 720h --end 2016-02-01T00:00:00Z --format csv -o indices.csv`,
	RunE: runEvaluate,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve SITE_URI",
	Short: "List the zone air temperature points of a site",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch POINT_URI",
	Short: "Fetch a point's readings into the local archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

var lintCmd = &cobra.Command{
	Use:   "lint [PORTFOLIO]",
	Short: "Validate a portfolio manifest",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLint,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&portfolioPath, "portfolio", "portfolio.yaml", "Portfolio manifest path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "comfort.db", "Local archive database path")
	rootCmd.PersistentFlags().StringVar(&mortarURL, "mortar-url", "https://beta-api.mortardata.org", "Mortar API base URL")
	rootCmd.PersistentFlags().StringVar(&mortarToken, "mortar-token", "", "Mortar API token (or set MORTAR_TOKEN)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	evaluateCmd.Flags().StringVar(&evalSource, "source", "mortar", "Series source: mortar or store")
	evaluateCmd.Flags().DurationVar(&window, "window", 30*24*time.Hour, "Study window ending at --end")
	evaluateCmd.Flags().StringVar(&endAt, "end", "", "Window end as RFC 3339 (default: now)")
	evaluateCmd.Flags().StringVar(&format, "format", report.FormatText, "Output format: text, json or csv")
	evaluateCmd.Flags().StringVarP(&output, "output", "o", "", "Write the report to a file instead of stdout")
	evaluateCmd.Flags().IntVar(&workers, "workers", 4, "Concurrent building evaluations")
	evaluateCmd.Flags().BoolVar(&saveRun, "save", false, "Persist the run in the local archive")

	fetchCmd.Flags().DurationVar(&window, "window", 30*24*time.Hour, "Fetch window ending at --end")
	fetchCmd.Flags().StringVar(&endAt, "end", "", "Window end as RFC 3339 (default: now)")

	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(lintCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runEvaluate(_ *cobra.Command, _ []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	logger := newLogger()
	metrics := observability.NewMetrics()

	manifest, err := portfolio.Load(portfolioPath)
	if err != nil {
		return err
	}
	buildings, err := manifest.Resolve()
	if err != nil {
		return err
	}

	w, err := studyWindow()
	if err != nil {
		return err
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	var (
		resolver domain.PointResolver
		fetcher  domain.SeriesFetcher
	)
	switch evalSource {
	case "store":
		resolver = db
		fetcher = db
	case "mortar":
		client := mortar.NewClient(mortarURL, resolveToken(), timeout, logger, metrics)
		resolver = brick.NewResolver(client, logger, metrics)
		fetcher = store.NewRecordingFetcher(client, db, logger)
	default:
		return fmt.Errorf("unknown source %q", evalSource)
	}

	ev := pipeline.NewEvaluator(pipeline.EvaluatorConfig{
		Buildings: buildings,
		Window:    window,
		Workers:   workers,
	}, resolver, fetcher, db, nil, logger, metrics)

	rep := ev.EvaluateWindow(ctx, w)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if saveRun {
		if err := db.SaveRun(ctx, rep); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
	}

	return writeReport(rep)
}

func runResolve(_ *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	logger := newLogger()
	metrics := observability.NewMetrics()

	client := mortar.NewClient(mortarURL, resolveToken(), timeout, logger, metrics)
	resolver := brick.NewResolver(client, logger, metrics)

	points, err := resolver.Points(ctx, args[0])
	if err != nil {
		return err
	}
	for _, p := range points {
		fmt.Printf("%s\t%s\n", p.URI, p.Class)
	}
	return nil
}

func runFetch(_ *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	logger := newLogger()
	metrics := observability.NewMetrics()

	w, err := studyWindow()
	if err != nil {
		return err
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	client := mortar.NewClient(mortarURL, resolveToken(), timeout, logger, metrics)
	series, err := client.Series(ctx, args[0], w)
	if err != nil {
		return err
	}

	inserted, err := db.InsertReadings(ctx, series)
	if err != nil {
		return err
	}

	fmt.Printf("fetched %d readings, %d new\n", len(series), inserted)
	return nil
}

func runLint(_ *cobra.Command, args []string) error {
	path := portfolioPath
	if len(args) == 1 {
		path = args[0]
	}

	manifest, err := portfolio.Load(path)
	if err != nil {
		return err
	}
	buildings, err := manifest.Resolve()
	if err != nil {
		return err
	}

	fmt.Printf("portfolio OK: %d buildings\n", len(buildings))
	return nil
}

// commandContext cancels on SIGINT/SIGTERM or after the global timeout.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// newLogger keeps log output on stderr so reports stay parseable on stdout.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func resolveToken() string {
	if mortarToken != "" {
		return mortarToken
	}
	return os.Getenv("MORTAR_TOKEN")
}

func studyWindow() (domain.Window, error) {
	end := domain.Now()
	if endAt != "" {
		t, err := time.Parse(time.RFC3339, endAt)
		if err != nil {
			return domain.Window{}, fmt.Errorf("parse end time %q: %w", endAt, err)
		}
		end = t.UTC()
	}
	return domain.Window{Start: end.Add(-window), End: end}, nil
}

func writeReport(rep domain.PortfolioReport) error {
	if output == "" || output == "-" {
		return report.Write(os.Stdout, format, rep)
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := report.Write(f, format, rep); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
