package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"referral-map/backend/internal/constants"
	"referral-map/backend/internal/enrich"
	"referral-map/backend/internal/graph"
	"referral-map/backend/internal/lookup"
	"referral-map/backend/internal/table"
	"referral-map/backend/pkg/config"
	"referral-map/backend/pkg/logger"
)

type options struct {
	out     string
	suffix  string
	offline string
	inputs  []string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()
	log := logger.Get()

	opts, err := parseFlags(os.Args[1:], cfg.PlacesQuerySuffix, os.Stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(2)
	}

	svc, err := newService(cfg, opts)
	if err != nil {
		log.Fatal("Failed to set up place search", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := enrich.NewRunner(enrich.WithLogger(log), enrich.WithQueryDelay(cfg.LookupDelay))
	if err := run(ctx, opts, runner, svc, os.Stdout, log); err != nil {
		log.Error("Geocoding failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// parseFlags reads the command line. defaultSuffix seeds -suffix.
func parseFlags(args []string, defaultSuffix string, output io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("geocode", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.out, "out", "", "output file (single input only, default <input>.json)")
	fs.StringVar(&opts.suffix, "suffix", defaultSuffix,
		fmt.Sprintf("text appended to every place query, e.g. %q", constants.SuggestedQuerySuffix))
	fs.StringVar(&opts.offline, "offline", "", "answer lookups from a JSON fixture file instead of the Places API")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: geocode [-out file.json] [-suffix text] [-offline fixtures.json] input...\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	opts.inputs = fs.Args()

	if len(opts.inputs) == 0 {
		fs.Usage()
		return options{}, fmt.Errorf("no input files")
	}
	if opts.out != "" && len(opts.inputs) > 1 {
		return options{}, fmt.Errorf("-out needs exactly one input")
	}
	return opts, nil
}

// newService picks the fixture table or the live Places API
func newService(cfg *config.Config, opts options) (lookup.Service, error) {
	if opts.offline != "" {
		static, err := loadFixtures(opts.offline)
		if err != nil {
			return nil, err
		}
		return lookup.WithQuerySuffix(static, opts.suffix), nil
	}
	if !cfg.EnrichmentEnabled() {
		return nil, fmt.Errorf("PLACES_API_KEY is not set, use -offline to run from fixtures")
	}
	client := lookup.NewPlacesClient(cfg.PlacesAPIKey, cfg.PlacesBaseURL, cfg.PlacesTimeout)
	return lookup.WithQuerySuffix(client, opts.suffix), nil
}

// loadFixtures reads a JSON object mapping queries to replies
func loadFixtures(path string) (*lookup.StaticService, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}
	var replies map[string]lookup.Reply
	if err := json.Unmarshal(data, &replies); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures %s: %w", path, err)
	}
	return lookup.NewStaticService(replies), nil
}

// run builds every input concurrently, then enriches and writes them one
// at a time. A fatal lookup stops the batch; graphs written before it
// stay on disk.
func run(ctx context.Context, opts options, runner *enrich.Runner, svc lookup.Service, stdout io.Writer, log *zap.Logger) error {
	builder := graph.NewBuilderWithLogger(log)
	graphs := make([]*graph.Graph, len(opts.inputs))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, input := range opts.inputs {
		eg.Go(func() error {
			g, err := buildFile(egCtx, builder, input)
			if err != nil {
				return fmt.Errorf("%s: %w", input, err)
			}
			graphs[i] = g
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for i, input := range opts.inputs {
		result, err := runner.Run(ctx, graphs[i], svc)
		if err != nil {
			return fmt.Errorf("%s: %w", input, err)
		}

		out := opts.out
		if out == "" {
			out = input + ".json"
		}
		if err := writeGraph(out, result.Graph); err != nil {
			return err
		}

		stats := result.Graph.CoordStats()
		fmt.Fprintf(stdout, "%s: %d / %d places with coords\n", input, stats.WithCoords, stats.Total)
		log.Info("Graph written",
			zap.String("input", input),
			zap.String("output", out),
			zap.Int("queried", result.Queried),
		)
	}
	return nil
}

func buildFile(ctx context.Context, builder *graph.Builder, path string) (*graph.Graph, error) {
	dec, err := table.DecoderFor(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return builder.BuildFrom(ctx, dec, f)
}

func writeGraph(path string, g *graph.Graph) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
