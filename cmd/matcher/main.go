// matcher computes affinity features between submissions and the members of
// candidate groups, and stores one metadata record per submission.
//
// Inputs (documents, archives and groups) are read from a JSON or JSONC
// file. Records go to the store selected by the configuration file: kept
// in memory for a dry run, or persisted to a snapshot file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/ahrav/go-matcher/infrastructure/middleware"
	"github.com/ahrav/go-matcher/infrastructure/store"
	"github.com/ahrav/go-matcher/infrastructure/tokenize"
	"github.com/ahrav/go-matcher/internal/application"
	"github.com/ahrav/go-matcher/internal/ports"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v (status %d)\n", err, ports.StatusCode(err))
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	inputPath   string
	envFiles    []string
	documents   []string
	groups      []string
	namespace   string
	metricsAddr string
	rank        string
	printJSON   bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	var opts options
	fs := pflag.NewFlagSet("matcher", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&opts.configPath, "config", "c", "matcher.yaml", "path to the YAML configuration")
	fs.StringVarP(&opts.inputPath, "input", "i", "", "path to the JSON/JSONC input file (required)")
	fs.StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, ".env files to load before reading the configuration")
	fs.StringSliceVar(&opts.documents, "documents", nil, "document IDs to match (default: every document)")
	fs.StringSliceVar(&opts.groups, "groups", nil, "group IDs to score (default: every group in the input)")
	fs.StringVar(&opts.namespace, "namespace", "", "override matcher.namespace")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "override metrics.address")
	fs.StringVar(&opts.rank, "rank", "", "print the candidate ranking of this document after the run")
	fs.BoolVar(&opts.printJSON, "json", false, "print the records as JSON instead of a summary")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	if opts.inputPath == "" {
		return nil, fmt.Errorf("--input is required")
	}
	return &opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	if err := application.LoadDotEnv(opts.envFiles...); err != nil {
		return err
	}
	loader, err := application.NewConfigLoader()
	if err != nil {
		return err
	}
	cfg, err := loader.LoadFromFile(ctx, opts.configPath)
	if err != nil {
		return err
	}

	logger, err := middleware.NewLogger(cfg.Logging.Level, cfg.Logging.Format, stderr)
	if err != nil {
		return err
	}

	namespace := cfg.Matcher.Namespace
	if opts.namespace != "" {
		namespace = opts.namespace
	}
	logger = logger.WithNamespace(namespace)

	in, err := store.LoadInput(opts.inputPath)
	if err != nil {
		return err
	}
	src, err := openSources(cfg.Store, in, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := middleware.NewPrometheusMetrics(reg)

	metricsAddr := cfg.Metrics.Address
	if opts.metricsAddr != "" {
		metricsAddr = opts.metricsAddr
	}
	if metricsAddr != "" {
		shutdown, err := serveMetrics(metricsAddr, reg, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	registry := application.NewDefaultScorerRegistry(tokenize.NewRegexTokenizer())
	scorers, err := application.BuildScorers(registry, cfg.Scorers)
	if err != nil {
		return err
	}

	agg := application.NewMetadataAggregator(
		application.WithAggregatorMetrics(metrics),
		application.WithMaxConcurrency(cfg.Matcher.MaxConcurrency),
	)
	m, err := application.NewMatcher(src, scorers,
		application.WithLogger(logger.Logger),
		application.WithMetrics(metrics),
		application.WithAggregator(agg),
		application.WithTimeout(time.Duration(cfg.Matcher.TimeoutSeconds)*time.Second),
	)
	if err != nil {
		return err
	}

	groups := opts.groups
	if len(groups) == 0 {
		for _, g := range in.Groups {
			groups = append(groups, g.ID)
		}
	}

	start := time.Now()
	res, runErr := m.Run(ctx, application.RunRequest{
		DocumentIDs: opts.documents,
		GroupIDs:    groups,
		Namespace:   namespace,
	})
	if res != nil {
		logger.LogRun(ctx, res.Created, res.Updated, time.Since(start), runErr)
		if err := report(stdout, res, opts.printJSON); err != nil {
			return err
		}
	} else {
		logger.LogRun(ctx, 0, 0, time.Since(start), runErr)
	}
	if runErr != nil {
		return runErr
	}

	if opts.rank != "" {
		return printRanking(stdout, opts.rank, m)
	}
	return nil
}

// openSources builds the sources and record store described by cfg and
// seeds them with in.
func openSources(cfg application.StoreConfig, in *store.Input, logger *middleware.Logger) (application.Sources, error) {
	var (
		mem *store.Memory
		rs  ports.RecordStore
	)
	switch cfg.Type {
	case "file":
		codec, err := store.ParseCodec(cfg.Codec)
		if err != nil {
			return application.Sources{}, err
		}
		comp, err := store.ParseCompression(cfg.Compression)
		if err != nil {
			return application.Sources{}, err
		}
		f, err := store.OpenFile(cfg.Path, store.FileOptions{Codec: codec, Compression: comp})
		if err != nil {
			return application.Sources{}, err
		}
		logger.Info("opened record snapshot", "path", f.Path(), "records", len(f.Records()))
		mem, rs = f.Memory, f
	default:
		mem = store.NewMemory()
		rs = mem
	}
	mem.Import(in)

	if cfg.WritesPerSecond > 0 {
		limited, err := store.NewRateLimited(rs, cfg.WritesPerSecond, cfg.Burst)
		if err != nil {
			return application.Sources{}, err
		}
		rs = limited
	}
	return application.Sources{Documents: mem, Archives: mem, Groups: mem, Store: rs}, nil
}

// serveMetrics exposes reg on addr until the returned function is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *middleware.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "address", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func report(w io.Writer, res *application.RunResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Records)
	}

	fmt.Fprintf(w, "Matched %d documents against %d groups (%d archive records) in %s\n",
		res.Documents, res.Groups, res.Archives, res.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "- Created: %d\n", res.Created)
	fmt.Fprintf(w, "- Updated: %d\n", res.Updated)
	for _, rec := range res.Records {
		candidates := 0
		for _, cs := range rec.Groups {
			candidates += len(cs)
		}
		fmt.Fprintf(w, "- %s: %d scored candidates (record %s)\n", rec.DocumentID, candidates, rec.ID)
	}
	return nil
}

func printRanking(w io.Writer, documentID string, m *application.Matcher) error {
	ranked := m.Rank(documentID)
	if len(ranked) == 0 {
		return fmt.Errorf("no scorer can rank candidates")
	}
	for _, s := range m.Scorers() {
		list, ok := ranked[s.Name()]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "Ranking of %s by %s:\n", documentID, s.Name())
		for i, c := range list {
			fmt.Fprintf(w, "%3d. %-24s %.6f\n", i+1, c.CandidateID, c.Score)
		}
	}
	return nil
}
