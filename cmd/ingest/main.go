// Command ingest walks the legislation portal, parses every document in
// the configured type and year range, and upserts hybrid vectors into
// the vector store. Progress is checkpointed so interrupted runs resume
// where they stopped.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/openlex/lexuk/engine/checkpoint"
	"github.com/openlex/lexuk/engine/domain"
	"github.com/openlex/lexuk/engine/embed"
	"github.com/openlex/lexuk/engine/enumerate"
	"github.com/openlex/lexuk/engine/httpx"
	"github.com/openlex/lexuk/engine/lineage"
	"github.com/openlex/lexuk/engine/pdffall"
	"github.com/openlex/lexuk/engine/pipeline"
	"github.com/openlex/lexuk/engine/vectorstore"
	"github.com/openlex/lexuk/pkg/events"
	"github.com/openlex/lexuk/pkg/metrics"
)

var met = metrics.New()

func main() {
	var (
		base       = flag.String("base", enumerate.DefaultBase, "portal base URL")
		types      = flag.String("types", "", "comma-separated document types (empty = all)")
		minYear    = flag.Int("min-year", 0, "first year to ingest")
		maxYear    = flag.Int("max-year", 0, "last year to ingest")
		mode       = flag.String("mode", "full", "full or daily (current year only)")
		limit      = flag.Int("limit", 0, "max items per type and year, 0 = all")
		batchSize  = flag.Int("batch", 10, "documents per embed and upsert batch")
		budget     = flag.Int("rate-limit-budget", 50, "consecutive rate limits before graceful stop")
		rps        = flag.Float64("rps", 5, "requests per second toward the portal")
		cacheDir   = flag.String("cache", "/var/lib/lexuk/http-cache", "HTTP response cache directory")
		ckptDir    = flag.String("checkpoints", "/var/lib/lexuk/checkpoints", "checkpoint directory")
		qdrantAddr = flag.String("qdrant", envOr("QDRANT_ADDR", "localhost:6334"), "vector store gRPC address")
		embedURL   = flag.String("embed-url", envOr("LEXUK_EMBED_URL", "http://localhost:8085"), "embedding endpoint base URL")
		embedModel = flag.String("embed-model", envOr("LEXUK_EMBED_MODEL", "bge-m3"), "embedding deployment name")
		ocrURL     = flag.String("ocr", envOr("LEXUK_OCR_URL", ""), "OCR extraction service URL (empty = disabled)")
		neo4jURL   = flag.String("neo4j", envOr("NEO4J_URL", ""), "Neo4j bolt URL (empty = disabled)")
		neo4jUser  = flag.String("neo4j-user", envOr("NEO4J_USER", "neo4j"), "Neo4j username")
		neo4jPass  = flag.String("neo4j-pass", envOr("NEO4J_PASS", ""), "Neo4j password")
		natsURL    = flag.String("nats", envOr("NATS_URL", ""), "NATS URL for pipeline events (empty = disabled)")
		metricsOn  = flag.Int("metrics-port", 9105, "Prometheus metrics port")
		amendments = flag.Bool("amendments", true, "ingest the yearly change feeds")
		notes      = flag.Bool("notes", true, "ingest explanatory notes for primary legislation")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)
	met.CollectRuntime("lexuk_ingest", 15*time.Second)
	met.ServeAsync(*metricsOn)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	docTypes, err := parseTypes(*types)
	if err != nil {
		log.Error("bad -types", "error", err)
		os.Exit(2)
	}
	// Daily runs sweep the current and previous year with a small cap;
	// anything missed falls to the next full run.
	if *mode == "daily" {
		year := time.Now().Year()
		*minYear, *maxYear = year-1, year
		if *limit == 0 {
			*limit = 20
		}
	}

	client, err := httpx.New(httpx.Options{
		CacheDir:          *cacheDir,
		RequestsPerSecond: *rps,
		Logger:            log,
	})
	if err != nil {
		log.Error("http client init failed", "error", err)
		os.Exit(1)
	}

	store, err := vectorstore.New(*qdrantAddr)
	if err != nil {
		log.Error("vector store connect failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	var graph *lineage.Graph
	if *neo4jURL != "" {
		graph, err = lineage.Connect(ctx, *neo4jURL, *neo4jUser, *neo4jPass)
		if err != nil {
			log.Error("neo4j connect failed", "error", err)
			os.Exit(1)
		}
		defer graph.Close(ctx)
		log.Info("amendment graph enabled", "url", *neo4jURL)
	}

	var sink *events.Sink
	if *natsURL != "" {
		nc, err := nats.Connect(*natsURL, nats.Name("lexuk-ingest"))
		if err != nil {
			log.Error("nats connect failed", "error", err)
			os.Exit(1)
		}
		defer nc.Close()
		sink = events.NewSink(nc)
		log.Info("event sink enabled", "url", *natsURL)
	}

	var ocr *pdffall.Extractor
	if *ocrURL != "" {
		ocr = pdffall.NewExtractor(pdffall.NewOCRClient(*ocrURL, 0), log)
		log.Info("pdf fallback enabled", "url", *ocrURL)
	}

	embedder := embed.New(embed.Options{
		Dense: embed.DenseOpts{
			BaseURL:    *embedURL,
			Deployment: *embedModel,
			APIKey:     os.Getenv("LEXUK_EMBED_API_KEY"),
		},
	})

	ckpt, err := checkpoint.Open(*ckptDir, checkpoint.Key(typesKey(docTypes), *minYear, *maxYear, nil))
	if err != nil {
		log.Error("checkpoint open failed", "error", err)
		os.Exit(1)
	}
	defer ckpt.Close()

	p := pipeline.New(pipeline.Options{
		Types:               docTypes,
		MinYear:             *minYear,
		MaxYear:             *maxYear,
		LimitPerCombination: *limit,
		BatchSize:           *batchSize,
		RateLimitBudget:     *budget,
		Amendments:          *amendments,
		Notes:               *notes,
	}, pipeline.Deps{
		Client:   client,
		Enum:     enumerate.New(*base, client, log),
		Embedder: embedder,
		Store:    store,
		Graph:    graph,
		OCR:      ocr,
		Ckpt:     ckpt,
		Sink:     sink,
		Log:      log,
		Registry: met,
	})

	log.Info("ingest starting", "mode", *mode, "types", *types,
		"min_year", *minYear, "max_year", *maxYear)

	status, err := p.Run(ctx)
	stats := ckpt.Stats()
	log.Info("ingest finished", "status", status,
		"processed", stats.Processed, "failed", stats.Failed,
		"combinations", stats.CompletedCombinations)

	switch {
	case err != nil:
		log.Error("ingest failed", "error", err)
		os.Exit(1)
	case status == pipeline.StatusRateLimited:
		// The portal said slow down. The checkpoint holds our place, so
		// exiting clean lets the scheduler rerun on its normal cadence.
		os.Exit(0)
	}
}

func parseTypes(csv string) ([]domain.DocType, error) {
	if csv == "" {
		return nil, nil
	}
	var out []domain.DocType
	for _, s := range strings.Split(csv, ",") {
		t := domain.DocType(strings.TrimSpace(s))
		if !domain.KnownType(t) {
			return nil, fmt.Errorf("unknown document type %q", s)
		}
		out = append(out, t)
	}
	return out, nil
}

func typesKey(types []domain.DocType) string {
	if len(types) == 0 {
		return "all"
	}
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, "-")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
