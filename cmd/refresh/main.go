// Command refresh scans the stored amendment feed for documents whose
// text has moved on since ingestion and re-ingests the stale ones.
// Meant to run on a schedule after the daily ingest.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/nats-io/nats.go"

	"github.com/openlex/lexuk/engine/checkpoint"
	"github.com/openlex/lexuk/engine/embed"
	"github.com/openlex/lexuk/engine/enumerate"
	"github.com/openlex/lexuk/engine/httpx"
	"github.com/openlex/lexuk/engine/lineage"
	"github.com/openlex/lexuk/engine/pipeline"
	"github.com/openlex/lexuk/engine/refresh"
	"github.com/openlex/lexuk/engine/vectorstore"
	"github.com/openlex/lexuk/pkg/events"
	"github.com/openlex/lexuk/pkg/metrics"
)

var met = metrics.New()

func main() {
	var (
		base       = flag.String("base", enumerate.DefaultBase, "portal base URL")
		lookback   = flag.Int("lookback", 2, "years of amendments to scan")
		force      = flag.Bool("force", false, "refresh every affected document, stale or not")
		limit      = flag.Int("limit", 0, "max documents to refresh, 0 = all")
		cacheDir   = flag.String("cache", "/var/lib/lexuk/http-cache", "HTTP response cache directory")
		ckptDir    = flag.String("checkpoints", "/var/lib/lexuk/checkpoints", "checkpoint directory")
		qdrantAddr = flag.String("qdrant", envOr("QDRANT_ADDR", "localhost:6334"), "vector store gRPC address")
		embedURL   = flag.String("embed-url", envOr("LEXUK_EMBED_URL", "http://localhost:8085"), "embedding endpoint base URL")
		embedModel = flag.String("embed-model", envOr("LEXUK_EMBED_MODEL", "bge-m3"), "embedding deployment name")
		neo4jURL   = flag.String("neo4j", envOr("NEO4J_URL", ""), "Neo4j bolt URL (empty = disabled)")
		neo4jUser  = flag.String("neo4j-user", envOr("NEO4J_USER", "neo4j"), "Neo4j username")
		neo4jPass  = flag.String("neo4j-pass", envOr("NEO4J_PASS", ""), "Neo4j password")
		natsURL    = flag.String("nats", envOr("NATS_URL", ""), "NATS URL for refresh events (empty = disabled)")
		metricsOn  = flag.Int("metrics-port", 9106, "Prometheus metrics port")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)
	met.ServeAsync(*metricsOn)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client, err := httpx.New(httpx.Options{CacheDir: *cacheDir, Logger: log})
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
	}

	var sink *events.Sink
	if *natsURL != "" {
		nc, err := nats.Connect(*natsURL, nats.Name("lexuk-refresh"))
		if err != nil {
			log.Error("nats connect failed", "error", err)
			os.Exit(1)
		}
		defer nc.Close()
		sink = events.NewSink(nc)
	}

	embedder := embed.New(embed.Options{
		Dense: embed.DenseOpts{
			BaseURL:    *embedURL,
			Deployment: *embedModel,
			APIKey:     os.Getenv("LEXUK_EMBED_API_KEY"),
		},
	})

	ckpt, err := checkpoint.Open(*ckptDir, "refresh")
	if err != nil {
		log.Error("checkpoint open failed", "error", err)
		os.Exit(1)
	}
	defer ckpt.Close()

	enum := enumerate.New(*base, client, log)
	p := pipeline.New(pipeline.Options{}, pipeline.Deps{
		Client:   client,
		Enum:     enum,
		Embedder: embedder,
		Store:    store,
		Graph:    graph,
		Ckpt:     ckpt,
		Sink:     sink,
		Log:      log,
		Registry: met,
	})

	r := refresh.New(refresh.Options{
		LookbackYears: *lookback,
		Force:         *force,
		Limit:         *limit,
	}, store, p, enum, sink, log)

	report, err := r.Run(ctx)
	if err != nil {
		log.Error("refresh failed", "error", err)
		os.Exit(1)
	}
	log.Info("refresh finished",
		"affected", report.AffectedDocuments, "missing", report.Missing,
		"stale", report.Stale, "refreshed", report.Refreshed, "failed", report.Failed)
	json.NewEncoder(os.Stdout).Encode(report)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
