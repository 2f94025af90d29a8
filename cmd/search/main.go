// Command search queries the ingested corpus from the terminal and
// prints JSON. Modes: sections and acts run hybrid search, document,
// provisions and fulltext are direct lookups by identifier.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/openlex/lexuk/engine/embed"
	"github.com/openlex/lexuk/engine/search"
	"github.com/openlex/lexuk/engine/vectorstore"
)

func main() {
	var (
		mode        = flag.String("mode", "sections", "sections, acts, document, provisions or fulltext")
		query       = flag.String("query", "", "search query (sections and acts modes)")
		id          = flag.String("id", "", "legislation id, e.g. ukpga/2006/46")
		types       = flag.String("types", "", "comma-separated document types to filter on")
		category    = flag.String("category", "", "primary or secondary")
		yearFrom    = flag.Int("year-from", 0, "earliest year")
		yearTo      = flag.Int("year-to", 0, "latest year")
		limit       = flag.Int("limit", 10, "max results")
		offset      = flag.Int("offset", 0, "results to skip")
		includeText = flag.Bool("text", false, "include provision text in results")
		schedules   = flag.Bool("schedules", true, "include schedules in fulltext mode")
		qdrantAddr  = flag.String("qdrant", envOr("QDRANT_ADDR", "localhost:6334"), "vector store gRPC address")
		embedURL    = flag.String("embed-url", envOr("LEXUK_EMBED_URL", "http://localhost:8085"), "embedding endpoint base URL")
		embedModel  = flag.String("embed-model", envOr("LEXUK_EMBED_MODEL", "bge-m3"), "embedding deployment name")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := vectorstore.New(*qdrantAddr)
	if err != nil {
		log.Error("vector store connect failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	embedder := embed.New(embed.Options{
		Dense: embed.DenseOpts{
			BaseURL:    *embedURL,
			Deployment: *embedModel,
			APIKey:     os.Getenv("LEXUK_EMBED_API_KEY"),
		},
	})

	svc := search.New(store, embedder, nil, log)

	filters := search.Filters{
		LegislationID: *id,
		Category:      *category,
		YearFrom:      *yearFrom,
		YearTo:        *yearTo,
	}
	if *types != "" {
		for _, t := range strings.Split(*types, ",") {
			filters.Types = append(filters.Types, strings.TrimSpace(t))
		}
	}

	var out any
	switch *mode {
	case "sections":
		out, err = svc.SearchSections(ctx, search.SectionsRequest{
			Query: *query, Filters: filters,
			Limit: *limit, Offset: *offset, IncludeText: *includeText,
		})
	case "acts":
		out, err = svc.SearchActs(ctx, search.ActsRequest{
			Query: *query, Filters: filters,
			Limit: *limit, Offset: *offset,
		})
	case "document":
		out, err = svc.LookupDocument(ctx, requireID(*id))
	case "provisions":
		out, err = svc.GetSections(ctx, requireID(*id), *includeText)
	case "fulltext":
		var text string
		text, err = svc.GetFullText(ctx, requireID(*id), *schedules)
		if err == nil {
			fmt.Println(text)
			return
		}
	default:
		log.Error("unknown mode", "mode", *mode)
		os.Exit(2)
	}
	if err != nil {
		log.Error("search failed", "mode", *mode, "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}

func requireID(id string) string {
	if id == "" {
		fmt.Fprintln(os.Stderr, "this mode needs -id")
		os.Exit(2)
	}
	return id
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
