// Command helm is the ticket-core server and offline verifier
// (spec.md §4.7, §4.8; SPEC_FULL.md §4.13).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/symbi-labs/ticket-core/pkg/anchorsink"
	"github.com/symbi-labs/ticket-core/pkg/config"
	"github.com/symbi-labs/ticket-core/pkg/kvstore"
	"github.com/symbi-labs/ticket-core/pkg/ledger"
	"github.com/symbi-labs/ticket-core/pkg/metrics"
	"github.com/symbi-labs/ticket-core/pkg/receipts"
	"github.com/symbi-labs/ticket-core/pkg/revocation"
	"github.com/symbi-labs/ticket-core/pkg/ticketapi"

	_ "github.com/lib/pq"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

var startServer = runServer

// Run is the CLI entrypoint, factored out from main for testability.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		startServer()
		return 0
	}

	switch args[1] {
	case "serve", "server":
		startServer()
		return 0
	case "verify:ticket":
		if len(args) < 3 {
			fmt.Fprintln(stderr, "Usage: helm verify:ticket <path>")
			return 2
		}
		return runVerifyTicket(args[2], stdout, stderr)
	case "anchors:export":
		return runAnchorsExport(stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "ticket-core - tamper-evident audit receipts for machine-generated output")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  helm serve                    Run the verification service (default)")
	fmt.Fprintln(w, "  helm verify:ticket <path>      Verify a ticket file offline, no revocation check")
	fmt.Fprintln(w, "  helm anchors:export            Dump all internal and external anchors as JSON")
	fmt.Fprintln(w, "  helm help                      Show this help")
}

// runVerifyTicket implements C8: steps 3-6 of §4.7 only, no revocation
// consultation, exit 0 on valid, non-zero otherwise.
func runVerifyTicket(path string, stdout, stderr io.Writer) int {
	raw, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "read %s: %v\n", path, err)
		return 2
	}
	var ticket receipts.Ticket
	if err := json.Unmarshal(raw, &ticket); err != nil {
		fmt.Fprintf(stderr, "parse %s: %v\n", path, err)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 2
	}

	verdict := receipts.Verify(ticket, cfg.Keys)
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(verdict); err != nil {
		fmt.Fprintf(stderr, "encode verdict: %v\n", err)
		return 2
	}
	if !verdict.Valid {
		return 1
	}
	return 0
}

// runAnchorsExport implements the anchors:export CLI (SPEC_FULL.md §6),
// reading the same KV backend the service uses.
func runAnchorsExport(stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 2
	}
	store, closeFn, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "open store: %v\n", err)
		return 2
	}
	defer closeFn()

	ctx := context.Background()
	led := ledger.New(store)
	internal, err := led.Anchors(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "list internal anchors: %v\n", err)
		return 2
	}
	external, err := led.ExternalAnchors(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "list external anchors: %v\n", err)
		return 2
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{"internal": internal, "external": external}); err != nil {
		fmt.Fprintf(stderr, "encode anchors: %v\n", err)
		return 2
	}
	return 0
}

func openStore(cfg *config.Config) (kvstore.Store, func() error, error) {
	switch cfg.KVBackend {
	case "sqlite":
		s, err := kvstore.OpenSQLite(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "postgres":
		s, err := kvstore.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "redis":
		s := kvstore.OpenRedis(cfg.RedisAddr)
		return s, s.Close, nil
	default:
		return kvstore.NewMemStore(), func() error { return nil }, nil
	}
}

func runServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := metrics.NewLogger(parseLogLevel(cfg.LogLevel))

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("open kv store: %v", err)
	}
	defer closeStore()

	led := ledger.New(store)
	rev := revocation.New(store)

	packs, err := cfg.LoadPolicyPacks()
	if err != nil {
		log.Fatalf("load policy packs: %v", err)
	}

	var sink anchorsink.Sink = anchorsink.NoopSink{}
	if cfg.ExternalAnchorS3Bucket != "" {
		s3, err := anchorsink.NewS3Sink(context.Background(), anchorsink.S3SinkConfig{
			Bucket: cfg.ExternalAnchorS3Bucket,
			Prefix: cfg.ExternalAnchorS3Prefix,
		})
		if err != nil {
			logger.Warn("external anchor S3 sink unavailable, falling back to noop", "error", err)
		} else {
			sink = s3
		}
	}

	m := metrics.New(1000)
	srv := ticketapi.New(cfg.Keys, store, led, rev, packs, sink, m, logger, ticketapi.Config{
		RateLimitCapacity: cfg.RateLimitCapacity,
		RateLimitRPS:      cfg.RateLimitRPS,
		RetentionDays:     cfg.RetentionDays,
	})

	httpServer := &http.Server{Addr: ":" + cfg.Port, Handler: srv}

	go func() {
		logger.Info("ticket-core listening", "port", cfg.Port, "kv_backend", cfg.KVBackend)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutting down")
	_ = httpServer.Shutdown(context.Background())
}

func parseLogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
