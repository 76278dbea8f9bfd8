// Package app wires the process together: env config, the logging
// router, the persistence gateway, the hub, and the HTTP server.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"

	server "github.com/Rayyan-Shk/Gamitar/server"
	"github.com/Rayyan-Shk/Gamitar/server/internal/journal"
	servernet "github.com/Rayyan-Shk/Gamitar/server/internal/net"
	"github.com/Rayyan-Shk/Gamitar/server/internal/store"
	"github.com/Rayyan-Shk/Gamitar/server/logging"
	loggingSinks "github.com/Rayyan-Shk/Gamitar/server/logging/sinks"
)

type Config struct {
	Addr   string
	Logger *log.Logger
}

// Run starts the grid server and blocks until the context is cancelled
// or the listener fails.
//
// Environment: ADDR (default :3002), GRID_DB (SQLite path; empty
// selects the in-memory store), COOLDOWN_SECONDS (0 disables the
// server-side cooldown), LOG_SINKS, LOG_MIN_SEVERITY.
func Run(ctx context.Context, cfg Config) error {
	_ = godotenv.Load()

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	logCfg := logging.DefaultConfig()
	if raw := os.Getenv("LOG_MIN_SEVERITY"); raw != "" {
		if severity, ok := logging.ParseSeverity(raw); ok {
			logCfg.MinimumSeverity = severity
		} else {
			logger.Printf("invalid LOG_MIN_SEVERITY=%q", raw)
		}
	}
	if raw := os.Getenv("LOG_SINKS"); raw != "" {
		logCfg.EnabledSinks = lo.Compact(lo.Map(strings.Split(raw, ","), func(name string, _ int) string {
			return strings.TrimSpace(name)
		}))
	}

	var namedSinks []logging.NamedSink
	if logCfg.HasSink("console") {
		namedSinks = append(namedSinks, logging.NamedSink{Name: "console", Sink: loggingSinks.NewConsoleSink(os.Stdout, logCfg.Console)})
	}
	if logCfg.HasSink("memory") {
		namedSinks = append(namedSinks, logging.NamedSink{Name: "memory", Sink: loggingSinks.NewMemorySink()})
	}

	router, err := logging.NewRouter(nil, logCfg, namedSinks)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			logger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	var backend store.Store
	if path := os.Getenv("GRID_DB"); path != "" {
		db, err := store.OpenSQLite(path)
		if err != nil {
			return fmt.Errorf("failed to open grid database: %w", err)
		}
		defer func() {
			if cerr := db.Close(); cerr != nil {
				logger.Printf("failed to close grid database: %v", cerr)
			}
		}()
		backend = db
	} else {
		logger.Printf("GRID_DB not set; grid state will not survive restarts")
		backend = store.NewMemory()
	}

	hubCfg := server.DefaultHubConfig()
	hubCfg.Snapshots = backend
	hubCfg.Ledger = journal.New(backend)
	hubCfg.Publisher = router
	hubCfg.Logger = logger
	if raw := os.Getenv("COOLDOWN_SECONDS"); raw != "" {
		if seconds, err := strconv.Atoi(raw); err == nil && seconds >= 0 {
			hubCfg.Cooldown = time.Duration(seconds) * time.Second
		} else {
			logger.Printf("invalid COOLDOWN_SECONDS=%q", raw)
		}
	}

	hub := server.NewHub(hubCfg)
	hub.RestoreSnapshot(ctx)

	addr := cfg.Addr
	if addr == "" {
		addr = os.Getenv("ADDR")
	}
	if addr == "" {
		addr = ":3002"
	}

	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{Logger: logger})
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("server shutdown: %v", err)
		}
	}()

	logger.Printf("server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
