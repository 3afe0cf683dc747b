package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"kothmode/internal/koth"
	persistlog "kothmode/internal/persistence/log"
	"kothmode/internal/persistence/matchdb"
	"kothmode/internal/transport/observer"
	"kothmode/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", "", "http listen address (default from config)")
		configPath = flag.String("config", "./configs/koth.yaml", "config path")
		dataDir    = flag.String("data", "", "runtime data directory (default from config)")
		matchID    = flag.String("match", "", "match id (default: timestamp)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite match index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[koth] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := koth.Load(*configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("config not found (%s); using defaults", *configPath)
		} else {
			logger.Fatalf("load config: %v", err)
		}
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	id := *matchID
	if id == "" {
		id = time.Now().UTC().Format("20060102-150405")
	}

	var sinks []koth.EventSink
	if cfg.EventLog {
		ew := persistlog.NewEventWriter(filepath.Join(cfg.DataDir, "events"), id)
		defer ew.Close()
		sinks = append(sinks, ew)
	}
	if !*disableDB && !cfg.DisableDB {
		idx, err := matchdb.OpenSQLite(filepath.Join(cfg.DataDir, "matches.db"), id)
		if err != nil {
			logger.Fatalf("open match index: %v", err)
		}
		defer idx.Close()
		sinks = append(sinks, idx)
	}

	opts := koth.ParseOptions(cfg.ModOptions, cfg.TickRateHz, logger)
	engine := koth.NewEngine(opts, cfg, logger, sinks...)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := engine.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("engine: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/v1/engine", ws.NewServer(engine, logger).Handler())
	mux.Handle("/v1/observer", observer.NewServer(engine, logger).Handler())

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shCtx, shCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer shCancel()
		_ = srv.Shutdown(shCtx)
		engine.Stop()
	}()

	logger.Printf("match %s listening on %s", id, cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("listen: %v", err)
	}
}
