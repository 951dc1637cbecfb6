package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/maradi/fieldsync/internal/api"
	"github.com/maradi/fieldsync/internal/catalog"
	"github.com/maradi/fieldsync/internal/config"
	"github.com/maradi/fieldsync/internal/connectivity"
	"github.com/maradi/fieldsync/internal/db"
	"github.com/maradi/fieldsync/internal/logging"
	"github.com/maradi/fieldsync/internal/syncq"
	"github.com/maradi/fieldsync/internal/syncq/engine"
	"github.com/maradi/fieldsync/internal/syncq/executor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Error("invalid configuration", err, nil)
		os.Exit(1)
	}

	database, err := db.Open(cfg.DataDir)
	if err != nil {
		logging.Error("failed to open database", err, nil)
		os.Exit(1)
	}
	defer database.Close()

	migrator := db.NewMigrator(database.DB)
	if err := migrator.Initialize(); err != nil {
		logging.Error("failed to initialize migrations", err, nil)
		os.Exit(1)
	}
	if err := migrator.Up(); err != nil {
		logging.Error("failed to apply migrations", err, nil)
		os.Exit(1)
	}

	store := db.NewStore(database.DB)
	defer store.Close()

	client := api.NewClient(cfg.APIBaseURL, cfg.APIToken, cfg.HTTPTimeout)
	monitor := connectivity.NewMonitor(client, cfg.ProbeInterval)
	queue := syncq.NewQueue(store)
	eng := engine.New(store, queue, executor.NewRegistry(client), monitor)
	refresher := catalog.NewRefresher(client, store, cfg.CatalogRefreshInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewWSHub()
	unsubscribe := eng.Subscribe(hub.BroadcastStatus)
	defer unsubscribe()

	// Engine first so the startup probe's online transition reaches it.
	eng.Start(ctx)
	monitor.Start(ctx)
	if monitor.IsOnline() {
		refresher.Start(ctx)
	} else {
		go func() {
			// Defer the first catalog pull until connectivity shows up.
			unsub := monitor.Subscribe(func(online bool) {
				if online {
					refresher.Start(ctx)
				}
			})
			<-ctx.Done()
			unsub()
		}()
	}

	syncHandler := NewSyncHandler(eng, store)
	catalogHandler := NewCatalogHandler(store)

	mux := http.NewServeMux()
	mux.HandleFunc("/queue/add-stock", syncHandler.AddStock)
	mux.HandleFunc("/queue/mark-sale", syncHandler.MarkSale)
	mux.HandleFunc("/queue/audit-scan", syncHandler.AuditScan)
	mux.HandleFunc("/sync/status", syncHandler.Status)
	mux.HandleFunc("/sync/now", syncHandler.SyncNow)
	mux.HandleFunc("/sync/retry-failed", syncHandler.RetryFailed)
	mux.HandleFunc("/sync/clear-error", syncHandler.ClearError)
	mux.HandleFunc("/sync/records", syncHandler.Records)
	mux.HandleFunc("/catalog/items", catalogHandler.Items)
	mux.HandleFunc("/catalog/serials", catalogHandler.Serials)
	mux.HandleFunc("/ws", hub.HandleWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"fieldsyncd"}`))
	})

	server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	go func() {
		logging.Info("agent listening", map[string]interface{}{
			"addr": cfg.ListenAddr,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("agent server failed", err, nil)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}

	logging.Info("shutting down", nil)
	refresher.Stop()
	monitor.Stop()
	eng.Stop()
	server.Shutdown(context.Background())
}
