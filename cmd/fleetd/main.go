package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"farmfleet.dev/internal/config"
	"farmfleet.dev/internal/journal"
	"farmfleet.dev/internal/orchestrator"
	"farmfleet.dev/internal/rewards"
	"farmfleet.dev/internal/workeripc"
)

func main() {
	var (
		configPath  = flag.String("config", "./fleet.yaml", "fleet config path")
		statusEvery = flag.Duration("status_every", time.Minute, "status summary interval (0 to disable)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[fleetd] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	var factory orchestrator.Factory
	switch cfg.Isolation {
	case config.IsolationProcess:
		factory = orchestrator.NewSubprocessFactory(&cfg, logger)
	default:
		deps := orchestrator.InprocDeps{Fleet: &cfg}
		if cfg.StateDir != "" {
			_ = os.MkdirAll(cfg.StateDir, 0o755)
			store, err := rewards.OpenSQLite(filepath.Join(cfg.StateDir, "daily.db"))
			if err != nil {
				logger.Fatalf("open reward store: %v", err)
			}
			defer store.Close()
			deps.Store = store
		}
		if cfg.JournalDir != "" {
			jw := journal.New(cfg.JournalDir)
			defer jw.Close()
			deps.Journal = jw
		}
		factory = orchestrator.NewInprocFactory(deps)
	}

	o := orchestrator.New(cfg, factory, logger)
	o.AddSink(func(ev workeripc.Event) {
		switch ev.Type {
		case workeripc.EvState:
			if ev.Reason != "" {
				logger.Printf("%s: %s (%s)", ev.Account, ev.State, ev.Reason)
			} else {
				logger.Printf("%s: %s", ev.Account, ev.State)
			}
		case workeripc.EvError:
			logger.Printf("%s: error: %s", ev.Account, ev.Message)
		}
	})

	ctx, cancel := signalContext()
	defer cancel()

	logger.Printf("starting %d accounts (%s isolation)", len(cfg.Accounts), cfg.Isolation)
	o.StartAll(ctx)

	if *statusEvery > 0 {
		go func() {
			ticker := time.NewTicker(*statusEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					for _, st := range o.Statuses() {
						logger.Printf("%s: %s lvl=%d gold=%d cycles=%d harvested=%d stolen=%d errors=%d",
							st.Account, st.State, st.Level, st.Gold,
							st.Cycles, st.Harvested, st.Stolen, st.Errors)
					}
				}
			}
		}()
	}

	<-ctx.Done()
	logger.Printf("shutting down")
	o.StopAll()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
