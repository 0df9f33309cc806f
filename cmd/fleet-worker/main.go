// fleet-worker hosts a single account for process isolation. The
// orchestrator spawns it, sends commands on stdin and reads events from
// stdout; logs go to stderr so the event pipe stays clean.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"farmfleet.dev/internal/workeripc"
)

func main() {
	accountID := flag.String("account", "", "account id (informational, the start command carries the config)")
	flag.Parse()

	prefix := "[worker] "
	if *accountID != "" {
		prefix = "[worker " + *accountID + "] "
	}
	logger := log.New(os.Stderr, prefix, log.LstdFlags|log.Lmicroseconds)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()

	w := workeripc.NewWorker(os.Stdin, os.Stdout, logger)
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatalf("run: %v", err)
	}
}
