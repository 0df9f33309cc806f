package orchestrator

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"farmfleet.dev/internal/config"
	"farmfleet.dev/internal/workeripc"
)

// Timeouts for the subprocess shutdown ladder: polite stop command, then
// SIGTERM, then SIGKILL.
const (
	workerStartTimeout = 30 * time.Second
	workerStopTimeout  = 10 * time.Second
	workerTermTimeout  = 5 * time.Second
)

// NewSubprocessFactory hosts each account in its own worker process, so a
// crash or leak in one account cannot touch the others.
func NewSubprocessFactory(fleet *config.Fleet, logger *log.Logger) Factory {
	return func(ac config.Account, sink Sink) Runner {
		shared := *fleet
		shared.Accounts = nil
		return &subprocessRunner{
			id:    ac.ID,
			bin:   fleet.WorkerBin,
			fleet: shared,
			ac:    ac,
			sink:  sink,
			log:   logger,
			done:  make(chan struct{}),
		}
	}
}

type subprocessRunner struct {
	id    string
	bin   string
	fleet config.Fleet
	ac    config.Account
	sink  Sink
	log   *log.Logger

	mu         sync.Mutex
	cmd        *exec.Cmd
	cmds       *workeripc.LineWriter
	lastStatus workeripc.Status

	done     chan struct{}
	doneOnce sync.Once
}

func (r *subprocessRunner) Start(ctx context.Context) error {
	cmd := exec.Command(r.bin, "-account", r.id)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		r.doneOnce.Do(func() { close(r.done) })
		return fmt.Errorf("spawn worker for %s: %w", r.id, err)
	}

	r.mu.Lock()
	r.cmd = cmd
	r.cmds = workeripc.NewLineWriter(stdin)
	r.lastStatus = workeripc.Status{Account: r.id, State: "connecting"}
	r.mu.Unlock()

	started := make(chan error, 1)
	go r.pump(workeripc.NewLineReader(stdout), started)
	go func() {
		err := cmd.Wait()
		if err != nil {
			r.log.Printf("worker %s exited: %v", r.id, err)
		}
		r.doneOnce.Do(func() { close(r.done) })
	}()

	if err := r.cmds.Write(workeripc.Command{Type: workeripc.CmdStart, Start: &workeripc.Start{
		Fleet:   r.fleet,
		Account: r.ac,
	}}); err != nil {
		r.Stop()
		return fmt.Errorf("worker %s start command: %w", r.id, err)
	}

	select {
	case err := <-started:
		return err
	case <-r.done:
		return fmt.Errorf("worker %s died during startup", r.id)
	case <-ctx.Done():
		r.Stop()
		return ctx.Err()
	case <-time.After(workerStartTimeout):
		r.Stop()
		return fmt.Errorf("worker %s did not start within %s", r.id, workerStartTimeout)
	}
}

// pump relays worker events to the sink and keeps the latest status.
func (r *subprocessRunner) pump(events *workeripc.LineReader, started chan<- error) {
	reported := false
	for {
		var ev workeripc.Event
		if err := events.Next(&ev); err != nil {
			if !reported {
				started <- fmt.Errorf("worker %s event pipe closed before start", r.id)
			}
			return
		}
		switch ev.Type {
		case workeripc.EvStarted:
			if !reported {
				reported = true
				started <- nil
			}
		case workeripc.EvError:
			if !reported {
				reported = true
				started <- fmt.Errorf("worker %s: %s", r.id, ev.Message)
			}
		case workeripc.EvStatus:
			if ev.Status != nil {
				r.mu.Lock()
				r.lastStatus = *ev.Status
				r.mu.Unlock()
			}
		case workeripc.EvState:
			r.mu.Lock()
			r.lastStatus.State = ev.State
			r.lastStatus.Reason = ev.Reason
			r.mu.Unlock()
		}
		r.sink(ev)
	}
}

// Stop walks the shutdown ladder until the process is gone.
func (r *subprocessRunner) Stop() {
	r.mu.Lock()
	cmds := r.cmds
	cmd := r.cmd
	r.mu.Unlock()
	if cmd == nil {
		r.doneOnce.Do(func() { close(r.done) })
		return
	}

	if cmds != nil {
		_ = cmds.Write(workeripc.Command{Type: workeripc.CmdStop})
	}
	select {
	case <-r.done:
		return
	case <-time.After(workerStopTimeout):
	}

	r.log.Printf("worker %s ignored stop, sending SIGTERM", r.id)
	_ = cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-r.done:
		return
	case <-time.After(workerTermTimeout):
	}

	r.log.Printf("worker %s ignored SIGTERM, killing", r.id)
	_ = cmd.Process.Kill()
	<-r.done
}

func (r *subprocessRunner) Done() <-chan struct{} { return r.done }

func (r *subprocessRunner) Status() workeripc.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastStatus
}
