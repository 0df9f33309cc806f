package rewards

import (
	"context"
	"log"
	"os"
	"time"

	"farmfleet.dev/internal/protocol"
)

// TaskLoop sweeps claimable task rewards. Tasks complete all day long, so
// unlike the daily features this runs on a plain interval.
type TaskLoop struct {
	call     Caller
	interval time.Duration
	log      *log.Logger
}

func NewTaskLoop(call Caller, interval time.Duration, logger *log.Logger) *TaskLoop {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[tasks] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &TaskLoop{call: call, interval: interval, log: logger}
}

func (t *TaskLoop) Run(ctx context.Context) {
	for {
		n, err := t.RunOnce(ctx)
		if err != nil {
			t.log.Printf("sweep: %v", err)
		} else if n > 0 {
			t.log.Printf("claimed %d task rewards", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(t.interval):
		}
	}
}

// RunOnce claims every task currently in the claimable state, batched
// into one request.
func (t *TaskLoop) RunOnce(ctx context.Context) (int, error) {
	var info protocol.TaskInfoReply
	if err := t.call.Call(ctx, protocol.SvcTask, protocol.MethodTaskInfo,
		protocol.TaskInfoRequest{}, &info); err != nil {
		return 0, err
	}
	var ids []int64
	for _, task := range info.Tasks {
		if task.Status == protocol.TaskClaimable {
			ids = append(ids, task.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := t.call.Call(ctx, protocol.SvcTask, protocol.MethodClaimTasks,
		protocol.ClaimTasksRequest{TaskIDs: ids}, nil); err != nil {
		return 0, err
	}
	return len(ids), nil
}
