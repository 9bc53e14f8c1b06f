package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/hibiken/asynq"

	"github.com/alnoor-medical/stocktrack/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string, redisDB int) (*JobsCLI, error) {
	opts := asynq.RedisClientOpt{Addr: redisAddr, DB: redisDB}
	return &JobsCLI{
		client:    asynq.NewClient(opts),
		inspector: asynq.NewInspector(opts),
	}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// Trigger enqueues a supported job by name. productID only applies to the
// revalidation task; zero means every product.
func (c *JobsCLI) Trigger(ctx context.Context, name string, productID int64) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var task *asynq.Task
	var err error
	switch name {
	case jobs.TaskStockRevalidate:
		task, err = jobs.NewStockRevalidateTask(productID, time.Now().UTC())
	case jobs.TaskLowStockScan:
		task, err = jobs.NewLowStockScanTask(0)
	case jobs.TaskActivityPurge:
		task, err = jobs.NewActivityPurgeTask(0)
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = int(info.Pending)
		stats.Active = int(info.Active)
		stats.Scheduled = int(info.Scheduled)
		stats.Retry = int(info.Retry)
	}
	return stats, nil
}

// RunJobs dispatches the `stocktrack jobs ...` subcommands.
//
//	stocktrack jobs trigger [-product N] <task>
//	stocktrack jobs queue
func RunJobs(ctx context.Context, redisAddr string, redisDB int, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("jobs cli: expected a subcommand, one of: trigger, queue")
	}

	cli, err := NewJobsCLI(redisAddr, redisDB)
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	switch args[0] {
	case "trigger":
		fs := flag.NewFlagSet("jobs trigger", flag.ContinueOnError)
		fs.SetOutput(out)
		productID := fs.Int64("product", 0, "limit revalidation to one product")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return errors.New("jobs cli: trigger expects exactly one task name")
		}
		info, err := cli.Trigger(ctx, fs.Arg(0), *productID)
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			fmt.Fprintf(out, "%s already queued\n", fs.Arg(0))
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "enqueued %s id=%s queue=%s\n", fs.Arg(0), info.ID, info.Queue)
		return nil
	case "queue":
		stats, err := cli.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return nil
	default:
		return fmt.Errorf("jobs cli: unknown subcommand %s", args[0])
	}
}
