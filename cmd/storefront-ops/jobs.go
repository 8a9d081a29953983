package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/storefront/storefront-api/jobs"
)

type taskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type queueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	Close() error
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    taskClient
	inspector queueInspector
}

// NewJobsCLI wires the helpers to an Asynq client and inspector.
func NewJobsCLI(client taskClient, inspector queueInspector) *JobsCLI {
	return &JobsCLI{client: client, inspector: inspector}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var errs []error
	if c.inspector != nil {
		errs = append(errs, c.inspector.Close())
	}
	if c.client != nil {
		errs = append(errs, c.client.Close())
	}
	return errors.Join(errs...)
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var task *asynq.Task
	var err error
	switch name {
	case jobs.TaskPurgeResetCodes:
		task, err = jobs.NewPurgeResetCodesTask()
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.MaxRetry(1))
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueue reports the metrics of the default queue.
func (c *JobsCLI) InspectQueue() (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

// ListScheduled returns up to size scheduled tasks.
func (c *JobsCLI) ListScheduled(size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}

// NewJobsCmd creates the jobs subcommand tree.
func NewJobsCmd(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "trigger <task>",
		Short: "Enqueue a job now (" + jobs.TaskPurgeResetCodes + ")",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobs(cmd, deps, func(c *JobsCLI) error {
				info, err := c.Trigger(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				cmd.Printf("enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show queue counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withJobs(cmd, deps, func(c *JobsCLI) error {
				stats, err := c.InspectQueue()
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(stats)
				}
				cmd.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
					stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
				return nil
			})
		},
	})
	scheduled := &cobra.Command{
		Use:   "scheduled",
		Short: "List scheduled tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			size, _ := cmd.Flags().GetInt("size")
			return withJobs(cmd, deps, func(c *JobsCLI) error {
				tasks, err := c.ListScheduled(size)
				if err != nil {
					return err
				}
				for _, task := range tasks {
					cmd.Printf("%s\t%s\t%s\n", task.ID, task.Type, task.NextProcessAt.UTC().Format("2006-01-02T15:04:05Z"))
				}
				return nil
			})
		},
	}
	scheduled.Flags().Int("size", 10, "maximum number of tasks to list")
	cmd.AddCommand(scheduled)
	return cmd
}

func withJobs(cmd *cobra.Command, deps Deps, fn func(*JobsCLI) error) error {
	c, err := deps.Jobs()
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			cmd.PrintErrln("close queue:", err)
		}
	}()
	return fn(c)
}
