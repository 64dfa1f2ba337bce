package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/portos-dev/portos/pkg/alloc"
	"github.com/portos-dev/portos/pkg/frame"
	"github.com/portos-dev/portos/pkg/priority"
	"github.com/portos-dev/portos/pkg/queue"
	"github.com/portos-dev/portos/pkg/scheduler"
)

func newQueueCmd() *cobra.Command {
	var servers, submissions int

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Push pfuncs through a bounded-concurrency queue and release them one at a time",
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := scheduler.New(scheduler.Config{Levels: flagLevels, Logger: log})
			if err != nil {
				return err
			}
			pool := frame.NewPool(alloc.New(alloc.Config{}))
			q := queue.New(sched, servers)

			var ran []int
			for i := 0; i < submissions; i++ {
				id := i
				f, err := pool.New("pushed", id, func(*frame.Frame) {
					ran = append(ran, id)
				})
				if err != nil {
					return err
				}
				if err := q.Push(f, priority.Level(0)); err != nil {
					return err
				}
			}

			stats := q.Stats()
			for stats.Waiting > 0 {
				if err := q.Next(); err != nil {
					return err
				}
				stats = q.Stats()
			}

			log.Info("queue: drained", zap.Ints("ran_in_order", ran), zap.Int("high_water", stats.HighWater))
			return nil
		},
	}
	cmd.Flags().IntVar(&servers, "servers", 1, "number of simultaneous admission tokens")
	cmd.Flags().IntVar(&submissions, "submissions", 5, "number of pfuncs to push before draining")
	return cmd
}
