package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/portos-dev/portos/pkg/alloc"
	"github.com/portos-dev/portos/pkg/frame"
	"github.com/portos-dev/portos/pkg/priority"
	"github.com/portos-dev/portos/pkg/scheduler"
	"github.com/portos-dev/portos/pkg/signal"
)

func newSignalCmd() *cobra.Command {
	var key int32
	var waiters int
	var detachLast bool

	cmd := &cobra.Command{
		Use:   "signal",
		Short: "Attach N pfuncs to a key, then post it (or detach the last waiter first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := scheduler.New(scheduler.Config{Levels: flagLevels, Logger: log})
			if err != nil {
				return err
			}
			pool := frame.NewPool(alloc.New(alloc.Config{}))
			group := signal.NewGroup(sched, 16, priority.Level(flagLevels-1), log)

			var order []int
			handles := make([]*signal.Handle, waiters)
			for i := 0; i < waiters; i++ {
				id := i
				h := signal.NewHandle()
				f, err := pool.New(fmt.Sprintf("waiter-%d", id), id, func(*frame.Frame) {
					order = append(order, id)
				})
				if err != nil {
					return err
				}
				if err := group.Attach(key, priority.Level(0), h, f); err != nil {
					return err
				}
				handles[i] = h
			}

			if detachLast && len(handles) > 0 {
				if err := group.Detach(handles[len(handles)-1]); err != nil {
					return err
				}
			}

			if err := group.Post(key); err != nil {
				return err
			}

			log.Info("signal: post complete", zap.Int32("key", key), zap.Ints("invoke_order", order))
			return nil
		},
	}
	cmd.Flags().Int32Var(&key, "key", 1, "signal key to attach/post")
	cmd.Flags().IntVar(&waiters, "waiters", 3, "number of pfuncs to attach before posting")
	cmd.Flags().BoolVar(&detachLast, "detach-last", false, "detach the last-attached waiter before posting")
	return cmd
}
