package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/portos-dev/portos/pkg/alloc"
	"github.com/portos-dev/portos/pkg/frame"
	"github.com/portos-dev/portos/pkg/clock"
	"github.com/portos-dev/portos/pkg/priority"
	"github.com/portos-dev/portos/pkg/scheduler"
	"github.com/portos-dev/portos/pkg/signal"
)

func newClockCmd() *cobra.Command {
	var ticks int
	var armAt int32

	cmd := &cobra.Command{
		Use:   "clock",
		Short: "Advance a simulated clock, optionally arming a timer at a future tick",
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := scheduler.New(scheduler.Config{Levels: flagLevels, Logger: log})
			if err != nil {
				return err
			}
			pool := frame.NewPool(alloc.New(alloc.Config{}))
			group := signal.NewGroup(sched, 64, priority.Level(flagLevels-1), log)
			c := clock.New(group)

			var fired int32 = -1
			if armAt > 0 {
				f, err := pool.New("timer", armAt, func(*frame.Frame) {
					fired = c.Now()
				})
				if err != nil {
					return err
				}
				if err := c.Arm(armAt, priority.Level(0), signal.NewHandle(), f); err != nil {
					return err
				}
			}

			for i := 0; i < ticks; i++ {
				if err := c.Tick(); err != nil {
					return err
				}
			}

			log.Info("clock: advanced", zap.Int32("now", c.Now()), zap.Int32("timer_fired_at", fired))
			return nil
		},
	}
	cmd.Flags().IntVar(&ticks, "ticks", 10, "number of ticks to advance")
	cmd.Flags().Int32Var(&armAt, "arm-at", 0, "arm a one-shot timer at this tick (0 disables)")
	return cmd
}
