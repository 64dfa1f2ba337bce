package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/portos-dev/portos/pkg/scheduler"
)

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Build an idle scheduler at the configured level count and print its quiescent state",
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := scheduler.New(scheduler.Config{Levels: flagLevels, Logger: log})
			if err != nil {
				return err
			}
			d := sched.Dump()
			log.Info("dump",
				zap.Int("cur_priority", int(d.CurPriority)),
				zap.Int("max_priority", int(d.MaxPriority)),
				zap.Uint64("bitmap", uint64(d.Bitmap)),
				zap.Ints("queue_depth", d.QueueDepth),
			)
			return nil
		},
	}
}
