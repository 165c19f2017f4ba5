package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/backstage/services/fridge/internal/scheduler"

	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:       "task <stock-scan|expiry-scan|weekly-delivery>",
	Short:     "Run one periodic task now",
	Long:      `Run one of the worker's periodic tasks once and exit, e.g. to retry a failed weekly delivery cycle`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{scheduler.TaskStockScan, scheduler.TaskExpiryScan, scheduler.TaskWeeklyDelivery},
	RunE:      runTask,
}

func init() {
	rootCmd.AddCommand(taskCmd)
}

func runTask(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := newApp(cfg, "fridge-task")
	if err != nil {
		return err
	}
	defer a.close()

	s, err := scheduler.New(ctx, cfg.Scheduler, a.tasks(), a.tracer, a.metrics)
	if err != nil {
		return err
	}
	defer s.Shutdown()

	return s.Run(ctx, args[0])
}
