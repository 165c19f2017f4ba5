package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/backstage/services/fridge/internal/scheduler"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker running the low-stock scan, the expiry scan and the weekly delivery cycle`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	a, err := newApp(cfg, "fridge-worker")
	if err != nil {
		return err
	}
	defer a.close()

	s, err := scheduler.New(ctx, cfg.Scheduler, a.tasks(), a.tracer, a.metrics)
	if err != nil {
		return err
	}

	g.Go(func() error {
		log.Info().
			Dur("stock_scan_interval", cfg.Scheduler.StockScanInterval).
			Dur("expiry_scan_interval", cfg.Scheduler.ExpiryScanInterval).
			Str("delivery_cron", cfg.Scheduler.DeliveryCron).
			Msg("Starting scheduler")

		s.Start()

		<-ctx.Done()

		return s.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
