package command

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"kiosk-system/internal/domain"
	"kiosk-system/internal/hub"
	"kiosk-system/internal/logging"
)

func Dashboard(ctx context.Context) *cobra.Command {
	var (
		consumer string
		prefetch int
	)
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "consume and display kiosk status events",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runDashboard(ctx, consumer, prefetch)
		},
	}
	cmd.Flags().StringVar(&consumer, "consumer-name", "dashboard", "unique consumer tag")
	cmd.Flags().IntVar(&prefetch, "prefetch", 1, "RabbitMQ prefetch")
	return cmd
}

func runDashboard(ctx context.Context, consumer string, prefetch int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.New("dashboard", cfg.LogLevel)

	mqc, err := hub.Dial(cfg.RabbitMQ)
	if err != nil {
		return errors.Wrap(err, "connect to rabbitmq")
	}
	defer mqc.Close()
	if err := mqc.DeclareTopology(); err != nil {
		return errors.Wrap(err, "declare exchanges")
	}

	return hub.Subscribe(ctx, mqc, consumer, prefetch, func(ev domain.StatusEvent) error {
		fields := logrus.Fields{
			"action":   "order_status_changed",
			"order_id": ev.OrderID,
			"status":   string(ev.NewStatus),
		}
		if ev.EstimatedCompletion != nil {
			fields["estimated_completion"] = ev.EstimatedCompletion.UTC().Format("15:04:05")
		}
		log.WithFields(fields).Info("status update")
		return nil
	}, log)
}
