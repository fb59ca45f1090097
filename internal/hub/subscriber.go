package hub

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"kiosk-system/internal/domain"
)

// Handler processes one status event. Returning an error requeues the
// delivery; a malformed body goes straight to drop.
type Handler func(ev domain.StatusEvent) error

// Subscribe consumes the dashboard queue until ctx is cancelled, draining
// in-flight deliveries before returning.
func Subscribe(ctx context.Context, client *Client, consumer string, prefetch int, h Handler, log *logrus.Entry) error {
	ch := client.Channel()

	closeCh := ch.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if e := <-closeCh; e != nil {
			log.WithFields(logrus.Fields{
				"action": "amqp_channel_closed",
				"code":   e.Code,
				"reason": e.Reason,
			}).Error("consume channel closed")
		}
	}()

	msgs, err := client.Consume(DashboardQueue, consumer, prefetch)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"action": "subscriber_started", "queue": DashboardQueue}).Info("consuming status events")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for d := range msgs {
			var ev domain.StatusEvent
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				log.WithError(err).WithField("action", "event_decode_failed").Error("dropping malformed event")
				_ = d.Nack(false, false)
				continue
			}
			if err := h(ev); err != nil {
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}()

	<-ctx.Done()
	_ = ch.Cancel(consumer, false)
	<-done
	log.WithField("action", "subscriber_stopped").Info("subscriber drained")
	return nil
}
