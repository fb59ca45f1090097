package hub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"kiosk-system/internal/domain"
)

// Publisher forwards queue manager status events to the dashboard exchange.
// It implements kiosk.Listener. A broker hiccup is logged, never propagated:
// the mutation already committed and the dashboard is a read-only consumer.
type Publisher struct {
	client *Client
	log    *logrus.Entry
}

func NewPublisher(client *Client, log *logrus.Entry) *Publisher {
	return &Publisher{client: client, log: log}
}

func (p *Publisher) Notify(ev domain.StatusEvent) {
	body, err := json.Marshal(ev)
	if err != nil {
		p.log.WithError(err).WithField("action", "event_marshal_failed").Error("dropping status event")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.client.Publish(ctx, StatusExchange, "", body); err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"action":   "event_publish_failed",
			"order_id": ev.OrderID,
		}).Error("dashboard will miss this event")
		return
	}
	p.log.WithFields(logrus.Fields{
		"action":   "event_published",
		"order_id": ev.OrderID,
		"status":   string(ev.NewStatus),
	}).Debug("status event published")
}
