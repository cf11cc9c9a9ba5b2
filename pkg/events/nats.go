package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Publisher is the subset of *nats.Conn used to publish events.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes every event as JSON to "<subject>.<location>".
type NATSPublisher struct {
	pub     Publisher
	conn    *nats.Conn
	subject string
	logger  *logrus.Entry
}

// ConnectNATS connects to url and returns a publisher for subject.
func ConnectNATS(url, subject string, logger *logrus.Entry) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("wsync"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.WithField("url", c.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	logger.WithFields(logrus.Fields{"url": url, "subject": subject}).Info("NATS connected")

	p := NewNATSPublisher(nc, subject, logger)
	p.conn = nc
	return p, nil
}

// NewNATSPublisher wraps an existing publisher.
func NewNATSPublisher(pub Publisher, subject string, logger *logrus.Entry) *NATSPublisher {
	return &NATSPublisher{pub: pub, subject: subject, logger: logger}
}

// Subject returns the subject an event for location is published on.
func (p *NATSPublisher) Subject(location string) string {
	// NATS tokens may not contain separators or wildcards.
	token := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(location)
	return p.subject + "." + token
}

// HandleEvent publishes ev. Failures are logged; events are not retried.
func (p *NATSPublisher) HandleEvent(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.WithError(err).Error("Failed to encode event")
		return
	}
	subject := p.Subject(ev.Location)
	if err := p.pub.Publish(subject, data); err != nil {
		p.logger.WithError(err).WithField("subject", subject).Warn("Failed to publish event")
	}
}

// Close drains the connection if the publisher owns one.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
