package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pyropy/qrxfer/core/collector"
	"github.com/pyropy/qrxfer/lib/logger"
)

var log, _ = logger.New("relay")

// Client publishes stored chunks to a NATS subject and feeds received ones
// to a handler.
type Client struct {
	conn    *nats.Conn
	subject string
	subs    []*nats.Subscription
}

func Connect(url, subject string) (*Client, error) {
	opts := []nats.Option{
		nats.Name("qrxfer"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnw("relay", "status", "disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Infow("relay", "status", "reconnected")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Infow("relay", "status", "connected", "url", url, "subject", subject)

	return &Client{conn: nc, subject: subject}, nil
}

// Publish implements collector.Publisher.
func (c *Client) Publish(_ context.Context, chunk collector.StoredChunk) error {
	data, err := Marshal(NewMessage(chunk))
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return c.conn.Publish(c.subject, data)
}

// Subscribe delivers every valid message on the subject to handler.
// Messages that fail to decode are logged and dropped.
func (c *Client) Subscribe(handler func(Message)) error {
	sub, err := c.conn.Subscribe(c.subject, func(msg *nats.Msg) {
		m, err := Unmarshal(msg.Data)
		if err != nil {
			log.Warnw("relay", "status", "dropped message", "error", err)
			return
		}
		handler(m)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.subject, err)
	}

	c.subs = append(c.subs, sub)
	log.Infow("relay", "status", "subscribed", "subject", c.subject)

	return nil
}

// Forward saves every received message into the collector.
func Forward(ctx context.Context, c *collector.Collector) func(Message) {
	return func(m Message) {
		_, err := c.SaveChunk(ctx, collector.SaveRequest{
			Session: m.Session,
			Content: m.Content,
		})
		if err != nil {
			log.Errorw("relay", "status", "save failed", "session", m.Session, "name", m.Name, "error", err)
		}
	}
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
}
