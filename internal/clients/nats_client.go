package clients

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dex-backend/internal/config"
	"dex-backend/internal/events"
	"dex-backend/internal/metrics"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// NATSPublisher forwards event bus messages to NATS on <prefix>.<group>.<TAG>
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *logrus.Logger
}

// NewNATSPublisher connects to NATS
func NewNATSPublisher(cfg config.NATSConfig, logger *logrus.Logger) (*NATSPublisher, error) {
	connectTimeout := 10 * time.Second
	if cfg.Timeout > 0 {
		connectTimeout = time.Duration(cfg.Timeout) * time.Second
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("dex-backend"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(time.Duration(cfg.ReconnectWait)*time.Second),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.WithError(err).Warn("NATS disconnected")
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	metrics.NATSConnectionStatus.Set(1)

	return newNATSPublisher(conn, cfg.SubjectPrefix, logger), nil
}

func newNATSPublisher(conn *nats.Conn, prefix string, logger *logrus.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: prefix, logger: logger}
}

// Subject builds the NATS subject for a message
func (p *NATSPublisher) Subject(msg events.Message) string {
	return Subject(p.prefix, msg)
}

// Subject builds <prefix>.<group>.<TAG>, dropping characters NATS treats as tokens
func Subject(prefix string, msg events.Message) string {
	group := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(msg.Group)
	if prefix == "" {
		return fmt.Sprintf("%s.%s", group, msg.Tag)
	}
	return fmt.Sprintf("%s.%s.%s", prefix, group, msg.Tag)
}

func (p *NATSPublisher) Publish(ctx context.Context, msg events.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := msg.Frame()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := p.conn.Publish(p.Subject(msg), data); err != nil {
		return fmt.Errorf("failed to publish to NATS: %w", err)
	}
	return nil
}

// Close drains pending messages and closes the connection
func (p *NATSPublisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.logger.WithError(err).Warn("Failed to drain NATS connection")
		p.conn.Close()
	}
	metrics.NATSConnectionStatus.Set(0)
}
