// Package events defines the notification bus between mutating services and
// subscribers (websocket clients, NATS consumers).
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"dex-backend/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Tag names the kind of notification; it is the single key of every frame.
type Tag string

const (
	TagNewMaker         Tag = "NEW_MAKER"
	TagNewBot           Tag = "NEW_BOT"
	TagDelMaker         Tag = "DEL_MAKER"
	TagMakersUpdate     Tag = "MAKERS_UPDATE"
	TagNewTakers        Tag = "NEW_TAKERS"
	TagNewStacking      Tag = "NEW_STACKING"
	TagNewFees          Tag = "NEW_FEES"
	TagNewFSAWithdrawal Tag = "NEW_FSA_WITHDRAWAL"
)

// Message is one notification addressed to a subscription group
type Message struct {
	Group   string
	Tag     Tag
	Payload interface{}
}

// Frame encodes the message as {"<TAG>": payload}
func (m Message) Frame() ([]byte, error) {
	return json.Marshal(map[Tag]interface{}{m.Tag: m.Payload})
}

// PairGroup is the trading group {chain_id}{base_lower}{quote_lower}
func PairGroup(chainID uint64, base, quote string) string {
	return fmt.Sprintf("%d%s%s", chainID, strings.ToLower(base), strings.ToLower(quote))
}

// ChainGroup is the staking group {chain_id}
func ChainGroup(chainID uint64) string {
	return fmt.Sprintf("%d", chainID)
}

// Publisher delivers messages to subscribers of a group
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Sink is a named Publisher inside a MultiPublisher
type Sink struct {
	Name      string
	Publisher Publisher
}

// MultiPublisher fans out every message to all sinks. A failing sink does not
// stop delivery to the others.
type MultiPublisher struct {
	sinks  []Sink
	logger *logrus.Logger
}

// NewMultiPublisher creates a fan-out publisher
func NewMultiPublisher(logger *logrus.Logger, sinks ...Sink) *MultiPublisher {
	return &MultiPublisher{sinks: sinks, logger: logger}
}

// Add registers another sink
func (p *MultiPublisher) Add(name string, publisher Publisher) {
	p.sinks = append(p.sinks, Sink{Name: name, Publisher: publisher})
}

func (p *MultiPublisher) Publish(ctx context.Context, msg Message) error {
	var errs []error
	for _, sink := range p.sinks {
		if err := sink.Publisher.Publish(ctx, msg); err != nil {
			metrics.PublishFailures.WithLabelValues(sink.Name).Inc()
			p.logger.WithFields(logrus.Fields{
				"sink":  sink.Name,
				"group": msg.Group,
				"tag":   msg.Tag,
			}).WithError(err).Error("Failed to publish event")
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name, err))
		}
	}
	metrics.EventsPublished.WithLabelValues(string(msg.Tag)).Inc()
	return errors.Join(errs...)
}

// Discard drops every message
type Discard struct{}

func (Discard) Publish(context.Context, Message) error { return nil }

// Recorder keeps published messages in memory
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Publish(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

// Messages returns a copy of everything published so far
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// ByTag returns the recorded messages with the given tag
func (r *Recorder) ByTag(tag Tag) []Message {
	var out []Message
	for _, m := range r.Messages() {
		if m.Tag == tag {
			out = append(out, m)
		}
	}
	return out
}
