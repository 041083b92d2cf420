package services

import (
	"context"
	"sync"
	"time"

	"dex-backend/internal/events"
	"dex-backend/internal/metrics"
	"dex-backend/internal/repository"

	"github.com/sirupsen/logrus"
)

// sweepBatchSize bounds the makers removed by one sweep
const sweepBatchSize = 500

// ExpirySweeper periodically deletes makers past their expiry that were never filled
type ExpirySweeper struct {
	store     repository.Store
	publisher events.Publisher
	logger    *logrus.Logger
	interval  time.Duration
	now       func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewExpirySweeper creates a new ExpirySweeper
func NewExpirySweeper(store repository.Store, publisher events.Publisher, interval time.Duration, logger *logrus.Logger) *ExpirySweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpirySweeper{
		store:     store,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		now:       time.Now,
	}
}

// Start begins the sweep loop
func (s *ExpirySweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	s.logger.WithField("interval", s.interval).Info("Starting expiry sweeper")
	go s.loop(s.stopCh, s.doneCh)
}

// Stop ends the sweep loop and waits for a running sweep to finish
func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	s.logger.Info("Expiry sweeper stopped")
}

func (s *ExpirySweeper) loop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run initial sweep on startup
	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-stopCh:
			return
		}
	}
}

// Sweep deletes expired makers without takers and announces each with DEL_MAKER.
// It returns the number of deleted makers.
func (s *ExpirySweeper) Sweep(ctx context.Context) int {
	now := s.now().Unix()
	total := 0
	for {
		deleted, err := s.store.Makers().DeleteExpired(ctx, now, sweepBatchSize)
		if err != nil {
			s.logger.WithError(err).Error("Failed to delete expired makers")
			return total
		}
		for _, m := range deleted {
			msg := events.Message{
				Group:   events.PairGroup(m.ChainID, m.BaseToken, m.QuoteToken),
				Tag:     events.TagDelMaker,
				Payload: m.OrderHash,
			}
			if err := s.publisher.Publish(ctx, msg); err != nil {
				s.logger.WithError(err).WithField("order_hash", m.OrderHash).Warn("Failed to announce expired maker")
			}
		}
		total += len(deleted)
		if len(deleted) < sweepBatchSize {
			break
		}
	}

	if total > 0 {
		metrics.MakersExpired.Add(float64(total))
		s.logger.WithField("count", total).Info("Expired makers removed")
	}
	return total
}
