package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"dex-backend/internal/dto"
	"dex-backend/internal/events"
	"dex-backend/internal/metrics"
	"dex-backend/internal/models"
	"dex-backend/internal/repository"
	"dex-backend/internal/types"
	"dex-backend/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// fillLeg is one parsed trade of a batch
type fillLeg struct {
	orderHash   string
	takerAmount *big.Int
	fees        *big.Int
	baseFees    bool
	isBuyer     bool
}

// FillOutcome lists what a committed batch changed
type FillOutcome struct {
	Makers []*models.Maker
	Takers []*models.Taker
}

// pairUpdate collects the changes of one trading group for publication
type pairUpdate struct {
	makers []*models.Maker
	takers []*models.Taker
}

// FillService applies watch tower fill batches and cancellations
type FillService struct {
	store     repository.Store
	publisher events.Publisher
	logger    *logrus.Logger
}

// NewFillService creates a FillService
func NewFillService(store repository.Store, publisher events.Publisher, logger *logrus.Logger) *FillService {
	return &FillService{store: store, publisher: publisher, logger: logger}
}

// parseTrades decodes the order_hash -> leg mapping. The mapping shape fails
// with TRADE_FIELD_FORMAT, the content of a leg with TRADE_DATA.
func parseTrades(raw json.RawMessage) ([]fillLeg, error) {
	formatErr := types.NewFieldError("trades", types.ErrTradeFieldFormat)
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, formatErr
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil || len(entries) == 0 {
		return nil, formatErr
	}

	legs := make([]fillLeg, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for key, body := range entries {
		hash, err := utils.ParseHash("trades", key)
		if err != nil {
			return nil, formatErr
		}
		// keys differing only in hex case name the same maker
		orderHash := utils.NormalizeHash(hash.Hex())
		if _, dup := seen[orderHash]; dup {
			return nil, formatErr
		}
		seen[orderHash] = struct{}{}
		var leg dto.TradeLeg
		if err := json.Unmarshal(body, &leg); err != nil {
			return nil, types.NewFieldError("trades", types.ErrTradeData)
		}
		if leg.TakerAmount == "" || leg.Fees == "" || leg.BaseFees == nil || leg.IsBuyer == nil {
			return nil, types.NewFieldError("trades", types.ErrTradeData)
		}
		amount, err := utils.ParseDecimal("trades", leg.TakerAmount)
		if err != nil || amount.Sign() == 0 {
			return nil, types.NewFieldError("trades", types.ErrTradeData)
		}
		fees, err := utils.ParseDecimal("trades", leg.Fees)
		if err != nil {
			return nil, types.NewFieldError("trades", types.ErrTradeData)
		}
		legs = append(legs, fillLeg{
			orderHash:   orderHash,
			takerAmount: amount,
			fees:        fees,
			baseFees:    *leg.BaseFees,
			isBuyer:     *leg.IsBuyer,
		})
	}
	sort.Slice(legs, func(i, j int) bool { return legs[i].orderHash < legs[j].orderHash })
	return legs, nil
}

// ApplyFills validates a batch and applies every leg atomically. Any failing
// leg rolls the whole batch back.
func (s *FillService) ApplyFills(ctx context.Context, req *dto.FillRequest) (*FillOutcome, error) {
	legs, err := parseTrades(req.Trades)
	if err != nil {
		return nil, s.rejectBatch(err)
	}
	if req.Taker == "" {
		return nil, s.rejectBatch(types.NewFieldError("taker", types.ErrMissingField))
	}
	taker, err := utils.ParseChecksumAddress("taker", req.Taker)
	if err != nil {
		return nil, s.rejectBatch(err)
	}
	if req.Block == nil {
		return nil, s.rejectBatch(types.NewFieldError("block", types.ErrMissingField))
	}
	var p fieldParser
	chainID := p.chainID("chain_id", req.ChainID)
	if p.err != nil {
		return nil, s.rejectBatch(p.err)
	}

	outcome := &FillOutcome{}
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		hashes := make([]string, len(legs))
		for i, leg := range legs {
			hashes[i] = leg.orderHash
		}
		makers, err := tx.Makers().LockByHashes(ctx, hashes)
		if err != nil {
			return fmt.Errorf("failed to lock makers: %w", err)
		}
		if len(makers) != len(hashes) {
			return types.NewCrossFieldError(types.ErrNoMakerFound)
		}
		byHash := make(map[string]*models.Maker, len(makers))
		var botIDs []uint
		for _, m := range makers {
			byHash[utils.NormalizeHash(m.OrderHash)] = m
			if m.BotID != nil {
				botIDs = append(botIDs, *m.BotID)
			}
		}
		bots, err := tx.Bots().FindByIDs(ctx, botIDs)
		if err != nil {
			return fmt.Errorf("failed to load bots: %w", err)
		}
		botByID := make(map[uint]*models.Bot, len(bots))
		for _, b := range bots {
			botByID[b.ID] = b
		}

		if _, err := tx.Users().Ensure(ctx, taker.Hex()); err != nil {
			return fmt.Errorf("failed to provision taker: %w", err)
		}

		takers := make([]*models.Taker, 0, len(legs))
		for _, leg := range legs {
			maker, ok := byHash[leg.orderHash]
			if !ok {
				return types.NewCrossFieldError(types.ErrNoMakerFound)
			}
			var bot *models.Bot
			if maker.BotID != nil {
				bot = botByID[*maker.BotID]
			}

			updated, err := s.applyLeg(ctx, tx, maker, bot, leg, chainID)
			if err != nil {
				return err
			}
			outcome.Makers = append(outcome.Makers, updated)
			takers = append(takers, &models.Taker{
				MakerID:     maker.ID,
				Taker:       taker.Hex(),
				Block:       *req.Block,
				TakerAmount: utils.ToDecimal(leg.takerAmount),
				Fees:        utils.ToDecimal(leg.fees),
				BaseFees:    leg.baseFees,
				IsBuyer:     leg.isBuyer,
				ChainID:     chainID,
			})
		}
		if err := tx.Takers().CreateBatch(ctx, takers); err != nil {
			return fmt.Errorf("failed to insert takers: %w", err)
		}
		outcome.Takers = takers
		return nil
	})
	if err != nil {
		return nil, s.rejectBatch(err)
	}

	metrics.FillBatches.WithLabelValues("applied").Inc()
	metrics.TakersRecorded.Add(float64(len(outcome.Takers)))
	s.logger.WithFields(logrus.Fields{
		"taker":    taker.Hex(),
		"block":    *req.Block,
		"chain_id": chainID,
		"legs":     len(outcome.Takers),
	}).Info("Fill batch applied")

	s.publishFills(ctx, outcome)
	return outcome, nil
}

// applyLeg runs the per-leg integrity checks, the filled update and the bot fee accrual
func (s *FillService) applyLeg(ctx context.Context, tx repository.Store, maker *models.Maker, bot *models.Bot, leg fillLeg, chainID uint64) (*models.Maker, error) {
	if maker.Status == models.MakerStatusCancelled {
		return nil, types.NewCrossFieldError(types.ErrMakerAlreadyCancelled)
	}
	if maker.ChainID != chainID {
		return nil, types.NewFieldError("trades", types.ErrTradeData)
	}

	filled := utils.FromDecimal(maker.Filled)
	next := new(big.Int).Add(filled, leg.takerAmount)
	if next.Cmp(utils.FromDecimal(maker.Amount)) > 0 {
		return nil, types.NewCrossFieldError(types.ErrOrderPositiveViolation)
	}

	price := utils.FromDecimal(maker.Price)
	if bot != nil {
		originallyBuyer := price.Cmp(utils.FromDecimal(bot.Price)) <= 0
		if leg.isBuyer == originallyBuyer && filled.Sign() == 0 {
			return nil, types.NewCrossFieldError(types.ErrOrderPositiveViolation)
		}
	}

	updated, err := tx.Makers().AddFilled(ctx, maker.ID, leg.takerAmount)
	if err != nil {
		if errors.Is(err, repository.ErrFillExceedsAmount) {
			return nil, types.NewCrossFieldError(types.ErrOrderPositiveViolation)
		}
		return nil, fmt.Errorf("failed to update maker %s: %w", maker.OrderHash, err)
	}

	if bot != nil {
		delta := BotFeeDelta(price, utils.FromDecimal(bot.Price), utils.FromDecimal(bot.MakerFees), leg.takerAmount, leg.isBuyer)
		if err := tx.Bots().AddFeesEarned(ctx, bot.ID, delta); err != nil {
			return nil, fmt.Errorf("failed to credit bot %d: %w", bot.ID, err)
		}
		bot.FeesEarned = bot.FeesEarned.Add(decimal.NewFromBigInt(delta, 0))
		s.logger.WithFields(logrus.Fields{
			"bot_id":     bot.ID,
			"order_hash": maker.OrderHash,
			"delta":      delta.String(),
			"first_fill": filled.Sign() == 0,
		}).Debug("Bot fee accrued")
	}
	return updated, nil
}

func (s *FillService) rejectBatch(err error) error {
	metrics.FillBatches.WithLabelValues("rejected").Inc()
	if kind := types.KindOf(err); kind != "" {
		s.logger.WithField("kind", kind).Warn("Fill batch rejected")
	} else {
		s.logger.WithError(err).Error("Fill batch failed")
	}
	return rejected(err)
}

func (s *FillService) publishFills(ctx context.Context, outcome *FillOutcome) {
	makerByID := make(map[uint]*models.Maker, len(outcome.Makers))
	updates := make(map[string]*pairUpdate)
	var groups []string
	group := func(m *models.Maker) *pairUpdate {
		g := events.PairGroup(m.ChainID, m.BaseToken, m.QuoteToken)
		u, ok := updates[g]
		if !ok {
			u = &pairUpdate{}
			updates[g] = u
			groups = append(groups, g)
		}
		return u
	}
	for _, m := range outcome.Makers {
		makerByID[m.ID] = m
		u := group(m)
		u.makers = append(u.makers, m)
	}
	for _, t := range outcome.Takers {
		u := group(makerByID[t.MakerID])
		u.takers = append(u.takers, t)
	}

	for _, g := range groups {
		u := updates[g]
		s.publish(ctx, events.Message{Group: g, Tag: events.TagMakersUpdate, Payload: u.makers})
		s.publish(ctx, events.Message{Group: g, Tag: events.TagNewTakers, Payload: u.takers})
	}
}

// Cancel moves an OPEN maker to CANCELLED. A cancelled maker fails with
// MAKER_ALREADY_CANCELLED and a filled one with MAKER_ALREADY_FILLED.
func (s *FillService) Cancel(ctx context.Context, req *dto.CancelRequest) (*models.Maker, error) {
	if req.OrderHash == "" {
		return nil, rejected(types.NewFieldError("order_hash", types.ErrMissingField))
	}
	hash, err := utils.ParseHash("order_hash", req.OrderHash)
	if err != nil {
		return nil, rejected(err)
	}
	orderHash := utils.NormalizeHash(hash.Hex())

	var maker *models.Maker
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		m, err := tx.Makers().GetByHash(ctx, orderHash)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return types.NewCrossFieldError(types.ErrNoMakerFound)
			}
			return fmt.Errorf("failed to load maker: %w", err)
		}
		changed, err := tx.Makers().Cancel(ctx, m.ID)
		if err != nil {
			return fmt.Errorf("failed to cancel maker: %w", err)
		}
		if !changed {
			// status may have moved since the read
			if current, err := tx.Makers().GetByHash(ctx, orderHash); err == nil {
				m = current
			}
			if m.Status == models.MakerStatusFilled {
				return types.NewCrossFieldError(types.ErrMakerAlreadyFilled)
			}
			return types.NewCrossFieldError(types.ErrMakerAlreadyCancelled)
		}
		m.Status = models.MakerStatusCancelled
		maker = m
		return nil
	})
	if err != nil {
		return nil, rejected(err)
	}

	metrics.MakersCancelled.Inc()
	s.logger.WithField("order_hash", orderHash).Info("Maker cancelled")
	s.publish(ctx, events.Message{
		Group:   events.PairGroup(maker.ChainID, maker.BaseToken, maker.QuoteToken),
		Tag:     events.TagDelMaker,
		Payload: maker.OrderHash,
	})
	return maker, nil
}

func (s *FillService) publish(ctx context.Context, msg events.Message) {
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.WithFields(logrus.Fields{
			"group": msg.Group,
			"tag":   msg.Tag,
		}).WithError(err).Error("Event publication failed")
	}
}
