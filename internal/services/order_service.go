package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"dex-backend/internal/dto"
	"dex-backend/internal/events"
	"dex-backend/internal/metrics"
	"dex-backend/internal/models"
	"dex-backend/internal/repository"
	"dex-backend/internal/signing"
	"dex-backend/internal/types"
	"dex-backend/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// OrderService admits signed makers and bots and serves the order book views
type OrderService struct {
	store        repository.Store
	publisher    events.Publisher
	maxBotLevels int
	logger       *logrus.Logger
	now          func() time.Time
}

// NewOrderService creates an OrderService. maxBotLevels bounds the size of a bot grid.
func NewOrderService(store repository.Store, publisher events.Publisher, maxBotLevels int, logger *logrus.Logger) *OrderService {
	return &OrderService{
		store:        store,
		publisher:    publisher,
		maxBotLevels: maxBotLevels,
		logger:       logger,
		now:          time.Now,
	}
}

// checkOwner enforces that a user-facing order is signed for the session user
func checkOwner(owner common.Address, sessionUser string) error {
	if sessionUser == "" {
		return nil
	}
	if !utils.SameAddress(owner.Hex(), sessionUser) {
		return types.NewSessionAuthError("order owner does not match session")
	}
	return nil
}

// AdmitMaker validates and stores a single signed maker. sessionUser is the
// authenticated caller; an empty value skips the owner check.
func (s *OrderService) AdmitMaker(ctx context.Context, req *dto.MakerRequest, sessionUser string) (*models.Maker, error) {
	maker, err := s.validateMaker(req, sessionUser)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"owner": req.Address,
			"kind":  types.KindOf(err),
		}).Warn("Maker rejected")
		return nil, rejected(err)
	}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := tx.Users().Ensure(ctx, maker.Owner); err != nil {
			return fmt.Errorf("failed to provision owner: %w", err)
		}
		if err := tx.Makers().Create(ctx, maker); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return types.NewFieldError("order_hash", types.ErrOrderExists)
			}
			return fmt.Errorf("failed to insert maker: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, rejected(err)
	}

	metrics.MakersAdmitted.Inc()
	s.logger.WithFields(logrus.Fields{
		"order_hash": maker.OrderHash,
		"owner":      maker.Owner,
		"chain_id":   maker.ChainID,
	}).Info("Maker admitted")

	s.publish(ctx, events.Message{
		Group:   events.PairGroup(maker.ChainID, maker.BaseToken, maker.QuoteToken),
		Tag:     events.TagNewMaker,
		Payload: maker,
	})
	return maker, nil
}

func (s *OrderService) validateMaker(req *dto.MakerRequest, sessionUser string) (*models.Maker, error) {
	if err := requireFields(
		presence{"address", req.Address != ""},
		presence{"chain_id", req.ChainID != nil},
		presence{"base_token", req.BaseToken != ""},
		presence{"quote_token", req.QuoteToken != ""},
		presence{"amount", req.Amount != ""},
		presence{"price", req.Price != ""},
		presence{"is_buyer", req.IsBuyer != nil},
		presence{"expiry", req.Expiry != nil},
		presence{"order_hash", req.OrderHash != ""},
		presence{"signature", req.Signature != ""},
	); err != nil {
		return nil, err
	}

	var p fieldParser
	owner := p.address("address", req.Address)
	chainID := p.chainID("chain_id", req.ChainID)
	base := p.address("base_token", req.BaseToken)
	quote := p.address("quote_token", req.QuoteToken)
	amount := p.decimal("amount", req.Amount)
	price := p.decimal("price", req.Price)
	p.expiry("expiry", req.Expiry)
	orderHash := p.hash("order_hash", req.OrderHash)
	sig := p.signature("signature", req.Signature)
	if p.err != nil {
		return nil, p.err
	}
	if err := checkOwner(owner, sessionUser); err != nil {
		return nil, err
	}

	// expiry is parsed only; expired makers are removed by the sweeper
	fields := &signing.OrderFields{
		Owner:      owner,
		Amount:     amount,
		Price:      price,
		BaseToken:  base,
		QuoteToken: quote,
		Expiry:     *req.Expiry,
		IsBuyer:    *req.IsBuyer,
	}
	hash, err := signing.VerifyOrder(fields, sig, &orderHash)
	if err != nil {
		return nil, err
	}

	if err := positive("amount", amount); err != nil {
		return nil, err
	}
	if err := positive("price", price); err != nil {
		return nil, err
	}
	if base == quote {
		return nil, types.NewCrossFieldError(types.ErrSameBaseQuote)
	}

	return &models.Maker{
		Owner:      owner.Hex(),
		ChainID:    chainID,
		BaseToken:  base.Hex(),
		QuoteToken: quote.Hex(),
		Amount:     utils.ToDecimal(amount),
		Price:      utils.ToDecimal(price),
		Filled:     decimal.Zero,
		IsBuyer:    *req.IsBuyer,
		Expiry:     int64(*req.Expiry),
		Status:     models.MakerStatusOpen,
		OrderHash:  utils.NormalizeHash(hash.Hex()),
		Signature:  hexutil.Encode(sig),
	}, nil
}

// botPlan is a validated bot with its expanded grid, ready to persist
type botPlan struct {
	bot    *models.Bot
	makers []*models.Maker
}

// AdmitBot validates a signed grid descriptor, expands it into one maker per
// price level and stores the bot with all its makers atomically.
func (s *OrderService) AdmitBot(ctx context.Context, req *dto.BotRequest, sessionUser string) (*dto.BotCreated, error) {
	plan, err := s.planBot(ctx, req, sessionUser)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"owner": req.Address,
			"kind":  types.KindOf(err),
		}).Warn("Bot rejected")
		return nil, rejected(err)
	}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := tx.Users().Ensure(ctx, plan.bot.Owner); err != nil {
			return fmt.Errorf("failed to provision owner: %w", err)
		}
		if err := tx.Bots().Create(ctx, plan.bot); err != nil {
			return fmt.Errorf("failed to insert bot: %w", err)
		}
		for _, m := range plan.makers {
			m.BotID = &plan.bot.ID
		}
		if err := tx.Makers().CreateBatch(ctx, plan.makers); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return types.NewCrossFieldError(types.ErrBotExistingOrder)
			}
			return fmt.Errorf("failed to insert bot makers: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, rejected(err)
	}

	metrics.BotsAdmitted.Inc()
	metrics.BotMakersCreated.Add(float64(len(plan.makers)))
	s.logger.WithFields(logrus.Fields{
		"bot_id":   plan.bot.ID,
		"owner":    plan.bot.Owner,
		"chain_id": plan.bot.ChainID,
		"levels":   len(plan.makers),
	}).Info("Bot admitted")

	created := &dto.BotCreated{Bot: plan.bot, Makers: plan.makers}
	s.publish(ctx, events.Message{
		Group:   events.PairGroup(plan.bot.ChainID, plan.bot.BaseToken, plan.bot.QuoteToken),
		Tag:     events.TagNewBot,
		Payload: created,
	})
	return created, nil
}

func (s *OrderService) planBot(ctx context.Context, req *dto.BotRequest, sessionUser string) (*botPlan, error) {
	if err := requireFields(
		presence{"address", req.Address != ""},
		presence{"chain_id", req.ChainID != nil},
		presence{"base_token", req.BaseToken != ""},
		presence{"quote_token", req.QuoteToken != ""},
		presence{"amount", req.Amount != ""},
		presence{"price", req.Price != ""},
		presence{"step", req.Step != ""},
		presence{"maker_fees", req.MakerFees != ""},
		presence{"upper_bound", req.UpperBound != ""},
		presence{"lower_bound", req.LowerBound != ""},
		presence{"is_buyer", req.IsBuyer != nil},
		presence{"expiry", req.Expiry != nil},
		presence{"signature", req.Signature != ""},
	); err != nil {
		return nil, err
	}

	var p fieldParser
	owner := p.address("address", req.Address)
	chainID := p.chainID("chain_id", req.ChainID)
	base := p.address("base_token", req.BaseToken)
	quote := p.address("quote_token", req.QuoteToken)
	amount := p.decimal("amount", req.Amount)
	price := p.decimal("price", req.Price)
	step := p.decimal("step", req.Step)
	makerFees := p.decimal("maker_fees", req.MakerFees)
	upper := p.decimal("upper_bound", req.UpperBound)
	lower := p.decimal("lower_bound", req.LowerBound)
	p.expiry("expiry", req.Expiry)
	sig := p.signature("signature", req.Signature)
	var submitted *common.Hash
	if req.OrderHash != "" {
		h := p.hash("order_hash", req.OrderHash)
		submitted = &h
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := checkOwner(owner, sessionUser); err != nil {
		return nil, err
	}

	for _, f := range []struct {
		name  string
		value *big.Int
	}{{"step", step}, {"maker_fees", makerFees}, {"amount", amount}} {
		if err := positive(f.name, f.value); err != nil {
			return nil, err
		}
	}
	switch {
	case lower.Cmp(upper) >= 0:
		return nil, types.NewCrossFieldError(types.ErrLowerBoundGteUpperBound)
	case price.Cmp(upper) > 0:
		return nil, types.NewCrossFieldError(types.ErrPriceGtUpperBound)
	case lower.Cmp(price) > 0:
		return nil, types.NewCrossFieldError(types.ErrLowerBoundGtPrice)
	case base == quote:
		return nil, types.NewCrossFieldError(types.ErrSameBaseQuote)
	}

	descriptor := &signing.OrderFields{
		Owner:         owner,
		Amount:        amount,
		Price:         price,
		Step:          step,
		MakerFees:     makerFees,
		UpperBound:    upper,
		LowerBound:    lower,
		BaseToken:     base,
		QuoteToken:    quote,
		Expiry:        *req.Expiry,
		IsBuyer:       *req.IsBuyer,
		IsReplacement: true,
	}
	if _, err := signing.VerifyOrder(descriptor, sig, submitted); err != nil {
		return nil, err
	}

	levels, err := GridLevels(lower, upper, step, s.maxBotLevels)
	if err != nil {
		return nil, err
	}

	signature := hexutil.Encode(sig)
	makers := make([]*models.Maker, 0, len(levels))
	hashes := make([]string, 0, len(levels))
	for _, level := range levels {
		fields := descriptor.AtLevel(level, price)
		hash, err := fields.Hash()
		if err != nil {
			return nil, types.NewCrossFieldError(types.ErrWrongDecimal)
		}
		orderHash := utils.NormalizeHash(hash.Hex())
		hashes = append(hashes, orderHash)
		makers = append(makers, &models.Maker{
			Owner:      owner.Hex(),
			ChainID:    chainID,
			BaseToken:  base.Hex(),
			QuoteToken: quote.Hex(),
			Amount:     utils.ToDecimal(amount),
			Price:      utils.ToDecimal(level),
			Filled:     decimal.Zero,
			IsBuyer:    fields.IsBuyer,
			Expiry:     int64(*req.Expiry),
			Status:     models.MakerStatusOpen,
			OrderHash:  orderHash,
			Signature:  signature,
		})
	}

	existing, err := s.store.Makers().ExistingHashes(ctx, hashes)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing makers: %w", err)
	}
	if len(existing) > 0 {
		return nil, types.NewCrossFieldError(types.ErrBotExistingOrder)
	}

	bot := &models.Bot{
		Owner:      owner.Hex(),
		ChainID:    chainID,
		BaseToken:  base.Hex(),
		QuoteToken: quote.Hex(),
		Step:       utils.ToDecimal(step),
		Price:      utils.ToDecimal(price),
		MakerFees:  utils.ToDecimal(makerFees),
		UpperBound: utils.ToDecimal(upper),
		LowerBound: utils.ToDecimal(lower),
		Amount:     utils.ToDecimal(amount),
		FeesEarned: decimal.Zero,
		IsBuyer:    *req.IsBuyer,
		Timestamp:  s.now().Unix(),
		Expiry:     int64(*req.Expiry),
		Signature:  signature,
	}
	return &botPlan{bot: bot, makers: makers}, nil
}

// GridLevels returns lower, lower+step, ... up to and including upper. A grid
// with more than maxLevels levels is rejected before any level is built.
func GridLevels(lower, upper, step *big.Int, maxLevels int) ([]*big.Int, error) {
	count := new(big.Int).Sub(upper, lower)
	count.Quo(count, step)
	count.Add(count, big.NewInt(1))
	if maxLevels > 0 && count.Cmp(big.NewInt(int64(maxLevels))) > 0 {
		return nil, types.NewCrossFieldError(types.ErrBotGridTooLarge)
	}

	var levels []*big.Int
	if maxLevels > 0 {
		levels = make([]*big.Int, 0, count.Int64())
	}
	for level := new(big.Int).Set(lower); level.Cmp(upper) <= 0; level = new(big.Int).Add(level, step) {
		levels = append(levels, level)
	}
	return levels, nil
}

// PairMakers returns every maker of a trading pair regardless of owner
func (s *OrderService) PairMakers(ctx context.Context, chainID uint64, base, quote string) ([]*models.Maker, error) {
	b, q, err := parsePair(base, quote)
	if err != nil {
		return nil, err
	}
	return s.store.Makers().FindByPair(ctx, chainID, b, q)
}

// UserMakers returns the caller's makers, either all of them or one pair's
func (s *OrderService) UserMakers(ctx context.Context, owner string, all bool, chainID uint64, base, quote string) ([]*models.Maker, error) {
	if all {
		return s.store.Makers().FindByOwner(ctx, owner)
	}
	b, q, err := parsePair(base, quote)
	if err != nil {
		return nil, err
	}
	return s.store.Makers().FindByPairAndOwner(ctx, chainID, b, q, owner)
}

func parsePair(base, quote string) (string, string, error) {
	if base == "" {
		return "", "", types.NewFieldError("base", types.ErrMissingField)
	}
	if quote == "" {
		return "", "", types.NewFieldError("quote", types.ErrMissingField)
	}
	var p fieldParser
	b := p.address("base", base)
	q := p.address("quote", quote)
	if p.err != nil {
		return "", "", p.err
	}
	return b.Hex(), q.Hex(), nil
}

// UserBots returns the caller's bots with the amounts still resting on their grids
func (s *OrderService) UserBots(ctx context.Context, owner string) ([]*dto.BotView, error) {
	bots, err := s.store.Bots().FindByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to load bots: %w", err)
	}
	ids := make([]uint, len(bots))
	for i, b := range bots {
		ids[i] = b.ID
	}
	makers, err := s.store.Makers().FindByBots(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load bot makers: %w", err)
	}

	byBot := make(map[uint][]*models.Maker, len(bots))
	for _, m := range makers {
		byBot[*m.BotID] = append(byBot[*m.BotID], m)
	}

	views := make([]*dto.BotView, 0, len(bots))
	for _, b := range bots {
		baseAmount, quoteAmount := BotRemaining(byBot[b.ID])
		views = append(views, &dto.BotView{
			Bot:              b,
			BaseTokenAmount:  utils.FormatDecimal(baseAmount),
			QuoteTokenAmount: utils.FormatDecimal(quoteAmount),
		})
	}
	return views, nil
}

// BotRemaining sums what a bot still offers: base over its seller makers and
// quote (remaining * price / 10^18) over its buyer makers.
func BotRemaining(makers []*models.Maker) (*big.Int, *big.Int) {
	baseAmount := new(big.Int)
	quoteAmount := new(big.Int)
	for _, m := range makers {
		remaining := m.Remaining()
		if m.IsBuyer {
			q := new(big.Int).Mul(remaining, utils.FromDecimal(m.Price))
			quoteAmount.Add(quoteAmount, q.Quo(q, utils.Scale))
		} else {
			baseAmount.Add(baseAmount, remaining)
		}
	}
	return baseAmount, quoteAmount
}

func (s *OrderService) publish(ctx context.Context, msg events.Message) {
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.WithFields(logrus.Fields{
			"group": msg.Group,
			"tag":   msg.Tag,
		}).WithError(err).Error("Event publication failed")
	}
}
