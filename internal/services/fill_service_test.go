package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"dex-backend/internal/dto"
	"dex-backend/internal/events"
	"dex-backend/internal/models"
	"dex-backend/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func admitSmallMaker(t *testing.T, f *fixture, amount string) *models.Maker {
	o := defaultMaker()
	o.amount = amount
	maker, err := f.orders.AdmitMaker(context.Background(), signMaker(t, newKey(t), o), "")
	require.NoError(t, err)
	return maker
}

func TestApplyFillsOversell(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	maker := admitSmallMaker(t, f, "10")

	_, err := f.fills.ApplyFills(ctx, fillRequest(t, leg{hash: maker.OrderHash, amount: "7", isBuyer: true}))
	require.NoError(t, err)

	_, err = f.fills.ApplyFills(ctx, fillRequest(t, leg{hash: maker.OrderHash, amount: "4", isBuyer: true}))
	assert.True(t, types.IsKind(err, types.ErrOrderPositiveViolation))

	stored := storedMaker(t, f, maker.OrderHash)
	assert.Equal(t, "7", stored.Filled.String())
	assert.Equal(t, models.MakerStatusOpen, stored.Status)
	assert.Equal(t, "7", sumTakers(t, f, maker.ID).String())
}

func TestApplyFillsToCompletion(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	maker := admitSmallMaker(t, f, "10")

	for _, amount := range []string{"3", "3", "4"} {
		_, err := f.fills.ApplyFills(ctx, fillRequest(t, leg{hash: maker.OrderHash, amount: amount, isBuyer: true}))
		require.NoError(t, err)
	}

	stored := storedMaker(t, f, maker.OrderHash)
	assert.Equal(t, "10", stored.Filled.String())
	assert.Equal(t, models.MakerStatusFilled, stored.Status)
	assert.Equal(t, stored.Filled.String(), sumTakers(t, f, maker.ID).String())

	_, err := f.store.Users().Get(ctx, testTaker)
	assert.NoError(t, err, "taker is provisioned")
}

func TestApplyFillsAtomicBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	first := admitSmallMaker(t, f, "10")
	second := admitSmallMaker(t, f, "5")

	_, err := f.fills.ApplyFills(ctx, fillRequest(t,
		leg{hash: first.OrderHash, amount: "2", isBuyer: true},
		leg{hash: second.OrderHash, amount: "6", isBuyer: true},
	))
	assert.True(t, types.IsKind(err, types.ErrOrderPositiveViolation))

	assert.Equal(t, "0", storedMaker(t, f, first.OrderHash).Filled.String())
	assert.Equal(t, "0", storedMaker(t, f, second.OrderHash).Filled.String())
	assert.Empty(t, f.events.ByTag(events.TagMakersUpdate))

	outcome, err := f.fills.ApplyFills(ctx, fillRequest(t,
		leg{hash: first.OrderHash, amount: "2", isBuyer: true},
		leg{hash: second.OrderHash, amount: "5", isBuyer: true},
	))
	require.NoError(t, err)
	assert.Len(t, outcome.Makers, 2)
	assert.Len(t, outcome.Takers, 2)

	updates := f.events.ByTag(events.TagMakersUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, events.PairGroup(1, testBase, testQuote), updates[0].Group)
	assert.Len(t, updates[0].Payload, 2)
	takers := f.events.ByTag(events.TagNewTakers)
	require.Len(t, takers, 1)
	assert.Len(t, takers[0].Payload, 2)
}

func TestApplyFillsUnknownMaker(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	maker := admitSmallMaker(t, f, "10")
	unknown := "0x" + strings.Repeat("ab", 32)

	_, err := f.fills.ApplyFills(ctx, fillRequest(t, leg{hash: unknown, amount: "1", isBuyer: true}))
	assert.Equal(t, types.NewCrossFieldError(types.ErrNoMakerFound), err)

	_, err = f.fills.ApplyFills(ctx, fillRequest(t,
		leg{hash: maker.OrderHash, amount: "1", isBuyer: true},
		leg{hash: unknown, amount: "1", isBuyer: true},
	))
	assert.True(t, types.IsKind(err, types.ErrNoMakerFound))
	assert.Equal(t, "0", storedMaker(t, f, maker.OrderHash).Filled.String())
}

func TestApplyFillsValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	maker := admitSmallMaker(t, f, "10")
	valid := fillRequest(t, leg{hash: maker.OrderHash, amount: "1", isBuyer: true})

	tests := []struct {
		name   string
		mutate func(*dto.FillRequest)
		err    error
	}{
		{"no trades", func(r *dto.FillRequest) { r.Trades = nil }, types.NewFieldError("trades", types.ErrTradeFieldFormat)},
		{"empty trades", func(r *dto.FillRequest) { r.Trades = json.RawMessage(`{}`) }, types.NewFieldError("trades", types.ErrTradeFieldFormat)},
		{"trades list", func(r *dto.FillRequest) { r.Trades = json.RawMessage(`[]`) }, types.NewFieldError("trades", types.ErrTradeFieldFormat)},
		{"bad key", func(r *dto.FillRequest) {
			r.Trades = json.RawMessage(`{"0x12":{"taker_amount":"1","fees":"0","base_fees":true,"is_buyer":true}}`)
		}, types.NewFieldError("trades", types.ErrTradeFieldFormat)},
		{"leg missing fields", func(r *dto.FillRequest) {
			r.Trades = json.RawMessage(`{"` + maker.OrderHash + `":{"taker_amount":"1"}}`)
		}, types.NewFieldError("trades", types.ErrTradeData)},
		{"zero amount", func(r *dto.FillRequest) {
			r.Trades = json.RawMessage(`{"` + maker.OrderHash + `":{"taker_amount":"0","fees":"0","base_fees":true,"is_buyer":true}}`)
		}, types.NewFieldError("trades", types.ErrTradeData)},
		{"missing taker", func(r *dto.FillRequest) { r.Taker = "" }, types.NewFieldError("taker", types.ErrMissingField)},
		{"lowercase taker", func(r *dto.FillRequest) { r.Taker = strings.ToLower(testTaker) }, types.NewFieldError("taker", types.ErrWrongChecksum)},
		{"missing block", func(r *dto.FillRequest) { r.Block = nil }, types.NewFieldError("block", types.ErrMissingField)},
		{"other chain", func(r *dto.FillRequest) { r.ChainID = uint64Ptr(5) }, types.NewFieldError("trades", types.ErrTradeData)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := *valid
			tc.mutate(&req)
			_, err := f.fills.ApplyFills(ctx, &req)
			assert.Equal(t, tc.err, err)
		})
	}
	assert.Equal(t, "0", storedMaker(t, f, maker.OrderHash).Filled.String())
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	maker := admitSmallMaker(t, f, "10")

	cancelled, err := f.fills.Cancel(ctx, &dto.CancelRequest{OrderHash: "0x" + strings.ToUpper(maker.OrderHash[2:])})
	require.NoError(t, err)
	assert.Equal(t, models.MakerStatusCancelled, cancelled.Status)

	deleted := f.events.ByTag(events.TagDelMaker)
	require.Len(t, deleted, 1)
	assert.Equal(t, maker.OrderHash, deleted[0].Payload)

	_, err = f.fills.Cancel(ctx, &dto.CancelRequest{OrderHash: maker.OrderHash})
	assert.True(t, types.IsKind(err, types.ErrMakerAlreadyCancelled))

	// no fill is accepted after cancellation
	_, err = f.fills.ApplyFills(ctx, fillRequest(t, leg{hash: maker.OrderHash, amount: "1", isBuyer: true}))
	assert.True(t, types.IsKind(err, types.ErrMakerAlreadyCancelled))
	assert.Equal(t, "0", storedMaker(t, f, maker.OrderHash).Filled.String())

	_, err = f.fills.Cancel(ctx, &dto.CancelRequest{OrderHash: "0x" + strings.Repeat("0", 64)})
	assert.True(t, types.IsKind(err, types.ErrNoMakerFound))

	_, err = f.fills.Cancel(ctx, &dto.CancelRequest{})
	assert.Equal(t, types.NewFieldError("order_hash", types.ErrMissingField), err)
}

func TestCancelFilledMaker(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	maker := admitSmallMaker(t, f, "10")

	_, err := f.fills.ApplyFills(ctx, fillRequest(t, leg{hash: maker.OrderHash, amount: "10", isBuyer: true}))
	require.NoError(t, err)

	_, err = f.fills.Cancel(ctx, &dto.CancelRequest{OrderHash: maker.OrderHash})
	assert.Equal(t, types.NewCrossFieldError(types.ErrMakerAlreadyFilled), err)

	stored := storedMaker(t, f, maker.OrderHash)
	assert.Equal(t, models.MakerStatusFilled, stored.Status)
	assert.Equal(t, stored.Amount.String(), stored.Filled.String())
	assert.Empty(t, f.events.ByTag(events.TagDelMaker))
}

func TestApplyFillsCaseVariantKeys(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	maker := admitSmallMaker(t, f, "10")
	upper := "0x" + strings.ToUpper(maker.OrderHash[2:])

	req := fillRequest(t, leg{hash: maker.OrderHash, amount: "1", isBuyer: true})
	req.Trades = json.RawMessage(`{"` + maker.OrderHash + `":{"taker_amount":"1","fees":"0","base_fees":true,"is_buyer":true},` +
		`"` + upper + `":{"taker_amount":"2","fees":"0","base_fees":true,"is_buyer":true}}`)

	_, err := f.fills.ApplyFills(ctx, req)
	assert.Equal(t, types.NewFieldError("trades", types.ErrTradeFieldFormat), err)
	assert.Equal(t, "0", storedMaker(t, f, maker.OrderHash).Filled.String())
}

func TestBotFills(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	created, err := f.orders.AdmitBot(ctx, signBot(t, newKey(t), gridBot()), "")
	require.NoError(t, err)

	seller := makerAt(t, created, "1100000000000000000")
	buyer := makerAt(t, created, "1000000000000000000")
	require.False(t, seller.IsBuyer)
	require.True(t, buyer.IsBuyer)

	// a buy into a seller level is the opposite side and earns the spread
	_, err = f.fills.ApplyFills(ctx, fillRequest(t, leg{hash: seller.OrderHash, amount: "730000000000000000", isBuyer: true}))
	require.NoError(t, err)
	bot, err := f.store.Bots().GetByID(ctx, created.Bot.ID)
	require.NoError(t, err)
	assert.Equal(t, "40150000000000000", bot.FeesEarned.String())

	// a buyer level cannot be bought into before it was sold into
	_, err = f.fills.ApplyFills(ctx, fillRequest(t, leg{hash: buyer.OrderHash, amount: "1", isBuyer: true}))
	assert.True(t, types.IsKind(err, types.ErrOrderPositiveViolation))

	_, err = f.fills.ApplyFills(ctx, fillRequest(t, leg{hash: buyer.OrderHash, amount: "1000000000000000000", isBuyer: false}))
	require.NoError(t, err)
	_, err = f.fills.ApplyFills(ctx, fillRequest(t, leg{hash: buyer.OrderHash, amount: "1000000000000000000", isBuyer: true}))
	require.NoError(t, err)

	bot, err = f.store.Bots().GetByID(ctx, created.Bot.ID)
	require.NoError(t, err)
	// 40150000000000000 + 2 * 47619047619047620
	assert.Equal(t, "135388095238095240", bot.FeesEarned.String())

	stored := storedMaker(t, f, buyer.OrderHash)
	assert.Equal(t, models.MakerStatusFilled, stored.Status)
	assert.Equal(t, "2000000000000000000", sumTakers(t, f, buyer.ID).String())
}
