package services

import (
	"context"
	"math"
	"math/big"
	"testing"
	"time"

	"dex-backend/internal/events"
	"dex-backend/internal/models"
	"dex-backend/internal/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmitMaker(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	key := newKey(t)
	req := signMaker(t, key, defaultMaker())

	maker, err := f.orders.AdmitMaker(ctx, req, req.Address)
	require.NoError(t, err)
	assert.Equal(t, models.MakerStatusOpen, maker.Status)
	assert.Equal(t, "0", maker.Filled.String())
	assert.Equal(t, "1730000000000000000", maker.Amount.String())
	assert.Equal(t, "200000000000000000000", maker.Price.String())
	assert.False(t, maker.IsBuyer)
	assert.Equal(t, req.OrderHash, maker.OrderHash)

	stored := storedMaker(t, f, req.OrderHash)
	assert.Equal(t, maker.ID, stored.ID)

	_, err = f.store.Users().Get(ctx, req.Address)
	assert.NoError(t, err, "owner is provisioned")

	published := f.events.ByTag(events.TagNewMaker)
	require.Len(t, published, 1)
	assert.Equal(t, events.PairGroup(1, testBase, testQuote), published[0].Group)
}

func TestAdmitMakerHashMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	key := newKey(t)
	req := signMaker(t, key, defaultMaker())

	last := req.OrderHash[len(req.OrderHash)-1]
	nibble := byte('0')
	if last == '0' {
		nibble = '1'
	}
	req.OrderHash = req.OrderHash[:len(req.OrderHash)-1] + string(nibble)

	_, err := f.orders.AdmitMaker(ctx, req, "")
	assert.True(t, types.IsKind(err, types.ErrHashMismatch))

	makers, err := f.store.Makers().FindByOwner(ctx, req.Address)
	require.NoError(t, err)
	assert.Empty(t, makers)
	assert.Empty(t, f.events.Messages())
}

func TestAdmitOutOfRangeExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	// a signed 8-byte expiry above the column range is rejected, not wrapped
	o := defaultMaker()
	o.expiry = math.MaxUint64
	_, err := f.orders.AdmitMaker(ctx, signMaker(t, newKey(t), o), "")
	assert.Equal(t, types.NewFieldError("expiry", types.ErrWrongType), err)

	bot := signBot(t, newKey(t), gridBot())
	bot.Expiry = uint64Ptr(math.MaxInt64 + 1)
	_, err = f.orders.AdmitBot(ctx, bot, "")
	assert.Equal(t, types.NewFieldError("expiry", types.ErrWrongType), err)

	o.expiry = math.MaxInt64
	maker, err := f.orders.AdmitMaker(ctx, signMaker(t, newKey(t), o), "")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), maker.Expiry)

	sweeper := NewExpirySweeper(f.store, f.events, time.Hour, testLogger())
	assert.Equal(t, 0, sweeper.Sweep(ctx))
	storedMaker(t, f, maker.OrderHash)
	assert.Empty(t, f.events.ByTag(events.TagDelMaker))
}

func TestAdmitMakerDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	req := signMaker(t, newKey(t), defaultMaker())

	_, err := f.orders.AdmitMaker(ctx, req, "")
	require.NoError(t, err)
	_, err = f.orders.AdmitMaker(ctx, req, "")
	assert.True(t, types.IsKind(err, types.ErrOrderExists))
}

func TestAdmitMakerRejections(t *testing.T) {
	ctx := context.Background()
	key := newKey(t)
	other := newKey(t)

	t.Run("missing field", func(t *testing.T) {
		req := signMaker(t, key, defaultMaker())
		req.Price = ""
		_, err := newFixture().orders.AdmitMaker(ctx, req, "")
		assert.Equal(t, types.NewFieldError("price", types.ErrMissingField), err)
	})

	t.Run("float decimal", func(t *testing.T) {
		req := signMaker(t, key, defaultMaker())
		req.Amount = "1.5"
		_, err := newFixture().orders.AdmitMaker(ctx, req, "")
		assert.Equal(t, types.NewFieldError("amount", types.ErrFloatDecimal), err)
	})

	t.Run("zero amount", func(t *testing.T) {
		o := defaultMaker()
		o.amount = "0"
		req := signMaker(t, key, o)
		_, err := newFixture().orders.AdmitMaker(ctx, req, "")
		assert.Equal(t, types.NewFieldError("amount", types.ErrZeroDecimal), err)
	})

	t.Run("same base and quote", func(t *testing.T) {
		o := defaultMaker()
		o.quote = o.base
		req := signMaker(t, key, o)
		_, err := newFixture().orders.AdmitMaker(ctx, req, "")
		assert.True(t, types.IsKind(err, types.ErrSameBaseQuote))
	})

	t.Run("signed by someone else", func(t *testing.T) {
		req := signMaker(t, other, defaultMaker())
		req.Address = crypto.PubkeyToAddress(key.PublicKey).Hex()
		_, err := newFixture().orders.AdmitMaker(ctx, req, "")
		assert.True(t, types.IsKind(err, types.ErrSignatureMismatch))
	})

	t.Run("foreign session", func(t *testing.T) {
		req := signMaker(t, key, defaultMaker())
		session := crypto.PubkeyToAddress(other.PublicKey).Hex()
		_, err := newFixture().orders.AdmitMaker(ctx, req, session)
		assert.True(t, types.IsKind(err, types.ErrSessionAuthFail))
	})

	t.Run("zero chain id", func(t *testing.T) {
		req := signMaker(t, key, defaultMaker())
		req.ChainID = uint64Ptr(0)
		_, err := newFixture().orders.AdmitMaker(ctx, req, "")
		assert.True(t, types.IsKind(err, types.ErrWrongChainID))
	})
}

func TestAdmitBotExpansion(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	key := newKey(t)
	req := signBot(t, key, gridBot())

	created, err := f.orders.AdmitBot(ctx, req, req.Address)
	require.NoError(t, err)
	require.Len(t, created.Makers, 11)

	scale17 := new(big.Int).Exp(big.NewInt(10), big.NewInt(17), nil)
	reference := bigInt("1000000000000000000")
	buyers := 0
	seen := make(map[string]bool)
	for i, m := range created.Makers {
		want := new(big.Int).Mul(big.NewInt(int64(5+i)), scale17)
		assert.Equal(t, want.String(), m.Price.String())
		assert.Equal(t, m.Price.BigInt().Cmp(reference) <= 0, m.IsBuyer)
		if m.IsBuyer {
			buyers++
		}
		require.NotNil(t, m.BotID)
		assert.Equal(t, created.Bot.ID, *m.BotID)
		assert.Equal(t, req.Signature, m.Signature)
		assert.Equal(t, "2000000000000000000", m.Amount.String())
		assert.False(t, seen[m.OrderHash], "grid hashes are unique")
		seen[m.OrderHash] = true
	}
	assert.Equal(t, 6, buyers)

	// each level hash is the descriptor re-hashed at that price
	owner := crypto.PubkeyToAddress(key.PublicKey)
	level := makerAt(t, created, "1200000000000000000")
	descriptor := botDescriptor(owner, gridBot())
	hash, err := descriptor.AtLevel(bigInt("1200000000000000000"), reference).Hash()
	require.NoError(t, err)
	assert.Equal(t, hash.Hex(), level.OrderHash)

	published := f.events.ByTag(events.TagNewBot)
	require.Len(t, published, 1)
	assert.Same(t, created, published[0].Payload)

	views, err := f.orders.UserBots(ctx, owner.Hex())
	require.NoError(t, err)
	require.Len(t, views, 1)
	// five sellers of 2*10^18 each
	assert.Equal(t, "10000000000000000000", views[0].BaseTokenAmount)
	// 2*10^18 * (0.5+0.6+0.7+0.8+0.9+1.0)
	assert.Equal(t, "9000000000000000000", views[0].QuoteTokenAmount)
}

func TestAdmitBotDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	req := signBot(t, newKey(t), gridBot())

	_, err := f.orders.AdmitBot(ctx, req, "")
	require.NoError(t, err)

	_, err = f.orders.AdmitBot(ctx, req, "")
	assert.True(t, types.IsKind(err, types.ErrBotExistingOrder))

	makers, err := f.store.Makers().FindByOwner(ctx, req.Address)
	require.NoError(t, err)
	assert.Len(t, makers, 11)
	bots, err := f.store.Bots().FindByOwner(ctx, req.Address)
	require.NoError(t, err)
	assert.Len(t, bots, 1)
}

func TestAdmitBotBounds(t *testing.T) {
	ctx := context.Background()
	key := newKey(t)

	tests := []struct {
		name   string
		mutate func(*botOrder)
		kind   types.ErrorKind
	}{
		{"lower equals upper", func(o *botOrder) { o.lower = o.upper }, types.ErrLowerBoundGteUpperBound},
		{"price above upper", func(o *botOrder) { o.price = "1600000000000000000" }, types.ErrPriceGtUpperBound},
		{"price below lower", func(o *botOrder) { o.price = "400000000000000000" }, types.ErrLowerBoundGtPrice},
		{"zero step", func(o *botOrder) { o.step = "0" }, types.ErrZeroDecimal},
		{"zero fees", func(o *botOrder) { o.makerFees = "0" }, types.ErrZeroDecimal},
		{"grid too large", func(o *botOrder) { o.step = "1" }, types.ErrBotGridTooLarge},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := gridBot()
			tc.mutate(&o)
			f := newFixture()
			_, err := f.orders.AdmitBot(ctx, signBot(t, key, o), "")
			assert.Equal(t, tc.kind, types.KindOf(err))
			assert.Empty(t, f.events.Messages())
		})
	}
}

func TestAdmitBotSubmittedHash(t *testing.T) {
	ctx := context.Background()
	key := newKey(t)
	req := signBot(t, key, gridBot())

	hash, err := botDescriptor(crypto.PubkeyToAddress(key.PublicKey), gridBot()).Hash()
	require.NoError(t, err)
	req.OrderHash = hash.Hex()
	_, err = newFixture().orders.AdmitBot(ctx, req, "")
	require.NoError(t, err)

	req.OrderHash = common.Hash{}.Hex()
	_, err = newFixture().orders.AdmitBot(ctx, req, "")
	assert.True(t, types.IsKind(err, types.ErrHashMismatch))
}

func TestGridLevels(t *testing.T) {
	levels, err := GridLevels(big.NewInt(1), big.NewInt(10), big.NewInt(4), 10)
	require.NoError(t, err)
	var got []int64
	for _, l := range levels {
		got = append(got, l.Int64())
	}
	assert.Equal(t, []int64{1, 5, 9}, got)

	levels, err = GridLevels(big.NewInt(0), big.NewInt(10), big.NewInt(5), 3)
	require.NoError(t, err)
	assert.Len(t, levels, 3)

	_, err = GridLevels(big.NewInt(0), big.NewInt(10), big.NewInt(1), 10)
	assert.True(t, types.IsKind(err, types.ErrBotGridTooLarge))
}

func TestUserMakers(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	key := newKey(t)
	req := signMaker(t, key, defaultMaker())
	_, err := f.orders.AdmitMaker(ctx, req, "")
	require.NoError(t, err)
	_, err = f.orders.AdmitMaker(ctx, signMaker(t, newKey(t), defaultMaker()), "")
	require.NoError(t, err)

	pair, err := f.orders.PairMakers(ctx, 1, testBase, testQuote)
	require.NoError(t, err)
	assert.Len(t, pair, 2)

	mine, err := f.orders.UserMakers(ctx, req.Address, false, 1, testBase, testQuote)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	all, err := f.orders.UserMakers(ctx, req.Address, true, 0, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = f.orders.UserMakers(ctx, req.Address, false, 1, "", testQuote)
	assert.Equal(t, types.NewFieldError("base", types.ErrMissingField), err)
}
