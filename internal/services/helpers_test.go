package services

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"io"
	"math/big"
	"testing"

	"dex-backend/internal/dto"
	"dex-backend/internal/events"
	"dex-backend/internal/models"
	"dex-backend/internal/repository"
	"dex-backend/internal/signing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const (
	testBase   = "0x1111111111111111111111111111111111111111"
	testQuote  = "0x2222222222222222222222222222222222222222"
	testTaker  = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	testExpiry = uint64(2114380800)
)

type fixture struct {
	store   *repository.MemoryStore
	events  *events.Recorder
	orders  *OrderService
	fills   *FillService
	staking *StakingService
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newFixture() *fixture {
	store := repository.NewMemoryStore()
	recorder := &events.Recorder{}
	logger := testLogger()
	return &fixture{
		store:   store,
		events:  recorder,
		orders:  NewOrderService(store, recorder, 1000, logger),
		fills:   NewFillService(store, recorder, logger),
		staking: NewStakingService(store, recorder, logger),
	}
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func uint64Ptr(v uint64) *uint64 { return &v }
func boolPtr(v bool) *bool       { return &v }

// makerOrder describes a single maker before signing
type makerOrder struct {
	amount, price string
	base, quote   string
	isBuyer       bool
	expiry        uint64 // testExpiry when zero
}

func defaultMaker() makerOrder {
	return makerOrder{
		amount: "1730000000000000000",
		price:  "200000000000000000000",
		base:   testBase,
		quote:  testQuote,
	}
}

func signMaker(t *testing.T, key *ecdsa.PrivateKey, o makerOrder) *dto.MakerRequest {
	owner := crypto.PubkeyToAddress(key.PublicKey)
	expiry := o.expiry
	if expiry == 0 {
		expiry = testExpiry
	}
	fields := &signing.OrderFields{
		Owner:      owner,
		Amount:     bigInt(o.amount),
		Price:      bigInt(o.price),
		BaseToken:  common.HexToAddress(o.base),
		QuoteToken: common.HexToAddress(o.quote),
		Expiry:     expiry,
		IsBuyer:    o.isBuyer,
	}
	hash, sig, err := signing.SignOrder(fields, key)
	require.NoError(t, err)
	return &dto.MakerRequest{
		Address:    owner.Hex(),
		ChainID:    uint64Ptr(1),
		BaseToken:  o.base,
		QuoteToken: o.quote,
		Amount:     o.amount,
		Price:      o.price,
		IsBuyer:    boolPtr(o.isBuyer),
		Expiry:     uint64Ptr(expiry),
		OrderHash:  hash.Hex(),
		Signature:  hexutil.Encode(sig),
	}
}

// botOrder describes a grid descriptor before signing
type botOrder struct {
	lower, upper, step string
	price, amount      string
	makerFees          string
}

// gridBot is a 5..15 x 10^17 grid around 10^18
func gridBot() botOrder {
	return botOrder{
		lower:     "500000000000000000",
		upper:     "1500000000000000000",
		step:      "100000000000000000",
		price:     "1000000000000000000",
		amount:    "2000000000000000000",
		makerFees: "50",
	}
}

func botDescriptor(owner common.Address, o botOrder) *signing.OrderFields {
	return &signing.OrderFields{
		Owner:         owner,
		Amount:        bigInt(o.amount),
		Price:         bigInt(o.price),
		Step:          bigInt(o.step),
		MakerFees:     bigInt(o.makerFees),
		UpperBound:    bigInt(o.upper),
		LowerBound:    bigInt(o.lower),
		BaseToken:     common.HexToAddress(testBase),
		QuoteToken:    common.HexToAddress(testQuote),
		Expiry:        testExpiry,
		IsReplacement: true,
	}
}

func signBot(t *testing.T, key *ecdsa.PrivateKey, o botOrder) *dto.BotRequest {
	owner := crypto.PubkeyToAddress(key.PublicKey)
	fields := botDescriptor(owner, o)
	_, sig, err := signing.SignOrder(fields, key)
	require.NoError(t, err)
	return &dto.BotRequest{
		Address:    owner.Hex(),
		ChainID:    uint64Ptr(1),
		BaseToken:  testBase,
		QuoteToken: testQuote,
		Amount:     o.amount,
		Price:      o.price,
		Step:       o.step,
		MakerFees:  o.makerFees,
		UpperBound: o.upper,
		LowerBound: o.lower,
		IsBuyer:    boolPtr(false),
		Expiry:     uint64Ptr(testExpiry),
		Signature:  hexutil.Encode(sig),
	}
}

// makerAt returns the grid maker of a bot resting at price
func makerAt(t *testing.T, created *dto.BotCreated, price string) *models.Maker {
	for _, m := range created.Makers {
		if m.Price.String() == price {
			return m
		}
	}
	t.Fatalf("no grid maker at %s", price)
	return nil
}

// leg is one trade of a fill batch keyed by order hash
type leg struct {
	hash    string
	amount  string
	isBuyer bool
}

func fillRequest(t *testing.T, legs ...leg) *dto.FillRequest {
	trades := make(map[string]dto.TradeLeg, len(legs))
	for _, l := range legs {
		trades[l.hash] = dto.TradeLeg{
			TakerAmount: l.amount,
			Fees:        "1",
			BaseFees:    boolPtr(false),
			IsBuyer:     boolPtr(l.isBuyer),
		}
	}
	raw, err := json.Marshal(trades)
	require.NoError(t, err)
	return &dto.FillRequest{
		Taker:   testTaker,
		Block:   uint64Ptr(42),
		ChainID: uint64Ptr(1),
		Trades:  raw,
	}
}

func storedMaker(t *testing.T, f *fixture, hash string) *models.Maker {
	m, err := f.store.Makers().GetByHash(context.Background(), hash)
	require.NoError(t, err)
	return m
}

func sumTakers(t *testing.T, f *fixture, makerID uint) *big.Int {
	takers, err := f.store.Takers().FindByMaker(context.Background(), makerID)
	require.NoError(t, err)
	sum := new(big.Int)
	for _, tk := range takers {
		sum.Add(sum, tk.TakerAmount.BigInt())
	}
	return sum
}
