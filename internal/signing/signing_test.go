package signing

import (
	"encoding/json"
	"math/big"
	"strings"
	"testing"
	"time"

	"dex-backend/internal/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	baseToken  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	quoteToken = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func sampleOrder(owner common.Address) *OrderFields {
	return &OrderFields{
		Owner:      owner,
		Amount:     big.NewInt(1000),
		Price:      new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil),
		BaseToken:  baseToken,
		QuoteToken: quoteToken,
		Expiry:     2114380800,
		IsBuyer:    true,
	}
}

func TestPreimageLayout(t *testing.T) {
	owner := common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	fields := sampleOrder(owner)

	preimage, err := fields.Preimage()
	require.NoError(t, err)
	require.Len(t, preimage, PreimageLength)

	assert.Equal(t, owner.Bytes(), preimage[:20])
	// amount is the first word, right aligned
	assert.Equal(t, common.LeftPadBytes(big.NewInt(1000).Bytes(), 32), preimage[20:52])
	// step..lower bound are zero words for a single maker
	assert.Equal(t, make([]byte, 4*32), preimage[84:212])
	assert.Equal(t, baseToken.Bytes(), preimage[212:232])
	assert.Equal(t, quoteToken.Bytes(), preimage[232:252])
	assert.Equal(t, []byte{0, 0, 0, 0, 0x7e, 0x06, 0xe4, 0x00}, preimage[252:260])
	assert.Equal(t, byte(0), preimage[260], "buyer side byte")
	assert.Equal(t, byte(0), preimage[261], "replacement byte")

	fields.IsBuyer = false
	fields.IsReplacement = true
	preimage, err = fields.Preimage()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 1}, preimage[260:])
}

func TestPreimageOverflow(t *testing.T) {
	fields := sampleOrder(common.Address{})
	fields.Amount = new(big.Int).Lsh(big.NewInt(1), 256)
	_, err := fields.Preimage()
	assert.ErrorIs(t, err, ErrWordOverflow)
}

func TestSignAndVerifyOrder(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	owner := crypto.PubkeyToAddress(key.PublicKey)
	fields := sampleOrder(owner)

	hash, sig, err := SignOrder(fields, key)
	require.NoError(t, err)
	assert.Contains(t, []byte{27, 28}, sig[64])

	got, err := VerifyOrder(fields, sig, &hash)
	require.NoError(t, err)
	assert.Equal(t, hash, got)

	// v in {0,1} is accepted too
	raw := append([]byte(nil), sig...)
	raw[64] -= 27
	_, err = VerifyOrder(fields, raw, nil)
	assert.NoError(t, err)

	wrongHash := common.HexToHash("0x01")
	_, err = VerifyOrder(fields, sig, &wrongHash)
	assert.True(t, types.IsKind(err, types.ErrHashMismatch))

	tampered := *fields
	tampered.Amount = big.NewInt(1001)
	_, err = VerifyOrder(&tampered, sig, nil)
	assert.True(t, types.IsKind(err, types.ErrSignatureMismatch))
}

func TestRecoverSignerBadFormat(t *testing.T) {
	_, err := RecoverSigner(common.Hash{}, make([]byte, 64))
	assert.True(t, types.IsKind(err, types.ErrBadSignatureFormat))

	sig := make([]byte, 65)
	sig[64] = 30
	_, err = RecoverSigner(common.HexToHash("0x01"), sig)
	assert.True(t, types.IsKind(err, types.ErrBadSignatureFormat))
}

func TestAtLevel(t *testing.T) {
	fields := sampleOrder(common.Address{})
	fields.Price = big.NewInt(50)

	below := fields.AtLevel(big.NewInt(40), fields.Price)
	at := fields.AtLevel(big.NewInt(50), fields.Price)
	above := fields.AtLevel(big.NewInt(60), fields.Price)

	assert.True(t, below.IsBuyer)
	assert.True(t, at.IsBuyer)
	assert.False(t, above.IsBuyer)
	assert.True(t, above.IsReplacement)
	assert.Equal(t, int64(50), fields.Price.Int64(), "descriptor is not mutated")

	h1, err := below.Hash()
	require.NoError(t, err)
	h2, err := above.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestCanonicalJSON(t *testing.T) {
	var body map[string]interface{}
	dec := json.NewDecoder(strings.NewReader(`{ "b": 1.50, "a": {"z": "x<y", "c": [1, 2]} }`))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&body))

	out, err := CanonicalJSON(body)
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"c":[1,2],"z":"x<y"},"b":1.50}`, string(out))
}

func TestHMAC(t *testing.T) {
	secret := []byte("s3cret")
	payload := []byte(`{"a":1}`)

	mac := ComputeHMAC(secret, payload)
	assert.Len(t, mac, 64)
	assert.True(t, VerifyHMAC(secret, payload, mac))
	assert.True(t, VerifyHMAC(secret, payload, strings.ToUpper(mac)))
	assert.False(t, VerifyHMAC([]byte("other"), payload, mac))
	assert.False(t, VerifyHMAC(secret, []byte(`{"a":2}`), mac))
}

func TestTimestampWithin(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	window := 10 * time.Second

	assert.True(t, TimestampWithin(now, now.UnixMilli(), window))
	assert.True(t, TimestampWithin(now, now.UnixMilli()-10_000, window))
	assert.True(t, TimestampWithin(now, now.UnixMilli()+10_000, window))
	assert.False(t, TimestampWithin(now, now.UnixMilli()-10_001, window))
}
