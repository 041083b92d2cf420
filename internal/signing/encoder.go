// Package signing reproduces the byte layouts the settlement contract hashes and
// recovers the signers of maker, bot and account messages.
package signing

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// ErrWordOverflow is returned when an integer field does not fit in 256 bits.
var ErrWordOverflow = errors.New("value does not fit in a 256-bit word")

// OrderFields is the signed content of a maker. Single makers leave the grid
// fields nil (encoded as zero) and IsReplacement false.
type OrderFields struct {
	Owner         common.Address
	Amount        *big.Int
	Price         *big.Int
	Step          *big.Int
	MakerFees     *big.Int
	UpperBound    *big.Int
	LowerBound    *big.Int
	BaseToken     common.Address
	QuoteToken    common.Address
	Expiry        uint64
	IsBuyer       bool
	IsReplacement bool
}

// PreimageLength is the fixed size of an order preimage.
const PreimageLength = 20 + 6*32 + 20 + 20 + 8 + 1 + 1

// Preimage concatenates the width-fixed big-endian fields in contract order.
func (f *OrderFields) Preimage() ([]byte, error) {
	buf := make([]byte, 0, PreimageLength)
	buf = append(buf, f.Owner.Bytes()...)
	for _, word := range []*big.Int{f.Amount, f.Price, f.Step, f.MakerFees, f.UpperBound, f.LowerBound} {
		w, err := word256(word)
		if err != nil {
			return nil, err
		}
		buf = append(buf, w...)
	}
	buf = append(buf, f.BaseToken.Bytes()...)
	buf = append(buf, f.QuoteToken.Bytes()...)
	buf = binary.BigEndian.AppendUint64(buf, f.Expiry)
	buf = append(buf, sideByte(f.IsBuyer), boolByte(f.IsReplacement))
	return buf, nil
}

// Hash returns the client-visible order hash of the fields.
func (f *OrderFields) Hash() (common.Hash, error) {
	preimage, err := f.Preimage()
	if err != nil {
		return common.Hash{}, err
	}
	return MessageHash(preimage), nil
}

// AtLevel returns a copy of a bot descriptor for one grid price. The side is
// buyer iff the level is at or below the reference price.
func (f *OrderFields) AtLevel(level, reference *big.Int) *OrderFields {
	out := *f
	out.Price = level
	out.IsBuyer = level.Cmp(reference) <= 0
	out.IsReplacement = true
	return &out
}

// Keccak256 hashes data with the legacy Keccak-256 used by the EVM.
func Keccak256(data ...[]byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// MessageHash is keccak256("\x19Ethereum Signed Message:\n32" || keccak256(preimage)).
func MessageHash(preimage []byte) common.Hash {
	inner := Keccak256(preimage)
	return common.BytesToHash(accounts.TextHash(inner.Bytes()))
}

// AccountPreimage is owner (20) || timestamp (8, unix seconds).
func AccountPreimage(owner common.Address, timestamp uint64) []byte {
	buf := make([]byte, 0, 28)
	buf = append(buf, owner.Bytes()...)
	return binary.BigEndian.AppendUint64(buf, timestamp)
}

func word256(n *big.Int) ([]byte, error) {
	if n == nil {
		return make([]byte, 32), nil
	}
	if n.Sign() < 0 || n.BitLen() > 256 {
		return nil, ErrWordOverflow
	}
	return common.LeftPadBytes(n.Bytes(), 32), nil
}

func sideByte(isBuyer bool) byte {
	if isBuyer {
		return 0
	}
	return 1
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
