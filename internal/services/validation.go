package services

import (
	"math"
	"math/big"

	"dex-backend/internal/metrics"
	"dex-backend/internal/types"
	"dex-backend/internal/utils"

	"github.com/ethereum/go-ethereum/common"
)

// presence is one required field and whether the request carried it
type presence struct {
	field   string
	present bool
}

// requireFields returns MISSING_FIELD for the first absent field, in order
func requireFields(fields ...presence) error {
	for _, f := range fields {
		if !f.present {
			return types.NewFieldError(f.field, types.ErrMissingField)
		}
	}
	return nil
}

// fieldParser parses request fields in order and keeps only the first failure
type fieldParser struct {
	err error
}

func (p *fieldParser) address(field, value string) common.Address {
	if p.err != nil {
		return common.Address{}
	}
	addr, err := utils.ParseAddress(field, value)
	p.err = err
	return addr
}

func (p *fieldParser) checksumAddress(field, value string) common.Address {
	if p.err != nil {
		return common.Address{}
	}
	addr, err := utils.ParseChecksumAddress(field, value)
	p.err = err
	return addr
}

func (p *fieldParser) decimal(field, value string) *big.Int {
	if p.err != nil {
		return nil
	}
	n, err := utils.ParseDecimal(field, value)
	p.err = err
	return n
}

func (p *fieldParser) signature(field, value string) []byte {
	if p.err != nil {
		return nil
	}
	sig, err := utils.ParseSignature(field, value)
	p.err = err
	return sig
}

func (p *fieldParser) hash(field, value string) common.Hash {
	if p.err != nil {
		return common.Hash{}
	}
	h, err := utils.ParseHash(field, value)
	p.err = err
	return h
}

func (p *fieldParser) chainID(field string, value *uint64) uint64 {
	if p.err != nil {
		return 0
	}
	if value == nil {
		p.err = types.NewFieldError(field, types.ErrMissingField)
		return 0
	}
	if *value == 0 {
		p.err = types.NewFieldError(field, types.ErrWrongChainID)
		return 0
	}
	return *value
}

// expiry accepts unix seconds that fit the signed expiry column
func (p *fieldParser) expiry(field string, value *uint64) uint64 {
	if p.err != nil {
		return 0
	}
	if *value > math.MaxInt64 {
		p.err = types.NewFieldError(field, types.ErrWrongType)
		return 0
	}
	return *value
}

// positive rejects zero on an already parsed decimal
func positive(field string, n *big.Int) error {
	if n.Sign() == 0 {
		return types.NewFieldError(field, types.ErrZeroDecimal)
	}
	return nil
}

// rejected records a rejection metric and passes the error through
func rejected(err error) error {
	if kind := types.KindOf(err); kind != "" {
		metrics.AdmissionRejections.WithLabelValues(string(kind)).Inc()
	}
	return err
}
