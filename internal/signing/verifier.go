package signing

import (
	"crypto/ecdsa"
	"fmt"

	"dex-backend/internal/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// RecoverSigner recovers the address that produced an r||s||v signature over hash.
// Both v in {0,1} and the Ethereum {27,28} convention are accepted.
func RecoverSigner(hash common.Hash, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, types.NewFieldError("signature", types.ErrBadSignatureFormat)
	}
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, types.NewFieldError("signature", types.ErrBadSignatureFormat)
	}
	pub, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return common.Address{}, types.NewFieldError("signature", types.ErrBadSignatureFormat)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySigner checks that signature over hash was produced by claimed.
func VerifySigner(hash common.Hash, signature []byte, claimed common.Address) error {
	signer, err := RecoverSigner(hash, signature)
	if err != nil {
		return err
	}
	// common.Address compares raw bytes, equivalent to comparing checksum forms
	if signer != claimed {
		return types.NewFieldError("signature", types.ErrSignatureMismatch)
	}
	return nil
}

// VerifyOrder recomputes the order hash from fields, checks the owner signed it
// and, when submitted is non-nil, that the client-computed hash agrees.
func VerifyOrder(fields *OrderFields, signature []byte, submitted *common.Hash) (common.Hash, error) {
	hash, err := fields.Hash()
	if err != nil {
		return common.Hash{}, types.NewCrossFieldError(types.ErrWrongDecimal)
	}
	if err := VerifySigner(hash, signature, fields.Owner); err != nil {
		return common.Hash{}, err
	}
	if submitted != nil && *submitted != hash {
		return common.Hash{}, types.NewFieldError("order_hash", types.ErrHashMismatch)
	}
	return hash, nil
}

// Sign produces a 65-byte signature with v in {27,28}.
func Sign(hash common.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// SignOrder signs an order's message hash and returns the hash and signature.
func SignOrder(fields *OrderFields, key *ecdsa.PrivateKey) (common.Hash, []byte, error) {
	hash, err := fields.Hash()
	if err != nil {
		return common.Hash{}, nil, err
	}
	sig, err := Sign(hash, key)
	if err != nil {
		return common.Hash{}, nil, err
	}
	return hash, sig, nil
}
