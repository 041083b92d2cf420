package main

import (
	"crypto/ecdsa"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"strings"

	"dex-backend/internal/dto"
	"dex-backend/internal/signing"
	"dex-backend/internal/utils"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

func main() {
	var (
		keyHex     = flag.String("key", "", "hex private key (random when empty)")
		chainID    = flag.Uint64("chain-id", 1, "chain id")
		base       = flag.String("base", "", "base token address")
		quote      = flag.String("quote", "", "quote token address")
		amount     = flag.String("amount", "1000000000000000000", "amount, base-10 integer")
		price      = flag.String("price", "1000000000000000000", "price scaled by 10^18")
		isBuyer    = flag.Bool("buyer", false, "buy side")
		expiry     = flag.Uint64("expiry", 2114380800, "unix expiry")
		bot        = flag.Bool("bot", false, "sign a bot descriptor instead of a single maker")
		step       = flag.String("step", "", "bot grid step")
		makerFees  = flag.String("maker-fees", "", "bot maker fees (1000 = 1x)")
		upperBound = flag.String("upper", "", "bot upper bound")
		lowerBound = flag.String("lower", "", "bot lower bound")
	)
	flag.Parse()

	key, err := loadKey(*keyHex)
	if err != nil {
		log.Fatalf("Invalid key: %v", err)
	}
	owner := crypto.PubkeyToAddress(key.PublicKey)

	baseAddr, err := utils.ParseAddress("base", *base)
	if err != nil {
		log.Fatalf("Invalid base token: %v", err)
	}
	quoteAddr, err := utils.ParseAddress("quote", *quote)
	if err != nil {
		log.Fatalf("Invalid quote token: %v", err)
	}

	fields := &signing.OrderFields{
		Owner:      owner,
		Amount:     mustDecimal("amount", *amount),
		Price:      mustDecimal("price", *price),
		BaseToken:  baseAddr,
		QuoteToken: quoteAddr,
		Expiry:     *expiry,
		IsBuyer:    *isBuyer,
	}
	if *bot {
		fields.Step = mustDecimal("step", *step)
		fields.MakerFees = mustDecimal("maker-fees", *makerFees)
		fields.UpperBound = mustDecimal("upper", *upperBound)
		fields.LowerBound = mustDecimal("lower", *lowerBound)
		fields.IsReplacement = true
	}

	hash, sig, err := signing.SignOrder(fields, key)
	if err != nil {
		log.Fatalf("Failed to sign: %v", err)
	}

	var body interface{}
	if *bot {
		body = dto.BotRequest{
			Address:    owner.Hex(),
			ChainID:    chainID,
			BaseToken:  baseAddr.Hex(),
			QuoteToken: quoteAddr.Hex(),
			Amount:     *amount,
			Price:      *price,
			Step:       *step,
			MakerFees:  *makerFees,
			UpperBound: *upperBound,
			LowerBound: *lowerBound,
			IsBuyer:    isBuyer,
			Expiry:     expiry,
			OrderHash:  hash.Hex(),
			Signature:  hexutil.Encode(sig),
		}
	} else {
		body = dto.MakerRequest{
			Address:    owner.Hex(),
			ChainID:    chainID,
			BaseToken:  baseAddr.Hex(),
			QuoteToken: quoteAddr.Hex(),
			Amount:     *amount,
			Price:      *price,
			IsBuyer:    isBuyer,
			Expiry:     expiry,
			OrderHash:  hash.Hex(),
			Signature:  hexutil.Encode(sig),
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(body); err != nil {
		log.Fatalf("Failed to encode: %v", err)
	}
	if *keyHex == "" {
		fmt.Fprintf(os.Stderr, "generated key: %s\n", hexutil.Encode(crypto.FromECDSA(key)))
	}
}

func loadKey(keyHex string) (*ecdsa.PrivateKey, error) {
	if keyHex == "" {
		return crypto.GenerateKey()
	}
	return crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
}

func mustDecimal(field, value string) *big.Int {
	n, err := utils.ParseDecimal(field, value)
	if err != nil {
		log.Fatalf("Invalid %s %q: %v", field, value, err)
	}
	return n
}
