package services

import (
	"math/big"

	"dex-backend/internal/utils"
)

// feeUnit is maker_fees that corresponds to 1x
var feeUnit = big.NewInt(1000)

// BotFeeDelta returns the quote-token amount credited to a bot's fees_earned
// when a taker of amount fills a grid maker at price. All divisions floor.
//
// Below 1x the fee is modelled as a price difference on the reversal: a
// seller level filled by a buy earns p*(f+1000)/1000 - p, every other accepted
// fill earns p - p*1000/(f+1000). From 1x upwards it is f per unit amount.
func BotFeeDelta(price, botPrice, makerFees, amount *big.Int, tradeIsBuyer bool) *big.Int {
	if makerFees.Cmp(feeUnit) >= 0 {
		delta := new(big.Int).Mul(makerFees, amount)
		return delta.Quo(delta, utils.Scale)
	}

	originallyBuyer := price.Cmp(botPrice) <= 0
	opposite := tradeIsBuyer != originallyBuyer
	scaled := new(big.Int).Add(makerFees, feeUnit)

	var spread *big.Int
	if !originallyBuyer && opposite {
		spread = new(big.Int).Mul(price, scaled)
		spread.Quo(spread, feeUnit)
		spread.Sub(spread, price)
	} else {
		discounted := new(big.Int).Mul(price, feeUnit)
		discounted.Quo(discounted, scaled)
		spread = new(big.Int).Sub(price, discounted)
	}

	delta := spread.Mul(spread, amount)
	return delta.Quo(delta, utils.Scale)
}
