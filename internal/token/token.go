package token

import (
	"math"

	"github.com/gagliardetto/solana-go"
)

// Meta describes one supported token. The set is fixed for a deployment:
// all amounts cross the wire in base units and are converted back for
// display using the decimals recorded here.
type Meta struct {
	Symbol   string
	Mint     solana.PublicKey
	Decimals uint8
}

var (
	SOL = Meta{
		Symbol:   "SOL",
		Mint:     solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112"),
		Decimals: 9,
	}
	USDC = Meta{
		Symbol:   "USDC",
		Mint:     solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
		Decimals: 6,
	}
)

// Supported lists the tokens this deployment trades, in (A, B) pool order.
var Supported = []Meta{SOL, USDC}

// BySymbol looks up a supported token by its symbol.
func BySymbol(symbol string) (Meta, bool) {
	for _, m := range Supported {
		if m.Symbol == symbol {
			return m, true
		}
	}
	return Meta{}, false
}

// ByMint looks up a supported token by its mint address.
func ByMint(mint solana.PublicKey) (Meta, bool) {
	for _, m := range Supported {
		if m.Mint.Equals(mint) {
			return m, true
		}
	}
	return Meta{}, false
}

// ToBaseUnits converts a human-readable amount to base units.
// Negative inputs clamp to zero.
func (m Meta) ToBaseUnits(amount float64) uint64 {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0
	}
	return uint64(math.Round(amount * math.Pow10(int(m.Decimals))))
}

// FromBaseUnits converts a base-unit amount to a human-readable value.
func (m Meta) FromBaseUnits(raw uint64) float64 {
	return float64(raw) / math.Pow10(int(m.Decimals))
}
