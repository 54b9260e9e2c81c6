package risk

import "github.com/web3guy0/pyrabot/types"

// ClassifyRegime buckets trend strength (ADX) into a market regime.
// Standard ADX reading: below 20 is noise, 20-25 a forming trend,
// 25-40 established, above 40 strong.
func ClassifyRegime(adx float64) types.Regime {
	switch {
	case adx < 20:
		return types.RegimeChoppy
	case adx < 25:
		return types.RegimeWeak
	case adx < 40:
		return types.RegimeModerate
	default:
		return types.RegimeStrong
	}
}
