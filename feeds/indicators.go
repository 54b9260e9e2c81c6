package feeds

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/pyrabot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// INDICATORS - Snapshot computation over a rolling 1m candle window
// ═══════════════════════════════════════════════════════════════════════════════

// Candle is one 1-minute OHLCV bar.
type Candle struct {
	OpenTime time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
}

const (
	rsiPeriod      = 14
	adxPeriod      = 14
	macdFast       = 12
	macdSlow       = 26
	macdSignal     = 9
	volumeLookback = 20
	rangeLookback  = 120 // recent high/low window, minutes
	longEMAPeriod  = 200
)

// minCandles is the minimum window to produce a full snapshot: the 4h
// momentum leg needs 240 minutes of history.
const minCandles = 241

// buildSnapshot derives the indicator snapshot from the candle window.
// The window must hold at least minCandles bars, oldest first.
func buildSnapshot(candles []Candle) (types.IndicatorSnapshot, bool) {
	if len(candles) < minCandles {
		return types.IndicatorSnapshot{}, false
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	vols := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close.InexactFloat64()
		highs[i] = c.High.InexactFloat64()
		lows[i] = c.Low.InexactFloat64()
		vols[i] = c.Volume.InexactFloat64()
	}

	macdLine, macdSig, macdHist := macd(closes)

	snap := types.IndicatorSnapshot{
		RSI:         rsi(closes, rsiPeriod),
		MACD:        types.MACD{Line: macdLine, Signal: macdSig, Histogram: macdHist},
		ADX:         adx(highs, lows, closes, adxPeriod),
		VolumeRatio: volumeRatio(vols, volumeLookback),
		Momentum1h:  momentum(closes, 60),
		Momentum4h:  momentum(closes, 240),
	}

	// Price-denominated fields stay decimal.
	hi, lo := candles[len(candles)-1].High, candles[len(candles)-1].Low
	start := len(candles) - rangeLookback
	if start < 0 {
		start = 0
	}
	for _, c := range candles[start:] {
		if c.High.GreaterThan(hi) {
			hi = c.High
		}
		if c.Low.LessThan(lo) {
			lo = c.Low
		}
	}
	snap.RecentHigh = hi
	snap.RecentLow = lo
	snap.LongEMA = decimal.NewFromFloat(ema(closes, longEMAPeriod))

	return snap, true
}

// momentum is the % change of close over the last n bars.
func momentum(closes []float64, n int) float64 {
	if len(closes) <= n {
		return 0
	}
	prev := closes[len(closes)-1-n]
	if prev == 0 {
		return 0
	}
	return (closes[len(closes)-1] - prev) / prev * 100
}

// volumeRatio compares the last bar's volume to the rolling average of
// the n bars before it.
func volumeRatio(vols []float64, n int) float64 {
	if len(vols) < n+1 {
		return 1
	}
	sum := 0.0
	for _, v := range vols[len(vols)-1-n : len(vols)-1] {
		sum += v
	}
	avg := sum / float64(n)
	if avg == 0 {
		return 1
	}
	return vols[len(vols)-1] / avg
}

// rsi computes Wilder's RSI over the last period bars.
func rsi(closes []float64, period int) float64 {
	if len(closes) <= period {
		return 50
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		diff := closes[i] - closes[i-1]
		if diff > 0 {
			avgGain += diff
		} else {
			avgLoss -= diff
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		diff := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if diff > 0 {
			gain = diff
		} else {
			loss = -diff
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ema computes the exponential moving average over the full series with
// the given period.
func ema(values []float64, period int) float64 {
	if len(values) == 0 {
		return 0
	}
	if len(values) < period {
		period = len(values)
	}

	// Seed with the SMA of the first period.
	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}
	e := seed / float64(period)

	k := 2.0 / float64(period+1)
	for _, v := range values[period:] {
		e = v*k + e*(1-k)
	}
	return e
}

// macd returns line, signal and histogram using 12/26/9.
func macd(closes []float64) (line, signal, hist float64) {
	if len(closes) < macdSlow+macdSignal {
		return 0, 0, 0
	}

	// Build the MACD line series over the tail so the signal EMA has
	// real history to smooth.
	tail := macdSlow + macdSignal*4
	if tail > len(closes) {
		tail = len(closes)
	}
	series := make([]float64, 0, tail-macdSlow+1)
	for i := len(closes) - tail + macdSlow; i <= len(closes); i++ {
		window := closes[:i]
		series = append(series, ema(window, macdFast)-ema(window, macdSlow))
	}

	line = series[len(series)-1]
	signal = ema(series, macdSignal)
	hist = line - signal
	return line, signal, hist
}

// adx computes the Average Directional Index with Wilder smoothing.
func adx(highs, lows, closes []float64, period int) float64 {
	if len(closes) < period*2+1 {
		return 0
	}

	var smTR, smPlusDM, smMinusDM float64
	var dxs []float64

	for i := 1; i < len(closes); i++ {
		upMove := highs[i] - highs[i-1]
		downMove := lows[i-1] - lows[i]

		plusDM, minusDM := 0.0, 0.0
		if upMove > downMove && upMove > 0 {
			plusDM = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM = downMove
		}

		tr := highs[i] - lows[i]
		if hc := abs(highs[i] - closes[i-1]); hc > tr {
			tr = hc
		}
		if lc := abs(lows[i] - closes[i-1]); lc > tr {
			tr = lc
		}

		if i <= period {
			smTR += tr
			smPlusDM += plusDM
			smMinusDM += minusDM
			if i < period {
				continue
			}
		} else {
			smTR = smTR - smTR/float64(period) + tr
			smPlusDM = smPlusDM - smPlusDM/float64(period) + plusDM
			smMinusDM = smMinusDM - smMinusDM/float64(period) + minusDM
		}

		if smTR == 0 {
			continue
		}
		plusDI := smPlusDM / smTR * 100
		minusDI := smMinusDM / smTR * 100
		if plusDI+minusDI == 0 {
			continue
		}
		dxs = append(dxs, abs(plusDI-minusDI)/(plusDI+minusDI)*100)
	}

	if len(dxs) < period {
		return 0
	}

	// ADX = Wilder-smoothed DX.
	a := 0.0
	for _, dx := range dxs[:period] {
		a += dx
	}
	a /= float64(period)
	for _, dx := range dxs[period:] {
		a = (a*float64(period-1) + dx) / float64(period)
	}
	return a
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
