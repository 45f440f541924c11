package feed

import (
	"errors"
	"math"

	"github.com/quantframe/decision-engine/pkg/types"
)

// Wilder-smoothed indicator math for the replay feed. A live deployment
// reads these values from the host platform; the replay feed computes them
// from raw bars so historical runs need no host at all.

var errInsufficientData = errors.New("feed: insufficient data for indicator calculation")

func trueRange(current, previous types.OHLCV) float64 {
	return math.Max(current.High-current.Low,
		math.Max(math.Abs(current.High-previous.Close),
			math.Abs(current.Low-previous.Close)))
}

// wilderATR returns the ATR over the chronological series, smoothed with
// Wilder's method.
func wilderATR(bars []types.OHLCV, period int) (float64, error) {
	if len(bars) < period+1 {
		return 0, errInsufficientData
	}

	// Seed with the simple average of the first period true ranges.
	var sum float64
	for i := 1; i <= period; i++ {
		sum += trueRange(bars[i], bars[i-1])
	}
	atr := sum / float64(period)

	for i := period + 1; i < len(bars); i++ {
		tr := trueRange(bars[i], bars[i-1])
		atr = (atr*float64(period-1) + tr) / float64(period)
	}
	return atr, nil
}

// wilderATRSeries returns the ATR value at every bar from index period
// onward; used for the rolling ATR mean.
func wilderATRSeries(bars []types.OHLCV, period int) ([]float64, error) {
	if len(bars) < period+1 {
		return nil, errInsufficientData
	}

	var sum float64
	for i := 1; i <= period; i++ {
		sum += trueRange(bars[i], bars[i-1])
	}
	atr := sum / float64(period)
	series := []float64{atr}

	for i := period + 1; i < len(bars); i++ {
		tr := trueRange(bars[i], bars[i-1])
		atr = (atr*float64(period-1) + tr) / float64(period)
		series = append(series, atr)
	}
	return series, nil
}

// wilderADX returns the ADX trend strength plus the +DI/-DI pair for the
// chronological series. Needs roughly three periods of history for the
// double smoothing to settle.
func wilderADX(bars []types.OHLCV, period int) (adx, plusDI, minusDI float64, err error) {
	if len(bars) < period*3 {
		return 0, 0, 0, errInsufficientData
	}

	var trSum, plusDMSum, minusDMSum float64
	for i := 1; i <= period; i++ {
		current, previous := bars[i], bars[i-1]
		trSum += trueRange(current, previous)

		highDiff := current.High - previous.High
		lowDiff := previous.Low - current.Low
		if highDiff > lowDiff && highDiff > 0 {
			plusDMSum += highDiff
		}
		if lowDiff > highDiff && lowDiff > 0 {
			minusDMSum += lowDiff
		}
	}

	smTR, smPlusDM, smMinusDM := trSum, plusDMSum, minusDMSum

	var dxSum float64
	var dxCount int
	adxInitialized := false

	for i := period + 1; i < len(bars); i++ {
		current, previous := bars[i], bars[i-1]

		tr := trueRange(current, previous)
		plusDM, minusDM := 0.0, 0.0
		highDiff := current.High - previous.High
		lowDiff := previous.Low - current.Low
		if highDiff > lowDiff && highDiff > 0 {
			plusDM = highDiff
		}
		if lowDiff > highDiff && lowDiff > 0 {
			minusDM = lowDiff
		}

		smTR = smTR - smTR/float64(period) + tr
		smPlusDM = smPlusDM - smPlusDM/float64(period) + plusDM
		smMinusDM = smMinusDM - smMinusDM/float64(period) + minusDM

		if smTR == 0 {
			continue
		}
		plusDI = 100.0 * smPlusDM / smTR
		minusDI = 100.0 * smMinusDM / smTR

		diSum := plusDI + minusDI
		if diSum == 0 {
			continue
		}
		dx := 100.0 * math.Abs(plusDI-minusDI) / diSum

		if !adxInitialized {
			dxSum += dx
			dxCount++
			if dxCount == period {
				adx = dxSum / float64(period)
				adxInitialized = true
			}
		} else {
			adx = (adx*float64(period-1) + dx) / float64(period)
		}
	}

	if !adxInitialized {
		return 0, 0, 0, errInsufficientData
	}
	return adx, plusDI, minusDI, nil
}

// resample aggregates chronological bars into groups of ratio bars each,
// producing the higher-timeframe series. A trailing partial group is
// dropped.
func resample(bars []types.OHLCV, ratio int) []types.OHLCV {
	if ratio <= 1 {
		return bars
	}
	var out []types.OHLCV
	for i := 0; i+ratio <= len(bars); i += ratio {
		group := bars[i : i+ratio]
		agg := types.OHLCV{
			Open:      group[0].Open,
			High:      group[0].High,
			Low:       group[0].Low,
			Close:     group[len(group)-1].Close,
			Timestamp: group[0].Timestamp,
		}
		for _, b := range group {
			if b.High > agg.High {
				agg.High = b.High
			}
			if b.Low < agg.Low {
				agg.Low = b.Low
			}
			agg.Volume += b.Volume
		}
		out = append(out, agg)
	}
	return out
}
