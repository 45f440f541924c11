package pattern

import (
	"errors"
	"math"
	"time"

	"github.com/quantframe/decision-engine/internal/levels"
)

// TrendLine is a least-squares fit of same-type swing points over
// (time, price). Slope is in price units per day.
type TrendLine struct {
	Slope     float64
	Intercept float64 // price at Base
	Base      time.Time
	Start     time.Time
	End       time.Time
	Touches   int

	IsHorizontal bool
	LevelPrice   float64 // represented level for near-horizontal lines
}

// At evaluates the line at the given time.
func (l TrendLine) At(t time.Time) float64 {
	days := t.Sub(l.Base).Hours() / 24.0
	return l.Intercept + l.Slope*days
}

// NormSlope returns the slope as a price fraction per day, so tolerance
// bands stay meaningful across instruments.
func (l TrendLine) NormSlope() float64 {
	if l.LevelPrice == 0 {
		return 0
	}
	return l.Slope / l.LevelPrice
}

var errDegenerateFit = errors.New("pattern: trend line fit is degenerate")

// FitTrendLine performs a least-squares regression of price against
// time-in-days over the given swing points. horizTol is the normalized-slope
// band inside which the line counts as horizontal.
func FitTrendLine(points []levels.SwingPoint, horizTol float64) (TrendLine, error) {
	if len(points) < 2 {
		return TrendLine{}, errDegenerateFit
	}

	base := points[0].Timestamp
	var sumX, sumY, sumXY, sumXX float64
	for _, p := range points {
		x := p.Timestamp.Sub(base).Hours() / 24.0
		sumX += x
		sumY += p.Price
		sumXY += x * p.Price
		sumXX += x * x
	}

	n := float64(len(points))
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return TrendLine{}, errDegenerateFit
	}

	line := TrendLine{
		Slope:      (n*sumXY - sumX*sumY) / denom,
		Intercept:  (sumY*sumXX - sumX*sumXY) / denom,
		Base:       base,
		Start:      points[0].Timestamp,
		End:        points[len(points)-1].Timestamp,
		Touches:    len(points),
		LevelPrice: sumY / n,
	}
	line.IsHorizontal = math.Abs(line.NormSlope()) <= horizTol
	return line, nil
}
