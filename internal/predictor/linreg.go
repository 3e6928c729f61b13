// Package predictor provides optional signal-shaping inputs for strategies:
// a least-squares trend extrapolator and trade-flow pressure indicators.
// Insufficient data is a normal state reported as absence, never an error.
package predictor

import (
	"math"
	"sync"

	"github.com/shopspring/decimal"

	"main/internal/model"
)

type observation struct {
	ts    float64 // seconds since epoch
	price float64
}

// LinearRegressionPredictor fits ordinary least squares over a bounded FIFO
// window of (timestamp, price) observations and extrapolates the fitted line.
type LinearRegressionPredictor struct {
	mu            sync.Mutex
	maxHistory    int
	minDataPoints int
	window        []observation
}

// NewLinearRegressionPredictor bounds the rolling window at maxHistory
// observations and reports ready once minDataPoints have been seen.
func NewLinearRegressionPredictor(maxHistory, minDataPoints int) *LinearRegressionPredictor {
	if maxHistory < 1 {
		maxHistory = 1
	}
	if minDataPoints < 2 {
		minDataPoints = 2
	}

	return &LinearRegressionPredictor{
		maxHistory:    maxHistory,
		minDataPoints: minDataPoints,
	}
}

// Update appends an observation, evicting the oldest once the window is full.
// Timestamps are milliseconds since epoch.
func (p *LinearRegressionPredictor) Update(tsMillis int64, price model.Price) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.window = append(p.window, observation{
		ts:    float64(tsMillis) / 1e3,
		price: price.InexactFloat64(),
	})
	if len(p.window) > p.maxHistory {
		p.window = p.window[1:]
	}
}

// IsReady reports whether enough observations are buffered to fit.
func (p *LinearRegressionPredictor) IsReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.window) >= p.minDataPoints
}

// Len returns the current window size.
func (p *LinearRegressionPredictor) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.window)
}

// PredictAfterSeconds extrapolates the fitted line n seconds past the latest
// observation. Returns false while not ready or when the fit degenerates.
func (p *LinearRegressionPredictor) PredictAfterSeconds(n float64) (decimal.Decimal, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	slope, intercept, ok := p.fit()
	if !ok {
		return decimal.Decimal{}, false
	}

	at := p.window[len(p.window)-1].ts + n
	predicted := slope*at + intercept
	if math.IsNaN(predicted) || math.IsInf(predicted, 0) {
		return decimal.Decimal{}, false
	}

	return decimal.NewFromFloat(predicted), true
}

// RSquared reports the coefficient of determination of the current fit.
// Returns false while not ready.
func (p *LinearRegressionPredictor) RSquared() (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	slope, intercept, ok := p.fit()
	if !ok {
		return 0, false
	}

	var meanY float64
	for _, o := range p.window {
		meanY += o.price
	}
	meanY /= float64(len(p.window))

	var ssTot, ssRes float64
	for _, o := range p.window {
		fitted := slope*o.ts + intercept
		ssRes += (o.price - fitted) * (o.price - fitted)
		ssTot += (o.price - meanY) * (o.price - meanY)
	}

	if ssTot == 0 {
		// Flat series: a perfect fit of a constant.
		return 1, true
	}

	return 1 - ssRes/ssTot, true
}

// fit runs OLS with timestamp as the independent variable. Caller holds the
// lock.
func (p *LinearRegressionPredictor) fit() (slope, intercept float64, ok bool) {
	n := len(p.window)
	if n < p.minDataPoints {
		return 0, 0, false
	}

	var sumX, sumY, sumXY, sumXX float64
	for _, o := range p.window {
		sumX += o.ts
		sumY += o.price
		sumXY += o.ts * o.price
		sumXX += o.ts * o.ts
	}

	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		// All observations share one timestamp; no trend to fit.
		return 0, 0, false
	}

	slope = (fn*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / fn
	return slope, intercept, true
}
