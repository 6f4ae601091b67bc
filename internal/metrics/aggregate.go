// Package metrics aggregates per-attempt measurements into run summaries.
package metrics

import (
	"math"

	"github.com/gatewaylab/gwbench/pkg/types"
)

// Sample is one attempt's contribution to an aggregate. Latency and fee are
// optional: a failed attempt may have neither, and a success reported by a
// route that omits fee data carries only latency.
type Sample struct {
	Success    bool
	LatencyMs  int64
	HasLatency bool
	Fee        uint64 // lamports
	HasFee     bool
	TipRefund  uint64 // lamports
}

// Accumulator folds attempt samples into summary statistics. The zero value
// is ready to use. Merging two accumulators gives the same result as feeding
// all samples into one, in any order.
type Accumulator struct {
	requested int
	completed int
	successes int

	latencyCount int
	latencySum   int64
	latencyMin   int64
	latencyMax   int64

	feeCount  int
	feeSum    uint64
	refundSum uint64
}

// AddRequested records n requested transactions. The success rate denominator
// is requested, not completed, so a run that aborts early still counts its
// unattempted transactions against the rate.
func (a *Accumulator) AddRequested(n int) {
	a.requested += n
}

// Add folds one attempt into the accumulator.
func (a *Accumulator) Add(s Sample) {
	a.completed++
	if s.Success {
		a.successes++
	}
	if s.HasLatency {
		if a.latencyCount == 0 || s.LatencyMs < a.latencyMin {
			a.latencyMin = s.LatencyMs
		}
		if a.latencyCount == 0 || s.LatencyMs > a.latencyMax {
			a.latencyMax = s.LatencyMs
		}
		a.latencyCount++
		a.latencySum += s.LatencyMs
	}
	if s.HasFee {
		a.feeCount++
		a.feeSum += s.Fee
	}
	a.refundSum += s.TipRefund
}

// Merge folds another accumulator into this one.
func (a *Accumulator) Merge(b *Accumulator) {
	a.requested += b.requested
	a.completed += b.completed
	a.successes += b.successes
	if b.latencyCount > 0 {
		if a.latencyCount == 0 || b.latencyMin < a.latencyMin {
			a.latencyMin = b.latencyMin
		}
		if a.latencyCount == 0 || b.latencyMax > a.latencyMax {
			a.latencyMax = b.latencyMax
		}
		a.latencyCount += b.latencyCount
		a.latencySum += b.latencySum
	}
	a.feeCount += b.feeCount
	a.feeSum += b.feeSum
	a.refundSum += b.refundSum
}

// Completed returns the number of attempts folded so far.
func (a *Accumulator) Completed() int { return a.completed }

// Successes returns the number of successful attempts folded so far.
func (a *Accumulator) Successes() int { return a.successes }

// Summary materializes the current statistics. With zero requested
// transactions the rate is 0; with no latency samples all latency fields
// are 0.
func (a *Accumulator) Summary() types.RunSummary {
	s := types.RunSummary{
		TotalCostLamports: a.feeSum,
		TotalTipRefunded:  a.refundSum,
	}
	if a.requested > 0 {
		s.SuccessRate = round1(float64(a.successes) / float64(a.requested) * 100)
	}
	if a.latencyCount > 0 {
		s.AvgLatencyMs = round1(float64(a.latencySum) / float64(a.latencyCount))
		s.MinLatencyMs = float64(a.latencyMin)
		s.MaxLatencyMs = float64(a.latencyMax)
	}
	if a.feeCount > 0 {
		// Fees are summed as exact integers; the average stays unrounded.
		s.AvgCostLamports = float64(a.feeSum) / float64(a.feeCount)
	}
	return s
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
