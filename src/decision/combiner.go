// Package decision folds per-check results into a single outcome.
package decision

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/realfinder/verifier/src/verification/types"
)

// Thresholds are inclusive lower bounds.
type Thresholds struct {
	Approve float64
	Flag    float64
}

// DefaultThresholds returns 0.80 for APPROVE and 0.50 for FLAG.
func DefaultThresholds() Thresholds {
	return Thresholds{Approve: 0.80, Flag: 0.50}
}

// Verdict is the combined outcome.
type Verdict struct {
	Outcome types.Outcome
	Score   float64
	Reasons []string
	// Contribution is each counted check's weighted share of Score.
	Contribution map[string]float64
}

// Combine uses the default thresholds.
func Combine(results map[string]types.CheckResult, weights map[string]float64) Verdict {
	return DefaultThresholds().Combine(results, weights)
}

// Combine computes the weighted mean of usable checks, renormalized over the
// weights that were actually counted. Checks that errored or carry no
// positive weight are left out. When nothing is left the outcome is FLAG.
func (t Thresholds) Combine(results map[string]types.CheckResult, weights map[string]float64) Verdict {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		weighted, total float64
		counted         []string
		errored         []string
		failing         []string
	)
	for _, name := range names {
		res := results[name]
		if res.Status == types.StatusError {
			errored = append(errored, name)
			continue
		}
		w := weights[name]
		if w <= 0 {
			continue
		}
		s := types.ClampScore(res.ConfidenceScore)
		weighted += w * s
		total += w
		counted = append(counted, name)
		if res.Status == types.StatusFail {
			failing = append(failing, fmt.Sprintf("%s failed with score %.2f", name, s))
		}
	}

	v := Verdict{Contribution: map[string]float64{}}
	for _, name := range errored {
		v.Reasons = append(v.Reasons, fmt.Sprintf("%s could not be evaluated and was excluded", name))
	}

	if total == 0 {
		v.Outcome = types.Flag
		v.Score = 0
		if len(results) == 0 {
			v.Reasons = append(v.Reasons, "no checks applied; manual review required")
		} else {
			v.Reasons = append(v.Reasons, "no check produced a usable score; manual review required")
		}
		return v
	}

	for _, name := range counted {
		w := weights[name]
		v.Contribution[name] = round4(w * types.ClampScore(results[name].ConfidenceScore) / total)
	}
	v.Score = round4(weighted / total)
	v.Outcome = t.outcome(v.Score)
	v.Reasons = append(v.Reasons, failing...)
	v.Reasons = append(v.Reasons, fmt.Sprintf("combined score %.4f over %d check(s)", v.Score, len(counted)))
	return v
}

func (t Thresholds) outcome(score float64) types.Outcome {
	switch {
	case score >= t.Approve:
		return types.Approve
	case score >= t.Flag:
		return types.Flag
	default:
		return types.Reject
	}
}

// round4 rounds half away from zero to four decimals.
func round4(v float64) float64 {
	return decimal.NewFromFloat(v).Round(4).InexactFloat64()
}
