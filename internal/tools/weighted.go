package tools

import (
	"fmt"

	"github.com/Veraticus/tachyon/internal/model"
	"github.com/shopspring/decimal"
)

// Weights configures the deterministic decision mode.
type Weights struct {
	Personal  float64
	Public    float64
	Threshold float64
}

// Combine blends the two branch results into a decision. Weights are
// normalised over the branches that produced a value; with none available
// the verdict is "no".
func Combine(personal, public model.ProbabilityResult, w Weights) model.Decision {
	var (
		sum    = decimal.Zero
		weight = decimal.Zero
		parts  []string
	)

	add := func(name string, result model.ProbabilityResult, wt float64) {
		if !result.Available() || wt <= 0 {
			parts = append(parts, fmt.Sprintf("%s unavailable", name))
			return
		}
		dw := decimal.NewFromFloat(wt)
		sum = sum.Add(decimal.NewFromFloat(result.Value).Mul(dw))
		weight = weight.Add(dw)
		parts = append(parts, fmt.Sprintf("%s %s%% (weight %s)", name,
			decimal.NewFromFloat(result.Value).StringFixed(2), dw.String()))
	}
	add("personal", personal, w.Personal)
	add("public", public, w.Public)

	threshold := decimal.NewFromFloat(w.Threshold)
	if weight.IsZero() {
		return model.Decision{
			Verdict:   false,
			Rationale: fmt.Sprintf("No probability was available (%s, %s).", parts[0], parts[1]),
		}
	}

	score := sum.DivRound(weight, 2)
	value := score.InexactFloat64()
	verdict := score.GreaterThanOrEqual(threshold)
	comparison := "below"
	if verdict {
		comparison = "at or above"
	}

	return model.Decision{
		Score:   &value,
		Verdict: verdict,
		Rationale: fmt.Sprintf("Weighted probability %s%% is %s the %s%% threshold (%s, %s).",
			score.StringFixed(2), comparison, threshold.StringFixed(2), parts[0], parts[1]),
	}
}
