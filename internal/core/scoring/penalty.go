package scoring

import "github.com/agenthands/anatomy-eval/internal/config"

// PenaltyCurve is a piecewise-linear map from the predicted/expected size ratio
// to a penalty factor. Points are ordered by ratio. Below the first point the
// first penalty applies; beyond the last point the last penalty applies.
type PenaltyCurve []config.PenaltyPoint

// At evaluates the curve at ratio.
func (c PenaltyCurve) At(ratio float64) float64 {
	if len(c) == 0 {
		return 1
	}
	if ratio <= c[0].Ratio {
		return c[0].Penalty
	}
	for i := 1; i < len(c); i++ {
		lo, hi := c[i-1], c[i]
		if ratio <= hi.Ratio {
			slope := (hi.Penalty - lo.Penalty) / (hi.Ratio - lo.Ratio)
			return clamp(lo.Penalty+slope*(ratio-lo.Ratio), 0, 1)
		}
	}
	return c[len(c)-1].Penalty
}
