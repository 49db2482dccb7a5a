package intel

import (
	"github.com/marketplaymaker/edgeintel/core"
)

// Consensus is the aggregate of the validated per-source estimates for one
// market.
type Consensus struct {
	Probability    float64 // confidence-weighted average across sources
	Divergence     float64 // consensus - market price, signed, in [-1, 1]
	MeanConfidence float64
	SourceCount    int // validated sources only
}

// Aggregate combines validated source estimates into a consensus
// probability and its divergence from the market's traded price.
//
// A confidence-weighted average is used instead of Bayesian pooling on
// purpose: each estimate's pull on the consensus stays proportional to its
// weight, so a human can audit the verdict source by source from the
// detail strings.
func Aggregate(market core.Market, estimates []core.SourceEstimate) Consensus {
	var (
		weighted  float64
		plain     float64
		confSum   float64
		validated int
	)

	for _, est := range estimates {
		if !est.MatchValidated {
			continue
		}
		validated++
		plain += est.Prob
		confSum += est.Confidence
		weighted += est.Prob * est.Confidence
	}

	if validated == 0 {
		return Consensus{}
	}

	var consensus float64
	if confSum > 0 {
		consensus = weighted / confSum
	} else {
		// All confidences zero: fall back to the unweighted mean.
		consensus = plain / float64(validated)
	}

	return Consensus{
		Probability:    consensus,
		Divergence:     consensus - market.Price,
		MeanConfidence: confSum / float64(validated),
		SourceCount:    validated,
	}
}
