package intel

import (
	"math"

	"github.com/marketplaymaker/edgeintel/core"
)

// GraderConfig tunes the divergence threshold, quality weights and grade
// bands. The cutoffs are configuration, not constants: what counts as an
// "interesting" edge is a policy choice.
type GraderConfig struct {
	// Epsilon is the minimum |divergence| to emit a directional signal.
	Epsilon float64

	// DivergenceSaturation is the |divergence| at which the divergence
	// factor maxes out.
	DivergenceSaturation float64

	// Quality factor weights; should sum to 1.
	DivergenceWeight    float64
	CorroborationWeight float64
	ConfidenceWeight    float64

	// CorroborationCap is where additional sources stop raising quality.
	CorroborationCap int

	// Grade bands over quality (0-100), monotonic and total.
	GradeACutoff int
	GradeBCutoff int
	GradeCCutoff int
}

// DefaultGraderConfig returns the default grading policy.
func DefaultGraderConfig() *GraderConfig {
	return &GraderConfig{
		Epsilon:              0.03,
		DivergenceSaturation: 0.25,
		DivergenceWeight:     0.50,
		CorroborationWeight:  0.30,
		ConfidenceWeight:     0.20,
		CorroborationCap:     4,
		GradeACutoff:         75,
		GradeBCutoff:         50,
		GradeCCutoff:         25,
	}
}

// Grader converts a consensus into the discrete grade, continuous quality
// and directional signal. A large divergence backed by one low-confidence
// source is not actionable; quality rewards corroboration across
// independent sources, not just raw price gap.
type Grader struct {
	cfg *GraderConfig
}

// NewGrader creates a grader. A nil config uses defaults.
func NewGrader(cfg *GraderConfig) *Grader {
	if cfg == nil {
		cfg = DefaultGraderConfig()
	}
	return &Grader{cfg: cfg}
}

// Grade maps (divergence, sourceCount, mean confidence) to the signal,
// grade and quality score.
func (g *Grader) Grade(c Consensus) (core.EdgeSignal, core.EdgeGrade, int) {
	if c.SourceCount == 0 {
		return core.SignalNone, core.GradeD, 0
	}

	quality := g.quality(c)

	signal := core.SignalNone
	if div := math.Abs(c.Divergence); div >= g.cfg.Epsilon {
		if c.Divergence > 0 {
			signal = core.SignalUnderpriced
		} else {
			signal = core.SignalOverpriced
		}
	}

	return signal, g.band(quality), quality
}

// quality is a weighted sum of a saturating divergence factor, a geometric
// corroboration factor and the mean source confidence. Monotone
// non-decreasing in each input; corroboration has diminishing returns and
// caps out at CorroborationCap sources.
func (g *Grader) quality(c Consensus) int {
	divScore := math.Abs(c.Divergence) / g.cfg.DivergenceSaturation
	if divScore > 1 {
		divScore = 1
	}

	n := c.SourceCount
	if n > g.cfg.CorroborationCap {
		n = g.cfg.CorroborationCap
	}
	// Each extra source closes half the remaining gap to full
	// corroboration, normalized so the cap scores 1.
	corr := (1 - math.Pow(0.5, float64(n))) / (1 - math.Pow(0.5, float64(g.cfg.CorroborationCap)))

	conf := c.MeanConfidence
	if conf > 1 {
		conf = 1
	}
	if conf < 0 {
		conf = 0
	}

	score := g.cfg.DivergenceWeight*divScore +
		g.cfg.CorroborationWeight*corr +
		g.cfg.ConfidenceWeight*conf

	q := int(math.Round(100 * score))
	if q < 0 {
		q = 0
	}
	if q > 100 {
		q = 100
	}
	return q
}

// band maps quality to a grade. Total: every quality value lands in
// exactly one band.
func (g *Grader) band(quality int) core.EdgeGrade {
	switch {
	case quality >= g.cfg.GradeACutoff:
		return core.GradeA
	case quality >= g.cfg.GradeBCutoff:
		return core.GradeB
	case quality >= g.cfg.GradeCCutoff:
		return core.GradeC
	default:
		return core.GradeD
	}
}
