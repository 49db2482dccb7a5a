package matching

import (
	"github.com/marketplaymaker/edgeintel/core"
)

// Config tunes the matcher's scoring weights and acceptance threshold.
type Config struct {
	MinScore        float64 // minimum combined score to accept a match
	TokenWeight     float64 // weight of token-overlap similarity
	ThresholdWeight float64 // weight of numeric-threshold agreement
	DateWeight      float64 // weight of period agreement
}

// DefaultConfig returns the default matcher tuning.
func DefaultConfig() *Config {
	return &Config{
		MinScore:        0.45,
		TokenWeight:     0.60,
		ThresholdWeight: 0.25,
		DateWeight:      0.15,
	}
}

// Matcher selects, among a source's candidates, the one referring to the
// same real-world proposition as the market question.
//
// Text similarity alone over-matches near-duplicate questions that differ
// only by a price threshold or period, so numeric and temporal exactness
// act as hard gates, not soft similarity contributors: a plausible but
// wrong-threshold match produces a confidently-wrong edge signal, which is
// worse than no signal.
type Matcher struct {
	cfg *Config
}

// NewMatcher creates a matcher. A nil config uses defaults.
func NewMatcher(cfg *Config) *Matcher {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Matcher{cfg: cfg}
}

// Best returns the highest-scoring admissible candidate for the market,
// or false when no candidate clears the minimum score.
func (m *Matcher) Best(market core.Market, candidates []core.Candidate) (*core.Match, bool) {
	mf := Extract(market.Question)

	var (
		best      *core.Candidate
		bestCF    Features
		bestScore float64
		bestLen   int
	)

	for i := range candidates {
		cand := &candidates[i]
		cf := Extract(cand.Title)

		score, admissible := m.score(mf, cf)
		if !admissible {
			continue
		}

		titleLen := len(Normalize(cand.Title))
		switch {
		case best == nil,
			score > bestScore,
			// Ties prefer the most specific (longest) qualifying title.
			score == bestScore && titleLen > bestLen,
			score == bestScore && titleLen == bestLen && cand.ExternalID < best.ExternalID:
			best = cand
			bestCF = cf
			bestScore = score
			bestLen = titleLen
		}
	}

	if best == nil || bestScore < m.cfg.MinScore {
		return nil, false
	}

	return &core.Match{
		Market:    market,
		Candidate: *best,
		Quality:   bestScore,
		Validated: validate(mf, bestCF),
	}, true
}

// score combines token overlap with threshold and period agreement.
// Returns admissible=false when a hard gate rejects the candidate outright.
func (m *Matcher) score(mf, cf Features) (float64, bool) {
	// Hard gate: conflicting thresholds are never a match, regardless of
	// how similar the text reads.
	if mf.HasThreshold() && cf.HasThreshold() && !thresholdsEqual(mf.Threshold, cf.Threshold) {
		return 0, false
	}
	// Hard gate: same threshold compared in opposite directions.
	if mf.Direction != DirNone && cf.Direction != DirNone && mf.Direction != cf.Direction {
		return 0, false
	}
	// Hard gate: explicitly different periods (common on recurring questions).
	if mf.HasPeriod() && cf.HasPeriod() && !mf.SamePeriod(cf) {
		return 0, false
	}

	overlap := overlapCoefficient(mf.Keywords, cf.Keywords)

	var thrComp float64
	switch {
	case mf.HasThreshold() && cf.HasThreshold():
		thrComp = 1 // equal, gates above already ran
	case !mf.HasThreshold() && !cf.HasThreshold():
		thrComp = 1
	default:
		thrComp = 0 // one-sided threshold: textually plausible, structurally weak
	}

	var dateComp float64
	switch {
	case mf.HasPeriod() && cf.HasPeriod():
		dateComp = 1
	case !mf.HasPeriod() && !cf.HasPeriod():
		dateComp = 1
	default:
		dateComp = 0.5
	}

	score := m.cfg.TokenWeight*overlap + m.cfg.ThresholdWeight*thrComp + m.cfg.DateWeight*dateComp
	return score, true
}

// validate runs the structural checks that gate matchValidated. A match
// can be the textual best and still fail here; it is then reported but
// excluded from aggregation.
func validate(mf, cf Features) bool {
	// Thresholds present on either side must agree exactly. A market with
	// no threshold against a candidate that has one is ambiguous about the
	// direction of comparison and is never validated.
	if mf.HasThreshold() || cf.HasThreshold() {
		if !thresholdsEqual(mf.Threshold, cf.Threshold) {
			return false
		}
	}
	// If the market names a period, the candidate must reference it.
	if mf.Month != 0 && cf.Month != mf.Month {
		return false
	}
	if mf.Year != 0 && cf.Year != mf.Year {
		return false
	}
	// Binary direction questions only validate against the same phrasing.
	if mf.UpOrDown != cf.UpOrDown {
		return false
	}
	return true
}
