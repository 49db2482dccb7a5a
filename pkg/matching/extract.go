package matching

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Direction is the comparison direction attached to a numeric threshold.
type Direction string

const (
	DirNone  Direction = ""
	DirAbove Direction = "above"
	DirBelow Direction = "below"
)

// Features holds the salient qualifiers extracted from a question.
// Thresholds and periods are hard gates during validation; keywords feed
// the soft text-similarity score.
type Features struct {
	Threshold *float64
	Direction Direction
	UpOrDown  bool
	Month     time.Month // 0 when absent
	Year      int        // 0 when absent
	Keywords  map[string]bool
}

// HasThreshold reports whether a numeric threshold was extracted.
func (f Features) HasThreshold() bool { return f.Threshold != nil }

// HasPeriod reports whether a month or year qualifier was extracted.
func (f Features) HasPeriod() bool { return f.Month != 0 || f.Year != 0 }

// SamePeriod reports whether two feature sets reference the same period.
// Only qualifiers present on both sides are compared.
func (f Features) SamePeriod(o Features) bool {
	if f.Month != 0 && o.Month != 0 && f.Month != o.Month {
		return false
	}
	if f.Year != 0 && o.Year != 0 && f.Year != o.Year {
		return false
	}
	return true
}

// Threshold extraction runs against the raw question (lowercased, commas
// stripped) so that bare numbers in dates never read as price targets: a
// number only counts as a threshold when it carries a currency sign, a
// magnitude suffix, or sits next to a direction word.
var (
	dollarThreshold    = regexp.MustCompile(`\$\s*(\d+(?:\.\d+)?)\s*([km])?`)
	directionThreshold = regexp.MustCompile(`(?:above|over|exceeds?|reach(?:es)?|hits?|below|under|dips? to|falls? to|drops? to|at least)\s+\$?(\d+(?:\.\d+)?)\s*([km])?\b`)
	suffixThreshold    = regexp.MustCompile(`\b(\d+(?:\.\d+)?)([km])\b`)
)

// monthNames maps both full and three-letter month tokens.
var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var aboveWords = map[string]bool{
	"above": true, "over": true, "exceed": true, "exceeds": true,
	"reach": true, "reaches": true, "hit": true, "hits": true,
}

var belowWords = map[string]bool{
	"below": true, "under": true, "dip": true, "dips": true,
	"fall": true, "falls": true, "drop": true, "drops": true,
}

var yearPattern = regexp.MustCompile(`^(19|20)\d{2}$`)

// Extract derives matching features from a question or candidate title.
// Recurring near-duplicate questions on many providers differ only by a
// threshold or a period, so these are extracted precisely.
func Extract(question string) Features {
	normalized := Normalize(question)
	tokens := strings.Split(normalized, " ")

	f := Features{
		UpOrDown: strings.Contains(normalized, "up or down"),
	}

	for _, t := range tokens {
		if aboveWords[t] && f.Direction == DirNone {
			f.Direction = DirAbove
		}
		if belowWords[t] && f.Direction == DirNone {
			f.Direction = DirBelow
		}
		if m, ok := monthNames[t]; ok && f.Month == 0 {
			f.Month = m
		}
		if f.Year == 0 && yearPattern.MatchString(t) {
			y, _ := strconv.Atoi(t)
			f.Year = y
		}
	}

	f.Threshold = extractThreshold(question)
	f.Keywords = keywordSet(tokens)
	return f
}

// extractThreshold pulls the first numeric threshold out of the raw
// question. Dollar amounts win over direction-adjacent numbers, which win
// over bare magnitude-suffixed ones.
func extractThreshold(question string) *float64 {
	raw := strings.ToLower(strings.ReplaceAll(question, ",", ""))

	for _, pat := range []*regexp.Regexp{dollarThreshold, directionThreshold, suffixThreshold} {
		m := pat.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		switch m[2] {
		case "k":
			v *= 1_000
		case "m":
			v *= 1_000_000
		}
		return &v
	}
	return nil
}

// thresholdsEqual compares thresholds exactly (after k/m expansion).
func thresholdsEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}
