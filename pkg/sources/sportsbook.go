package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/marketplaymaker/edgeintel/core"
)

// SportsbookConfig configures the sportsbook odds-feed adapter.
type SportsbookConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// Sports lists the feed's sport keys to scan, e.g. "basketball_nba".
	Sports []string

	// Outrights lists sport keys whose futures (championship winner)
	// markets should also be scanned.
	Outrights []string

	// Devig removes the bookmaker margin before averaging implied
	// probabilities. On by default; raw implieds systematically overstate
	// every outcome.
	Devig bool
}

// DefaultSportsbookConfig returns sensible defaults.
func DefaultSportsbookConfig() *SportsbookConfig {
	return &SportsbookConfig{
		Timeout: 10 * time.Second,
		Sports: []string{
			"basketball_nba",
			"americanfootball_nfl",
			"icehockey_nhl",
			"soccer_epl",
			"mma_mixed_martial_arts",
		},
		Outrights: []string{
			"basketball_nba_championship_winner",
			"soccer_epl_winner",
		},
		Devig: true,
	}
}

// SportsbookAdapter converts bookmaker head-to-head and outright odds into
// implied probabilities. One candidate is emitted per outcome, averaged
// across the books quoting it.
type SportsbookAdapter struct {
	cfg  *SportsbookConfig
	feed *feedClient
}

// NewSportsbookAdapter creates the adapter.
func NewSportsbookAdapter(cfg *SportsbookConfig, cache PayloadCache, log zerolog.Logger) *SportsbookAdapter {
	if cfg == nil {
		cfg = DefaultSportsbookConfig()
	}
	return &SportsbookAdapter{
		cfg:  cfg,
		feed: newFeedClient("sportsbook", cfg.Timeout, cache, log),
	}
}

// Key implements Adapter.
func (a *SportsbookAdapter) Key() string { return "sportsbook" }

// Feed payload shapes (decimal odds).
type bookEvent struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	SportTitle   string      `json:"sport_title"`
	CommenceTime time.Time   `json:"commence_time"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Bookmakers   []bookmaker `json:"bookmakers"`
}

type bookmaker struct {
	Key     string       `json:"key"`
	Markets []bookMarket `json:"markets"`
}

type bookMarket struct {
	Key      string        `json:"key"` // "h2h", "outrights"
	Outcomes []bookOutcome `json:"outcomes"`
}

type bookOutcome struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"` // decimal odds
}

// FetchCandidates implements Adapter. Sportsbook feeds only speak sports;
// other categories yield no candidates without touching the network.
func (a *SportsbookAdapter) FetchCandidates(ctx context.Context, q Query) ([]core.Candidate, error) {
	if q.Category != CategorySports {
		return nil, nil
	}

	var candidates []core.Candidate
	var lastErr error
	fetched := 0

	scan := func(sportKeys []string, marketKey string) {
		for _, sport := range sportKeys {
			events, err := a.fetchEvents(ctx, sport, marketKey)
			if err != nil {
				lastErr = err
				continue
			}
			fetched++
			for _, ev := range events {
				candidates = append(candidates, a.eventCandidates(ev, q.Keywords)...)
			}
		}
	}

	scan(a.cfg.Sports, "h2h")
	scan(a.cfg.Outrights, "outrights")

	// Only report unavailability when no sport could be fetched at all;
	// a single dead sport feed still leaves usable candidates.
	if fetched == 0 && lastErr != nil {
		return nil, lastErr
	}
	return candidates, nil
}

func (a *SportsbookAdapter) fetchEvents(ctx context.Context, sport, marketKey string) ([]bookEvent, error) {
	params := url.Values{}
	params.Set("apiKey", a.cfg.APIKey)
	params.Set("regions", "us,uk")
	params.Set("markets", marketKey)
	params.Set("oddsFormat", "decimal")

	var events []bookEvent
	u := fmt.Sprintf("%s/v4/sports/%s/odds?%s", a.cfg.BaseURL, sport, params.Encode())
	if err := a.feed.getJSON(ctx, u, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// eventCandidates turns one event into candidates, keeping only outcomes
// relevant to the query keywords.
func (a *SportsbookAdapter) eventCandidates(ev bookEvent, keywords []string) []core.Candidate {
	byOutcome := a.consensusByOutcome(ev)
	if len(byOutcome) == 0 {
		return nil
	}

	var out []core.Candidate
	for _, oc := range byOutcome {
		if !keywordsHit(keywords, oc.name, ev.HomeTeam, ev.AwayTeam, ev.SportTitle) {
			continue
		}
		p := oc.prob.InexactFloat64()
		title := outcomeTitle(ev, oc.name)
		out = append(out, core.Candidate{
			SourceKey:   a.Key(),
			ExternalID:  ev.ID + ":" + oc.name,
			Title:       title,
			Probability: &p,
			Confidence:  bookmakerConfidence(oc.books),
			ResolveTime: ev.CommenceTime,
			Detail: fmt.Sprintf("%d books, devig=%v, overround %s",
				oc.books, a.cfg.Devig, oc.overround.StringFixed(3)),
			Meta: map[string]string{"sport": ev.SportKey},
		})
	}
	return out
}

type outcomeConsensus struct {
	name      string
	prob      decimal.Decimal
	books     int
	overround decimal.Decimal
}

// consensusByOutcome averages each outcome's implied probability across
// the bookmakers quoting the event, de-vigging per book first when
// enabled.
func (a *SportsbookAdapter) consensusByOutcome(ev bookEvent) []outcomeConsensus {
	sums := make(map[string]decimal.Decimal)
	counts := make(map[string]int)
	var order []string
	maxOverround := decimal.Zero

	for _, bm := range ev.Bookmakers {
		for _, mkt := range bm.Markets {
			implied := make([]decimal.Decimal, 0, len(mkt.Outcomes))
			names := make([]string, 0, len(mkt.Outcomes))
			for _, oc := range mkt.Outcomes {
				p, err := ImpliedFromDecimal(decimal.NewFromFloat(oc.Price))
				if err != nil {
					continue
				}
				implied = append(implied, p)
				names = append(names, oc.Name)
			}
			if len(implied) == 0 {
				continue
			}
			if ov := Overround(implied); ov.GreaterThan(maxOverround) {
				maxOverround = ov
			}
			if a.cfg.Devig {
				implied = RemoveVig(implied)
			}
			for i, name := range names {
				if _, seen := sums[name]; !seen {
					order = append(order, name)
				}
				sums[name] = sums[name].Add(implied[i])
				counts[name]++
			}
		}
	}

	out := make([]outcomeConsensus, 0, len(order))
	for _, name := range order {
		n := counts[name]
		if n == 0 {
			continue
		}
		out = append(out, outcomeConsensus{
			name:      name,
			prob:      sums[name].DivRound(decimal.NewFromInt(int64(n)), 6),
			books:     n,
			overround: maxOverround,
		})
	}
	return out
}

// NormalizeProbability implements Adapter.
func (a *SportsbookAdapter) NormalizeProbability(c core.Candidate) (float64, bool) {
	if c.Probability == nil {
		return 0, false
	}
	p := *c.Probability
	if p <= 0 || p >= 1 {
		return 0, false
	}
	return p, true
}

// outcomeTitle phrases an outcome the way prediction markets phrase their
// questions, so token overlap has something to grip.
func outcomeTitle(ev bookEvent, outcome string) string {
	if strings.EqualFold(outcome, "draw") {
		return fmt.Sprintf("Will %s vs %s end in a draw?", ev.HomeTeam, ev.AwayTeam)
	}
	if ev.HomeTeam == "" && ev.AwayTeam == "" {
		// Outright futures name only the competition.
		return fmt.Sprintf("Will %s win the %s?", outcome, ev.SportTitle)
	}
	opponent := ev.AwayTeam
	if strings.EqualFold(outcome, ev.AwayTeam) {
		opponent = ev.HomeTeam
	}
	return fmt.Sprintf("Will %s beat %s?", outcome, opponent)
}

// keywordsHit reports whether any query keyword appears in any of the
// haystacks. No keywords means everything is relevant.
func keywordsHit(keywords []string, haystacks ...string) bool {
	if len(keywords) == 0 {
		return true
	}
	joined := strings.ToLower(strings.Join(haystacks, " "))
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(joined, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// bookmakerConfidence grows with corroborating books, capped below 0.9: a
// sportsbook consensus is sharp but still one family of opinion.
func bookmakerConfidence(books int) float64 {
	conf := 0.4 + 0.1*float64(books)
	if conf > 0.9 {
		conf = 0.9
	}
	return conf
}
