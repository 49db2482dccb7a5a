// Package catalog provides a read-only client for the market catalog API,
// the external service that supplies the Market snapshots the engine
// analyzes.
package catalog

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/marketplaymaker/edgeintel/core"
)

// Market is the catalog's market record.
type Market struct {
	ConditionID string    `json:"conditionId"`
	Question    string    `json:"question"`
	YesPrice    JSONFloat `json:"yesPrice"`
	EndDate     time.Time `json:"endDate"`
	Volume24hr  JSONFloat `json:"volume24hr"`
	Liquidity   JSONFloat `json:"liquidity"`
	Active      bool      `json:"active"`
	Closed      bool      `json:"closed"`
}

// IsOpen reports whether the market can still be analyzed usefully.
func (m *Market) IsOpen() bool {
	return m.Active && !m.Closed
}

// ToCore converts the catalog record to the engine's immutable snapshot.
func (m *Market) ToCore() core.Market {
	return core.Market{
		ID:        m.ConditionID,
		Question:  m.Question,
		Price:     m.YesPrice.Float64(),
		CloseTime: m.EndDate,
	}
}

// JSONFloat handles both numeric and string JSON values; the catalog is
// inconsistent about which it emits.
type JSONFloat float64

func (j *JSONFloat) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*j = JSONFloat(f)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*j = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*j = JSONFloat(f)
	return nil
}

func (j JSONFloat) Float64() float64 {
	return float64(j)
}

// MarketsFilter contains filter parameters for listing markets.
type MarketsFilter struct {
	Active *bool
	Closed *bool
	Limit  int
	Offset int
}

// BoolPtr returns a pointer to a bool.
func BoolPtr(b bool) *bool {
	return &b
}
