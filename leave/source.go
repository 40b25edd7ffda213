/*
source.go - Leave-source records

PURPOSE:
  A Source records exactly which pool(s) funded an approved deduction, so
  a later rejection can reverse it exactly. Refund never re-derives the
  split from current policy: the policy may have changed since approval.

WIRE FORMATS:
  Multi-pool (seasonal draws):  "CF:2.0, Replacement:0.5"
  Single-pool categories:       "Sick" (bare label, refunded in full)
  Replacement credits:          ""     (credits are not reversed; see
                                        workflow.go)

  Draw amounts render with one decimal place when exact at that precision,
  full decimal expansion otherwise, and the parser accepts either form, so
  fractional top-up residue survives the round trip.
*/
package leave

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Draw is one pool's contribution to a deduction.
type Draw struct {
	Pool   Pool
	Amount decimal.Decimal
}

// Source is the recorded breakdown of which pool(s) funded a deduction.
// The zero value means "no balance effect to reverse".
type Source struct {
	pool  Pool   // bare single-pool form
	draws []Draw // multi-pool form
}

// SingleSource records a full-quantity deduction from one pool.
func SingleSource(p Pool) Source {
	return Source{pool: p}
}

// MultiSource records an ordered multi-pool deduction.
func MultiSource(draws []Draw) Source {
	return Source{draws: draws}
}

// IsZero reports whether the source records no balance effect.
func (s Source) IsZero() bool {
	return s.pool == "" && len(s.draws) == 0
}

// Draws returns the multi-pool breakdown, or nil for the bare form.
func (s Source) Draws() []Draw {
	return s.draws
}

// String renders the persisted form.
func (s Source) String() string {
	if len(s.draws) > 0 {
		parts := make([]string, 0, len(s.draws))
		for _, d := range s.draws {
			parts = append(parts, fmt.Sprintf("%s:%s", d.Pool.Label(), formatDraw(d.Amount)))
		}
		return strings.Join(parts, ", ")
	}
	if s.pool != "" {
		return s.pool.Label()
	}
	return ""
}

// ParseSource parses a persisted leave-source string.
func ParseSource(raw string) (Source, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Source{}, nil
	}

	if !strings.Contains(raw, ":") {
		p, ok := poolByLabel[raw]
		if !ok {
			return Source{}, fmt.Errorf("leave source references unknown pool %q", raw)
		}
		return SingleSource(p), nil
	}

	var draws []Draw
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		label, amtStr, ok := strings.Cut(part, ":")
		if !ok {
			return Source{}, fmt.Errorf("malformed leave source part %q", part)
		}
		p, known := poolByLabel[strings.TrimSpace(label)]
		if !known {
			return Source{}, fmt.Errorf("leave source references unknown pool %q", label)
		}
		amt, err := decimal.NewFromString(strings.TrimSpace(amtStr))
		if err != nil {
			return Source{}, fmt.Errorf("malformed leave source amount %q: %w", amtStr, err)
		}
		draws = append(draws, Draw{Pool: p, Amount: amt})
	}
	if len(draws) == 0 {
		return Source{}, fmt.Errorf("leave source %q contains no draws", raw)
	}
	return MultiSource(draws), nil
}

// formatDraw renders an amount as "2.0" when it is exact at one decimal
// place, otherwise with its full expansion (e.g. "0.58334").
func formatDraw(d decimal.Decimal) string {
	if d.Equal(d.Round(1)) {
		return d.StringFixed(1)
	}
	return d.String()
}
