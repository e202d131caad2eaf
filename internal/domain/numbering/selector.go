package numbering

import (
	"sort"
	"time"

	"github.com/jhoicas/ecf-numeracion/internal/domain/entity"
)

// Eligible indica si el rango puede entregar un número a la fecha now.
func Eligible(r *entity.NumberRange, now time.Time) bool {
	return DeriveStatus(r, now) == entity.StatusActive &&
		r.AvailableCount() > 0 &&
		!r.ExpiresAt.Before(now)
}

// PickOldestEligible elige el rango elegible con CreatedAt más antiguo.
// Empates por CreatedAt se resuelven por RangeStart y luego por ID para que sea determinista.
// Devuelve nil si ninguno es elegible.
func PickOldestEligible(ranges []*entity.NumberRange, now time.Time) *entity.NumberRange {
	candidates := make([]*entity.NumberRange, 0, len(ranges))
	for _, r := range ranges {
		if Eligible(r, now) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.RangeStart != b.RangeStart {
			return a.RangeStart < b.RangeStart
		}
		return a.ID < b.ID
	})
	return candidates[0]
}
