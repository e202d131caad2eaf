// Package numbering contiene las reglas puras de los rangos de numeración e-CF:
// validación de campos, no-solapamiento, derivación de estado y política de selección.
package numbering

import (
	"time"

	"github.com/jhoicas/ecf-numeracion/internal/domain/entity"
)

// DeriveStatus calcula el estado del rango a la fecha now.
//
//   - disabled se conserva siempre (decisión del operador).
//   - now > ExpiresAt        → expired
//   - AvailableCount <= LowWaterMark → exhausted
//   - en otro caso           → active
func DeriveStatus(r *entity.NumberRange, now time.Time) entity.RangeStatus {
	if r.Status == entity.StatusDisabled {
		return entity.StatusDisabled
	}
	if now.After(r.ExpiresAt) {
		return entity.StatusExpired
	}
	if r.AvailableCount() <= r.LowWaterMark {
		return entity.StatusExhausted
	}
	return entity.StatusActive
}

// Apply escribe el estado derivado en r y reporta si cambió.
func Apply(r *entity.NumberRange, now time.Time) (changed bool) {
	next := DeriveStatus(r, now)
	changed = next != r.Status
	r.Status = next
	return changed
}

// CanTransition indica si un operador puede llevar el rango de from a to.
// Solo se admite deshabilitar y rehabilitar; los demás estados son derivados.
func CanTransition(from, to entity.RangeStatus) bool {
	if from == to {
		return true
	}
	switch to {
	case entity.StatusDisabled:
		return true
	case entity.StatusActive:
		return from == entity.StatusDisabled
	}
	return false
}
