package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound            = errors.New("recurso no encontrado")
	ErrInvalidInput        = errors.New("entrada inválida")
	ErrUnauthorized        = errors.New("no autorizado")
	ErrOverlap             = errors.New("el rango se solapa con otro rango autorizado")
	ErrNotEligible         = errors.New("el rango no está disponible para consumo")
	ErrExhausted           = errors.New("el rango está agotado")
	ErrNoEligibleRange     = errors.New("no hay rango utilizable")
	ErrFieldLocked         = errors.New("campo bloqueado por uso del rango")
	ErrInUse               = errors.New("el rango ya fue utilizado")
	ErrConcurrencyConflict = errors.New("conflicto de concurrencia")
	ErrTransient           = errors.New("falla transitoria, reintente")
)

// FieldError describe un campo inválido.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError agrupa todos los campos inválidos de una petición.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrInvalidInput.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// Add registra un campo inválido.
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// OrNil devuelve nil si no hay campos inválidos.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NotFoundError recurso inexistente (o de otro propietario).
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Entity, e.ID, ErrNotFound.Error())
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// OverlapError identifica el rango existente con el que choca el candidato.
type OverlapError struct {
	ConflictID    string
	ConflictStart int64
	ConflictEnd   int64
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("%s: [%d, %d] (id %s)", ErrOverlap.Error(), e.ConflictStart, e.ConflictEnd, e.ConflictID)
}

func (e *OverlapError) Unwrap() error { return ErrOverlap }

// NotEligibleError el rango existe pero está vencido o deshabilitado.
type NotEligibleError struct {
	RangeID   string
	Status    string
	Available int64
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("%s: rango %s en estado %s (%d disponibles)", ErrNotEligible.Error(), e.RangeID, e.Status, e.Available)
}

func (e *NotEligibleError) Unwrap() error { return ErrNotEligible }

// ExhaustedError el rango alcanzó el umbral mínimo o no tiene números.
// También coincide con ErrNotEligible.
type ExhaustedError struct {
	RangeID      string
	Available    int64
	LowWaterMark int64
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: rango %s con %d disponibles (umbral %d)", ErrExhausted.Error(), e.RangeID, e.Available, e.LowWaterMark)
}

func (e *ExhaustedError) Unwrap() []error { return []error{ErrExhausted, ErrNotEligible} }

// NoEligibleRangeError ningún rango del contribuyente y tipo puede consumirse ahora.
type NoEligibleRangeError struct {
	TaxpayerID   string
	DocumentType string
}

func (e *NoEligibleRangeError) Error() string {
	return fmt.Sprintf("%s para RNC %s tipo %s", ErrNoEligibleRange.Error(), e.TaxpayerID, e.DocumentType)
}

func (e *NoEligibleRangeError) Unwrap() error { return ErrNoEligibleRange }

// FieldLockedError intento de modificar campos inmutables.
type FieldLockedError struct {
	Fields    []string
	UsedCount int64
}

func (e *FieldLockedError) Error() string {
	return fmt.Sprintf("%s: %s (usados %d)", ErrFieldLocked.Error(), strings.Join(e.Fields, ", "), e.UsedCount)
}

func (e *FieldLockedError) Unwrap() error { return ErrFieldLocked }

// InUseError eliminación de un rango con números emitidos.
type InUseError struct {
	RangeID   string
	UsedCount int64
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("%s: rango %s con %d números emitidos", ErrInUse.Error(), e.RangeID, e.UsedCount)
}

func (e *InUseError) Unwrap() error { return ErrInUse }
