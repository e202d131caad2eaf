package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/ecf-numeracion/pkg/ecf"
)

// RangeStatus estado del rango de numeración.
// Solo StatusDisabled se asigna manualmente; los demás se derivan.
type RangeStatus string

const (
	StatusActive    RangeStatus = "active"
	StatusDisabled  RangeStatus = "disabled"
	StatusExpired   RangeStatus = "expired"
	StatusExhausted RangeStatus = "exhausted"
)

// AllStatuses orden estable para reportes.
var AllStatuses = []RangeStatus{StatusActive, StatusDisabled, StatusExpired, StatusExhausted}

// Valid indica si el estado es conocido.
func (s RangeStatus) Valid() bool {
	switch s {
	case StatusActive, StatusDisabled, StatusExpired, StatusExhausted:
		return true
	}
	return false
}

// NumberRange representa un bloque de números e-CF autorizado por la administración tributaria.
// Cada rango pertenece a un único propietario y se identifica por (TaxpayerID, DocumentType, OwnerID).
type NumberRange struct {
	ID           string
	OwnerID      string
	TaxpayerID   string           // RNC o cédula del emisor (9 a 11 dígitos)
	LegalName    string           // Razón social
	DocumentType ecf.DocumentType // 31, 32, 33, 34, 41, 43, 44, 45
	SeriesPrefix string           // Serie, por defecto "E"
	RangeStart   int64
	RangeEnd     int64
	UsedCount    int64
	AuthorizedAt time.Time // Fecha de autorización
	ExpiresAt    time.Time // Fecha de vencimiento
	LowWaterMark int64     // Umbral de alerta: con AvailableCount <= LowWaterMark se considera agotado
	Status       RangeStatus
	Comment      string
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RangeKey clave de no-solapamiento.
type RangeKey struct {
	OwnerID      string
	TaxpayerID   string
	DocumentType ecf.DocumentType
}

// String forma canónica de la clave (para locks y logs).
func (k RangeKey) String() string {
	return k.OwnerID + "|" + k.TaxpayerID + "|" + string(k.DocumentType)
}

// Key devuelve la clave de no-solapamiento del rango.
func (r *NumberRange) Key() RangeKey {
	return RangeKey{OwnerID: r.OwnerID, TaxpayerID: r.TaxpayerID, DocumentType: r.DocumentType}
}

// TotalCount cantidad de números del rango.
func (r *NumberRange) TotalCount() int64 { return r.RangeEnd - r.RangeStart + 1 }

// AvailableCount números aún no emitidos.
func (r *NumberRange) AvailableCount() int64 { return r.TotalCount() - r.UsedCount }

// NextNumber siguiente secuencial a emitir (puede quedar fuera del rango si está agotado).
func (r *NumberRange) NextNumber() int64 { return r.RangeStart + r.UsedCount }

// NextFormatted NCF que se emitiría en el próximo consumo; vacío si no quedan números.
func (r *NumberRange) NextFormatted() string {
	if r.AvailableCount() <= 0 {
		return ""
	}
	return ecf.Format(r.SeriesPrefix, r.DocumentType, r.NextNumber())
}

// UsedPercent porcentaje consumido con dos decimales.
func (r *NumberRange) UsedPercent() decimal.Decimal {
	total := r.TotalCount()
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(r.UsedCount).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(total)).
		Round(2)
}

// Clone copia superficial (todos los campos son valores).
func (r *NumberRange) Clone() *NumberRange {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
