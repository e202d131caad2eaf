package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/ecf-numeracion/internal/domain/entity"
	"github.com/jhoicas/ecf-numeracion/pkg/ecf"
)

// RangeOrder orden de los listados.
type RangeOrder int

const (
	// OrderCreatedAsc del más antiguo al más reciente (política de selección).
	OrderCreatedAsc RangeOrder = iota
	// OrderCreatedDesc del más reciente al más antiguo (listados de administración).
	OrderCreatedDesc
)

// RangeFilter criterios de consulta. Los campos vacíos no filtran.
// Status filtra por el estado DERIVADO a la fecha Now, no por el almacenado.
type RangeFilter struct {
	OwnerID       string
	TaxpayerID    string
	DocumentType  ecf.DocumentType
	Status        entity.RangeStatus
	ExpiresBefore *time.Time // solo rangos con ExpiresAt < ExpiresBefore
	Search        string     // coincidencia parcial en razón social o comentario
	Now           time.Time
	Order         RangeOrder
	Limit         int // 0 = sin límite
	Offset        int
}

// RangeSummary agregados por propietario a una fecha dada.
type RangeSummary struct {
	Total         int
	ByStatus      map[entity.RangeStatus]int // por estado derivado
	ExpiringSoon  int                        // activos que vencen antes del corte
	LowWaterAlert int                        // agotados por umbral que aún tienen números
	TotalNumbers  int64
	UsedNumbers   int64
	UsedPercent   decimal.Decimal
}

// SiblingLoader devuelve los demás rangos de la misma clave bajo el lock de la clave.
type SiblingLoader func() ([]*entity.NumberRange, error)

// MutateFunc modifica r en sitio. Si devuelve error no se persiste nada.
// siblings solo debe usarse cuando la mutación afecta los límites del rango.
type MutateFunc func(r *entity.NumberRange, siblings SiblingLoader) error

// InsertGuard valida el candidato contra los rangos ya existentes de su clave.
type InsertGuard func(siblings []*entity.NumberRange) error

// RangeStore define el puerto de persistencia para rangos de numeración.
//
// AtomicUpdate es la única vía de escritura sobre un rango existente: lectura,
// validación y escritura ocurren como una unidad indivisible respecto a otras
// llamadas sobre el MISMO registro. Llamadas sobre registros distintos no se bloquean.
type RangeStore interface {
	// Load devuelve domain.ErrNotFound si no existe.
	Load(ctx context.Context, id string) (*entity.NumberRange, error)
	LoadMany(ctx context.Context, filter RangeFilter) ([]*entity.NumberRange, error)
	Count(ctx context.Context, filter RangeFilter) (int, error)

	// Summarize agrega los rangos del propietario con estados derivados a now.
	Summarize(ctx context.Context, ownerID string, now, expiringBefore time.Time) (*RangeSummary, error)

	// Insert ejecuta guard con los hermanos de la clave y luego inserta, todo bajo el lock de la clave.
	Insert(ctx context.Context, r *entity.NumberRange, guard InsertGuard) error

	// AtomicUpdate aplica fn sobre la versión vigente y persiste incrementando Version.
	// Devuelve la versión persistida.
	AtomicUpdate(ctx context.Context, id string, fn MutateFunc) (*entity.NumberRange, error)

	// Delete ejecuta guard bajo el lock del registro y elimina si guard no falla.
	Delete(ctx context.Context, id string, guard func(r *entity.NumberRange) error) error
}
