// Package numbering orquesta el ciclo de vida de los rangos de numeración e-CF:
// alta, consulta, actualización y consumo atómico de secuenciales.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/ecf-numeracion/internal/domain"
	"github.com/jhoicas/ecf-numeracion/internal/domain/entity"
	rules "github.com/jhoicas/ecf-numeracion/internal/domain/numbering"
	"github.com/jhoicas/ecf-numeracion/internal/domain/repository"
	"github.com/jhoicas/ecf-numeracion/pkg/ecf"
	"github.com/jhoicas/ecf-numeracion/pkg/logger"
)

const (
	DefaultMaxRetries       = 5
	DefaultRetryBackoff     = 10 * time.Millisecond
	DefaultExpiringSoonDays = 30
)

// Options parámetros del motor de numeración.
type Options struct {
	MaxRetries       int           // reintentos ante ErrConcurrencyConflict; al menos 1
	RetryBackoff     time.Duration // espera lineal: intento * RetryBackoff
	ExpiringSoonDays int
	Now              func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxRetries == 0 {
		o.MaxRetries = DefaultMaxRetries
	} else if o.MaxRetries < 1 {
		o.MaxRetries = 1
	}
	if o.RetryBackoff < 0 {
		o.RetryBackoff = 0
	}
	if o.ExpiringSoonDays <= 0 {
		o.ExpiringSoonDays = DefaultExpiringSoonDays
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Consumption resultado de emitir un secuencial.
type Consumption struct {
	RangeID        string
	IssuedNumber   int64
	Formatted      string
	AvailableCount int64
	Status         entity.RangeStatus
}

// Allocator entrega secuenciales sin repetir ni saltar números.
// Cada emisión es una sola lectura-validación-escritura atómica sobre el rango.
type Allocator struct {
	store      repository.RangeStore
	log        *logger.Logger
	now        func() time.Time
	maxRetries int
	backoff    time.Duration
}

// NewAllocator construye el asignador.
func NewAllocator(store repository.RangeStore, log *logger.Logger, opts Options) *Allocator {
	opts = opts.withDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Allocator{
		store:      store,
		log:        log.Component("allocator"),
		now:        opts.Now,
		maxRetries: opts.MaxRetries,
		backoff:    opts.RetryBackoff,
	}
}

// Consume emite el siguiente número del rango rangeID perteneciente a ownerID.
//
// Errores: *domain.NotFoundError (inexistente o de otro propietario),
// *domain.ExhaustedError, *domain.NotEligibleError (vencido o deshabilitado)
// y domain.ErrTransient si los conflictos de concurrencia persisten.
func (a *Allocator) Consume(ctx context.Context, rangeID, ownerID string) (*Consumption, error) {
	var (
		issued int64
		before entity.RangeStatus
	)
	updated, err := withRetry(ctx, a.maxRetries, a.backoff, func() (*entity.NumberRange, error) {
		return a.store.AtomicUpdate(ctx, rangeID, func(r *entity.NumberRange, _ repository.SiblingLoader) error {
			if r.OwnerID != ownerID {
				return &domain.NotFoundError{Entity: "number_range", ID: rangeID}
			}
			now := a.now()
			before = r.Status
			switch st := rules.DeriveStatus(r, now); st {
			case entity.StatusActive:
			case entity.StatusExhausted:
				return &domain.ExhaustedError{RangeID: r.ID, Available: r.AvailableCount(), LowWaterMark: r.LowWaterMark}
			default:
				return &domain.NotEligibleError{RangeID: r.ID, Status: string(st), Available: r.AvailableCount()}
			}
			if r.AvailableCount() <= 0 {
				return &domain.ExhaustedError{RangeID: r.ID, Available: 0, LowWaterMark: r.LowWaterMark}
			}

			issued = r.NextNumber()
			r.UsedCount++
			rules.Apply(r, now)
			r.UpdatedAt = now
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	out := &Consumption{
		RangeID:        updated.ID,
		IssuedNumber:   issued,
		Formatted:      ecf.Format(updated.SeriesPrefix, updated.DocumentType, issued),
		AvailableCount: updated.AvailableCount(),
		Status:         updated.Status,
	}
	a.log.Debug().
		Str("range_id", out.RangeID).
		Str("ncf", out.Formatted).
		Int64("available", out.AvailableCount).
		Msg("secuencial emitido")
	if before != updated.Status && (updated.Status == entity.StatusExhausted || updated.Status == entity.StatusExpired) {
		a.log.Warn().
			Str("range_id", updated.ID).
			Str("taxpayer_id", updated.TaxpayerID).
			Str("document_type", string(updated.DocumentType)).
			Str("status", string(updated.Status)).
			Int64("available", out.AvailableCount).
			Int64("low_water_mark", updated.LowWaterMark).
			Msg("rango dejó de estar disponible")
	}
	return out, nil
}

// withRetry repite op mientras el almacén reporte conflicto de concurrencia.
// Agotados los reintentos devuelve un error que coincide con domain.ErrTransient.
func withRetry[T any](ctx context.Context, maxRetries int, backoff time.Duration, op func() (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		out, err := op()
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, domain.ErrConcurrencyConflict) {
			return zero, err
		}
		if attempt >= maxRetries {
			return zero, fmt.Errorf("%w: %d intentos: %w", domain.ErrTransient, attempt+1, err)
		}
		if backoff > 0 {
			t := time.NewTimer(time.Duration(attempt+1) * backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return zero, ctx.Err()
			case <-t.C:
			}
		} else if err := ctx.Err(); err != nil {
			return zero, err
		}
	}
}
