package numbering

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jhoicas/ecf-numeracion/internal/domain"
	"github.com/jhoicas/ecf-numeracion/internal/domain/entity"
	rules "github.com/jhoicas/ecf-numeracion/internal/domain/numbering"
	"github.com/jhoicas/ecf-numeracion/internal/domain/repository"
	"github.com/jhoicas/ecf-numeracion/pkg/logger"
)

// DefaultSweepSchedule cada 15 minutos.
const DefaultSweepSchedule = "*/15 * * * *"

var errUnchanged = errors.New("estado sin cambios")

// SweepReport resultado de una pasada.
type SweepReport struct {
	Scanned       int
	Updated       int
	LowWaterAlert int
	ExpiringSoon  int
}

// StatusSweeper persiste el estado derivado de los rangos (vencidos y agotados)
// para que los reportes sobre el estado almacenado no queden desfasados.
type StatusSweeper struct {
	store        repository.RangeStore
	log          *logger.Logger
	now          func() time.Time
	expiringSoon time.Duration
	cron         *cron.Cron
}

// NewStatusSweeper construye el barrido.
func NewStatusSweeper(store repository.RangeStore, log *logger.Logger, opts Options) *StatusSweeper {
	opts = opts.withDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &StatusSweeper{
		store:        store,
		log:          log.Component("sweep"),
		now:          opts.Now,
		expiringSoon: time.Duration(opts.ExpiringSoonDays) * 24 * time.Hour,
		cron:         cron.New(),
	}
}

// Run recorre todos los rangos una vez.
func (s *StatusSweeper) Run(ctx context.Context) (SweepReport, error) {
	var rep SweepReport
	now := s.now()
	list, err := s.store.LoadMany(ctx, repository.RangeFilter{Now: now})
	if err != nil {
		return rep, err
	}
	for _, r := range list {
		rep.Scanned++
		derived := rules.DeriveStatus(r, now)

		if derived == entity.StatusExhausted && r.AvailableCount() > 0 {
			rep.LowWaterAlert++
			s.log.Warn().
				Str("range_id", r.ID).
				Str("taxpayer_id", r.TaxpayerID).
				Str("document_type", string(r.DocumentType)).
				Int64("available", r.AvailableCount()).
				Int64("low_water_mark", r.LowWaterMark).
				Msg("rango bajo el umbral mínimo")
		}
		if derived == entity.StatusActive && r.ExpiresAt.Before(now.Add(s.expiringSoon)) {
			rep.ExpiringSoon++
			s.log.Info().Str("range_id", r.ID).Time("expires_at", r.ExpiresAt).Msg("rango próximo a vencer")
		}
		if derived == r.Status {
			continue
		}

		_, err := s.store.AtomicUpdate(ctx, r.ID, func(cur *entity.NumberRange, _ repository.SiblingLoader) error {
			if !rules.Apply(cur, now) {
				return errUnchanged
			}
			cur.UpdatedAt = now
			return nil
		})
		switch {
		case err == nil:
			rep.Updated++
		case errors.Is(err, errUnchanged), errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrConcurrencyConflict):
			// otro escritor se adelantó; la próxima pasada lo revisa
		default:
			return rep, err
		}
	}
	return rep, nil
}

// Start agenda Run según schedule (formato cron de 5 campos).
func (s *StatusSweeper) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	_, err := s.cron.AddFunc(schedule, func() {
		rep, err := s.Run(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("barrido de estados falló")
			return
		}
		s.log.Info().
			Int("scanned", rep.Scanned).
			Int("updated", rep.Updated).
			Int("low_water_alert", rep.LowWaterAlert).
			Int("expiring_soon", rep.ExpiringSoon).
			Msg("barrido de estados completado")
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Str("schedule", schedule).Msg("barrido de estados agendado")
	return nil
}

// Stop detiene el cron y espera a que termine la pasada en curso.
func (s *StatusSweeper) Stop() {
	<-s.cron.Stop().Done()
}
