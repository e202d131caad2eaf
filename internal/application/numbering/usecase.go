package numbering

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/ecf-numeracion/internal/application/dto"
	"github.com/jhoicas/ecf-numeracion/internal/domain"
	"github.com/jhoicas/ecf-numeracion/internal/domain/entity"
	rules "github.com/jhoicas/ecf-numeracion/internal/domain/numbering"
	"github.com/jhoicas/ecf-numeracion/internal/domain/repository"
	"github.com/jhoicas/ecf-numeracion/pkg/ecf"
	"github.com/jhoicas/ecf-numeracion/pkg/logger"
)

// DefaultLowWaterMark umbral aplicado cuando el alta no lo indica.
const DefaultLowWaterMark int64 = 1

// RangeUseCase operaciones externas sobre rangos de numeración.
type RangeUseCase struct {
	store        repository.RangeStore
	alloc        *Allocator
	log          *logger.Logger
	now          func() time.Time
	maxRetries   int
	backoff      time.Duration
	expiringSoon time.Duration
}

// NewRangeUseCase construye el caso de uso con su propio asignador.
func NewRangeUseCase(store repository.RangeStore, log *logger.Logger, opts Options) *RangeUseCase {
	opts = opts.withDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &RangeUseCase{
		store:        store,
		alloc:        NewAllocator(store, log, opts),
		log:          log.Component("ranges"),
		now:          opts.Now,
		maxRetries:   opts.MaxRetries,
		backoff:      opts.RetryBackoff,
		expiringSoon: time.Duration(opts.ExpiringSoonDays) * 24 * time.Hour,
	}
}

func notFound(id string) error {
	return &domain.NotFoundError{Entity: "number_range", ID: id}
}

// CreateRange valida y registra un rango nuevo.
// Devuelve *domain.ValidationError o *domain.OverlapError si no procede.
func (uc *RangeUseCase) CreateRange(ctx context.Context, ownerID string, in dto.CreateRangeRequest) (*dto.RangeResponse, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: propietario vacío", domain.ErrUnauthorized)
	}
	now := uc.now()
	r := &entity.NumberRange{
		ID:           uuid.New().String(),
		OwnerID:      ownerID,
		TaxpayerID:   strings.TrimSpace(in.TaxpayerID),
		LegalName:    rules.NormalizeLegalName(in.LegalName),
		DocumentType: ecf.DocumentType(strings.TrimSpace(in.DocumentType)),
		SeriesPrefix: strings.TrimSpace(in.SeriesPrefix),
		RangeStart:   in.RangeStart,
		RangeEnd:     in.RangeEnd,
		AuthorizedAt: in.AuthorizedAt,
		ExpiresAt:    in.ExpiresAt,
		LowWaterMark: DefaultLowWaterMark,
		Status:       entity.RangeStatus(in.Status),
		Comment:      strings.TrimSpace(in.Comment),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if r.SeriesPrefix == "" {
		r.SeriesPrefix = ecf.DefaultSeriesPrefix
	}
	if in.LowWaterMark != nil {
		r.LowWaterMark = *in.LowWaterMark
	}
	if r.Status == "" {
		r.Status = entity.StatusActive
	}
	if r.Status != entity.StatusActive && r.Status != entity.StatusDisabled {
		verr := &domain.ValidationError{}
		verr.Add("status", "un rango nuevo solo puede crearse active o disabled")
		return nil, verr
	}
	err := uc.store.Insert(ctx, r, func(siblings []*entity.NumberRange) error {
		if err := rules.Validate(r, siblings, false, ""); err != nil {
			return err
		}
		rules.Apply(r, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().
		Str("range_id", r.ID).
		Str("taxpayer_id", r.TaxpayerID).
		Str("document_type", string(r.DocumentType)).
		Int64("start", r.RangeStart).
		Int64("end", r.RangeEnd).
		Msg("rango registrado")
	return toRangeResponse(r, now), nil
}

// GetRange devuelve el rango si pertenece a ownerID.
func (uc *RangeUseCase) GetRange(ctx context.Context, id, ownerID string) (*dto.RangeResponse, error) {
	r, err := uc.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.OwnerID != ownerID {
		return nil, notFound(id)
	}
	return toRangeResponse(r, uc.now()), nil
}

// ListRanges lista los rangos de ownerID, del más reciente al más antiguo.
func (uc *RangeUseCase) ListRanges(ctx context.Context, ownerID string, in dto.ListRangesRequest) (*dto.RangeListResponse, error) {
	in.DefaultPage()
	now := uc.now()
	filter := repository.RangeFilter{
		OwnerID:      ownerID,
		TaxpayerID:   strings.TrimSpace(in.TaxpayerID),
		DocumentType: ecf.DocumentType(strings.TrimSpace(in.DocumentType)),
		Status:       entity.RangeStatus(strings.TrimSpace(in.Status)),
		Search:       strings.TrimSpace(in.Search),
		Now:          now,
		Order:        repository.OrderCreatedDesc,
		Limit:        in.Limit,
		Offset:       in.Offset,
	}
	verr := &domain.ValidationError{}
	if filter.DocumentType != "" && !filter.DocumentType.Valid() {
		verr.Add("document_type", "tipo de comprobante %q no permitido", filter.DocumentType)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		verr.Add("status", "estado %q desconocido", filter.Status)
	}
	if in.ExpiringWithinDays < 0 {
		verr.Add("expiring_within_days", "no puede ser negativo")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	if in.ExpiringWithinDays > 0 {
		limit := now.AddDate(0, 0, in.ExpiringWithinDays)
		filter.ExpiresBefore = &limit
	}

	list, err := uc.store.LoadMany(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := uc.store.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]dto.RangeResponse, 0, len(list))
	for _, r := range list {
		items = append(items, *toRangeResponse(r, now))
	}
	return &dto.RangeListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: in.Limit, Offset: in.Offset, Total: total},
	}, nil
}

// UpdateRange aplica un parche. Contribuyente y tipo nunca cambian; con números
// emitidos solo se admiten comment, low_water_mark y status.
func (uc *RangeUseCase) UpdateRange(ctx context.Context, id, ownerID string, in dto.UpdateRangeRequest) (*dto.RangeResponse, error) {
	updated, err := withRetry(ctx, uc.maxRetries, uc.backoff, func() (*entity.NumberRange, error) {
		return uc.store.AtomicUpdate(ctx, id, func(r *entity.NumberRange, siblings repository.SiblingLoader) error {
			if r.OwnerID != ownerID {
				return notFound(id)
			}
			return uc.applyPatch(r, in, siblings)
		})
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("range_id", updated.ID).Str("status", string(updated.Status)).Msg("rango actualizado")
	return toRangeResponse(updated, uc.now()), nil
}

func (uc *RangeUseCase) applyPatch(r *entity.NumberRange, in dto.UpdateRangeRequest, siblings repository.SiblingLoader) error {
	now := uc.now()

	var locked []string
	if in.TaxpayerID != nil && strings.TrimSpace(*in.TaxpayerID) != r.TaxpayerID {
		locked = append(locked, "taxpayer_id")
	}
	if in.DocumentType != nil && ecf.DocumentType(strings.TrimSpace(*in.DocumentType)) != r.DocumentType {
		locked = append(locked, "document_type")
	}
	if r.UsedCount > 0 {
		if in.LegalName != nil && rules.NormalizeLegalName(*in.LegalName) != r.LegalName {
			locked = append(locked, "legal_name")
		}
		if in.SeriesPrefix != nil && strings.TrimSpace(*in.SeriesPrefix) != r.SeriesPrefix {
			locked = append(locked, "series_prefix")
		}
		if in.RangeStart != nil && *in.RangeStart != r.RangeStart {
			locked = append(locked, "range_start")
		}
		if in.RangeEnd != nil && *in.RangeEnd != r.RangeEnd {
			locked = append(locked, "range_end")
		}
		if in.AuthorizedAt != nil && !in.AuthorizedAt.Equal(r.AuthorizedAt) {
			locked = append(locked, "authorized_at")
		}
		if in.ExpiresAt != nil && !in.ExpiresAt.Equal(r.ExpiresAt) {
			locked = append(locked, "expires_at")
		}
	}
	if len(locked) > 0 {
		return &domain.FieldLockedError{Fields: locked, UsedCount: r.UsedCount}
	}

	boundsChanged := false
	if in.LegalName != nil {
		r.LegalName = rules.NormalizeLegalName(*in.LegalName)
	}
	if in.SeriesPrefix != nil {
		r.SeriesPrefix = strings.TrimSpace(*in.SeriesPrefix)
	}
	if in.RangeStart != nil && *in.RangeStart != r.RangeStart {
		r.RangeStart = *in.RangeStart
		boundsChanged = true
	}
	if in.RangeEnd != nil && *in.RangeEnd != r.RangeEnd {
		r.RangeEnd = *in.RangeEnd
		boundsChanged = true
	}
	if in.AuthorizedAt != nil {
		r.AuthorizedAt = *in.AuthorizedAt
	}
	if in.ExpiresAt != nil {
		r.ExpiresAt = *in.ExpiresAt
	}
	if in.LowWaterMark != nil {
		r.LowWaterMark = *in.LowWaterMark
	}
	if in.Comment != nil {
		r.Comment = strings.TrimSpace(*in.Comment)
	}
	if in.Status != nil {
		to := entity.RangeStatus(strings.TrimSpace(*in.Status))
		from := rules.DeriveStatus(r, now)
		if !to.Valid() || !rules.CanTransition(from, to) {
			verr := &domain.ValidationError{}
			verr.Add("status", "transición de %s a %q no permitida", from, to)
			return verr
		}
		if to == entity.StatusActive && r.Status == entity.StatusDisabled {
			// Rehabilitar: el estado efectivo se vuelve a derivar abajo.
			r.Status = entity.StatusActive
		} else if to == entity.StatusDisabled {
			r.Status = entity.StatusDisabled
		}
	}

	var others []*entity.NumberRange
	if boundsChanged {
		list, err := siblings()
		if err != nil {
			return err
		}
		others = list
	}
	if err := rules.Validate(r, others, true, r.ID); err != nil {
		return err
	}
	rules.Apply(r, now)
	r.UpdatedAt = now
	return nil
}

// DeleteRange elimina un rango sin números emitidos.
func (uc *RangeUseCase) DeleteRange(ctx context.Context, id, ownerID string) error {
	err := uc.store.Delete(ctx, id, func(r *entity.NumberRange) error {
		if r.OwnerID != ownerID {
			return notFound(id)
		}
		if r.UsedCount > 0 {
			return &domain.InUseError{RangeID: r.ID, UsedCount: r.UsedCount}
		}
		return nil
	})
	if err != nil {
		return err
	}
	uc.log.Info().Str("range_id", id).Msg("rango eliminado")
	return nil
}

// ConsumeByRangeID emite el siguiente número de un rango concreto.
func (uc *RangeUseCase) ConsumeByRangeID(ctx context.Context, id, ownerID string) (*dto.ConsumptionResponse, error) {
	c, err := uc.alloc.Consume(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	return toConsumptionResponse(c), nil
}

// ConsumeByTaxpayerAndType emite del rango elegible más antiguo del contribuyente y tipo.
func (uc *RangeUseCase) ConsumeByTaxpayerAndType(ctx context.Context, ownerID, taxpayerID, documentType string) (*dto.ConsumptionResponse, error) {
	taxpayerID = strings.TrimSpace(taxpayerID)
	dt := ecf.DocumentType(strings.TrimSpace(documentType))
	verr := &domain.ValidationError{}
	if !rules.ValidTaxpayerID(taxpayerID) {
		verr.Add("taxpayer_id", "debe tener entre %d y %d dígitos numéricos", rules.TaxpayerIDMinDigits, rules.TaxpayerIDMaxDigits)
	}
	if !dt.Valid() {
		verr.Add("document_type", "tipo de comprobante %q no permitido", dt)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	c, err := uc.alloc.ConsumeNext(ctx, ownerID, taxpayerID, dt)
	if err != nil {
		return nil, err
	}
	return toConsumptionResponse(c), nil
}

// GetStats resume los rangos de ownerID a la fecha actual.
func (uc *RangeUseCase) GetStats(ctx context.Context, ownerID string) (*dto.RangeStatsResponse, error) {
	now := uc.now()
	sum, err := uc.store.Summarize(ctx, ownerID, now, now.Add(uc.expiringSoon))
	if err != nil {
		return nil, err
	}
	byStatus := make(map[string]int, len(entity.AllStatuses))
	for _, st := range entity.AllStatuses {
		byStatus[string(st)] = sum.ByStatus[st]
	}
	return &dto.RangeStatsResponse{
		TotalRanges:        sum.Total,
		ExpiringSoonCount:  sum.ExpiringSoon,
		LowWaterAlertCount: sum.LowWaterAlert,
		CountsByStatus:     byStatus,
		TotalNumbers:       sum.TotalNumbers,
		UsedNumbers:        sum.UsedNumbers,
		UsedPercent:        sum.UsedPercent,
	}, nil
}

func toRangeResponse(r *entity.NumberRange, now time.Time) *dto.RangeResponse {
	if r == nil {
		return nil
	}
	return &dto.RangeResponse{
		ID:             r.ID,
		TaxpayerID:     r.TaxpayerID,
		LegalName:      r.LegalName,
		DocumentType:   string(r.DocumentType),
		DocumentName:   r.DocumentType.Name(),
		SeriesPrefix:   r.SeriesPrefix,
		RangeStart:     r.RangeStart,
		RangeEnd:       r.RangeEnd,
		UsedCount:      r.UsedCount,
		TotalCount:     r.TotalCount(),
		AvailableCount: r.AvailableCount(),
		UsedPercent:    r.UsedPercent(),
		NextNumber:     r.NextFormatted(),
		AuthorizedAt:   r.AuthorizedAt,
		ExpiresAt:      r.ExpiresAt,
		LowWaterMark:   r.LowWaterMark,
		Status:         string(rules.DeriveStatus(r, now)),
		Comment:        r.Comment,
		Version:        r.Version,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func toConsumptionResponse(c *Consumption) *dto.ConsumptionResponse {
	return &dto.ConsumptionResponse{
		RangeID:        c.RangeID,
		IssuedNumber:   c.IssuedNumber,
		Formatted:      c.Formatted,
		AvailableCount: c.AvailableCount,
		Status:         string(c.Status),
	}
}
