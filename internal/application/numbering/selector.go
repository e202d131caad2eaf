package numbering

import (
	"context"
	"errors"

	"github.com/jhoicas/ecf-numeracion/internal/domain"
	"github.com/jhoicas/ecf-numeracion/internal/domain/entity"
	rules "github.com/jhoicas/ecf-numeracion/internal/domain/numbering"
	"github.com/jhoicas/ecf-numeracion/internal/domain/repository"
	"github.com/jhoicas/ecf-numeracion/pkg/ecf"
)

// SelectForConsumption elige el rango elegible más antiguo del contribuyente y tipo.
func (a *Allocator) SelectForConsumption(ctx context.Context, ownerID, taxpayerID string, documentType ecf.DocumentType) (*entity.NumberRange, error) {
	now := a.now()
	list, err := a.store.LoadMany(ctx, repository.RangeFilter{
		OwnerID:      ownerID,
		TaxpayerID:   taxpayerID,
		DocumentType: documentType,
		Status:       entity.StatusActive,
		Now:          now,
		Order:        repository.OrderCreatedAsc,
	})
	if err != nil {
		return nil, err
	}
	picked := rules.PickOldestEligible(list, now)
	if picked == nil {
		return nil, &domain.NoEligibleRangeError{TaxpayerID: taxpayerID, DocumentType: string(documentType)}
	}
	return picked, nil
}

// ConsumeNext selecciona y consume en un paso. Si el rango elegido deja de ser
// elegible entre la selección y el consumo se vuelve a seleccionar, como máximo
// maxRetries+1 veces.
func (a *Allocator) ConsumeNext(ctx context.Context, ownerID, taxpayerID string, documentType ecf.DocumentType) (*Consumption, error) {
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		r, err := a.SelectForConsumption(ctx, ownerID, taxpayerID, documentType)
		if err != nil {
			return nil, err
		}
		c, err := a.Consume(ctx, r.ID, ownerID)
		if err == nil {
			return c, nil
		}
		if errors.Is(err, domain.ErrNotEligible) || errors.Is(err, domain.ErrNotFound) {
			a.log.Debug().Str("range_id", r.ID).Err(err).Msg("rango seleccionado ya no es elegible, reintentando selección")
			continue
		}
		return nil, err
	}
	return nil, &domain.NoEligibleRangeError{TaxpayerID: taxpayerID, DocumentType: string(documentType)}
}
