package numbering_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jhoicas/ecf-numeracion/internal/application/dto"
	"github.com/jhoicas/ecf-numeracion/internal/application/numbering"
	"github.com/jhoicas/ecf-numeracion/internal/domain"
	"github.com/jhoicas/ecf-numeracion/internal/domain/entity"
	"github.com/jhoicas/ecf-numeracion/internal/domain/repository"
	"github.com/jhoicas/ecf-numeracion/internal/infrastructure/memory"
	"github.com/jhoicas/ecf-numeracion/pkg/logger"
)

const (
	owner    = "company-1"
	taxpayer = "130123456"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	store *memory.RangeStore
	clock *clock
	uc    *numbering.RangeUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := &clock{t: base}
	store := memory.NewRangeStore()
	return &fixture{
		store: store,
		clock: c,
		uc:    numbering.NewRangeUseCase(store, logger.Nop(), numbering.Options{Now: c.Now, MaxRetries: 3}),
	}
}

func createReq(start, end int64) dto.CreateRangeRequest {
	lwm := int64(1)
	return dto.CreateRangeRequest{
		TaxpayerID:   taxpayer,
		LegalName:    "Distribuidora Caribe SRL",
		DocumentType: "32",
		RangeStart:   start,
		RangeEnd:     end,
		AuthorizedAt: base.AddDate(0, -1, 0),
		ExpiresAt:    base.AddDate(1, 0, 0),
		LowWaterMark: &lwm,
	}
}

func (f *fixture) mustCreate(t *testing.T, in dto.CreateRangeRequest) *dto.RangeResponse {
	t.Helper()
	out, err := f.uc.CreateRange(context.Background(), owner, in)
	require.NoError(t, err)
	return out
}

// conflictStore falla AtomicUpdate con ErrConcurrencyConflict las primeras veces.
type conflictStore struct {
	repository.RangeStore
	failures atomic.Int32
	calls    atomic.Int32
}

func (s *conflictStore) AtomicUpdate(ctx context.Context, id string, fn repository.MutateFunc) (*entity.NumberRange, error) {
	s.calls.Add(1)
	if s.failures.Add(-1) >= 0 {
		return nil, domain.ErrConcurrencyConflict
	}
	return s.RangeStore.AtomicUpdate(ctx, id, fn)
}

func ptr[T any](v T) *T { return &v }
