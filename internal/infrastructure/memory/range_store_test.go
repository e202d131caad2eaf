package memory_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/ecf-numeracion/internal/domain"
	"github.com/jhoicas/ecf-numeracion/internal/domain/entity"
	"github.com/jhoicas/ecf-numeracion/internal/domain/numbering"
	"github.com/jhoicas/ecf-numeracion/internal/domain/repository"
	"github.com/jhoicas/ecf-numeracion/internal/infrastructure/memory"
	"github.com/jhoicas/ecf-numeracion/pkg/ecf"
)

var now = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func newRange(id string, start, end int64, created time.Time) *entity.NumberRange {
	return &entity.NumberRange{
		ID:           id,
		OwnerID:      "owner-1",
		TaxpayerID:   "101234567",
		LegalName:    "Farmacia Los Prados",
		DocumentType: ecf.TypeCreditoFiscal,
		SeriesPrefix: "E",
		RangeStart:   start,
		RangeEnd:     end,
		AuthorizedAt: now.AddDate(0, -2, 0),
		ExpiresAt:    now.AddDate(1, 0, 0),
		LowWaterMark: 1,
		Status:       entity.StatusActive,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func overlapGuard(candidate *entity.NumberRange) repository.InsertGuard {
	return func(siblings []*entity.NumberRange) error {
		return numbering.CheckOverlap(candidate, siblings, "")
	}
}

func TestRangeStore_InsertYLoad(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRangeStore()
	r := newRange("a", 1, 10, now)

	require.NoError(t, store.Insert(ctx, r, nil))
	assert.Equal(t, int64(1), r.Version)

	got, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, r.RangeEnd, got.RangeEnd)

	got.UsedCount = 9
	again, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, again.UsedCount, "Load devuelve copias independientes")

	_, err = store.Load(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRangeStore_InsertConGuardia(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRangeStore()
	first := newRange("a", 10, 20, now)
	require.NoError(t, store.Insert(ctx, first, overlapGuard(first)))

	second := newRange("b", 15, 25, now)
	err := store.Insert(ctx, second, overlapGuard(second))
	assert.ErrorIs(t, err, domain.ErrOverlap)

	_, err = store.Load(ctx, "b")
	assert.ErrorIs(t, err, domain.ErrNotFound, "un rango rechazado no se persiste")
}

func TestRangeStore_InsertsConcurrentesSolapados(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRangeStore()

	const n = 20
	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := newRange(fmt.Sprintf("r%d", i), 100, 200, now)
			if err := store.Insert(ctx, r, overlapGuard(r)); err == nil {
				ok.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok.Load(), "solo uno de los rangos idénticos puede quedar autorizado")
}

func TestRangeStore_AtomicUpdate(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRangeStore()
	require.NoError(t, store.Insert(ctx, newRange("a", 1, 10, now), nil))

	out, err := store.AtomicUpdate(ctx, "a", func(r *entity.NumberRange, _ repository.SiblingLoader) error {
		r.UsedCount++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.UsedCount)
	assert.Equal(t, int64(2), out.Version)

	boom := errors.New("boom")
	_, err = store.AtomicUpdate(ctx, "a", func(r *entity.NumberRange, _ repository.SiblingLoader) error {
		r.UsedCount = 99
		return boom
	})
	assert.ErrorIs(t, err, boom)
	got, _ := store.Load(ctx, "a")
	assert.Equal(t, int64(1), got.UsedCount, "un error en fn descarta la mutación")

	_, err = store.AtomicUpdate(ctx, "missing", func(*entity.NumberRange, repository.SiblingLoader) error { return nil })
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRangeStore_AtomicUpdateCanceladoNoAplica(t *testing.T) {
	store := memory.NewRangeStore()
	require.NoError(t, store.Insert(context.Background(), newRange("a", 1, 10, now), nil))

	ctx, cancel := context.WithCancel(context.Background())
	_, err := store.AtomicUpdate(ctx, "a", func(r *entity.NumberRange, _ repository.SiblingLoader) error {
		r.UsedCount++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	got, _ := store.Load(context.Background(), "a")
	assert.Zero(t, got.UsedCount)
}

func TestRangeStore_AtomicUpdateConcurrente(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRangeStore()
	require.NoError(t, store.Insert(ctx, newRange("a", 1, 1000, now), nil))

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.AtomicUpdate(ctx, "a", func(r *entity.NumberRange, _ repository.SiblingLoader) error {
				r.UsedCount++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, _ := store.Load(ctx, "a")
	assert.Equal(t, int64(n), got.UsedCount)
	assert.Equal(t, int64(n+1), got.Version)
}

func TestRangeStore_SiblingLoader(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRangeStore()
	require.NoError(t, store.Insert(ctx, newRange("a", 1, 10, now), nil))
	require.NoError(t, store.Insert(ctx, newRange("b", 11, 20, now), nil))
	other := newRange("c", 1, 10, now)
	other.DocumentType = ecf.TypeConsumo
	require.NoError(t, store.Insert(ctx, other, nil))

	_, err := store.AtomicUpdate(ctx, "a", func(r *entity.NumberRange, siblings repository.SiblingLoader) error {
		list, err := siblings()
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "b", list[0].ID)
		// llamarlo dos veces no debe bloquear
		_, err = siblings()
		return err
	})
	require.NoError(t, err)
}

func TestRangeStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRangeStore()
	require.NoError(t, store.Insert(ctx, newRange("a", 1, 10, now), nil))

	inUse := errors.New("in use")
	err := store.Delete(ctx, "a", func(*entity.NumberRange) error { return inUse })
	assert.ErrorIs(t, err, inUse)
	_, err = store.Load(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "a", nil))
	_, err = store.Load(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "a", nil), domain.ErrNotFound)
}

func TestRangeStore_LoadManyFiltrosYOrden(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRangeStore()

	old := newRange("old", 1, 10, now.Add(-3*time.Hour))
	mid := newRange("mid", 11, 20, now.Add(-2*time.Hour))
	mid.Comment = "lote de sucursal norte"
	recent := newRange("recent", 21, 30, now.Add(-time.Hour))
	recent.Status = entity.StatusDisabled
	foreign := newRange("foreign", 1, 10, now)
	foreign.OwnerID = "owner-2"
	for _, r := range []*entity.NumberRange{old, mid, recent, foreign} {
		require.NoError(t, store.Insert(ctx, r, nil))
	}

	list, err := store.LoadMany(ctx, repository.RangeFilter{OwnerID: "owner-1", Now: now})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"old", "mid", "recent"}, ids(list))

	list, err = store.LoadMany(ctx, repository.RangeFilter{OwnerID: "owner-1", Now: now, Order: repository.OrderCreatedDesc, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"recent", "mid"}, ids(list))

	list, err = store.LoadMany(ctx, repository.RangeFilter{OwnerID: "owner-1", Now: now, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"recent"}, ids(list))

	list, err = store.LoadMany(ctx, repository.RangeFilter{OwnerID: "owner-1", Now: now, Status: entity.StatusDisabled})
	require.NoError(t, err)
	assert.Equal(t, []string{"recent"}, ids(list))

	list, err = store.LoadMany(ctx, repository.RangeFilter{OwnerID: "owner-1", Now: now, Search: "NORTE"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mid"}, ids(list))

	n, err := store.Count(ctx, repository.RangeFilter{OwnerID: "owner-1", Now: now, Status: entity.StatusActive})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRangeStore_Summarize(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRangeStore()

	active := newRange("active", 1, 100, now)
	active.UsedCount = 50
	soon := newRange("soon", 101, 200, now)
	soon.ExpiresAt = now.AddDate(0, 0, 10)
	low := newRange("low", 201, 210, now)
	low.LowWaterMark = 5
	low.UsedCount = 6
	expired := newRange("expired", 211, 220, now)
	expired.ExpiresAt = now.Add(-time.Hour)
	for _, r := range []*entity.NumberRange{active, soon, low, expired} {
		require.NoError(t, store.Insert(ctx, r, nil))
	}

	sum, err := store.Summarize(ctx, "owner-1", now, now.AddDate(0, 0, 30))
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 2, sum.ByStatus[entity.StatusActive])
	assert.Equal(t, 1, sum.ByStatus[entity.StatusExhausted])
	assert.Equal(t, 1, sum.ByStatus[entity.StatusExpired])
	assert.Equal(t, 0, sum.ByStatus[entity.StatusDisabled])
	assert.Equal(t, 1, sum.ExpiringSoon)
	assert.Equal(t, 1, sum.LowWaterAlert)
	assert.Equal(t, int64(220), sum.TotalNumbers)
	assert.Equal(t, int64(56), sum.UsedNumbers)
	assert.Equal(t, "25.45", sum.UsedPercent.StringFixed(2))
}

func ids(list []*entity.NumberRange) []string {
	out := make([]string, 0, len(list))
	for _, r := range list {
		out = append(out, r.ID)
	}
	return out
}
