// Package memory implementa el puerto RangeStore en memoria del proceso.
// Sirve para pruebas y para despliegues de una sola instancia sin base de datos.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/ecf-numeracion/internal/domain"
	"github.com/jhoicas/ecf-numeracion/internal/domain/entity"
	"github.com/jhoicas/ecf-numeracion/internal/domain/numbering"
	"github.com/jhoicas/ecf-numeracion/internal/domain/repository"
)

var _ repository.RangeStore = (*RangeStore)(nil)

// record guarda la versión vigente de un rango. Cada escritura publica una copia nueva,
// así los lectores nunca ven un rango a medio modificar.
type record struct {
	mu  sync.Mutex // serializa AtomicUpdate y Delete sobre este registro
	cur atomic.Pointer[entity.NumberRange]
}

// RangeStore almacén en memoria con lock por registro y lock por clave
// (taxpayer, tipo, propietario) para el chequeo de solapamiento.
type RangeStore struct {
	mu      sync.RWMutex
	records map[string]*record

	keyMu sync.Mutex
	keys  map[string]*sync.Mutex

	now func() time.Time
}

// NewRangeStore construye el almacén vacío.
func NewRangeStore() *RangeStore {
	return &RangeStore{
		records: make(map[string]*record),
		keys:    make(map[string]*sync.Mutex),
		now:     time.Now,
	}
}

func notFound(id string) error {
	return &domain.NotFoundError{Entity: "number_range", ID: id}
}

func (s *RangeStore) keyLock(k entity.RangeKey) *sync.Mutex {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	m, ok := s.keys[k.String()]
	if !ok {
		m = &sync.Mutex{}
		s.keys[k.String()] = m
	}
	return m
}

func (s *RangeStore) get(id string) *record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[id]
}

// siblings devuelve copias de los rangos de la clave k, excepto excludeID.
func (s *RangeStore) siblings(k entity.RangeKey, excludeID string) []*entity.NumberRange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.NumberRange
	for id, rec := range s.records {
		if id == excludeID {
			continue
		}
		r := rec.cur.Load()
		if r != nil && r.Key() == k {
			out = append(out, r.Clone())
		}
	}
	return out
}

func (s *RangeStore) Load(ctx context.Context, id string) (*entity.NumberRange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec := s.get(id)
	if rec == nil {
		return nil, notFound(id)
	}
	r := rec.cur.Load()
	if r == nil {
		return nil, notFound(id)
	}
	return r.Clone(), nil
}

func (s *RangeStore) LoadMany(ctx context.Context, filter repository.RangeFilter) ([]*entity.NumberRange, error) {
	list, err := s.match(ctx, filter)
	if err != nil {
		return nil, err
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(list) {
			return []*entity.NumberRange{}, nil
		}
		list = list[filter.Offset:]
	}
	if filter.Limit > 0 && len(list) > filter.Limit {
		list = list[:filter.Limit]
	}
	return list, nil
}

func (s *RangeStore) Count(ctx context.Context, filter repository.RangeFilter) (int, error) {
	list, err := s.match(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

func (s *RangeStore) match(ctx context.Context, f repository.RangeFilter) ([]*entity.NumberRange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := f.Now
	if now.IsZero() {
		now = s.now()
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))

	s.mu.RLock()
	list := make([]*entity.NumberRange, 0, len(s.records))
	for _, rec := range s.records {
		r := rec.cur.Load()
		if r == nil {
			continue
		}
		if f.OwnerID != "" && r.OwnerID != f.OwnerID {
			continue
		}
		if f.TaxpayerID != "" && r.TaxpayerID != f.TaxpayerID {
			continue
		}
		if f.DocumentType != "" && r.DocumentType != f.DocumentType {
			continue
		}
		if f.Status != "" && numbering.DeriveStatus(r, now) != f.Status {
			continue
		}
		if f.ExpiresBefore != nil && !r.ExpiresAt.Before(*f.ExpiresBefore) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(r.LegalName), search) &&
			!strings.Contains(strings.ToLower(r.Comment), search) {
			continue
		}
		list = append(list, r.Clone())
	}
	s.mu.RUnlock()

	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if f.Order == repository.OrderCreatedDesc {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return list, nil
}

func (s *RangeStore) Insert(ctx context.Context, r *entity.NumberRange, guard repository.InsertGuard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	kl := s.keyLock(r.Key())
	kl.Lock()
	defer kl.Unlock()

	if guard != nil {
		if err := guard(s.siblings(r.Key(), r.ID)); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[r.ID]; exists {
		return fmt.Errorf("insert number_range %s: id duplicado", r.ID)
	}
	stored := r.Clone()
	stored.Version = 1
	rec := &record{}
	rec.cur.Store(stored)
	s.records[r.ID] = rec
	r.Version = stored.Version
	return nil
}

func (s *RangeStore) AtomicUpdate(ctx context.Context, id string, fn repository.MutateFunc) (*entity.NumberRange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec := s.get(id)
	if rec == nil {
		return nil, notFound(id)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	cur := rec.cur.Load()
	if cur == nil {
		return nil, notFound(id)
	}
	work := cur.Clone()

	var kl *sync.Mutex
	defer func() {
		if kl != nil {
			kl.Unlock()
		}
	}()
	loader := func() ([]*entity.NumberRange, error) {
		if kl == nil {
			kl = s.keyLock(cur.Key())
			kl.Lock()
		}
		return s.siblings(cur.Key(), id), nil
	}

	if err := fn(work, loader); err != nil {
		return nil, err
	}
	// Cancelado antes de publicar: no se aplica nada.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	work.ID = cur.ID
	work.Version = cur.Version + 1
	rec.cur.Store(work)
	return work.Clone(), nil
}

func (s *RangeStore) Delete(ctx context.Context, id string, guard func(r *entity.NumberRange) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec := s.get(id)
	if rec == nil {
		return notFound(id)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	cur := rec.cur.Load()
	if cur == nil {
		return notFound(id)
	}
	if guard != nil {
		if err := guard(cur.Clone()); err != nil {
			return err
		}
	}
	rec.cur.Store(nil)

	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()
	return nil
}

func (s *RangeStore) Summarize(ctx context.Context, ownerID string, now, expiringBefore time.Time) (*repository.RangeSummary, error) {
	list, err := s.match(ctx, repository.RangeFilter{OwnerID: ownerID, Now: now})
	if err != nil {
		return nil, err
	}
	sum := &repository.RangeSummary{
		ByStatus:    make(map[entity.RangeStatus]int, len(entity.AllStatuses)),
		UsedPercent: decimal.Zero,
	}
	for _, st := range entity.AllStatuses {
		sum.ByStatus[st] = 0
	}
	for _, r := range list {
		st := numbering.DeriveStatus(r, now)
		sum.Total++
		sum.ByStatus[st]++
		if st == entity.StatusActive && r.ExpiresAt.Before(expiringBefore) {
			sum.ExpiringSoon++
		}
		if st == entity.StatusExhausted && r.AvailableCount() > 0 {
			sum.LowWaterAlert++
		}
		sum.TotalNumbers += r.TotalCount()
		sum.UsedNumbers += r.UsedCount
	}
	if sum.TotalNumbers > 0 {
		sum.UsedPercent = decimal.NewFromInt(sum.UsedNumbers).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(sum.TotalNumbers)).
			Round(2)
	}
	return sum, nil
}
