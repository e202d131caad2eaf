package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/ecf-numeracion/internal/domain"
	"github.com/jhoicas/ecf-numeracion/internal/domain/entity"
	"github.com/jhoicas/ecf-numeracion/internal/domain/repository"
)

func TestApplyFilter_EstadoDerivado(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	query, args, err := applyFilter(psql.Select("id").From("number_ranges"), repository.RangeFilter{
		OwnerID:      "o1",
		TaxpayerID:   "130123456",
		DocumentType: "32",
		Status:       entity.StatusActive,
		Now:          now,
	}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, query, "owner_id = $1")
	assert.Contains(t, query, "taxpayer_id = $2")
	assert.Contains(t, query, "document_type = $3")
	assert.Contains(t, query, "status <> 'disabled' AND expires_at >= $4 AND "+available+" > low_water_mark")
	assert.Equal(t, []any{"o1", "130123456", "32", now}, args)
}

func TestApplyFilter_BusquedaYVencimiento(t *testing.T) {
	limit := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	query, args, err := applyFilter(psql.Select("id").From("number_ranges"), repository.RangeFilter{
		Search:        "norte",
		ExpiresBefore: &limit,
	}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, query, "expires_at < $1")
	assert.Contains(t, query, "legal_name ILIKE $2 OR comment ILIKE $3")
	assert.Equal(t, []any{limit, "%norte%", "%norte%"}, args)
}

func TestApplyFilter_BusquedaEscapaComodines(t *testing.T) {
	_, args, err := applyFilter(psql.Select("id").From("number_ranges"), repository.RangeFilter{
		Search: `100%_a\b`,
	}).ToSql()
	require.NoError(t, err)
	want := `%100\%\_a\\b%`
	assert.Equal(t, []any{want, want}, args)
}

func TestApplyFilter_Deshabilitado(t *testing.T) {
	query, args, err := applyFilter(psql.Select("id").From("number_ranges"), repository.RangeFilter{
		Status: entity.StatusDisabled,
	}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "status = $1")
	assert.Equal(t, []any{"disabled"}, args)
}

func TestMapPgError(t *testing.T) {
	cases := []struct {
		code string
		want error
	}{
		{pgerrcode.SerializationFailure, domain.ErrConcurrencyConflict},
		{pgerrcode.DeadlockDetected, domain.ErrConcurrencyConflict},
		{pgerrcode.LockNotAvailable, domain.ErrConcurrencyConflict},
		{pgerrcode.ExclusionViolation, domain.ErrOverlap},
	}
	for _, tc := range cases {
		err := mapPgError(&pgconn.PgError{Code: tc.code, Message: "x"})
		assert.ErrorIs(t, err, tc.want, tc.code)
	}

	excl := mapPgError(&pgconn.PgError{
		Code:           pgerrcode.ExclusionViolation,
		ConstraintName: "number_ranges_no_overlap",
		Detail:         "Key (...)=(o1, 130123456, 32, [15,26)) conflicts with existing key",
	})
	assert.ErrorIs(t, excl, domain.ErrOverlap)
	assert.ErrorContains(t, excl, "number_ranges_no_overlap")
	assert.ErrorContains(t, excl, "[15,26)")

	unique := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "number_ranges_pkey"}
	err := mapPgError(unique)
	assert.ErrorContains(t, err, "number_ranges_pkey")
	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr))

	plain := errors.New("io")
	assert.Same(t, plain, mapPgError(plain))
}
