package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/ecf-numeracion/internal/domain"
	"github.com/jhoicas/ecf-numeracion/internal/domain/entity"
	"github.com/jhoicas/ecf-numeracion/internal/domain/repository"
	"github.com/jhoicas/ecf-numeracion/pkg/ecf"
)

var _ repository.RangeStore = (*RangeStore)(nil)

const rangeColumns = `id, owner_id, taxpayer_id, legal_name, document_type, series_prefix,
	range_start, range_end, used_count, authorized_at, expires_at, low_water_mark,
	status, comment, version, created_at, updated_at`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// RangeStore implementa RangeStore sobre PostgreSQL.
//
// AtomicUpdate bloquea la fila con SELECT ... FOR UPDATE y escribe con guardia de versión.
// Los chequeos de solapamiento toman pg_advisory_xact_lock sobre la clave del rango;
// la restricción EXCLUDE de la tabla es la última barrera.
type RangeStore struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

// NewRangeStore construye el repositorio.
func NewRangeStore(pool *pgxpool.Pool) *RangeStore {
	return &RangeStore{pool: pool, tx: NewTxRunner(pool)}
}

// rangeRow fila de number_ranges tal como la lee scany.
type rangeRow struct {
	ID           string    `db:"id"`
	OwnerID      string    `db:"owner_id"`
	TaxpayerID   string    `db:"taxpayer_id"`
	LegalName    string    `db:"legal_name"`
	DocumentType string    `db:"document_type"`
	SeriesPrefix string    `db:"series_prefix"`
	RangeStart   int64     `db:"range_start"`
	RangeEnd     int64     `db:"range_end"`
	UsedCount    int64     `db:"used_count"`
	AuthorizedAt time.Time `db:"authorized_at"`
	ExpiresAt    time.Time `db:"expires_at"`
	LowWaterMark int64     `db:"low_water_mark"`
	Status       string    `db:"status"`
	Comment      string    `db:"comment"`
	Version      int64     `db:"version"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (row *rangeRow) toEntity() *entity.NumberRange {
	return &entity.NumberRange{
		ID:           row.ID,
		OwnerID:      row.OwnerID,
		TaxpayerID:   row.TaxpayerID,
		LegalName:    row.LegalName,
		DocumentType: ecf.DocumentType(row.DocumentType),
		SeriesPrefix: row.SeriesPrefix,
		RangeStart:   row.RangeStart,
		RangeEnd:     row.RangeEnd,
		UsedCount:    row.UsedCount,
		AuthorizedAt: row.AuthorizedAt,
		ExpiresAt:    row.ExpiresAt,
		LowWaterMark: row.LowWaterMark,
		Status:       entity.RangeStatus(row.Status),
		Comment:      row.Comment,
		Version:      row.Version,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func (s *RangeStore) Load(ctx context.Context, id string) (*entity.NumberRange, error) {
	var row rangeRow
	err := pgxscan.Get(ctx, s.pool, &row, `SELECT `+rangeColumns+` FROM number_ranges WHERE id = $1`, id)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, &domain.NotFoundError{Entity: "number_range", ID: id}
		}
		return nil, fmt.Errorf("get number_range by id: %w", mapPgError(err))
	}
	return row.toEntity(), nil
}

func (s *RangeStore) LoadMany(ctx context.Context, filter repository.RangeFilter) ([]*entity.NumberRange, error) {
	b := applyFilter(psql.Select(rangeColumns).From("number_ranges"), filter)
	if filter.Order == repository.OrderCreatedDesc {
		b = b.OrderBy("created_at DESC", "id")
	} else {
		b = b.OrderBy("created_at ASC", "id")
	}
	if filter.Limit > 0 {
		b = b.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		b = b.Offset(uint64(filter.Offset))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list number_ranges: %w", err)
	}
	var rows []*rangeRow
	if err := pgxscan.Select(ctx, s.pool, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list number_ranges: %w", mapPgError(err))
	}
	list := make([]*entity.NumberRange, 0, len(rows))
	for _, row := range rows {
		list = append(list, row.toEntity())
	}
	return list, nil
}

func (s *RangeStore) Count(ctx context.Context, filter repository.RangeFilter) (int, error) {
	query, args, err := applyFilter(psql.Select("count(*)").From("number_ranges"), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count number_ranges: %w", err)
	}
	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count number_ranges: %w", mapPgError(err))
	}
	return n, nil
}

func (s *RangeStore) Insert(ctx context.Context, r *entity.NumberRange, guard repository.InsertGuard) error {
	err := s.tx.Run(ctx, func(tx pgx.Tx) error {
		if err := lockKey(ctx, tx, r.Key()); err != nil {
			return err
		}
		if guard != nil {
			siblings, err := listSiblings(ctx, tx, r.Key(), r.ID)
			if err != nil {
				return err
			}
			if err := guard(siblings); err != nil {
				return err
			}
		}
		const q = `
			INSERT INTO number_ranges
				(id, owner_id, taxpayer_id, legal_name, document_type, series_prefix,
				 range_start, range_end, used_count, authorized_at, expires_at, low_water_mark,
				 status, comment, version, created_at, updated_at)
			VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1, $15, $16)`
		_, err := tx.Exec(ctx, q,
			r.ID, r.OwnerID, r.TaxpayerID, r.LegalName, string(r.DocumentType), r.SeriesPrefix,
			r.RangeStart, r.RangeEnd, r.UsedCount, r.AuthorizedAt, r.ExpiresAt, r.LowWaterMark,
			string(r.Status), r.Comment, r.CreatedAt, r.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert number_range: %w", mapPgError(err))
		}
		r.Version = 1
		return nil
	})
	return s.overlapDetail(ctx, r, err)
}

func (s *RangeStore) AtomicUpdate(ctx context.Context, id string, fn repository.MutateFunc) (*entity.NumberRange, error) {
	var (
		out  *entity.NumberRange
		work *entity.NumberRange
	)
	err := s.tx.Run(ctx, func(tx pgx.Tx) error {
		var row rangeRow
		err := pgxscan.Get(ctx, tx, &row, `SELECT `+rangeColumns+` FROM number_ranges WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			if pgxscan.NotFound(err) {
				return &domain.NotFoundError{Entity: "number_range", ID: id}
			}
			return fmt.Errorf("lock number_range: %w", mapPgError(err))
		}
		cur := row.toEntity()
		work = cur.Clone()

		keyLocked := false
		loader := func() ([]*entity.NumberRange, error) {
			if !keyLocked {
				if err := lockKey(ctx, tx, cur.Key()); err != nil {
					return nil, err
				}
				keyLocked = true
			}
			return listSiblings(ctx, tx, cur.Key(), id)
		}
		if err := fn(work, loader); err != nil {
			return err
		}

		const q = `
			UPDATE number_ranges
			SET legal_name = $3, series_prefix = $4, range_start = $5, range_end = $6,
			    used_count = $7, authorized_at = $8, expires_at = $9, low_water_mark = $10,
			    status = $11, comment = $12, updated_at = $13, version = version + 1
			WHERE id = $1 AND version = $2`
		tag, err := tx.Exec(ctx, q,
			id, cur.Version,
			work.LegalName, work.SeriesPrefix, work.RangeStart, work.RangeEnd,
			work.UsedCount, work.AuthorizedAt, work.ExpiresAt, work.LowWaterMark,
			string(work.Status), work.Comment, work.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update number_range: %w", mapPgError(err))
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("update number_range %s: %w", id, domain.ErrConcurrencyConflict)
		}
		work.ID = cur.ID
		work.Version = cur.Version + 1
		out = work
		return nil
	})
	if err != nil {
		if work != nil {
			err = s.overlapDetail(ctx, work, err)
		}
		return nil, err
	}
	return out, nil
}

func (s *RangeStore) Delete(ctx context.Context, id string, guard func(r *entity.NumberRange) error) error {
	return s.tx.Run(ctx, func(tx pgx.Tx) error {
		var row rangeRow
		err := pgxscan.Get(ctx, tx, &row, `SELECT `+rangeColumns+` FROM number_ranges WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			if pgxscan.NotFound(err) {
				return &domain.NotFoundError{Entity: "number_range", ID: id}
			}
			return fmt.Errorf("lock number_range: %w", mapPgError(err))
		}
		if guard != nil {
			if err := guard(row.toEntity()); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `DELETE FROM number_ranges WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete number_range: %w", mapPgError(err))
		}
		return nil
	})
}

type conflictRow struct {
	ID         string `db:"id"`
	RangeStart int64  `db:"range_start"`
	RangeEnd   int64  `db:"range_end"`
}

// overlapDetail completa un ErrOverlap de la restricción EXCLUDE con el rango en conflicto.
// Otros errores se devuelven sin cambios.
func (s *RangeStore) overlapDetail(ctx context.Context, r *entity.NumberRange, err error) error {
	var oerr *domain.OverlapError
	if err == nil || !errors.Is(err, domain.ErrOverlap) || errors.As(err, &oerr) {
		return err
	}
	const q = `SELECT id, range_start, range_end FROM number_ranges
		WHERE owner_id = $1 AND taxpayer_id = $2 AND document_type = $3 AND id <> $4
		  AND range_start <= $6 AND range_end >= $5
		ORDER BY range_start
		LIMIT 1`
	var c conflictRow
	if qerr := pgxscan.Get(ctx, s.pool, &c, q,
		r.OwnerID, r.TaxpayerID, string(r.DocumentType), r.ID, r.RangeStart, r.RangeEnd,
	); qerr != nil {
		return err
	}
	return &domain.OverlapError{ConflictID: c.ID, ConflictStart: c.RangeStart, ConflictEnd: c.RangeEnd}
}

func lockKey(ctx context.Context, tx pgx.Tx, k entity.RangeKey) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, k.String()); err != nil {
		return fmt.Errorf("lock range key: %w", mapPgError(err))
	}
	return nil
}

func listSiblings(ctx context.Context, tx pgx.Tx, k entity.RangeKey, excludeID string) ([]*entity.NumberRange, error) {
	const q = `SELECT ` + rangeColumns + ` FROM number_ranges
		WHERE owner_id = $1 AND taxpayer_id = $2 AND document_type = $3 AND id <> $4`
	var rows []*rangeRow
	if err := pgxscan.Select(ctx, tx, &rows, q, k.OwnerID, k.TaxpayerID, string(k.DocumentType), excludeID); err != nil {
		return nil, fmt.Errorf("list sibling ranges: %w", mapPgError(err))
	}
	out := make([]*entity.NumberRange, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

// available expresión SQL de AvailableCount.
const available = `(range_end - range_start + 1 - used_count)`

// likeEscaper hace literales los comodines de ILIKE (escape por defecto: barra invertida).
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// applyFilter traduce RangeFilter a condiciones WHERE.
// El filtro por estado reproduce numbering.DeriveStatus a la fecha filter.Now.
func applyFilter(b sq.SelectBuilder, f repository.RangeFilter) sq.SelectBuilder {
	now := f.Now
	if now.IsZero() {
		now = time.Now()
	}
	if f.OwnerID != "" {
		b = b.Where(sq.Eq{"owner_id": f.OwnerID})
	}
	if f.TaxpayerID != "" {
		b = b.Where(sq.Eq{"taxpayer_id": f.TaxpayerID})
	}
	if f.DocumentType != "" {
		b = b.Where(sq.Eq{"document_type": string(f.DocumentType)})
	}
	switch f.Status {
	case entity.StatusDisabled:
		b = b.Where(sq.Eq{"status": string(entity.StatusDisabled)})
	case entity.StatusExpired:
		b = b.Where("status <> 'disabled' AND expires_at < ?", now)
	case entity.StatusExhausted:
		b = b.Where("status <> 'disabled' AND expires_at >= ? AND "+available+" <= low_water_mark", now)
	case entity.StatusActive:
		b = b.Where("status <> 'disabled' AND expires_at >= ? AND "+available+" > low_water_mark", now)
	}
	if f.ExpiresBefore != nil {
		b = b.Where(sq.Lt{"expires_at": *f.ExpiresBefore})
	}
	if f.Search != "" {
		pattern := "%" + likeEscaper.Replace(f.Search) + "%"
		b = b.Where(sq.Or{sq.ILike{"legal_name": pattern}, sq.ILike{"comment": pattern}})
	}
	return b
}

type summaryRow struct {
	Total         int             `db:"total"`
	Active        int             `db:"active"`
	Disabled      int             `db:"disabled"`
	Expired       int             `db:"expired"`
	Exhausted     int             `db:"exhausted"`
	ExpiringSoon  int             `db:"expiring_soon"`
	LowWaterAlert int             `db:"low_water_alert"`
	TotalNumbers  int64           `db:"total_numbers"`
	UsedNumbers   int64           `db:"used_numbers"`
	UsedPercent   decimal.Decimal `db:"used_percent"`
}

func (s *RangeStore) Summarize(ctx context.Context, ownerID string, now, expiringBefore time.Time) (*repository.RangeSummary, error) {
	const q = `
		SELECT
			count(*) AS total,
			count(*) FILTER (WHERE status <> 'disabled' AND expires_at >= $2 AND ` + available + ` > low_water_mark) AS active,
			count(*) FILTER (WHERE status = 'disabled') AS disabled,
			count(*) FILTER (WHERE status <> 'disabled' AND expires_at < $2) AS expired,
			count(*) FILTER (WHERE status <> 'disabled' AND expires_at >= $2 AND ` + available + ` <= low_water_mark) AS exhausted,
			count(*) FILTER (WHERE status <> 'disabled' AND expires_at >= $2 AND ` + available + ` > low_water_mark AND expires_at < $3) AS expiring_soon,
			count(*) FILTER (WHERE status <> 'disabled' AND expires_at >= $2 AND ` + available + ` <= low_water_mark AND ` + available + ` > 0) AS low_water_alert,
			COALESCE(sum(range_end - range_start + 1), 0)::bigint AS total_numbers,
			COALESCE(sum(used_count), 0)::bigint AS used_numbers,
			COALESCE(round(100.0 * sum(used_count) / NULLIF(sum(range_end - range_start + 1), 0), 2), 0) AS used_percent
		FROM number_ranges
		WHERE owner_id = $1`
	var row summaryRow
	if err := pgxscan.Get(ctx, s.pool, &row, q, ownerID, now, expiringBefore); err != nil {
		return nil, fmt.Errorf("summarize number_ranges: %w", mapPgError(err))
	}
	return &repository.RangeSummary{
		Total: row.Total,
		ByStatus: map[entity.RangeStatus]int{
			entity.StatusActive:    row.Active,
			entity.StatusDisabled:  row.Disabled,
			entity.StatusExpired:   row.Expired,
			entity.StatusExhausted: row.Exhausted,
		},
		ExpiringSoon:  row.ExpiringSoon,
		LowWaterAlert: row.LowWaterAlert,
		TotalNumbers:  row.TotalNumbers,
		UsedNumbers:   row.UsedNumbers,
		UsedPercent:   row.UsedPercent,
	}, nil
}
