package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/ecf-numeracion/internal/domain"
)

// mapPgError traduce errores de PostgreSQL a errores de dominio cuando corresponde.
// Bloqueos mutuos y fallas de serialización se reportan como ErrConcurrencyConflict
// para que el asignador reintente.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
		return fmt.Errorf("%w: %s", domain.ErrConcurrencyConflict, pgErr.Message)
	case pgerrcode.ExclusionViolation:
		return fmt.Errorf("%w: %s: %s", domain.ErrOverlap, pgErr.ConstraintName, pgErr.Detail)
	case pgerrcode.UniqueViolation:
		return fmt.Errorf("registro duplicado: %s: %w", pgErr.ConstraintName, err)
	}
	return err
}
