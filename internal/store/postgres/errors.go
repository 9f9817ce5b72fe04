package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MikeSquared-Agency/studyplan/internal/store"
)

const (
	codeUndefinedTable      = "42P01"
	codeInvalidTextRep      = "22P02"
	codeForeignKeyViolation = "23503"
)

// mapError translates driver errors into the store's sentinel errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUndefinedTable:
			return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		case codeInvalidTextRep, codeForeignKeyViolation:
			return fmt.Errorf("%w: %v", store.ErrNotFound, err)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return err
}
