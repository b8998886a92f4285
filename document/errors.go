package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when no document row exists for the identifier.
	ErrNotFound = errors.New("document: not found")
	// ErrForbidden signals the caller's role or ownership does not permit the action.
	ErrForbidden = errors.New("document: forbidden")
	// ErrInvalidTransition signals the current status does not allow the action.
	ErrInvalidTransition = errors.New("document: invalid status transition")
	// ErrDuplicateNumber signals a document-number collision within the same kind.
	ErrDuplicateNumber = errors.New("document: duplicate document number")
	// ErrStorage wraps persistence failures that are not known to be retryable.
	ErrStorage = errors.New("document: storage error")
	// ErrTransient wraps timeouts and lock contention; the whole transition is
	// one transaction, so a caller may retry safely.
	ErrTransient = errors.New("document: transient storage error")
)

// WrapStorage classifies a low-level persistence error into the taxonomy so
// raw driver errors never cross a package boundary unclassified. The
// attachment layer shares it so callers triage retries the same way on both
// sides of a transition.
func WrapStorage(op string, err error) error {
	return wrapStorage(op, err)
}

func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %w", ErrTransient, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return fmt.Errorf("%w: %s", ErrDuplicateNumber, op)
		// 55P03 lock_not_available, 40001/40P01 serialization and deadlock
		// failures, class 57 operator intervention (query_canceled,
		// admin_shutdown), class 08 connection errors.
		case pgErr.Code == "55P03",
			pgErr.Code == "40001", pgErr.Code == "40P01",
			len(pgErr.Code) >= 2 && (pgErr.Code[:2] == "57" || pgErr.Code[:2] == "08"):
			return fmt.Errorf("%w: %s: %w", ErrTransient, op, err)
		}
	}

	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
