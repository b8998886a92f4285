// Package ledger is the append-only history of document approval events.
// All business validation happens in the approval engine before an entry
// reaches Append; the ledger only fails on storage errors.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Append writes one history entry inside the caller's transaction. Entries
// are never mutated afterwards; the only delete path is DeleteByDocument.
func (l *Ledger) Append(ctx context.Context, tx pgx.Tx, entry Entry) error {
	if entry.DocumentID == "" {
		return fmt.Errorf("ledger: missing document id")
	}
	if entry.Action == "" {
		return fmt.Errorf("ledger: missing action")
	}

	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	body, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("ledger: marshal details: %w", err)
	}

	var before, after any
	if entry.StatusBefore != "" {
		before = entry.StatusBefore
	}
	if entry.StatusAfter != "" {
		after = entry.StatusAfter
	}

	const insertSQL = `
INSERT INTO history_entries
    (kind, document_id, action, actor_role, actor_id, actor_display_name, details, status_before, status_after)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)
`
	if _, err := tx.Exec(ctx, insertSQL,
		entry.Kind,
		entry.DocumentID,
		entry.Action,
		entry.ActorRole,
		entry.ActorID,
		entry.ActorDisplayName,
		body,
		before,
		after,
	); err != nil {
		return fmt.Errorf("ledger: insert entry: %w", err)
	}

	return nil
}

// ListByDocument returns the document's history, newest first.
func (l *Ledger) ListByDocument(ctx context.Context, pool *pgxpool.Pool, kind, documentID string) ([]Entry, error) {
	const selectSQL = `
SELECT id, kind, document_id, action, actor_role, actor_id, actor_display_name,
       details, status_before, status_after, created_at
FROM history_entries
WHERE kind = $1 AND document_id = $2
ORDER BY created_at DESC, id DESC
`
	rows, err := pool.Query(ctx, selectSQL, kind, documentID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list by document: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, 8)
	for rows.Next() {
		var (
			e      Entry
			body   []byte
			before *string
			after  *string
		)
		if err := rows.Scan(
			&e.ID,
			&e.Kind,
			&e.DocumentID,
			&e.Action,
			&e.ActorRole,
			&e.ActorID,
			&e.ActorDisplayName,
			&body,
			&before,
			&after,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ledger: scan entry: %w", err)
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &e.Details); err != nil {
				return nil, fmt.Errorf("ledger: decode details: %w", err)
			}
		}
		if before != nil {
			e.StatusBefore = *before
		}
		if after != nil {
			e.StatusAfter = *after
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate entries: %w", err)
	}
	return out, nil
}

// DeleteByDocument removes all history for a document. Used only by the
// engine's cascading document delete, inside the same transaction.
func (l *Ledger) DeleteByDocument(ctx context.Context, tx pgx.Tx, kind, documentID string) (int64, error) {
	tag, err := tx.Exec(ctx, `DELETE FROM history_entries WHERE kind = $1 AND document_id = $2`, kind, documentID)
	if err != nil {
		return 0, fmt.Errorf("ledger: delete by document: %w", err)
	}
	return tag.RowsAffected(), nil
}
