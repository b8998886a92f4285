package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const documentColumns = `id, kind, document_number, owner_vendor_id, status,
       reviewer_pic_id, review_timestamp, review_note,
       approver_direksi_id, approval_timestamp, approval_note,
       domain_payload, created_at, updated_at`

// Repository owns the documents table. Every mutator takes the caller's
// pgx.Tx so document writes and ledger appends always share one transaction;
// there is deliberately no pool-based write path.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Insert creates a new draft for the owning vendor. A document-number
// collision within the kind maps to ErrDuplicateNumber.
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, kind Kind, ownerVendorID string, params CreateParams) (Document, error) {
	payload, err := marshalPayload(params.DomainPayload)
	if err != nil {
		return Document{}, err
	}

	const insertSQL = `
INSERT INTO documents (kind, document_number, owner_vendor_id, status, domain_payload)
VALUES ($1, $2, $3, 'draft', $4::jsonb)
RETURNING ` + documentColumns

	doc, err := scanDocument(tx.QueryRow(ctx, insertSQL, kind, params.DocumentNumber, ownerVendorID, payload))
	if err != nil {
		return Document{}, wrapStorage("insert document", err)
	}
	return doc, nil
}

// GetForUpdate loads the current persisted state under a row lock so at most
// one write transaction is in flight per document at a time.
func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, kind Kind, id string) (Document, error) {
	const selectSQL = `
SELECT ` + documentColumns + `
FROM documents
WHERE kind = $1 AND id = $2
FOR UPDATE`

	doc, err := scanDocument(tx.QueryRow(ctx, selectSQL, kind, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, wrapStorage("select for update", err)
	}
	return doc, nil
}

// UpdateFields rewrites the vendor-editable fields of a draft. Ownership and
// status preconditions are the engine's job; this only performs the write.
func (r *Repository) UpdateFields(ctx context.Context, tx pgx.Tx, kind Kind, id string, params UpdateParams) (Document, error) {
	var payload any
	if params.DomainPayload != nil {
		body, err := marshalPayload(params.DomainPayload)
		if err != nil {
			return Document{}, err
		}
		payload = body
	}

	const updateSQL = `
UPDATE documents
SET document_number = COALESCE($3, document_number),
    domain_payload = COALESCE($4::jsonb, domain_payload),
    updated_at = now()
WHERE kind = $1 AND id = $2
RETURNING ` + documentColumns

	doc, err := scanDocument(tx.QueryRow(ctx, updateSQL, kind, id, params.DocumentNumber, payload))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, wrapStorage("update fields", err)
	}
	return doc, nil
}

// SetStatusParams carries a status write plus the actor metadata recorded on
// the row for the step that just happened. Nil fields are left untouched.
type SetStatusParams struct {
	Kind              Kind
	ID                string
	Status            Status
	ReviewerPicID     *string
	ReviewTimestamp   *time.Time
	ReviewNote        *string
	ApproverDireksiID *string
	ApprovalTimestamp *time.Time
	ApprovalNote      *string
}

// SetStatus performs the single status write of a transition. Only the
// approval engine calls it, always inside the transaction that also appends
// the matching history entry.
func (r *Repository) SetStatus(ctx context.Context, tx pgx.Tx, params SetStatusParams) (Document, error) {
	const updateSQL = `
UPDATE documents
SET status = $3,
    reviewer_pic_id = COALESCE($4, reviewer_pic_id),
    review_timestamp = COALESCE($5, review_timestamp),
    review_note = COALESCE($6, review_note),
    approver_direksi_id = COALESCE($7, approver_direksi_id),
    approval_timestamp = COALESCE($8, approval_timestamp),
    approval_note = COALESCE($9, approval_note),
    updated_at = now()
WHERE kind = $1 AND id = $2
RETURNING ` + documentColumns

	doc, err := scanDocument(tx.QueryRow(ctx, updateSQL,
		params.Kind,
		params.ID,
		params.Status,
		params.ReviewerPicID,
		params.ReviewTimestamp,
		params.ReviewNote,
		params.ApproverDireksiID,
		params.ApprovalTimestamp,
		params.ApprovalNote,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, wrapStorage("set status", err)
	}
	return doc, nil
}

// Delete removes the document row. Attachment and history cascades run
// beforehand in the same transaction.
func (r *Repository) Delete(ctx context.Context, tx pgx.Tx, kind Kind, id string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM documents WHERE kind = $1 AND id = $2`, kind, id)
	if err != nil {
		return wrapStorage("delete document", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID is the read projection for detail views.
func (r *Repository) GetByID(ctx context.Context, pool *pgxpool.Pool, kind Kind, id string) (Document, error) {
	const selectSQL = `
SELECT ` + documentColumns + `
FROM documents
WHERE kind = $1 AND id = $2`

	doc, err := scanDocument(pool.QueryRow(ctx, selectSQL, kind, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, wrapStorage("get by id", err)
	}
	return doc, nil
}

// List returns documents matching the filters, newest first, with the total
// count for pagination. Owner and status filters are optional.
func (r *Repository) List(ctx context.Context, pool *pgxpool.Pool, kind Kind, filters ListFilters) ([]Document, int, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 || filters.PageSize > 100 {
		filters.PageSize = 20
	}

	where := `WHERE kind = $1`
	args := []any{kind}
	if filters.OwnerVendorID != "" {
		args = append(args, filters.OwnerVendorID)
		where += fmt.Sprintf(" AND owner_vendor_id = $%d", len(args))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	countSQL := `SELECT COUNT(*) FROM documents ` + where
	var total int
	if err := pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, wrapStorage("count documents", err)
	}

	args = append(args, filters.PageSize, (filters.Page-1)*filters.PageSize)
	listSQL := fmt.Sprintf(`
SELECT `+documentColumns+`
FROM documents
%s
ORDER BY created_at DESC
LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := pool.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, wrapStorage("list documents", err)
	}
	defer rows.Close()

	out := make([]Document, 0, filters.PageSize)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, wrapStorage("scan document", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, wrapStorage("iterate documents", err)
	}
	return out, total, nil
}

func marshalPayload(payload map[string]any) ([]byte, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("document: marshal payload: %w", err)
	}
	return body, nil
}

func scanDocument(row pgx.Row) (Document, error) {
	var (
		doc     Document
		payload []byte
	)
	err := row.Scan(
		&doc.ID,
		&doc.Kind,
		&doc.DocumentNumber,
		&doc.OwnerVendorID,
		&doc.Status,
		&doc.ReviewerPicID,
		&doc.ReviewTimestamp,
		&doc.ReviewNote,
		&doc.ApproverDireksiID,
		&doc.ApprovalTimestamp,
		&doc.ApprovalNote,
		&payload,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return Document{}, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &doc.DomainPayload); err != nil {
			return Document{}, fmt.Errorf("document: decode payload: %w", err)
		}
	}
	return doc, nil
}
