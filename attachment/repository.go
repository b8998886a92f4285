package attachment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bapflow/document"
)

// ErrAttachmentNotFound reports a missing attachment row.
var ErrAttachmentNotFound = errors.New("attachment not found")

const attachmentColumns = `id, kind, document_id, uploader_actor_id, file_handle, original_name, size_bytes, uploaded_at`

// Repository persists attachment metadata in PostgreSQL. Writes run inside
// the caller's transaction so they commit together with the history entry.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, rec Record) (Record, error) {
	row := tx.QueryRow(ctx, `
		INSERT INTO attachments (kind, document_id, uploader_actor_id, file_handle, original_name, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+attachmentColumns,
		rec.Kind, rec.DocumentID, rec.UploaderActorID, rec.FileHandle, rec.OriginalName, rec.SizeBytes)

	stored, err := scanRecord(row)
	if err != nil {
		return Record{}, document.WrapStorage("insert attachment", err)
	}
	return stored, nil
}

// GetForUpdate locks the row so a concurrent cascade delete cannot race the
// removal of a single attachment.
func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, kind, documentID, id string) (Record, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+attachmentColumns+`
		FROM attachments
		WHERE id = $1 AND kind = $2 AND document_id = $3
		FOR UPDATE`,
		id, kind, documentID)

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: id %s", ErrAttachmentNotFound, id)
	}
	if err != nil {
		return Record{}, document.WrapStorage("get attachment for update", err)
	}
	return rec, nil
}

func (r *Repository) Delete(ctx context.Context, tx pgx.Tx, kind, documentID, id string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM attachments WHERE id = $1 AND kind = $2 AND document_id = $3`,
		id, kind, documentID)
	if err != nil {
		return document.WrapStorage("delete attachment", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %s", ErrAttachmentNotFound, id)
	}
	return nil
}

// DeleteByDocument removes every attachment row of a document. The document
// engine calls it while cascading a draft delete.
func (r *Repository) DeleteByDocument(ctx context.Context, tx pgx.Tx, kind, documentID string) (int64, error) {
	tag, err := tx.Exec(ctx, `DELETE FROM attachments WHERE kind = $1 AND document_id = $2`, kind, documentID)
	if err != nil {
		return 0, document.WrapStorage("delete attachments by document", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) GetByID(ctx context.Context, pool *pgxpool.Pool, kind, documentID, id string) (Record, error) {
	row := pool.QueryRow(ctx, `
		SELECT `+attachmentColumns+`
		FROM attachments
		WHERE id = $1 AND kind = $2 AND document_id = $3`,
		id, kind, documentID)

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: id %s", ErrAttachmentNotFound, id)
	}
	if err != nil {
		return Record{}, document.WrapStorage("get attachment by id", err)
	}
	return rec, nil
}

func (r *Repository) ListByDocument(ctx context.Context, pool *pgxpool.Pool, kind, documentID string) ([]Record, error) {
	rows, err := pool.Query(ctx, `
		SELECT `+attachmentColumns+`
		FROM attachments
		WHERE kind = $1 AND document_id = $2
		ORDER BY uploaded_at ASC, id ASC`,
		kind, documentID)
	if err != nil {
		return nil, document.WrapStorage("list attachments", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, document.WrapStorage("scan attachment", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, document.WrapStorage("iterate attachments", err)
	}
	return records, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.Kind,
		&rec.DocumentID,
		&rec.UploaderActorID,
		&rec.FileHandle,
		&rec.OriginalName,
		&rec.SizeBytes,
		&rec.UploadedAt,
	)
	return rec, err
}
