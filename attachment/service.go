package attachment

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"bapflow/actor"
	"bapflow/document"
	"bapflow/ledger"
	"bapflow/pkg/logger"
)

// TxBeginner opens transactions. Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// MetadataStore is the attachment row surface the service drives. Implemented
// by Repository; faked in unit tests.
type MetadataStore interface {
	Insert(ctx context.Context, tx pgx.Tx, rec Record) (Record, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, kind, documentID, id string) (Record, error)
	Delete(ctx context.Context, tx pgx.Tx, kind, documentID, id string) error
	GetByID(ctx context.Context, pool *pgxpool.Pool, kind, documentID, id string) (Record, error)
	ListByDocument(ctx context.Context, pool *pgxpool.Pool, kind, documentID string) ([]Record, error)
}

// HistoryNotifier records attachment events on the document's history inside
// the same transaction as the metadata write. It also enforces who may touch
// attachments at the document's current status. Implemented by the document
// engine.
type HistoryNotifier interface {
	NoteAttachment(ctx context.Context, tx pgx.Tx, caller actor.Identity, kind document.Kind, id string, action ledger.Action, details map[string]any) error
}

// Service coordinates the blob store and the metadata row. The bytes are
// written to the object store before the row commits, so a visible row always
// points at stored bytes; a crash in between leaves only an orphaned blob.
type Service struct {
	pool     TxBeginner
	reads    *pgxpool.Pool
	repo     MetadataStore
	blobs    BlobStore
	notifier HistoryNotifier
}

// NewService constructs the service. repo defaults to the PostgreSQL-backed
// Repository when nil.
func NewService(pool *pgxpool.Pool, repo MetadataStore, blobs BlobStore, notifier HistoryNotifier) *Service {
	if repo == nil {
		repo = NewRepository()
	}
	return &Service{pool: pool, reads: pool, repo: repo, blobs: blobs, notifier: notifier}
}

// Attach stores the file bytes and commits the metadata row together with an
// attachment_added history entry. If the transaction fails the stored blob is
// removed again.
func (s *Service) Attach(ctx context.Context, caller actor.Identity, kind document.Kind, documentID string, upload Upload) (Record, error) {
	if upload.Filename == "" {
		return Record{}, fmt.Errorf("attachment: filename is required")
	}
	if upload.Reader == nil {
		return Record{}, fmt.Errorf("attachment: file content is required")
	}

	handle := buildHandle(kind, documentID, upload.Filename)
	if err := s.blobs.Put(ctx, handle, upload.Reader, upload.Size, upload.ContentType); err != nil {
		return Record{}, err
	}

	rec, err := s.attachTx(ctx, caller, kind, documentID, handle, upload)
	if err != nil {
		if rmErr := s.blobs.Remove(ctx, handle); rmErr != nil {
			logger.L().Warn("orphaned blob after failed attach",
				zap.String("handle", handle), zap.Error(rmErr))
		}
		return Record{}, err
	}
	return rec, nil
}

func (s *Service) attachTx(ctx context.Context, caller actor.Identity, kind document.Kind, documentID, handle string, upload Upload) (Record, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, document.WrapStorage("begin tx", err)
	}
	defer tx.Rollback(ctx)

	rec, err := s.repo.Insert(ctx, tx, Record{
		Kind:            string(kind),
		DocumentID:      documentID,
		UploaderActorID: caller.ActorID,
		FileHandle:      handle,
		OriginalName:    upload.Filename,
		SizeBytes:       upload.Size,
	})
	if err != nil {
		return Record{}, err
	}

	err = s.notifier.NoteAttachment(ctx, tx, caller, kind, documentID, ledger.ActionAttachmentAdded, map[string]any{
		"attachment_id": rec.ID,
		"file_name":     rec.OriginalName,
		"size_bytes":    rec.SizeBytes,
	})
	if err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, document.WrapStorage("commit attach", err)
	}
	return rec, nil
}

// Remove deletes the metadata row together with an attachment_removed history
// entry, then removes the blob. A failed blob removal is logged, not
// surfaced: the row is already gone and the handle can be swept later.
func (s *Service) Remove(ctx context.Context, caller actor.Identity, kind document.Kind, documentID, attachmentID string) error {
	handle, err := s.removeTx(ctx, caller, kind, documentID, attachmentID)
	if err != nil {
		return err
	}

	if err := s.blobs.Remove(ctx, handle); err != nil {
		logger.L().Warn("orphaned blob after remove",
			zap.String("handle", handle), zap.Error(err))
	}
	return nil
}

func (s *Service) removeTx(ctx context.Context, caller actor.Identity, kind document.Kind, documentID, attachmentID string) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", document.WrapStorage("begin tx", err)
	}
	defer tx.Rollback(ctx)

	rec, err := s.repo.GetForUpdate(ctx, tx, string(kind), documentID, attachmentID)
	if err != nil {
		return "", err
	}

	err = s.notifier.NoteAttachment(ctx, tx, caller, kind, documentID, ledger.ActionAttachmentRemoved, map[string]any{
		"attachment_id": rec.ID,
		"file_name":     rec.OriginalName,
	})
	if err != nil {
		return "", err
	}

	if err := s.repo.Delete(ctx, tx, string(kind), documentID, attachmentID); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", document.WrapStorage("commit remove", err)
	}
	return rec.FileHandle, nil
}

// List returns a document's attachment records in upload order.
func (s *Service) List(ctx context.Context, kind document.Kind, documentID string) ([]Record, error) {
	return s.repo.ListByDocument(ctx, s.reads, string(kind), documentID)
}

// DownloadURL returns a time-limited link to the stored file.
func (s *Service) DownloadURL(ctx context.Context, kind document.Kind, documentID, attachmentID string) (string, error) {
	rec, err := s.repo.GetByID(ctx, s.reads, string(kind), documentID, attachmentID)
	if err != nil {
		return "", err
	}
	return s.blobs.PresignedURL(ctx, rec.FileHandle)
}

// buildHandle derives the object-store key. The uuid prefix keeps repeated
// uploads of the same filename from colliding.
func buildHandle(kind document.Kind, documentID, filename string) string {
	base := path.Base(filename)
	base = strings.ReplaceAll(base, " ", "_")
	return fmt.Sprintf("%s/%s/%s-%s", kind, documentID, uuid.NewString(), base)
}
