package document

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"bapflow/actor"
	"bapflow/ledger"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the document write surface the engine drives. Implemented by
// Repository; faked in unit tests.
type Store interface {
	Insert(ctx context.Context, tx pgx.Tx, kind Kind, ownerVendorID string, params CreateParams) (Document, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, kind Kind, id string) (Document, error)
	UpdateFields(ctx context.Context, tx pgx.Tx, kind Kind, id string, params UpdateParams) (Document, error)
	SetStatus(ctx context.Context, tx pgx.Tx, params SetStatusParams) (Document, error)
	Delete(ctx context.Context, tx pgx.Tx, kind Kind, id string) error
}

// HistoryWriter is the ledger surface the engine appends to.
type HistoryWriter interface {
	Append(ctx context.Context, tx pgx.Tx, entry ledger.Entry) error
	DeleteByDocument(ctx context.Context, tx pgx.Tx, kind, documentID string) (int64, error)
}

// AttachmentSweeper removes attachment metadata during cascading delete.
type AttachmentSweeper interface {
	DeleteByDocument(ctx context.Context, tx pgx.Tx, kind, documentID string) (int64, error)
}

// Engine validates and executes document state transitions. It is the single
// write path to document status and history: every command runs one
// transaction that locks the current row, applies exactly one document write,
// and appends exactly one history entry, or nothing at all.
type Engine struct {
	pool        TxBeginner
	store       Store
	history     HistoryWriter
	attachments AttachmentSweeper
	now         func() time.Time
}

// NewEngine constructs the engine. store and history default to the
// PostgreSQL-backed implementations when nil.
func NewEngine(pool TxBeginner, store Store, history HistoryWriter, attachments AttachmentSweeper) *Engine {
	if store == nil {
		store = NewRepository()
	}
	if history == nil {
		history = ledger.NewLedger()
	}
	return &Engine{
		pool:        pool,
		store:       store,
		history:     history,
		attachments: attachments,
		now:         time.Now,
	}
}

// Create opens a new draft owned by the calling vendor.
func (e *Engine) Create(ctx context.Context, caller actor.Identity, kind Kind, params CreateParams) (Document, error) {
	if err := checkKindAndRole(kind, caller, ActionCreate); err != nil {
		return Document{}, err
	}
	if params.DocumentNumber == "" {
		return Document{}, fmt.Errorf("document: document number required")
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return Document{}, wrapStorage("begin tx", err)
	}
	defer tx.Rollback(ctx)

	doc, err := e.store.Insert(ctx, tx, kind, caller.ActorID, params)
	if err != nil {
		return Document{}, err
	}

	if err := e.history.Append(ctx, tx, e.entry(doc, caller, ledger.ActionCreated, "", doc.Status, map[string]any{
		"document_number": doc.DocumentNumber,
	})); err != nil {
		return Document{}, wrapStorage("append history", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Document{}, wrapStorage("commit create", err)
	}
	return doc, nil
}

// Update rewrites a draft's vendor-editable fields.
func (e *Engine) Update(ctx context.Context, caller actor.Identity, kind Kind, id string, params UpdateParams) (Document, error) {
	if err := checkKindAndRole(kind, caller, ActionUpdate); err != nil {
		return Document{}, err
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return Document{}, wrapStorage("begin tx", err)
	}
	defer tx.Rollback(ctx)

	doc, err := e.store.GetForUpdate(ctx, tx, kind, id)
	if err != nil {
		return Document{}, err
	}
	if err := checkDocument(doc, caller, ActionUpdate); err != nil {
		return Document{}, err
	}

	updated, err := e.store.UpdateFields(ctx, tx, kind, id, params)
	if err != nil {
		return Document{}, err
	}

	details := map[string]any{}
	if params.DocumentNumber != nil {
		details["document_number"] = *params.DocumentNumber
	}
	if err := e.history.Append(ctx, tx, e.entry(updated, caller, ledger.ActionUpdated, doc.Status, updated.Status, details)); err != nil {
		return Document{}, wrapStorage("append history", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Document{}, wrapStorage("commit update", err)
	}
	return updated, nil
}

// Submit moves a draft into the review queue.
func (e *Engine) Submit(ctx context.Context, caller actor.Identity, kind Kind, id string) (Document, error) {
	return e.transition(ctx, caller, kind, id, ActionSubmit, ledger.ActionSubmitted, nil,
		func(doc Document, p *SetStatusParams) {})
}

// Review records the PIC's review of a submitted document.
func (e *Engine) Review(ctx context.Context, caller actor.Identity, kind Kind, id, note string) (Document, error) {
	return e.transition(ctx, caller, kind, id, ActionReview, ledger.ActionReviewed, noteDetails(note),
		func(doc Document, p *SetStatusParams) {
			e.stampReviewer(p, caller, note)
		})
}

// ApprovePic records PIC approval of a reviewed document.
func (e *Engine) ApprovePic(ctx context.Context, caller actor.Identity, kind Kind, id, note string) (Document, error) {
	return e.transition(ctx, caller, kind, id, ActionApprovePic, ledger.ActionApproved, noteDetails(note),
		func(doc Document, p *SetStatusParams) {
			e.stampReviewer(p, caller, note)
		})
}

// ApproveDireksi records the final executive approval.
func (e *Engine) ApproveDireksi(ctx context.Context, caller actor.Identity, kind Kind, id, note string) (Document, error) {
	return e.transition(ctx, caller, kind, id, ActionApproveDireksi, ledger.ActionApproved, noteDetails(note),
		func(doc Document, p *SetStatusParams) {
			e.stampApprover(p, caller, note)
		})
}

// Reject declines a submitted or reviewed document. The reason lands on the
// role's note column and in the history entry.
func (e *Engine) Reject(ctx context.Context, caller actor.Identity, kind Kind, id, reason string) (Document, error) {
	details := map[string]any{"reason": reason}
	return e.transition(ctx, caller, kind, id, ActionReject, ledger.ActionRejected, details,
		func(doc Document, p *SetStatusParams) {
			if caller.Role == actor.RoleDireksi {
				e.stampApprover(p, caller, reason)
			} else {
				e.stampReviewer(p, caller, reason)
			}
		})
}

// Delete removes a draft or submitted document together with all of its
// attachments and history entries, all-or-nothing.
func (e *Engine) Delete(ctx context.Context, caller actor.Identity, kind Kind, id string) error {
	if err := checkKindAndRole(kind, caller, ActionDelete); err != nil {
		return err
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return wrapStorage("begin tx", err)
	}
	defer tx.Rollback(ctx)

	doc, err := e.store.GetForUpdate(ctx, tx, kind, id)
	if err != nil {
		return err
	}
	if err := checkDocument(doc, caller, ActionDelete); err != nil {
		return err
	}

	if e.attachments != nil {
		if _, err := e.attachments.DeleteByDocument(ctx, tx, string(kind), id); err != nil {
			return wrapStorage("cascade attachments", err)
		}
	}
	if _, err := e.history.DeleteByDocument(ctx, tx, string(kind), id); err != nil {
		return wrapStorage("cascade history", err)
	}
	if err := e.store.Delete(ctx, tx, kind, id); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapStorage("commit delete", err)
	}
	return nil
}

// NoteAttachment appends an attachment event to the document's history inside
// the caller's transaction. The attachment service invokes it so the metadata
// write and the history entry commit together. Vendors may touch attachments
// only on their own drafts; reviewers and executives only while the document
// sits at their step.
func (e *Engine) NoteAttachment(ctx context.Context, tx pgx.Tx, caller actor.Identity, kind Kind, id string, action ledger.Action, details map[string]any) error {
	if !kind.Valid() {
		return fmt.Errorf("document: invalid kind %q", kind)
	}
	if action != ledger.ActionAttachmentAdded && action != ledger.ActionAttachmentRemoved {
		return fmt.Errorf("document: invalid attachment action %q", action)
	}

	doc, err := e.store.GetForUpdate(ctx, tx, kind, id)
	if err != nil {
		return err
	}

	switch caller.Role {
	case actor.RoleVendor:
		if doc.OwnerVendorID != caller.ActorID {
			return fmt.Errorf("%w: vendor %s does not own document %s", ErrForbidden, caller.ActorID, id)
		}
		if doc.Status != StatusDraft {
			return fmt.Errorf("%w: attachments are editable only on drafts, document is %s", ErrInvalidTransition, doc.Status)
		}
	case actor.RolePic:
		if doc.Status != StatusSubmitted && doc.Status != StatusReviewed {
			return fmt.Errorf("%w: document is %s", ErrInvalidTransition, doc.Status)
		}
	case actor.RoleDireksi:
		if doc.Status != StatusApprovedPic {
			return fmt.Errorf("%w: document is %s", ErrInvalidTransition, doc.Status)
		}
	default:
		return fmt.Errorf("%w: role %s may not manage attachments", ErrForbidden, caller.Role)
	}

	if err := e.history.Append(ctx, tx, e.entry(doc, caller, action, doc.Status, doc.Status, details)); err != nil {
		return wrapStorage("append history", err)
	}
	return nil
}

func (e *Engine) transition(ctx context.Context, caller actor.Identity, kind Kind, id string, action Action, ledgerAction ledger.Action, details map[string]any, mutate func(Document, *SetStatusParams)) (Document, error) {
	if err := checkKindAndRole(kind, caller, action); err != nil {
		return Document{}, err
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return Document{}, wrapStorage("begin tx", err)
	}
	defer tx.Rollback(ctx)

	doc, err := e.store.GetForUpdate(ctx, tx, kind, id)
	if err != nil {
		return Document{}, err
	}
	if err := checkDocument(doc, caller, action); err != nil {
		return Document{}, err
	}

	next, ok := NextStatus(action)
	if !ok {
		return Document{}, fmt.Errorf("document: action %s has no destination status", action)
	}

	params := SetStatusParams{Kind: kind, ID: id, Status: next}
	mutate(doc, &params)

	updated, err := e.store.SetStatus(ctx, tx, params)
	if err != nil {
		return Document{}, err
	}

	if err := e.history.Append(ctx, tx, e.entry(updated, caller, ledgerAction, doc.Status, updated.Status, details)); err != nil {
		return Document{}, wrapStorage("append history", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Document{}, wrapStorage("commit transition", err)
	}
	return updated, nil
}

func (e *Engine) entry(doc Document, caller actor.Identity, action ledger.Action, before, after Status, details map[string]any) ledger.Entry {
	return ledger.Entry{
		Kind:             string(doc.Kind),
		DocumentID:       doc.ID,
		Action:           action,
		ActorRole:        string(caller.Role),
		ActorID:          caller.ActorID,
		ActorDisplayName: caller.DisplayName,
		Details:          details,
		StatusBefore:     string(before),
		StatusAfter:      string(after),
	}
}

func (e *Engine) stampReviewer(p *SetStatusParams, caller actor.Identity, note string) {
	now := e.now().UTC()
	p.ReviewerPicID = &caller.ActorID
	p.ReviewTimestamp = &now
	if note != "" {
		p.ReviewNote = &note
	}
}

func (e *Engine) stampApprover(p *SetStatusParams, caller actor.Identity, note string) {
	now := e.now().UTC()
	p.ApproverDireksiID = &caller.ActorID
	p.ApprovalTimestamp = &now
	if note != "" {
		p.ApprovalNote = &note
	}
}

// checkKindAndRole runs the state-independent preconditions: a known kind and
// a (role, action) pair present in the permission table.
func checkKindAndRole(kind Kind, caller actor.Identity, action Action) error {
	if !kind.Valid() {
		return fmt.Errorf("document: invalid kind %q", kind)
	}
	if caller.ActorID == "" {
		return fmt.Errorf("%w: missing actor id", ErrForbidden)
	}
	if !Permitted(caller.Role, action) {
		return fmt.Errorf("%w: role %s may not %s", ErrForbidden, caller.Role, action)
	}
	return nil
}

// checkDocument runs the state-dependent preconditions against the freshly
// locked row: ownership first, then the transition table.
func checkDocument(doc Document, caller actor.Identity, action Action) error {
	if ownerOnly(action) && doc.OwnerVendorID != caller.ActorID {
		return fmt.Errorf("%w: vendor %s does not own document %s", ErrForbidden, caller.ActorID, doc.ID)
	}
	if !CanTransition(action, doc.Status) {
		return fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, action, doc.Status)
	}
	return nil
}

func noteDetails(note string) map[string]any {
	if note == "" {
		return map[string]any{}
	}
	return map[string]any{"note": note}
}
