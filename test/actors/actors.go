// Package actors contains long-running drivers that push documents through
// the approval engine under contention. Each driver loops until stopped and
// treats the taxonomy conflicts (invalid transition, duplicate number, not
// found) as expected outcomes rather than failures.
package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bapflow/actor"
	"bapflow/document"
)

// expected covers the taxonomy conflicts plus storage errors caused by the
// chaos goroutine killing connections mid-flight. Consistency is judged by
// the oracles, not by individual command failures.
func expected(err error) bool {
	return errors.Is(err, document.ErrInvalidTransition) ||
		errors.Is(err, document.ErrDuplicateNumber) ||
		errors.Is(err, document.ErrNotFound) ||
		errors.Is(err, document.ErrForbidden) ||
		errors.Is(err, document.ErrTransient) ||
		errors.Is(err, document.ErrStorage)
}

// Vendor creates drafts, submits most of them, and deletes or updates the
// rest. Each vendor numbers its documents from its own sequence so creates
// normally succeed; the shared contested number exercises the unique index.
func Vendor(ctx context.Context, eng *document.Engine, ident actor.Identity, kind document.Kind, contestedNumber string, stop <-chan struct{}) error {
	seq := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		var number string
		if rand.Intn(4) == 0 {
			number = contestedNumber
		} else {
			seq++
			number = fmt.Sprintf("%s-%s-%d", kind, ident.ActorID, seq)
		}

		doc, err := eng.Create(ctx, ident, kind, document.CreateParams{
			DocumentNumber: number,
			DomainPayload:  map[string]any{"contract_value": 1000 + rand.Intn(100000)},
		})
		if err != nil {
			if !expected(err) {
				return fmt.Errorf("vendor create: %w", err)
			}
			time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
			continue
		}

		switch rand.Intn(10) {
		case 0:
			// Abandon the draft entirely.
			if err := eng.Delete(ctx, ident, kind, doc.ID); err != nil && !expected(err) {
				return fmt.Errorf("vendor delete: %w", err)
			}
		case 1:
			note := "revised quantity"
			if _, err := eng.Update(ctx, ident, kind, doc.ID, document.UpdateParams{
				DomainPayload: map[string]any{"contract_value": 500, "note": note},
			}); err != nil && !expected(err) {
				return fmt.Errorf("vendor update: %w", err)
			}
			fallthrough
		default:
			if _, err := eng.Submit(ctx, ident, kind, doc.ID); err != nil && !expected(err) {
				return fmt.Errorf("vendor submit: %w", err)
			}
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// Reviewer picks a submitted document and reviews it; two reviewers racing
// for the same document exercise the row lock, the loser sees an invalid
// transition.
func Reviewer(ctx context.Context, pool *pgxpool.Pool, eng *document.Engine, ident actor.Identity, kind document.Kind, stop <-chan struct{}) error {
	return workStatus(ctx, pool, ident, kind, document.StatusSubmitted, stop, func(id string) error {
		_, err := eng.Review(ctx, ident, kind, id, "checked")
		return err
	})
}

// PicApprover advances reviewed documents, occasionally rejecting instead.
func PicApprover(ctx context.Context, pool *pgxpool.Pool, eng *document.Engine, ident actor.Identity, kind document.Kind, stop <-chan struct{}) error {
	return workStatus(ctx, pool, ident, kind, document.StatusReviewed, stop, func(id string) error {
		if rand.Intn(8) == 0 {
			_, err := eng.Reject(ctx, ident, kind, id, "incomplete delivery note")
			return err
		}
		_, err := eng.ApprovePic(ctx, ident, kind, id, "verified")
		return err
	})
}

// DireksiApprover finalizes documents that passed PIC approval. Occasionally
// it instead rejects a document still at submitted or reviewed, the only
// statuses executive rejection is legal from.
func DireksiApprover(ctx context.Context, pool *pgxpool.Pool, eng *document.Engine, ident actor.Identity, kind document.Kind, stop <-chan struct{}) error {
	return workStatus(ctx, pool, ident, kind, document.StatusApprovedPic, stop, func(id string) error {
		if rand.Intn(10) == 0 {
			return rejectEarly(ctx, pool, eng, ident, kind)
		}
		_, err := eng.ApproveDireksi(ctx, ident, kind, id, "release")
		return err
	})
}

// rejectEarly picks one submitted or reviewed document and rejects it.
func rejectEarly(ctx context.Context, pool *pgxpool.Pool, eng *document.Engine, ident actor.Identity, kind document.Kind) error {
	var id string
	err := pool.QueryRow(ctx, `SELECT id FROM documents WHERE kind = $1 AND status IN ($2, $3) ORDER BY random() LIMIT 1`,
		string(kind), string(document.StatusSubmitted), string(document.StatusReviewed)).Scan(&id)
	if err != nil {
		// No candidate, or the pick itself raced a backend kill.
		return nil
	}
	_, err = eng.Reject(ctx, ident, kind, id, "budget exceeded")
	return err
}

// workStatus repeatedly picks a random document at the given status and runs
// act on it. The pick is a plain read, so by the time act runs another actor
// may already have moved the document; those conflicts are expected.
func workStatus(ctx context.Context, pool *pgxpool.Pool, ident actor.Identity, kind document.Kind, status document.Status, stop <-chan struct{}, act func(id string) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		var id string
		err := pool.QueryRow(ctx, `SELECT id FROM documents WHERE kind = $1 AND status = $2 ORDER BY random() LIMIT 1`,
			string(kind), string(status)).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			time.Sleep(time.Duration(20+rand.Intn(30)) * time.Millisecond)
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			time.Sleep(50 * time.Millisecond)
			continue
		}

		if err := act(id); err != nil && !expected(err) {
			return fmt.Errorf("%s on %s: %w", ident.Role, id, err)
		}
		time.Sleep(time.Duration(15+rand.Intn(35)) * time.Millisecond)
	}
}
