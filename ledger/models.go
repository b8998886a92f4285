package ledger

import "time"

// Action identifies what happened to a document in a history entry.
type Action string

const (
	ActionCreated           Action = "created"
	ActionUpdated           Action = "updated"
	ActionSubmitted         Action = "submitted"
	ActionReviewed          Action = "reviewed"
	ActionApproved          Action = "approved"
	ActionRejected          Action = "rejected"
	ActionAttachmentAdded   Action = "attachment_added"
	ActionAttachmentRemoved Action = "attachment_removed"
)

// Entry is one immutable record in a document's approval history. Kind and
// the status fields are carried as plain strings so the ledger stays a dumb
// append-only sink with no dependency on the document package.
type Entry struct {
	ID               string
	Kind             string
	DocumentID       string
	Action           Action
	ActorRole        string
	ActorID          string
	ActorDisplayName string
	Details          map[string]any
	StatusBefore     string
	StatusAfter      string
	CreatedAt        time.Time
}
