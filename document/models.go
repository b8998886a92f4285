package document

import "time"

// Kind distinguishes the two report types moving through the approval chain:
// goods-receipt (BAPB) and work-completion (BAPP). Both share the same
// approval topology.
type Kind string

const (
	KindBAPB Kind = "bapb"
	KindBAPP Kind = "bapp"
)

func (k Kind) Valid() bool {
	return k == KindBAPB || k == KindBAPP
}

// Status is the single current state of a document. Transitions only move
// along the approval graph; approved_direksi and rejected are terminal.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusSubmitted       Status = "submitted"
	StatusReviewed        Status = "reviewed"
	StatusApprovedPic     Status = "approved_pic"
	StatusApprovedDireksi Status = "approved_direksi"
	StatusRejected        Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusReviewed, StatusApprovedPic, StatusApprovedDireksi, StatusRejected:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusApprovedDireksi || s == StatusRejected
}

// Document mirrors the documents table. DomainPayload carries the
// kind-specific fields (contract number, contract_value, delivery or
// work-result details); the engine never branches on its contents.
type Document struct {
	ID                string
	Kind              Kind
	DocumentNumber    string
	OwnerVendorID     string
	Status            Status
	ReviewerPicID     *string
	ReviewTimestamp   *time.Time
	ReviewNote        *string
	ApproverDireksiID *string
	ApprovalTimestamp *time.Time
	ApprovalNote      *string
	DomainPayload     map[string]any
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CreateParams contains the vendor-supplied fields for a new draft.
type CreateParams struct {
	DocumentNumber string
	DomainPayload  map[string]any
}

// UpdateParams contains the fields a vendor may change while the document is
// still a draft. A nil field is left untouched.
type UpdateParams struct {
	DocumentNumber *string
	DomainPayload  map[string]any
}

// ListFilters narrows the read projections used by dashboards.
type ListFilters struct {
	OwnerVendorID string
	Status        Status
	Page          int
	PageSize      int
}
