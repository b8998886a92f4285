package document

import "bapflow/actor"

// Action is one of the operations the approval engine executes. The full
// capability set is create, update, submit, review, approve-pic,
// approve-direksi, reject, delete.
type Action string

const (
	ActionCreate         Action = "create"
	ActionUpdate         Action = "update"
	ActionSubmit         Action = "submit"
	ActionReview         Action = "review"
	ActionApprovePic     Action = "approve_pic"
	ActionApproveDireksi Action = "approve_direksi"
	ActionReject         Action = "reject"
	ActionDelete         Action = "delete"
)

// rule is one row of the transition table: which roles may perform the
// action, from which statuses, landing on which status. ownerOnly actions
// additionally require the caller to be the document's owning vendor.
type rule struct {
	roles     map[actor.Role]struct{}
	from      map[Status]struct{}
	to        Status
	ownerOnly bool
}

func roles(rs ...actor.Role) map[actor.Role]struct{} {
	m := make(map[actor.Role]struct{}, len(rs))
	for _, r := range rs {
		m[r] = struct{}{}
	}
	return m
}

func statuses(ss ...Status) map[Status]struct{} {
	m := make(map[Status]struct{}, len(ss))
	for _, s := range ss {
		m[s] = struct{}{}
	}
	return m
}

// transitions is the approval graph as data, shared by both document kinds.
var transitions = map[Action]rule{
	ActionCreate: {
		roles: roles(actor.RoleVendor),
		to:    StatusDraft,
	},
	ActionUpdate: {
		roles:     roles(actor.RoleVendor),
		from:      statuses(StatusDraft),
		to:        StatusDraft,
		ownerOnly: true,
	},
	ActionSubmit: {
		roles:     roles(actor.RoleVendor),
		from:      statuses(StatusDraft),
		to:        StatusSubmitted,
		ownerOnly: true,
	},
	ActionReview: {
		roles: roles(actor.RolePic),
		from:  statuses(StatusSubmitted),
		to:    StatusReviewed,
	},
	ActionApprovePic: {
		roles: roles(actor.RolePic),
		from:  statuses(StatusReviewed),
		to:    StatusApprovedPic,
	},
	ActionApproveDireksi: {
		roles: roles(actor.RoleDireksi),
		from:  statuses(StatusApprovedPic),
		to:    StatusApprovedDireksi,
	},
	ActionReject: {
		roles: roles(actor.RolePic, actor.RoleDireksi),
		from:  statuses(StatusSubmitted, StatusReviewed),
		to:    StatusRejected,
	},
	ActionDelete: {
		roles:     roles(actor.RoleVendor),
		from:      statuses(StatusDraft, StatusSubmitted),
		ownerOnly: true,
	},
}

// Permitted reports whether the role may perform the action at all,
// independent of document state. Consulted once at the top of every engine
// command.
func Permitted(role actor.Role, action Action) bool {
	r, ok := transitions[action]
	if !ok {
		return false
	}
	_, ok = r.roles[role]
	return ok
}

// CanTransition reports whether the action is legal from the given status.
func CanTransition(action Action, from Status) bool {
	r, ok := transitions[action]
	if !ok || r.from == nil {
		return false
	}
	_, ok = r.from[from]
	return ok
}

// NextStatus returns the status the action lands on. Delete has no
// destination; its second return is false.
func NextStatus(action Action) (Status, bool) {
	r, ok := transitions[action]
	if !ok || r.to == "" {
		return "", false
	}
	return r.to, true
}

func ownerOnly(action Action) bool {
	return transitions[action].ownerOnly
}
