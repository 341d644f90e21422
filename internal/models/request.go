package models

import "fmt"

// RequestKind distinguishes the two pending request flavors.
type RequestKind string

const (
	RequestKindFriend RequestKind = "friend"
	RequestKindGroup  RequestKind = "group"
)

// PendingRequest is one outstanding friend-add or group-invite request
// awaiting an administrator decision. Persisted as {type, flag, time}.
type PendingRequest struct {
	Kind RequestKind `json:"type"`

	// ApprovalToken is the opaque flag issued by the platform with the
	// original request. It must be stored verbatim and passed back
	// unmodified to approve or deny.
	ApprovalToken string `json:"flag"`

	// CreatedAt is the receipt time in Unix milliseconds.
	CreatedAt int64 `json:"time"`
}

// RequestRecordKey derives the store key for a kind+identity pair. A newer
// request for the same identity overwrites the older record.
func RequestRecordKey(kind RequestKind, identity int64) string {
	return fmt.Sprintf("%s_%d", kind, identity)
}
