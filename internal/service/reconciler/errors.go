package reconciler

import "errors"

// Sentinel errors for the reconciler service layer.
var (
	ErrStoreUnavailable     = errors.New("conversation store unavailable")
	ErrConversationNotFound = errors.New("conversation not found")
)
