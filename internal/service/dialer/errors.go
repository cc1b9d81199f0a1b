package dialer

import "errors"

// Sentinel errors for the dialer service layer.
var (
	ErrStoreUnavailable  = errors.New("campaign store unavailable")
	ErrAgentNotFound     = errors.New("agent not found")
	ErrNoCallerID        = errors.New("agent has no caller id")
	ErrNoPhoneNumberID   = errors.New("agent has no provider phone number")
	ErrInvalidCallWindow = errors.New("invalid call window")
)
