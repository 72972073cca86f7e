package client

import "errors"

var (
	ErrSessionInProgress = errors.New("a session is already connecting or active")
	ErrNotActive         = errors.New("no active session")
	ErrNoStoredIdentity  = errors.New("no restorable identity in the store")
)
