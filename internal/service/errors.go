package service

import "errors"

// User errors
var (
	ErrUserNotFound = errors.New("user not found")
)

// Duel search errors
var (
	ErrActiveDuelExists = errors.New("user already has an active duel")
	ErrNotSearching     = errors.New("user is not searching for a duel")
	ErrSameUser         = errors.New("cannot duel against yourself")
)

// Duel errors
var (
	ErrDuelNotFound          = errors.New("duel not found")
	ErrDuelAlreadyFinished   = errors.New("duel already finished")
	ErrNotParticipant        = errors.New("user is not a duel participant")
	ErrConfigurationNotFound = errors.New("duel configuration not found")
	ErrNoTaskAvailable       = errors.New("no task available for duel")
	ErrPendingRequestMissing = errors.New("pending duel request not found")
)
