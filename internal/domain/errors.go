package domain

var (
	ErrNotFound          = errString("not found")
	ErrInvalidTransition = errString("invalid job status transition")
	ErrNoKeywords        = errString("keywords are required")
	ErrNoLocations       = errString("locations are required")
)

type errString string

func (e errString) Error() string { return string(e) }
