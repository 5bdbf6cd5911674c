package errors

import "errors"

// Startup errors. These abort the process.
var (
	ErrConfigIncomplete = errors.New("configuration incomplete")
	ErrStoreUnavailable = errors.New("storage unavailable")
)

// Per-identity sync errors. These are logged and isolated: a failure
// on one playlist never stops processing of others. There is no
// automatic retry; the next change notification is the retry trigger.
var (
	ErrPathOutsideBase  = errors.New("track path outside base folder")
	ErrSourceUnreadable = errors.New("source playlist unreadable")
	ErrDestinationWrite = errors.New("destination write failed")
)
