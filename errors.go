package clipkeeper

import "errors"

// ErrAlreadyRunning means another daemon holds the instance lock for
// the same data directory.
var ErrAlreadyRunning = errors.New("clipkeeper: another instance is running")
