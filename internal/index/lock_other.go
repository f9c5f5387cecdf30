//go:build !unix

package index

import (
	"os"
	"time"
)

// Cross-process locking is only implemented on unix; SQLite's busy timeout
// still applies elsewhere.
func lockFile(_ *os.File, _ time.Duration) error { return nil }

func unlockFile(_ *os.File) error { return nil }
