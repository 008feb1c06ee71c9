package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New returns a 16-char random hex identifier.
func New() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// rand.Read failing means the platform entropy source is broken;
		// fall back to a time-derived value rather than returning "".
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// NewTest returns a test run identifier of the form test_<unix>_<hex>.
// The unix-seconds prefix keeps ids roughly sortable by start time, the
// random suffix keeps them unique even within the same second.
func NewTest() string {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("test_%d_%06x", time.Now().Unix(), time.Now().UnixNano()&0xffffff)
	}
	return fmt.Sprintf("test_%d_%s", time.Now().Unix(), hex.EncodeToString(b))
}
