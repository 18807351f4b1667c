package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewID returns a time-sortable id of the form <prefix>_<unixnano>-<rand>.
// The random suffix keeps ids unique when two are minted in the same
// nanosecond. Generated ids never contain ':' so they are safe to embed
// in store keys.
func NewID(prefix string) string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("%s_%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(b[:]))
}
