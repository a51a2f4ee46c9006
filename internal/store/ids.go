package store

import (
	"crypto/rand"
	"encoding/hex"
)

func newRowID() string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
