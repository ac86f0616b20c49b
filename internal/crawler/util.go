package crawler

import (
	"crypto/sha256"
	"encoding/hex"
)

func hashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
