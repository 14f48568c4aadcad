package auth

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"github.com/halisaha/teammatch/internal/domain/player"
)

// KeyDeriver turns a bearer credential into a stable opaque key. Raw tokens
// never end up in cache keys, logs or metrics labels.
type KeyDeriver struct {
	key []byte
}

// NewKeyDeriver creates a deriver keyed with secret. blake2b accepts keys up
// to 64 bytes; longer secrets are hashed down first.
func NewKeyDeriver(secret string) KeyDeriver {
	key := []byte(secret)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	return KeyDeriver{key: key}
}

// SessionKey returns the hex encoded keyed BLAKE2b-256 hash of cred.
// An empty credential maps to an empty key.
func (d KeyDeriver) SessionKey(cred player.Credential) string {
	if cred.IsEmpty() {
		return ""
	}
	h, err := blake2b.New256(d.key)
	if err != nil {
		// New256 only fails for keys longer than 64 bytes.
		panic(err)
	}
	h.Write([]byte(cred))
	return hex.EncodeToString(h.Sum(nil))
}
