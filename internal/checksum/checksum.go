package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/starford/agenda/internal/models"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Appointment returns the digest of a's JSON form, used as its ETag.
func Appointment(a models.Appointment) string {
	// Times are normalised so the same instant hashes the same in any zone.
	a.Start = a.Start.UTC()
	a.End = a.End.UTC()
	data, _ := json.Marshal(a)
	return Sum(data)
}
