package store

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// recordIDKey is the BLAKE3 key for record identifiers. It must stay
// exactly 32 bytes.
var recordIDKey = [32]byte([]byte("go-matcher.metadata-record-id.v1"))

// RecordID derives a stable identifier for the record of documentID posted
// under invitation. The same pair always yields the same ID, so a record
// recreated after its snapshot was lost keeps its identity.
func RecordID(invitation, documentID string) string {
	hasher, err := blake3.NewKeyed(recordIDKey[:])
	if err != nil {
		panic("store: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(invitation))
	hasher.Write([]byte{0})
	hasher.Write([]byte(documentID))
	sum := hasher.Sum(nil)
	return hex.EncodeToString(sum[:16])
}
