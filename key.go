package kadence

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/bits"

	"golang.org/x/crypto/ripemd160"
)

// NodeID is a 160-bit fingerprint identifying a node or a content key.
// The canonical form is 20 bytes; the hex form is the lowercase 40-char
// representation.
type NodeID [KeyLen]byte

// GenerateNodeID returns a cryptographically random fingerprint.
func GenerateNodeID() NodeID {
	var id NodeID
	if _, err := rand.Read(id[:]); err != nil {
		panic(fmt.Sprintf("kadence: reading random identity: %v", err))
	}
	return id
}

// HashKey derives the content key for a blob (RMD-160 of the blob). A STORE
// is only valid when its key equals HashKey of the stored bytes.
func HashKey(blob []byte) NodeID {
	h := ripemd160.New()
	h.Write(blob)
	var id NodeID
	copy(id[:], h.Sum(nil))
	return id
}

// ParseNodeID decodes a 40-char hex fingerprint. It returns ErrInvalidKey
// for anything that is not a 160-bit hex value.
func ParseNodeID(s string) (NodeID, error) {
	var id NodeID
	if len(s) != HexKeyLen {
		return id, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	copy(id[:], raw)
	return id, nil
}

// String returns the canonical lowercase hex form.
func (id NodeID) String() string {
	return hex.EncodeToString(id[:])
}

// Distance returns the XOR metric between two fingerprints, interpreted as a
// big-endian 160-bit integer.
func (id NodeID) Distance(other NodeID) NodeID {
	var d NodeID
	for i := range id {
		d[i] = id[i] ^ other[i]
	}
	return d
}

// Less reports whether id orders strictly before other in big-endian
// lexicographic comparison.
func (id NodeID) Less(other NodeID) bool {
	return bytes.Compare(id[:], other[:]) < 0
}

// BucketIndexOf returns the routing bucket for key relative to local: the
// position, counting from the least significant bit, of the most significant
// bit set in their XOR distance. Low indices are near, high indices far.
// Equal fingerprints yield the out-of-range sentinel B; such keys are never
// inserted.
func BucketIndexOf(local, key NodeID) int {
	for i := 0; i < KeyLen; i++ {
		x := local[i] ^ key[i]
		if x != 0 {
			return (KeyLen-1-i)*8 + 7 - bits.LeadingZeros8(x)
		}
	}
	return B
}

// RandomIDInBucketRange returns a fingerprint whose XOR distance to local
// has its highest set bit at position index: the bits of local above index
// are kept, the bit at index is flipped, and every bit below is randomized.
func RandomIDInBucketRange(local NodeID, index int) NodeID {
	if index < 0 || index >= B {
		return local
	}
	var rnd NodeID
	if _, err := rand.Read(rnd[:]); err != nil {
		panic(fmt.Sprintf("kadence: reading random key: %v", err))
	}

	id := local
	byteIdx := KeyLen - 1 - index/8
	bit := uint(index % 8)

	id[byteIdx] = local[byteIdx]&(byte(0xff)<<(bit+1)) |
		(^local[byteIdx] & (1 << bit)) |
		rnd[byteIdx]&(byte(0xff)>>(8-bit))
	for i := byteIdx + 1; i < KeyLen; i++ {
		id[i] = rnd[i]
	}
	return id
}
