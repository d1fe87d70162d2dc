package checksum

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Fingerprint is a 32-byte BLAKE3 digest of chunk content.
type Fingerprint [32]byte

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Short returns the first 12 hex characters, enough to tell payloads apart in logs.
func (f Fingerprint) Short() string {
	return f.String()[:12]
}

func Sum(data []byte) Fingerprint {
	return Fingerprint(blake3.Sum256(data))
}

func SumString(s string) Fingerprint {
	return Sum([]byte(s))
}

// CalculateCheckSum folds the first four digest bytes into an int, used as a
// compact cache key.
func CalculateCheckSum(data []byte) int {
	result := 0
	sum := Sum(data)

	for i := 0; i < 4; i++ {
		result = result << 8
		result += int(sum[i])
	}

	return result
}
