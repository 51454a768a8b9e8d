package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const referenceCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateReference generates a unique reference for receipts and transactions,
// e.g. RCPT_20250901_X7K2M9QD.
func GenerateReference(prefix string) string {
	result := make([]byte, 8)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(referenceCharset))))
		if err != nil {
			// crypto/rand only fails if the OS entropy source is broken
			n = big.NewInt(time.Now().UnixNano() % int64(len(referenceCharset)))
		}
		result[i] = referenceCharset[n.Int64()]
	}

	timestamp := time.Now().Format("20060102")
	return fmt.Sprintf("%s_%s_%s", prefix, timestamp, string(result))
}
