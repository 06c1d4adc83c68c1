package quiz

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// ContentHash is the cache index for a generation: sha256 over content,
// numberOfQuestions and difficulty, NUL separated, hex encoded.
func ContentHash(content string, numberOfQuestions int, difficulty string) string {
	h := sha256.New()
	h.Write([]byte(content))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(numberOfQuestions)))
	h.Write([]byte{0})
	h.Write([]byte(difficulty))
	return hex.EncodeToString(h.Sum(nil))
}
