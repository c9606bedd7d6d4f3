package utterance

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a stable 16-hex-digit key for content.
// Case and whitespace differences do not change it; category is not part of it.
func Fingerprint(content string) string {
	key := strings.Join(strings.Fields(strings.ToLower(content)), " ")
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}
