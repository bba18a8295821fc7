package files

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// GravatarURL is the default avatar for accounts that never uploaded one,
// keyed by the md5 of the normalized email as the gravatar protocol defines.
func GravatarURL(email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%x?d=identicon", md5.Sum([]byte(normalized)))
}
