package storage

import (
	"encoding/hex"
	"fmt"

	"github.com/gosimple/slug"
	"lukechampine.com/blake3"
)

// tokenBytes is the length of the content digest embedded in names.
const tokenBytes = 16

// ContentToken returns the hex BLAKE3 digest of data truncated to tokenBytes.
func ContentToken(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:tokenBytes])
}

// ObjectName derives the stored name of a payload from its contributor, a
// human-readable stem and its content. The result does not depend on what
// is already stored, so concurrent writers never race for a name; identical
// content from the same contributor and stem maps to the same name.
func ObjectName(contributorID, stem string, data []byte, ext string) string {
	s := slug.Make(stem)
	if s == "" {
		s = "audio"
	}
	return fmt.Sprintf("%s_%s_%s.%s", contributorID, s, ContentToken(data), ext)
}
