// Package chunker splits loaded documents into passages. Every strategy works
// page by page so that each passage keeps the page it was cut from.
package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Default window settings for the recursive chunker.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// passageID derives a stable identifier from the document and the passage position.
func passageID(documentID string, seq int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:%d", documentID, seq))).String()
}

var sentenceEndRe = regexp.MustCompile(`[.!?]+["')\]]*\s+`)

// splitSentences cuts text after terminal punctuation followed by whitespace.
// Trailing text without punctuation is kept as the last sentence.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEndRe.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start:loc[1]]); s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}
