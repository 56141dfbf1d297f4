package ocr

import (
	"regexp"
	"strings"
)

var (
	reSeparator = regexp.MustCompile(`^[\s_\-]+$`)
	reSpaces    = regexp.MustCompile(`\s+`)
)

// Normalizer cleans OCR text line by line and drops any line already emitted
// earlier in the same document. Use one Normalizer per extraction attempt.
type Normalizer struct {
	seen map[string]struct{}
}

func NewNormalizer() *Normalizer {
	return &Normalizer{seen: make(map[string]struct{})}
}

// Page returns the cleaned text of one page, lines joined by "\n".
func (n *Normalizer) Page(text string) string {
	var kept []string
	for _, ln := range strings.Split(text, "\n") {
		ln = NormalizeLine(ln)
		if ln == "" {
			continue
		}
		if _, dup := n.seen[ln]; dup {
			continue
		}
		n.seen[ln] = struct{}{}
		kept = append(kept, ln)
	}
	return strings.Join(kept, "\n")
}

// NormalizeLine trims and collapses whitespace; separator-only lines become "".
func NormalizeLine(ln string) string {
	ln = strings.TrimSpace(ln)
	if ln == "" || reSeparator.MatchString(ln) {
		return ""
	}
	return reSpaces.ReplaceAllString(ln, " ")
}
