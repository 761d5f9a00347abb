package plan

import (
	"strings"
	"unicode/utf8"
)

// MessageCeiling is the channel message-size budget for the short plan variant.
const MessageCeiling = 1500

// Continuation markers appended after a cut.
const (
	paragraphCutMarker = "\n\n... (Plano completo não pode ser exibido. Digite 'pdf' para receber o plano completo)"
	ellipsisMarker     = "..."
)

// Truncate cuts text to at most max bytes of content, preferring the last
// paragraph break at or before the limit, then the last sentence end, then
// a hard cut. Text already within the limit is returned unchanged.
func Truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}

	if idx := strings.LastIndex(text[:max], "\n\n"); idx != -1 {
		return text[:idx] + paragraphCutMarker
	}
	if idx := strings.LastIndex(text[:max], ". "); idx != -1 {
		return text[:idx+1] + ellipsisMarker
	}
	// Hard cut, backed off to a rune boundary.
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + ellipsisMarker
}
