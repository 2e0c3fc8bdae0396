package delivery

import "strings"

// MarkupChars are the Markdown sentinels removed by Strip.
const MarkupChars = "*_`~"

var markupStripper = strings.NewReplacer("*", "", "_", "", "`", "", "~", "")

// Strip removes bold, italic, code and strikethrough markers from text.
// Strip(Strip(s)) == Strip(s).
func Strip(text string) string {
	if !strings.ContainsAny(text, MarkupChars) {
		return text
	}
	return markupStripper.Replace(text)
}
