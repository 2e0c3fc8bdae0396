package delivery

import "unicode/utf8"

// Chunk splits text into windows of at most size runes, left to right, and
// appends marker to every segment except the last. Splits may fall
// mid-word. Empty text yields no segments; text of at most size runes
// yields a single unchanged segment. A size <= 0 disables splitting.
func Chunk(text string, size int, marker string) []string {
	if text == "" {
		return nil
	}
	if size <= 0 || utf8.RuneCountInString(text) <= size {
		return []string{text}
	}

	segments := make([]string, 0, utf8.RuneCountInString(text)/size+1)
	for text != "" {
		cut := runeOffset(text, size)
		seg, rest := text[:cut], text[cut:]
		if rest != "" {
			seg += marker
		}
		segments = append(segments, seg)
		text = rest
	}
	return segments
}

// runeOffset returns the byte offset just past the first n runes of s,
// or len(s) if s is shorter.
func runeOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}
