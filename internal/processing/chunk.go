package processing

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ChunkText splits text into rune-bounded chunks of at most chunkSize,
// each starting overlap runes before the end of the previous one. Chunk
// ends are moved back to the last whitespace when one is close enough.
// Blank chunks are dropped.
func ChunkText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	runes := []rune(text)
	var chunks []string

	for start := 0; start < len(runes); {
		end := start + chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else if cut := lastSpace(runes[start:end]); cut > chunkSize/2 {
			end = start + cut
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end == len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return -1
}

// Tokenize lowercases text and splits it into letter/digit terms. Dates and
// decimals such as 2005-03-11 or 3.5 are kept whole.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '.' && r != '%'
	})

	terms := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "-.")
		if f == "" || stopwords[f] {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "can": true, "for": true, "from": true, "how": true,
	"if": true, "in": true, "is": true, "it": true, "me": true, "of": true,
	"on": true, "or": true, "tell": true, "that": true, "the": true, "this": true,
	"to": true, "was": true, "what": true, "with": true, "you": true,
}

// TruncateText shortens text to maxLength runes, marking the cut.
func TruncateText(text string, maxLength int) string {
	if !Truncates(text, maxLength) {
		return text
	}
	return string([]rune(text)[:maxLength]) + "..."
}

// Truncates reports whether TruncateText would cut text
func Truncates(text string, maxLength int) bool {
	return maxLength > 0 && utf8.RuneCountInString(text) > maxLength
}
