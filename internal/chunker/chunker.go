// Package chunker splits article text into segments small enough for a
// single speech-synthesis request, preferring sentence and clause boundaries.
package chunker

import "strings"

// breakChars are tried in priority order when a single sentence must be
// force-split.
var breakChars = []rune{',', ';', ':', ' '}

// Split divides text into ordered chunks of at most maxSize runes each.
// Sentences are kept whole where possible; a sentence longer than maxSize is
// split at the last clause boundary before the limit, or hard-cut when no
// boundary exists. Lengths are measured in runes so a cut never lands inside
// a UTF-8 sequence.
//
// Empty or all-whitespace input returns nil.
func Split(text string, maxSize int) []string {
	if maxSize < 1 {
		maxSize = 1
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if runeLen(text) <= maxSize {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
		currentLen = 0
	}

	for _, sentence := range splitSentences(text) {
		sentLen := runeLen(sentence)

		switch {
		case sentLen > maxSize:
			// Oversized sentence: flush what we have, then carve the
			// sentence itself into clause-bounded pieces.
			flush()
			chunks = append(chunks, splitLongSentence(sentence, maxSize)...)

		case currentLen > 0 && currentLen+1+sentLen > maxSize:
			flush()
			current.WriteString(sentence)
			currentLen = sentLen

		default:
			if currentLen > 0 {
				current.WriteByte(' ')
				currentLen++
			}
			current.WriteString(sentence)
			currentLen += sentLen
		}
	}
	flush()

	return chunks
}

// splitSentences cuts text after runs of sentence-ending punctuation that are
// followed by whitespace.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	for i := 0; i < len(runes); i++ {
		if !isSentenceEnd(runes[i]) {
			continue
		}
		// Swallow the whole punctuation run ("?!", "...").
		end := i + 1
		for end < len(runes) && isSentenceEnd(runes[end]) {
			end++
		}
		if end < len(runes) && !isSpace(runes[end]) {
			i = end - 1
			continue
		}
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			sentences = append(sentences, s)
		}
		for end < len(runes) && isSpace(runes[end]) {
			end++
		}
		start = end
		i = end - 1
	}

	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// splitLongSentence carves a sentence exceeding maxSize into pieces, breaking
// at the last comma, semicolon, colon, or space before the limit. The break
// character stays with the left piece. With no break character in range the
// piece is hard-cut at maxSize.
func splitLongSentence(sentence string, maxSize int) []string {
	var parts []string
	remaining := []rune(strings.TrimSpace(sentence))

	for len(remaining) > 0 {
		if len(remaining) <= maxSize {
			parts = append(parts, strings.TrimSpace(string(remaining)))
			break
		}

		cut := maxSize
		for _, bc := range breakChars {
			if idx := lastIndexRune(remaining[:maxSize], bc); idx > 0 {
				cut = idx + 1
				break
			}
		}

		if s := strings.TrimSpace(string(remaining[:cut])); s != "" {
			parts = append(parts, s)
		}
		remaining = []rune(strings.TrimSpace(string(remaining[cut:])))
	}
	return parts
}

func lastIndexRune(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
