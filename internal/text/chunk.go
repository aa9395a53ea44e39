package text

import (
	"strings"
	"unicode"
)

// sentenceEnders are the runes a chunk may break after.
const sentenceEnders = ".!?"

// SplitChunks breaks normalized text into pieces no longer than maxLen
// runes, preferring sentence boundaries and falling back to word
// boundaries for run-on sentences. Chunk order follows input order and the
// concatenation of all chunks covers every word of the input.
func SplitChunks(input string, maxLen int) []string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}

	if maxLen <= 0 || len([]rune(trimmed)) <= maxLen {
		return []string{trimmed}
	}

	sentences := splitSentences(trimmed)

	var (
		chunks  []string
		current strings.Builder
	)

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, sentence := range sentences {
		sentenceLen := len([]rune(sentence))

		if sentenceLen > maxLen {
			flush()

			chunks = append(chunks, splitWords(sentence, maxLen)...)

			continue
		}

		if current.Len() > 0 && len([]rune(current.String()))+sentenceLen+1 > maxLen {
			flush()
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}

		current.WriteString(sentence)
	}

	flush()

	return chunks
}

// splitSentences cuts text after terminal punctuation followed by a space.
func splitSentences(input string) []string {
	var (
		sentences []string
		current   strings.Builder
	)

	runes := []rune(input)

	for i, char := range runes {
		current.WriteRune(char)

		if !strings.ContainsRune(sentenceEnders, char) {
			continue
		}

		atEnd := i == len(runes)-1
		if atEnd || unicode.IsSpace(runes[i+1]) {
			sentence := strings.TrimSpace(current.String())
			if sentence != "" {
				sentences = append(sentences, sentence)
			}

			current.Reset()
		}
	}

	remainder := strings.TrimSpace(current.String())
	if remainder != "" {
		sentences = append(sentences, remainder)
	}

	return sentences
}

// splitWords greedily packs words of an over-long sentence into maxLen
// pieces. A single word longer than maxLen becomes its own chunk.
func splitWords(sentence string, maxLen int) []string {
	var (
		chunks  []string
		current strings.Builder
	)

	for _, word := range strings.Fields(sentence) {
		wordLen := len([]rune(word))

		if current.Len() > 0 && len([]rune(current.String()))+wordLen+1 > maxLen {
			chunks = append(chunks, current.String())
			current.Reset()
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}

		current.WriteString(word)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}
