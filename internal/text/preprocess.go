// Package text provides input normalization for the synthesis pipeline.
//
// Every request body passes through here before it reaches the inference
// engine. The pipeline expands abbreviations, spells out integers, strips
// citation noise, folds typographic punctuation, and repairs sentence
// endings so the acoustic model receives clean prose.
package text

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Regex patterns compiled once per Preprocessor.
const (
	urlRegexPattern        = `https?://\S+`
	emailRegexPattern      = `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`
	numberRegexPattern     = `\d+`
	referenceRegexPattern  = `(?:\[\d+\]|\(\d+\)|[¹²³⁴⁵⁶⁷⁸⁹⁰]+)`
	citationRegexPattern   = `\([^)]*\d{4}[^)]*\)|\b\w+\s+et\s+al\.`
	whitespaceRegexPattern = `\s+`
)

// Placeholder formats used while protecting URLs and emails from cleanup.
// The index is letter-encoded so number normalization cannot corrupt a
// placeholder before the original token is restored.
const (
	urlPlaceholderPattern   = `__URL_TOKEN_%s__`
	emailPlaceholderPattern = `__EMAIL_TOKEN_%s__`
)

// Typographic characters folded to their plain equivalents.
const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsis     = "..."
	ellipsisChar = "…"
)

// Preprocessor normalizes raw request text for synthesis.
type Preprocessor struct {
	urlPattern        *regexp.Regexp
	emailPattern      *regexp.Regexp
	numberPattern     *regexp.Regexp
	referencePattern  *regexp.Regexp
	citationPattern   *regexp.Regexp
	whitespacePattern *regexp.Regexp

	abbreviationReplacer *strings.Replacer
	punctuationReplacer  *strings.Replacer
}

// NewPreprocessor compiles the patterns and replacers once so per-request
// normalization stays cheap.
func NewPreprocessor() *Preprocessor {
	abbreviations := []string{
		"Mr.", "Mister",
		"Mrs.", "Misses",
		"Ms.", "Miss",
		"Dr.", "Doctor",
		"St.", "Saint",
		"Co.", "Company",
		"Ltd.", "Limited",
		"Corp.", "Corporation",
		"Inc.", "Incorporated",
		"vs.", "versus",
		"etc.", "et cetera",
	}

	return &Preprocessor{
		urlPattern:           regexp.MustCompile(urlRegexPattern),
		emailPattern:         regexp.MustCompile(emailRegexPattern),
		numberPattern:        regexp.MustCompile(numberRegexPattern),
		referencePattern:     regexp.MustCompile(referenceRegexPattern),
		citationPattern:      regexp.MustCompile(citationRegexPattern),
		whitespacePattern:    regexp.MustCompile(whitespaceRegexPattern),
		abbreviationReplacer: strings.NewReplacer(abbreviations...),
		punctuationReplacer: strings.NewReplacer(
			emDash, "-",
			enDash, "-",
			figureDash, "-",
			ellipsisChar, ellipsis,
			"“", `"`, "”", `"`,
			"‘", "'", "’", "'",
		),
	}
}

// Normalize runs the full cleanup pipeline over the input text.
// References must be stripped while their digits are still digits, and
// numbers must be spelled out only after URLs and emails are swapped for
// placeholders, so the step order here is load-bearing.
func (p *Preprocessor) Normalize(input string) string {
	if input == "" {
		return input
	}

	normalized := p.abbreviationReplacer.Replace(input)

	preserved, placeholders := p.preserveTokens(normalized)

	cleaned := p.referencePattern.ReplaceAllString(preserved, "")
	cleaned = p.citationPattern.ReplaceAllString(cleaned, "")
	cleaned = p.normalizeNumbers(cleaned)
	cleaned = p.punctuationReplacer.Replace(cleaned)
	cleaned = p.collapsePunctuation(cleaned)
	cleaned = p.normalizeWhitespace(cleaned)

	restored := p.restoreTokens(cleaned, placeholders)

	return p.ensureSentenceEnding(restored)
}

// normalizeNumbers converts every integer run in the text to English words.
func (p *Preprocessor) normalizeNumbers(input string) string {
	return p.numberPattern.ReplaceAllStringFunc(input, integerStringToWords)
}

func (p *Preprocessor) preserveTokens(
	input string,
) (processedText string, placeholders map[string]string) {
	placeholders = make(map[string]string)

	counter := 0

	replaceFunc := func(pattern *regexp.Regexp, placeholderFormat string) {
		processedText = pattern.ReplaceAllStringFunc(
			processedText,
			func(match string) string {
				placeholder := fmt.Sprintf(placeholderFormat, alphaIndex(counter))

				placeholders[placeholder] = match
				counter++

				return placeholder
			},
		)
	}

	processedText = input

	replaceFunc(p.urlPattern, urlPlaceholderPattern)
	replaceFunc(p.emailPattern, emailPlaceholderPattern)

	return processedText, placeholders
}

func (p *Preprocessor) restoreTokens(input string, placeholders map[string]string) string {
	for placeholder, original := range placeholders {
		input = strings.ReplaceAll(input, placeholder, original)
	}

	return input
}

func (p *Preprocessor) normalizeWhitespace(input string) string {
	return strings.TrimSpace(p.whitespacePattern.ReplaceAllString(input, " "))
}

// collapsibleRunes are the sentence punctuation marks deduplicated by
// collapsePunctuation. Structural characters like '/', '_' and '-' are
// left alone so placeholders and restored URLs survive.
const collapsibleRunes = ".!?,;"

// collapsePunctuation drops immediately repeated sentence punctuation.
func (p *Preprocessor) collapsePunctuation(input string) string {
	var (
		result   []rune
		lastRune rune
	)

	for _, char := range input {
		collapsible := strings.ContainsRune(collapsibleRunes, char)
		if !collapsible || char != lastRune {
			result = append(result, char)
		}

		lastRune = char
	}

	return string(result)
}

// alphaIndex encodes a counter using letters only.
func alphaIndex(counter int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz"

	if counter < 0 {
		counter = 0
	}

	var encoded strings.Builder

	for {
		encoded.WriteByte(alphabet[counter%len(alphabet)])

		counter /= len(alphabet)
		if counter == 0 {
			break
		}
	}

	return encoded.String()
}

// ensureSentenceEnding guarantees the text ends with terminal punctuation so
// the engine does not clip the final word.
func (p *Preprocessor) ensureSentenceEnding(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	lastChar, _ := utf8.DecodeLastRuneInString(trimmed)

	switch lastChar {
	case '.', '!', '?':
		return trimmed
	}

	if unicode.IsPunct(lastChar) {
		return trimmed
	}

	return trimmed + "."
}
