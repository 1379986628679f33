package csvio

import "strings"

// Vocabulary is the canonical header vocabulary used to score candidate
// delimiters. Fields are exact canonical names; Prefixes cover dynamic
// columns such as the per-stock "stock_<name>" family.
type Vocabulary struct {
	Fields   []string
	Prefixes []string
}

var candidateDelimiters = []rune{',', ';', '\t'}

// DetectDelimiter picks the delimiter among comma, semicolon and tab that
// yields the most header fields recognized by the vocabulary, with a bonus
// for fields matching a known prefix. Ties are broken by the raw character
// frequency of the delimiter in the header line.
func DetectDelimiter(text string, vocab Vocabulary) rune {
	header := text
	if idx := strings.IndexByte(header, '\n'); idx >= 0 {
		header = header[:idx]
	}
	header = strings.TrimRight(header, "\r")

	known := make(map[string]bool, len(vocab.Fields))
	for _, f := range vocab.Fields {
		known[normalizeField(f)] = true
	}

	best := ','
	bestScore := -1
	bestFreq := -1
	for _, delim := range candidateDelimiters {
		score := 0
		rows := ParseDelim(header, delim)
		if len(rows) == 1 {
			for _, cell := range rows[0] {
				field := normalizeField(cell)
				if known[field] {
					score += 2
					continue
				}
				for _, prefix := range vocab.Prefixes {
					if strings.HasPrefix(field, normalizeField(prefix)) && len(field) > len(prefix) {
						score++
						break
					}
				}
			}
		}
		freq := strings.Count(header, string(delim))
		if score > bestScore || (score == bestScore && freq > bestFreq) {
			best = delim
			bestScore = score
			bestFreq = freq
		}
	}

	return best
}

// ParseAuto detects the delimiter from the header line and tokenizes the
// whole text with it.
func ParseAuto(text string, vocab Vocabulary) ([][]string, rune) {
	delim := DetectDelimiter(text, vocab)
	return ParseDelim(text, delim), delim
}

func normalizeField(s string) string {
	s = strings.TrimPrefix(s, "\uFEFF")
	s = strings.Trim(strings.TrimSpace(s), `"`)
	return strings.ToLower(strings.TrimSpace(s))
}
