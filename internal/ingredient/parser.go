// Package ingredient parses OCR label text into a cleaned ingredient list.
package ingredient

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Section keywords that introduce an ingredient list on food labels, Korean and English.
// Matched case-insensitively, optionally followed by a colon or a newline.
var sectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)(성분|원재료명|원료|재료|ingredients|contents|materials)\s*[:：]\s*(.+)`),
	regexp.MustCompile(`(?is)(성분|원재료명|원료|재료|ingredients|contents|materials)[ \t]*\n(.+)`),
}

var delimiterPattern = regexp.MustCompile(`[,;/]`)

// Operational terms that mark a line as manufacturer/contact noise rather than
// ingredient content. Only applied in the no-keyword fallback path.
var operationalKeywords = []string{
	"제조", "유통", "보관", "주의", "tel", "fax", "www",
}

// Terms that disqualify a candidate outright: nutrition-table headers,
// manufacturer and legal-entity terms, contact info.
var excludeKeywords = []string{
	// Korean
	"영양정보", "성분", "원재료명", "원료", "재료", "함량", "제조일자", "유통기한",
	"보관방법", "주의사항", "제조회사", "판매회사", "수입회사", "고객센터",
	"제조", "유통", "보관", "주의", "회사", "전화", "팩스", "이메일", "홈페이지",

	// English
	"ingredients", "contents", "materials", "nutrition", "facts", "information",
	"manufactured", "distributed", "storage", "caution", "warning", "company",
	"tel", "fax", "email", "website", "www", "http",

	// Legal entities
	"(주)", "co.", "ltd", "inc", "corp",
}

var parenOnlyPattern = regexp.MustCompile(`^\([^)]*\)$`)

const maxCandidateLen = 50

// Parse extracts raw ingredient candidates from OCR text. It first tries every
// section-keyword pattern in order; only when none matches does it fall back to
// treating each surviving line of the whole text as a candidate pool.
// Empty input yields an empty list, not an error.
func Parse(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	for _, pattern := range sectionPatterns {
		m := pattern.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		section := m[len(m)-1]
		return splitCandidates(section)
	}

	// No keyword section anywhere: every plausible line is a candidate pool.
	var candidates []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) > 100 || containsOperationalKeyword(line) {
			continue
		}
		candidates = append(candidates, splitLine(line)...)
	}
	return candidates
}

func splitCandidates(section string) []string {
	var candidates []string
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		candidates = append(candidates, splitLine(line)...)
	}
	return candidates
}

func splitLine(line string) []string {
	var out []string
	for _, part := range delimiterPattern.Split(line, -1) {
		part = strings.TrimSpace(part)
		if part != "" && utf8.RuneCountInString(part) > 1 {
			out = append(out, part)
		}
	}
	return out
}

func containsOperationalKeyword(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range operationalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// CleanAndFilter normalizes candidates and drops noise: short or purely numeric
// tokens, exclusion-keyword hits, punctuation-only or parenthesized tokens,
// overlong tokens, and URL/email-looking tokens. Duplicates are removed
// case-insensitively, keeping first-seen order.
func CleanAndFilter(candidates []string) []string {
	if len(candidates) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var result []string
	for _, cand := range candidates {
		cand = strings.TrimSpace(cand)
		if !keep(cand) {
			continue
		}
		key := strings.ToLower(cand)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, cand)
	}
	return result
}

func keep(cand string) bool {
	if cand == "" || utf8.RuneCountInString(cand) <= 1 {
		return false
	}
	if isNumeric(cand) {
		return false
	}
	if isPunctuationOnly(cand) {
		return false
	}
	lower := strings.ToLower(cand)
	for _, kw := range excludeKeywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	if parenOnlyPattern.MatchString(cand) {
		return false
	}
	if utf8.RuneCountInString(cand) > maxCandidateLen {
		return false
	}
	// URL/email fragments survive OCR surprisingly often.
	if strings.ContainsAny(cand, "@.") {
		return false
	}
	return true
}

// Extract runs the full parse-then-filter path on raw OCR text.
func Extract(raw string) []string {
	return CleanAndFilter(Parse(raw))
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

func isPunctuationOnly(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return false
		}
	}
	return len(s) > 0
}
