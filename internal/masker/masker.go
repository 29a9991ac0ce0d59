// Package masker detects PII in prompt text and substitutes generated
// pseudonyms before the text leaves the process boundary. Each detected
// value is replaced by a plausible fake of the same kind (a fake company
// name for a company, a fake email for an email, and so on) so the
// upstream model still sees natural-looking text, and the substitutions
// are reversed on the way back with the per-request mapping.
package masker

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

// Category classifies the kind of PII a pattern detects.
type Category string

// Detected PII categories.
const (
	CategoryCompany Category = "company"
	CategoryPerson  Category = "person"
	CategoryEmail   Category = "email"
	CategoryPhone   Category = "phone"
	CategoryAddress Category = "address"
)

// pattern pairs a compiled regex with its category.
type pattern struct {
	re       *regexp.Regexp
	category Category
}

// patternSpecs lists the recognized patterns in processing order. The
// order is fixed because later patterns can match substrings of earlier
// matches: company names embed person names and corporate suffixes,
// and the loose Han-token person pattern would otherwise eat pieces of
// them.
var patternSpecs = []struct {
	expr     string
	category Category
}{
	{
		`(?:株式会社|有限会社|合同会社|一般社団法人|一般財団法人)[\p{Hiragana}\p{Katakana}\p{Han}ー・a-zA-Z0-9]+` +
			`|[\p{Hiragana}\p{Katakana}\p{Han}ー・a-zA-Z0-9]+(?:株式会社|有限会社|合同会社|Corp\.|Inc\.|Ltd\.|LLC|Co\.)`,
		CategoryCompany,
	},
	{`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`, CategoryEmail},
	{`(?:0\d{1,4}-\d{1,4}-\d{4}|\d{3}-\d{4}-\d{4})`, CategoryPhone},
	{`[\p{Han}]{1,4}[\s　][\p{Han}]{1,4}`, CategoryPerson},
	{
		`(?:東京都|北海道|(?:京都|大阪)府|[\p{Han}]{2,3}県)` +
			`[\p{Han}\p{Hiragana}\p{Katakana}0-9ー・\s　-]+(?:市|区|町|村)` +
			`[\p{Han}\p{Hiragana}\p{Katakana}0-9ー・\s　-]*`,
		CategoryAddress,
	},
}

// Masker replaces detected PII with generated pseudonyms. A single
// instance may be shared across requests; pseudonym generation mutates
// the internal RNG, so Mask calls are serialized by a mutex.
type Masker struct {
	mu       sync.Mutex
	patterns []pattern
	fakes    *faker
}

// New creates a Masker seeded from the current time.
func New() *Masker {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded creates a Masker with a fixed RNG seed, for reproducible
// pseudonyms.
func NewSeeded(seed int64) *Masker {
	m := &Masker{fakes: newFaker(seed)}
	for _, s := range patternSpecs {
		m.patterns = append(m.patterns, pattern{re: regexp.MustCompile(s.expr), category: s.category})
	}
	return m
}

// Mask replaces every detected PII value in text with a pseudonym and
// returns the masked text plus the pseudonym→original map needed to
// reverse it. Matches are collected from the original text; a match
// already swallowed by an earlier substitution is skipped, and each
// surviving match is replaced at all of its occurrences.
func (m *Masker) Mask(text string) (string, map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	masked := text
	mappings := make(map[string]string)
	for _, p := range m.patterns {
		for _, match := range p.re.FindAllString(text, -1) {
			if !strings.Contains(masked, match) {
				continue
			}
			pseudonym := m.pseudonym(p.category, masked, mappings)
			masked = strings.ReplaceAll(masked, match, pseudonym)
			mappings[pseudonym] = match
		}
	}
	return masked, mappings
}

// pseudonym draws a fake that collides neither with an existing mapping
// key nor with text already present in the working prompt.
func (m *Masker) pseudonym(cat Category, working string, mappings map[string]string) string {
	candidate := m.fakes.generate(cat)
	for i := 0; i < 16; i++ {
		_, taken := mappings[candidate]
		if !taken && !strings.Contains(working, candidate) {
			break
		}
		candidate = m.fakes.generate(cat)
	}
	return candidate
}

// Unmask restores the original values in text using the map produced by
// Mask. Pseudonyms are distinct and non-overlapping, so replacement
// order does not matter.
func Unmask(text string, mappings map[string]string) string {
	restored := text
	for pseudonym, original := range mappings {
		restored = strings.ReplaceAll(restored, pseudonym, original)
	}
	return restored
}
