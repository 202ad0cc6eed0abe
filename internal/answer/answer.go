// Package answer decides whether a spoken transcript matches a question's answer key.
//
// An answer key is a raw string in one of three shapes:
//
//	{5, five}   brace group of interchangeable values (wins over any surrounding text)
//	red, blue   comma-separated list of acceptable values
//	Paris       a single literal value
//
// Numeric values 0-20 are expanded to their English word (and back), then every
// candidate and the transcript are normalized identically and compared for exact
// equality. Partial matches are never accepted.
package answer

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// nearMissThreshold is the Jaro-Winkler score above which a wrong answer is
// reported as a near miss.
const nearMissThreshold = 0.85

var braceGroup = regexp.MustCompile(`\{([^}]+)\}`)

var numberWords = [...]string{
	"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten",
	"eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen", "seventeen", "eighteen", "nineteen", "twenty",
}

var (
	digitToWord = map[string]string{}
	wordToDigit = map[string]string{}
)

func init() {
	for i, w := range numberWords {
		d := strconv.Itoa(i)
		digitToWord[d] = w
		wordToDigit[w] = d
	}
}

// Verdict is the result of scoring one transcript.
type Verdict struct {
	Correct    bool
	Transcript string
	Normalized string
	// Candidates are the normalized, expanded acceptable values.
	Candidates []string
	// Closest and Similarity are diagnostics only; they never change Correct.
	Closest    string
	Similarity float64
}

// NearMiss reports whether a wrong answer was phonetically close to a candidate.
func (v Verdict) NearMiss() bool {
	return !v.Correct && v.Similarity >= nearMissThreshold
}

// Acceptable parses an answer key into its literal acceptable values.
// An empty key yields a single empty value.
func Acceptable(key string) []string {
	if m := braceGroup.FindStringSubmatch(key); m != nil {
		return splitTrim(m[1])
	}
	if strings.Contains(key, ",") {
		return splitTrim(key)
	}
	return []string{strings.TrimSpace(key)}
}

func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// Expand adds the digit or word counterpart of every value in 0-20 and
// removes duplicates, keeping first-seen order.
func Expand(values []string) []string {
	seen := make(map[string]bool, len(values)*2)
	out := make([]string, 0, len(values)*2)
	add := func(v string) {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range values {
		add(v)
		if w, ok := digitToWord[v]; ok {
			add(w)
		}
		if d, ok := wordToDigit[strings.ToLower(v)]; ok {
			add(d)
		}
	}
	return out
}

// Normalize lowercases s, folds accented letters to their base form, drops
// everything except ASCII letters, digits and spaces, and trims the result.
// Normalize is idempotent.
func Normalize(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Evaluate scores transcript against the answer key.
func Evaluate(transcript, key string) Verdict {
	expanded := Expand(Acceptable(key))
	v := Verdict{
		Transcript: transcript,
		Normalized: Normalize(transcript),
		Candidates: make([]string, 0, len(expanded)),
	}
	for _, c := range expanded {
		nc := Normalize(c)
		v.Candidates = append(v.Candidates, nc)
		if nc == v.Normalized {
			v.Correct = true
		}
	}

	for _, c := range v.Candidates {
		if c == "" || v.Normalized == "" {
			continue
		}
		if score := matchr.JaroWinkler(v.Normalized, c, false); score > v.Similarity {
			v.Similarity = score
			v.Closest = c
		}
	}
	if v.Correct {
		v.Closest = v.Normalized
		v.Similarity = 1
	}
	return v
}

// Match reports whether transcript is an acceptable answer for key.
func Match(transcript, key string) bool {
	return Evaluate(transcript, key).Correct
}
