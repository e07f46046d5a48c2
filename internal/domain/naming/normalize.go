package naming

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	monthPattern   = regexp.MustCompile(`\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)\b`)
	quarterPattern = regexp.MustCompile(`\bq[1-4]\b`)
	yearPattern    = regexp.MustCompile(`\b20(2[0-9]|30)\b`)
	editionPattern = regexp.MustCompile(`\bedition\b`)

	weekdayPattern  = regexp.MustCompile(`\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday|mon|tue|tues|wed|thu|thur|thurs|fri|sat|sun)\b`)
	datePattern     = regexp.MustCompile(`\b\d{1,4}[/.-]\d{1,2}([/.-]\d{1,4})?\b`)
	moneyPattern    = regexp.MustCompile(`\$\s?\d[\d,]*(\.\d+)?\s?[km]?\b`)
	eventNumPattern = regexp.MustCompile(`(#\s?\d+|\bevent\s+\d+\b|\bweek\s+\d+\b|\bday\s+\d+[a-z]?\b)`)
	bareNumPattern  = regexp.MustCompile(`\b\d+\b`)
)

// collapse lowercases s, turns punctuation into spaces and squeezes whitespace.
func collapse(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '$' || r == '#' || r == '/' || r == '.' || r == '-' {
			b.WriteRune(r)
			space = false
			continue
		}
		if r == '\'' {
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func squeeze(s string) string {
	s = strings.NewReplacer("/", " ", ".", " ", "-", " ", "#", " ", "$", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeSeriesName strips temporal tokens so instances of one brand compare equal.
func NormalizeSeriesName(s string) string {
	s = collapse(s)
	s = editionPattern.ReplaceAllString(s, "series")
	s = monthPattern.ReplaceAllString(s, " ")
	s = quarterPattern.ReplaceAllString(s, " ")
	s = yearPattern.ReplaceAllString(s, " ")
	return squeeze(s)
}

func NormalizeVenueName(s string) string {
	return squeeze(collapse(s))
}

// NormalizeGameName is the comparison form used for recurring matching.
func NormalizeGameName(s string) string {
	return squeeze(collapse(s))
}

// CleanGameName removes per-instance noise (dates, weekdays, amounts, event numbers)
// and keeps the words that repeat week to week.
func CleanGameName(s string) string {
	s = collapse(s)
	s = moneyPattern.ReplaceAllString(s, " ")
	s = datePattern.ReplaceAllString(s, " ")
	s = eventNumPattern.ReplaceAllString(s, " ")
	s = weekdayPattern.ReplaceAllString(s, " ")
	s = monthPattern.ReplaceAllString(s, " ")
	s = yearPattern.ReplaceAllString(s, " ")
	s = bareNumPattern.ReplaceAllString(s, " ")
	return squeeze(s)
}

// TitleCase upper-cases the first letter of each word.
func TitleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
