package sources

import (
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var (
	reSpace       = regexp.MustCompile(`\s+`)
	reSalaryRange = regexp.MustCompile(`(?i)([$€£]?)\s*(\d[\d,.]*)\s*(k)?`)
	remoteMarkers = []string{"remote", "work from home", "wfh", "anywhere", "telecommute"}
)

func cleanText(s string) string {
	return strings.TrimSpace(reSpace.ReplaceAllString(s, " "))
}

// htmlToText converts an HTML fragment, possibly entity-escaped, to plain
// text.
func htmlToText(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}
	if strings.Contains(fragment, "&lt;") {
		fragment = html.UnescapeString(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return cleanText(fragment)
	}
	doc.Find("script, style").Remove()
	doc.Find("br, p, li, div, h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return cleanText(doc.Text())
}

func detectRemote(fields ...string) bool {
	for _, field := range fields {
		lower := strings.ToLower(field)
		for _, marker := range remoteMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}

// parseSalary extracts a min/max pair and currency from free text such as
// "$120,000 - $150,000" or "€80k". A single figure sets both bounds.
func parseSalary(text string) (minVal, maxVal *float64, currency string) {
	matches := reSalaryRange.FindAllStringSubmatch(text, 2)
	var values []float64
	for _, m := range matches {
		raw := strings.ReplaceAll(m[2], ",", "")
		v, err := strconv.ParseFloat(strings.TrimRight(raw, "."), 64)
		if err != nil || v <= 0 {
			continue
		}
		if m[3] != "" {
			v *= 1000
		}
		values = append(values, v)
		if currency == "" {
			currency = currencySymbol(m[1])
		}
	}
	switch len(values) {
	case 0:
		return nil, nil, ""
	case 1:
		return &values[0], &values[0], currency
	default:
		lo, hi := values[0], values[1]
		if lo > hi {
			lo, hi = hi, lo
		}
		return &lo, &hi, currency
	}
}

func currencySymbol(sym string) string {
	switch sym {
	case "$":
		return "USD"
	case "€":
		return "EUR"
	case "£":
		return "GBP"
	default:
		return ""
	}
}

var fallbackLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// parseTime tries layout first, then common layouts. Zero-value input
// yields nil.
func parseTime(value, layout string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	layouts := fallbackLayouts
	if layout != "" {
		layouts = append([]string{layout}, fallbackLayouts...)
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, value); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

func floatPtr(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return &v
}
