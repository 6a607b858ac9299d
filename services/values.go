package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// numberRegexp extracts an embedded numeric value as a fallback.
	numberRegexp = regexp.MustCompile(`\d+(?:\.\d+)?`)
	// clockRegexp captures "HH:MM" in relative date labels.
	clockRegexp = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	// dayMonthRegexp captures "DD месяц, HH:MM".
	dayMonthRegexp = regexp.MustCompile(`(\d{1,2})\s+([а-яА-Я]+),?\s+(\d{1,2}):(\d{2})`)
	// whitespaceRegexp collapses all whitespace, including non-breaking
	// spaces used as thousands separators on the site.
	whitespaceRegexp = regexp.MustCompile(`\s+`)
)

// russianMonths maps month-name prefixes as they appear in listing labels.
var russianMonths = map[string]time.Month{
	"янв": time.January, "фев": time.February, "мар": time.March,
	"апр": time.April, "май": time.May, "мая": time.May,
	"июн": time.June, "июл": time.July, "авг": time.August,
	"сен": time.September, "окт": time.October, "ноя": time.November,
	"дек": time.December,
}

// streetAbbrevs converts full street-type names to their abbreviated forms.
var streetAbbrevs = []struct{ long, short string }{
	{"улица", "ул."},
	{"шоссе", "ш."},
	{"проспект", "просп."},
	{"переулок", "пер."},
	{"бульвар", "бул."},
	{"набережная", "наб."},
}

// ParseNumericValue cleans a raw money/area/height string down to its numeric
// form: currency and unit suffixes stripped, spaces removed, comma decimal
// converted, "нет" treated as zero, percent suffix dropped.
// Examples: "55 000 ₽/мес" → "55000", "12,5 м²" → "12.5", "50%" → "50".
func ParseNumericValue(raw string) (string, bool) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return "", false
	}

	for _, unit := range []string{"₽", "/мес", "м²", "м"} {
		cleaned = strings.ReplaceAll(cleaned, unit, "")
	}
	// Dots on the site are thousands separators; commas are decimals.
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	cleaned = whitespaceRegexp.ReplaceAllString(cleaned, "")

	if strings.EqualFold(cleaned, "нет") {
		return "0", true
	}
	cleaned = strings.TrimSuffix(cleaned, "%")

	if v, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return formatNumeric(v), true
	}
	if match := numberRegexp.FindString(cleaned); match != "" {
		if v, err := strconv.ParseFloat(match, 64); err == nil {
			return formatNumeric(v), true
		}
	}
	return "", false
}

func formatNumeric(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseRussianDate converts a Cian relative time label into an absolute time.
// Supported forms: "сегодня, 12:30", "вчера, 09:15", "5 мая, 18:00".
func ParseRussianDate(label string, now time.Time) (time.Time, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return time.Time{}, false
	}

	lower := strings.ToLower(label)

	switch {
	case strings.Contains(lower, "сегодня"):
		if h, m, ok := parseClock(lower); ok {
			return time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, now.Location()), true
		}
	case strings.Contains(lower, "вчера"):
		if h, m, ok := parseClock(lower); ok {
			y := now.AddDate(0, 0, -1)
			return time.Date(y.Year(), y.Month(), y.Day(), h, m, 0, 0, now.Location()), true
		}
	default:
		match := dayMonthRegexp.FindStringSubmatch(label)
		if match == nil {
			return time.Time{}, false
		}
		day, _ := strconv.Atoi(match[1])
		hour, _ := strconv.Atoi(match[3])
		minute, _ := strconv.Atoi(match[4])

		monthName := strings.ToLower(match[2])
		for prefix, month := range russianMonths {
			if strings.HasPrefix(monthName, prefix) {
				result := time.Date(now.Year(), month, day, hour, minute, 0, 0, now.Location())
				// A date in the future means it belongs to last year.
				if result.After(now) {
					result = result.AddDate(-1, 0, 0)
				}
				return result, true
			}
		}
	}
	return time.Time{}, false
}

func parseClock(label string) (hour, minute int, ok bool) {
	match := clockRegexp.FindStringSubmatch(label)
	if match == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(match[1])
	minute, _ = strconv.Atoi(match[2])
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// NormalizeStreetName abbreviates full street-type names within an address
// part ("Тверская улица" → "Тверская ул.").
func NormalizeStreetName(part string) string {
	fields := strings.Fields(part)
	for i, f := range fields {
		lower := strings.ToLower(f)
		for _, ab := range streetAbbrevs {
			if lower == ab.long {
				fields[i] = ab.short
			}
		}
	}
	return strings.Join(fields, " ")
}

// BuildFullAddress joins address parts into the street-level address,
// dropping administrative okrug and district parts and metro prefixes.
func BuildFullAddress(parts []string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.Contains(p, "АО") || strings.Contains(p, "р-н") {
			continue
		}
		// Metro station references are not part of the street address.
		if strings.HasPrefix(strings.ToLower(p), "м. ") {
			continue
		}
		kept = append(kept, NormalizeStreetName(p))
	}
	return strings.Join(kept, ", ")
}

// FormatTimestamp renders times the way the store and price history keep
// them. Zero times render empty.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

// FormatPriceDelta renders a signed price change amount.
func FormatPriceDelta(current, previous string) string {
	c, errC := strconv.ParseFloat(current, 64)
	p, errP := strconv.ParseFloat(previous, 64)
	if errC != nil || errP != nil {
		return ""
	}
	return fmt.Sprintf("%d", int64(c-p))
}
