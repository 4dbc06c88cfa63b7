package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Seconds per unit, including the average Gregorian month and year.
var unitSeconds = map[string]float64{
	"s": 1, "sec": 1, "second": 1, "seconds": 1,
	"m": 60, "min": 60, "minute": 60, "minutes": 60,
	"hr": 3600, "hour": 3600, "hours": 3600,
	"d": 86400, "day": 86400, "days": 86400,
	"w": 604800, "week": 604800, "weeks": 604800,
	"mon": 2629746, "month": 2629746, "months": 2629746,
	"y": 31556952, "year": 31556952, "years": 31556952,
}

var frequencyPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([a-zA-Z]+)`)

// ParseFrequency converts a frequency string like "1w 2d 3hr 30m" into a
// total number of seconds. Unknown units, inputs without any (number, unit)
// pair, and non-positive totals are rejected. Minimum-frequency policy is
// the caller's concern, not the parser's.
func ParseFrequency(input string) (int64, error) {
	normalized := strings.ToLower(strings.TrimSpace(input))

	matches := frequencyPattern.FindAllStringSubmatch(normalized, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("no frequency components found in %q", input)
	}

	var total float64
	for _, match := range matches {
		number, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q in frequency", match[1])
		}
		seconds, ok := unitSeconds[match[2]]
		if !ok {
			return 0, fmt.Errorf("unknown time unit %q in frequency", match[2])
		}
		total += number * seconds
	}

	if int64(total) <= 0 {
		return 0, fmt.Errorf("frequency must be positive, got %q", input)
	}
	return int64(total), nil
}

type frequencyUnit struct {
	seconds  int64
	singular string
	plural   string
}

var formatUnits = []frequencyUnit{
	{31556952, "year", "years"},
	{2629746, "month", "months"},
	{604800, "week", "weeks"},
	{86400, "day", "days"},
	{3600, "hour", "hours"},
	{60, "minute", "minutes"},
	{1, "second", "seconds"},
}

// FormatFrequency renders seconds as a human-readable description, largest
// unit first, omitting zero components.
func FormatFrequency(seconds int64) string {
	if seconds < 60 {
		return pluralize(seconds, "second", "seconds")
	}

	var parts []string
	remaining := seconds
	for _, unit := range formatUnits {
		if remaining >= unit.seconds {
			count := remaining / unit.seconds
			remaining %= unit.seconds
			parts = append(parts, pluralize(count, unit.singular, unit.plural))
		}
	}

	switch len(parts) {
	case 0:
		return pluralize(seconds, "second", "seconds")
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
	}
}

func pluralize(count int64, singular, plural string) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, singular)
	}
	return fmt.Sprintf("%d %s", count, plural)
}
