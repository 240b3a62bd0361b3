package divelog

import (
	"regexp"
	"strconv"
	"strings"
)

// Subsurface writes measurements as a number followed by a unit ("18.2 m",
// "200.0 bar", "32.0%") and durations as "M:SS min". Every extractor accepts
// the annotated form first and a bare number second; anything else is
// reported as absent so the caller can keep its default.
var (
	reDuration = regexp.MustCompile(`^\s*(\d+):(\d+)`)
	reMeters   = regexp.MustCompile(`(-?\d+(?:\.\d*)?)\s*m\b`)
	reCelsius  = regexp.MustCompile(`(-?\d+(?:\.\d*)?)\s*°?C\b`)
	reBar      = regexp.MustCompile(`(-?\d+(?:\.\d*)?)\s*bar\b`)
	reLiters   = regexp.MustCompile(`(-?\d+(?:\.\d*)?)\s*l\b`)
	rePercent  = regexp.MustCompile(`(-?\d+(?:\.\d*)?)\s*%`)
)

func measure(re *regexp.Regexp, s string) (float64, bool) {
	if m := re.FindStringSubmatch(s); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v, true
		}
	}
	return bareNumber(s)
}

func bareNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func meters(s string) (float64, bool)  { return measure(reMeters, s) }
func celsius(s string) (float64, bool) { return measure(reCelsius, s) }
func bar(s string) (float64, bool)     { return measure(reBar, s) }
func liters(s string) (float64, bool)  { return measure(reLiters, s) }
func percent(s string) (float64, bool) { return measure(rePercent, s) }

// seconds parses "M:SS min" into seconds; a bare number is taken as seconds.
func seconds(s string) (float64, bool) {
	if m := reDuration.FindStringSubmatch(s); m != nil {
		mins, _ := strconv.Atoi(m[1])
		secs, _ := strconv.Atoi(m[2])
		return float64(mins*60 + secs), true
	}
	return bareNumber(s)
}

// minutes parses "M:SS min" into fractional minutes; a bare number is taken
// as minutes.
func minutes(s string) (float64, bool) {
	if m := reDuration.FindStringSubmatch(s); m != nil {
		mins, _ := strconv.Atoi(m[1])
		secs, _ := strconv.Atoi(m[2])
		return float64(mins) + float64(secs)/60, true
	}
	return bareNumber(s)
}

// integer parses a whole number, returning 0 when the text is not one.
func integer(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func truthy(s string) bool {
	s = strings.TrimSpace(s)
	return s == "1" || strings.EqualFold(s, "true")
}
