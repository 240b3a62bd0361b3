package export

import (
	"strings"

	"codeberg.org/mutker/unabara/internal/dive"
	"github.com/gosimple/slug"
)

const maxNamePart = 47

// BaseName derives a file-system safe name for exports of series:
// "2024-05-01_091500_dive-1_blue-hole". Parts that are unknown are left out;
// a series with nothing to go on is called "dive".
func BaseName(series *dive.Series) string {
	var parts []string
	if start := series.StartTime(); !start.IsZero() {
		parts = append(parts, start.Format("2006-01-02_150405"))
	}
	for _, s := range []string{series.Name(), series.Location()} {
		if part := namePart(s); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "dive"
	}
	return strings.Join(parts, "_")
}

func namePart(s string) string {
	part := slug.Make(s)
	if len(part) > maxNamePart {
		part = strings.TrimRight(part[:maxNamePart], "-")
	}
	return part
}
