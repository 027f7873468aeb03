package calendar

import (
	"strconv"
	"strings"
	"time"

	"releasehub/internal/dates"
)

// MonthPatterns returns the lower-case LIKE patterns that find release
// texts mentioning the month in any spelling the store uses.
func MonthPatterns(year int, month time.Month) []string {
	y := strconv.Itoa(year)
	i := int(month) - 1

	short := dates.EnglishShort[i]
	full := dates.EnglishFull(month)
	gen := dates.RussianGenitive[i]
	nom := dates.RussianNominative[i]
	ruShort := dates.RussianShort[i]

	// "26 May, 2025", "Jun 2025", "Jun 11, 2025" and the full-name forms
	ps := []string{
		"%" + short + ", " + y + "%",
		"%" + short + " " + y + "%",
		"%" + short + " %, " + y + "%",
		"%" + full + " " + y + "%",
		"%" + full + ", " + y + "%",
	}
	// "8 ноября 2025", "июнь 2025", "25 июн. 2025"
	ps = append(ps,
		"%"+gen+" "+y+"%",
		"%"+gen+", "+y+"%",
		"%"+nom+" "+y+"%",
		"%"+ruShort+" "+y+"%",
	)
	if month == time.February {
		ps = append(ps, "%фев. "+y+"%")
	}

	out := make([]string, 0, len(ps))
	seen := make(map[string]bool, len(ps))
	for _, p := range ps {
		p = strings.ToLower(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
