package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Result is the outcome of normalizing one date string.
type Result struct {
	Date      Date      `json:"date"`
	Precision Precision `json:"precision"`
	Strategy  string    `json:"strategy"`
}

// OK reports whether any strategy accepted the input.
func (r Result) OK() bool { return r.Precision != PrecisionNone }

// Strategy recognizes one textual shape. Input is already normalized:
// NFKC folded, lower-case, single-spaced, without the Russian year suffix.
type Strategy struct {
	Name      string
	Precision Precision
	Parse     func(s string) (Date, bool)
}

var (
	yearSuffixRe = regexp.MustCompile(`\s*г\.?$`)
	ruDayRe      = regexp.MustCompile(`^(\d{1,2})\s+([а-яё]+)\.?\s+(\d{4})`)
	ruMonthRe    = regexp.MustCompile(`^([а-яё.]+)\s+(\d{4})`)
	quarterRe    = regexp.MustCompile(`^q([1-4])\s+(\d{4})`)
	ruQuarterRe  = regexp.MustCompile(`^([1-4])\s*квартал\s*(\d{4})`)
	yearRe       = regexp.MustCompile(`^(\d{4})(?:\D|$)`)
)

var strategies = []Strategy{
	{Name: "en_day", Precision: PrecisionDay, Parse: layouts(
		"2 Jan, 2006", "Jan 2, 2006", "2 January, 2006", "January 2, 2006",
		"2 Jan 2006", "Jan 2 2006", "2 January 2006", "January 2 2006",
	)},
	{Name: "en_month", Precision: PrecisionMonth, Parse: layouts(
		"Jan 2006", "Jan, 2006", "January 2006", "January, 2006",
	)},
	{Name: "ru_day", Precision: PrecisionDay, Parse: parseRussianDay},
	{Name: "ru_month", Precision: PrecisionMonth, Parse: parseRussianMonth},
	{Name: "quarter", Precision: PrecisionQuarter, Parse: quarter(quarterRe)},
	{Name: "ru_quarter", Precision: PrecisionQuarter, Parse: quarter(ruQuarterRe)},
	{Name: "year", Precision: PrecisionYear, Parse: parseYear},
}

// Strategies returns the strategy list in evaluation order.
func Strategies() []Strategy {
	out := make([]Strategy, len(strategies))
	copy(out, strategies)
	return out
}

// Parse normalizes text to a Date. It never fails loudly: text no strategy
// recognizes yields ok == false.
func Parse(text string) (Date, bool) {
	r := Normalize(text)
	return r.Date, r.OK()
}

// Normalize is Parse plus which strategy matched and how precise it was.
func Normalize(text string) Result {
	s := Clean(text)
	if s == "" {
		return Result{}
	}
	for _, st := range strategies {
		if d, ok := st.Parse(s); ok {
			return Result{Date: d, Precision: st.Precision, Strategy: st.Name}
		}
	}
	return Result{}
}

// Clean applies the normalization every strategy expects.
func Clean(text string) string {
	s := norm.NFKC.String(text)
	s = strings.ToLower(strings.TrimSpace(s))
	s = yearSuffixRe.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// layouts tries each time layout in order. time.Parse matches month names
// case-insensitively, so lower-cased input is fine.
func layouts(ls ...string) func(string) (Date, bool) {
	return func(s string) (Date, bool) {
		for _, l := range ls {
			if t, err := time.Parse(l, s); err == nil {
				return Of(t), true
			}
		}
		return Date{}, false
	}
}

func parseRussianDay(s string) (Date, bool) {
	m := ruDayRe.FindStringSubmatch(s)
	if m == nil {
		return Date{}, false
	}
	month, ok := RussianMonth(m[2])
	if !ok {
		return Date{}, false
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	if !Valid(year, month, day) {
		return Date{}, false
	}
	return New(year, month, day), true
}

func parseRussianMonth(s string) (Date, bool) {
	m := ruMonthRe.FindStringSubmatch(s)
	if m == nil {
		return Date{}, false
	}
	month, ok := RussianMonth(m[1])
	if !ok {
		return Date{}, false
	}
	year, _ := strconv.Atoi(m[2])
	if !Valid(year, month, 1) {
		return Date{}, false
	}
	return New(year, month, 1), true
}

// quarter maps quarter n to the first day of its first month.
func quarter(re *regexp.Regexp) func(string) (Date, bool) {
	return func(s string) (Date, bool) {
		m := re.FindStringSubmatch(s)
		if m == nil {
			return Date{}, false
		}
		q, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		month := time.Month((q-1)*3 + 1)
		if !Valid(year, month, 1) {
			return Date{}, false
		}
		return New(year, month, 1), true
	}
}

func parseYear(s string) (Date, bool) {
	m := yearRe.FindStringSubmatch(s)
	if m == nil {
		return Date{}, false
	}
	year, _ := strconv.Atoi(m[1])
	if !Valid(year, time.January, 1) {
		return Date{}, false
	}
	return New(year, time.January, 1), true
}
