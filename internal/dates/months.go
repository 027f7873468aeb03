package dates

import (
	"strings"
	"time"
)

// ruMonths maps every Russian month token the store emits (genitive,
// nominative and abbreviated forms, with and without the trailing dot)
// to a month.
var ruMonths = map[string]time.Month{
	"января": time.January, "январь": time.January, "янв": time.January, "янв.": time.January,
	"февраля": time.February, "февраль": time.February, "фев": time.February, "фев.": time.February, "февр": time.February, "февр.": time.February,
	"марта": time.March, "март": time.March, "мар": time.March, "мар.": time.March,
	"апреля": time.April, "апрель": time.April, "апр": time.April, "апр.": time.April,
	"мая": time.May, "май": time.May,
	"июня": time.June, "июнь": time.June, "июн": time.June, "июн.": time.June,
	"июля": time.July, "июль": time.July, "июл": time.July, "июл.": time.July,
	"августа": time.August, "август": time.August, "авг": time.August, "авг.": time.August,
	"сентября": time.September, "сентябрь": time.September, "сен": time.September, "сен.": time.September, "сент": time.September, "сент.": time.September,
	"октября": time.October, "октябрь": time.October, "окт": time.October, "окт.": time.October,
	"ноября": time.November, "ноябрь": time.November, "ноя": time.November, "ноя.": time.November, "нояб": time.November, "нояб.": time.November,
	"декабря": time.December, "декабрь": time.December, "дек": time.December, "дек.": time.December,
}

// RussianMonth looks up a lower-case Russian month token.
func RussianMonth(token string) (time.Month, bool) {
	m, ok := ruMonths[strings.ToLower(token)]
	return m, ok
}

// Month spellings used by the store, indexed by time.Month-1. The calendar
// pre-filter builds its LIKE patterns from these.
var (
	EnglishShort = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

	RussianGenitive   = [12]string{"января", "февраля", "марта", "апреля", "мая", "июня", "июля", "августа", "сентября", "октября", "ноября", "декабря"}
	RussianNominative = [12]string{"январь", "февраль", "март", "апрель", "май", "июнь", "июль", "август", "сентябрь", "октябрь", "ноябрь", "декабрь"}
	RussianShort      = [12]string{"янв.", "февр.", "мар.", "апр.", "мая", "июн.", "июл.", "авг.", "сен.", "окт.", "ноя.", "дек."}
)

// EnglishFull returns the full English month name.
func EnglishFull(m time.Month) string { return m.String() }
