package source

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Period is a pay period.
type Period string

const (
	PeriodHour  Period = "hour"
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// perYear is the number of periods in a working year.
var perYear = map[Period]float64{
	PeriodHour:  2080,
	PeriodDay:   260,
	PeriodWeek:  52,
	PeriodMonth: 12,
	PeriodYear:  1,
}

// ParsePeriod accepts the spellings found in source tables.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hour", "hourly", "hr", "h":
		return PeriodHour, nil
	case "day", "daily", "d":
		return PeriodDay, nil
	case "week", "weekly", "wk":
		return PeriodWeek, nil
	case "month", "monthly", "mo", "mon":
		return PeriodMonth, nil
	case "year", "yearly", "annual", "annually", "yr", "y":
		return PeriodYear, nil
	}
	return "", eris.Errorf("source: unknown pay period %q", s)
}

// Normalizer converts amounts into the engine's common currency and period.
// There is no FX conversion: amounts in another currency are rejected.
type Normalizer struct {
	Currency string
	Period   Period
}

// NewNormalizer builds a Normalizer, defaulting to USD per month.
func NewNormalizer(currency, period string) (Normalizer, error) {
	n := Normalizer{Currency: strings.ToUpper(strings.TrimSpace(currency)), Period: PeriodMonth}
	if n.Currency == "" {
		n.Currency = "USD"
	}
	if period != "" {
		p, err := ParsePeriod(period)
		if err != nil {
			return Normalizer{}, err
		}
		n.Period = p
	}
	return n, nil
}

// Factor returns the multiplier taking an amount in (currency, period) into
// the common unit. ok is false for a foreign currency or unknown period.
// Empty currency or period means the common one.
func (n Normalizer) Factor(currency, period string) (float64, bool) {
	if c := strings.ToUpper(strings.TrimSpace(currency)); c != "" && c != n.Currency {
		return 0, false
	}
	from := n.Period
	if period != "" {
		p, err := ParsePeriod(period)
		if err != nil {
			return 0, false
		}
		from = p
	}
	return perYear[from] / perYear[n.Period], true
}
