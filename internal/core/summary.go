package core

// Period is a calendar month, used to scope transaction queries.
type Period struct {
	Year  int
	Month int // 1-12
}

// PeriodOf returns the month containing d.
func PeriodOf(d Date) Period {
	return Period{Year: d.Year(), Month: d.Month()}
}

// Start returns the first day of the period.
func (p Period) Start() Date {
	return NewDate(p.Year, p.Month, 1)
}

// End returns the first day of the following period (exclusive bound).
func (p Period) End() Date {
	return NewDate(p.Year, p.Month+1, 1)
}

// Contains reports whether d falls inside the period.
func (p Period) Contains(d Date) bool {
	return !d.Before(p.Start()) && d.Before(p.End())
}

func (p Period) Valid() bool {
	return p.Month >= 1 && p.Month <= 12 && p.Year > 0
}
