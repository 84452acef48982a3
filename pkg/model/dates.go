package model

import (
	"slices"
	"time"

	"cloud.google.com/go/civil"
)

// RangesOverlap is the half-open interval test: [s1, e1) and [s2, e2)
// intersect iff s1 < e2 and s2 < e1. Touching endpoints do not overlap.
func RangesOverlap(s1, e1, s2, e2 civil.Date) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// DatesBetween lists every date in [from, to) in ascending order.
func DatesBetween(from, to civil.Date) []civil.Date {
	if !from.Before(to) {
		return []civil.Date{}
	}
	dates := make([]civil.Date, 0, to.DaysSince(from))
	for d := from; d.Before(to); d = d.AddDays(1) {
		dates = append(dates, d)
	}
	return dates
}

// AddMonths moves d by n calendar months with time.AddDate normalization,
// so Jan 31 + 1 month is Mar 2 or 3 depending on the year.
func AddMonths(d civil.Date, n int) civil.Date {
	return civil.DateOf(d.In(time.UTC).AddDate(0, n, 0))
}

// MaxDate returns the later of a and b.
func MaxDate(a, b civil.Date) civil.Date {
	if a.After(b) {
		return a
	}
	return b
}

// MinDate returns the earlier of a and b.
func MinDate(a, b civil.Date) civil.Date {
	if a.Before(b) {
		return a
	}
	return b
}

// DateSet is a set of calendar dates.
type DateSet map[civil.Date]struct{}

func NewDateSet() DateSet {
	return DateSet{}
}

func (s DateSet) Add(d civil.Date) {
	s[d] = struct{}{}
}

// AddRange adds every date of [from, to).
func (s DateSet) AddRange(from, to civil.Date) {
	for d := from; d.Before(to); d = d.AddDays(1) {
		s[d] = struct{}{}
	}
}

func (s DateSet) Contains(d civil.Date) bool {
	_, ok := s[d]
	return ok
}

// Sorted returns the members in ascending order.
func (s DateSet) Sorted() []civil.Date {
	dates := make([]civil.Date, 0, len(s))
	for d := range s {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, func(a, b civil.Date) int {
		switch {
		case a.Before(b):
			return -1
		case a.After(b):
			return 1
		default:
			return 0
		}
	})
	return dates
}
