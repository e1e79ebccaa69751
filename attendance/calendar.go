package attendance

import "time"

// =============================================================================
// CALENDAR CLASSIFIER
// =============================================================================

type DayKind string

const (
	DayWorkday DayKind = "WORKDAY"
	DayWeekend DayKind = "WEEKEND"
	DayHoliday DayKind = "HOLIDAY"
)

// Classification is the day-kind of a date. Label is set for HOLIDAY only.
type Classification struct {
	Kind  DayKind
	Label string
}

func (c Classification) IsWorkday() bool { return c.Kind == DayWorkday }

// Calendar classifies dates against a holiday set. A nil or empty Calendar
// classifies by weekday alone, which is also the degraded mode used when the
// holiday set cannot be loaded.
type Calendar struct {
	holidays map[Date]Holiday
}

func NewCalendar(holidays []Holiday) *Calendar {
	c := &Calendar{holidays: make(map[Date]Holiday, len(holidays))}
	for _, h := range holidays {
		c.holidays[h.Date] = h
	}
	return c
}

// Classify returns HOLIDAY for declared holidays, otherwise WEEKEND on
// Saturday and Sunday, otherwise WORKDAY.
func (c *Calendar) Classify(d Date) Classification {
	if h, ok := c.Holiday(d); ok {
		return Classification{Kind: DayHoliday, Label: h.Label}
	}
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return Classification{Kind: DayWeekend}
	}
	return Classification{Kind: DayWorkday}
}

// Holiday returns the declared holiday on d, if any.
func (c *Calendar) Holiday(d Date) (Holiday, bool) {
	if c == nil {
		return Holiday{}, false
	}
	h, ok := c.holidays[d]
	return h, ok
}
