package pricing

import "time"

// Period is a minute-of-day interval with a consuming price. A period may
// wrap midnight (StartMinute > EndMinute).
type Period struct {
	StartMinute int     `yaml:"start_minute"`
	EndMinute   int     `yaml:"end_minute"`
	Price       float64 `yaml:"price"`
}

// Schedule is the tariff applied to aggregated energy: a flat feed-in
// price plus ordered consuming periods. First matching period wins.
type Schedule struct {
	Currency       string   `yaml:"currency"`
	ProducingPrice float64  `yaml:"producing_price"`
	Periods        []Period `yaml:"periods"`
}

// ConsumptionCost prices consumed energy at the tariff in force at ts,
// evaluated against the minute of the local day. A gap in the schedule
// falls back to the first period's price.
func (s *Schedule) ConsumptionCost(kwh float64, ts int64, loc *time.Location) float64 {
	if s == nil || kwh <= 0 || len(s.Periods) == 0 {
		return 0
	}
	minute := minuteOfDay(ts, loc)
	for _, p := range s.Periods {
		if p.matches(minute) {
			return kwh * p.Price
		}
	}
	return kwh * s.Periods[0].Price
}

// FeedInCost prices exported energy at the flat producing rate.
func (s *Schedule) FeedInCost(kwh float64) float64 {
	if s == nil || kwh <= 0 {
		return 0
	}
	return kwh * s.ProducingPrice
}

func (p Period) matches(minute int) bool {
	if p.StartMinute > p.EndMinute {
		return minute >= p.StartMinute || minute < p.EndMinute
	}
	return minute >= p.StartMinute && minute < p.EndMinute
}

func minuteOfDay(ts int64, loc *time.Location) int {
	if loc == nil {
		loc = time.Local
	}
	t := time.Unix(ts, 0).In(loc)
	return t.Hour()*60 + t.Minute()
}
