// Package markethours answers whether a stock market is inside a trading
// session at a given instant. All sessions are expressed in Beijing time.
package markethours

import (
	"strings"
	"time"
)

// Market identifies a trading venue.
type Market string

const (
	CN Market = "CN"
	HK Market = "HK"
	US Market = "US"
)

// session is a [start, end] window in minutes after midnight, both inclusive.
type session struct {
	start int
	end   int
	// days lists the weekdays (in the reference timezone) the window applies to.
	days []time.Weekday
}

var weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// The US regular session runs overnight in Beijing time. The evening half sits
// on Mon-Fri; the early-morning half belongs to the previous evening, so it
// sits on Tue-Sat and Monday morning stays closed. 05:00 itself is open on
// every day that carries the continuation, Saturday included, and closed on
// Monday.
var schedule = map[Market][]session{
	CN: {
		{start: hm(9, 30), end: hm(11, 30), days: weekdays},
		{start: hm(13, 0), end: hm(15, 0), days: weekdays},
	},
	HK: {
		{start: hm(9, 30), end: hm(12, 0), days: weekdays},
		{start: hm(13, 0), end: hm(16, 0), days: weekdays},
	},
	US: {
		{start: hm(21, 30), end: hm(23, 59), days: weekdays},
		{start: hm(0, 0), end: hm(5, 0), days: []time.Weekday{time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}},
	},
}

var (
	order    = []Market{CN, HK, US}
	location = loadLocation()
)

func loadLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

func hm(h, m int) int { return h*60 + m }

// Location returns the reference timezone used for every session window.
func Location() *time.Location { return location }

// All returns the known markets in display order.
func All() []Market {
	out := make([]Market, len(order))
	copy(out, order)
	return out
}

// ParseMarket maps user and config spellings onto a Market.
func ParseMarket(raw string) (Market, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "CN", "A", "SH", "SZ", "A股", "沪深":
		return CN, true
	case "HK", "港股":
		return HK, true
	case "US", "美股":
		return US, true
	default:
		return "", false
	}
}

// Label returns a human readable name for the market.
func (m Market) Label() string {
	switch m {
	case CN:
		return "A-shares"
	case HK:
		return "Hong Kong"
	case US:
		return "US"
	default:
		return string(m)
	}
}

// IsOpen reports whether market m is trading at t. Unknown markets are closed.
func IsOpen(m Market, t time.Time) bool {
	sessions, ok := schedule[m]
	if !ok {
		return false
	}
	local := t.In(location)
	minute := local.Hour()*60 + local.Minute()
	day := local.Weekday()
	for _, s := range sessions {
		if minute < s.start || minute > s.end {
			continue
		}
		for _, d := range s.days {
			if d == day {
				return true
			}
		}
	}
	return false
}

// OpenMarkets returns the markets trading at t, in display order.
func OpenMarkets(t time.Time) []Market {
	var out []Market
	for _, m := range order {
		if IsOpen(m, t) {
			out = append(out, m)
		}
	}
	return out
}

// Status reports the open flag for every known market at t.
func Status(t time.Time) map[Market]bool {
	out := make(map[Market]bool, len(order))
	for _, m := range order {
		out[m] = IsOpen(m, t)
	}
	return out
}
