package instrument

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AllDay is the sentinel window that is open around the clock.
const AllDay = "0000-2359"

// Window is a daily HHMM-HHMM trading window, in minutes after midnight.
// Both bounds are inclusive. Start after End wraps past midnight.
type Window struct {
	Start int
	End   int
	all   bool
}

// ParseTradingHours parses "HHMM-HHMM". Empty and AllDay are always open.
func ParseTradingHours(s string) (Window, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == AllDay {
		return Window{Start: 0, End: 23*60 + 59, all: true}, nil
	}

	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidTradingHours, s)
	}
	start, err := parseHHMM(from)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidTradingHours, s)
	}
	end, err := parseHHMM(to)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidTradingHours, s)
	}
	return Window{Start: start, End: end}, nil
}

func parseHHMM(s string) (int, error) {
	if len(s) != 4 {
		return 0, fmt.Errorf("bad length")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	h, m := n/100, n%100
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("out of range")
	}
	return h*60 + m, nil
}

// Contains reports whether the wall clock time of t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.all {
		return true
	}
	now := t.Hour()*60 + t.Minute()
	if w.Start <= w.End {
		return now >= w.Start && now <= w.End
	}
	return now >= w.Start || now <= w.End
}
