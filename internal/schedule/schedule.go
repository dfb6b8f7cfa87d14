// Package schedule decides which hours of the day are quiet.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/huandu/skiplist"
)

const HoursPerDay = 24

var ErrInvalidRange = errors.New("invalid hour range")

var rangeRe = regexp2.MustCompile(`^\s*(?<from>[0-9]{1,2})\s*(?:-\s*(?<to>[0-9]{1,2})\s*)?$`, regexp2.None)

type Schedule struct {
	quiet [HoursPerDay]bool

	// awake holds every hour that is not quiet, so the end of a quiet
	// stretch is the first key at or after the current hour.
	awake *skiplist.SkipList
}

// New returns a schedule where the given hours are quiet.
func New(quiet ...int) (*Schedule, error) {
	s := &Schedule{}
	for _, h := range quiet {
		if h < 0 || h >= HoursPerDay {
			return nil, fmt.Errorf("%w: hour %d", ErrInvalidRange, h)
		}
		s.quiet[h] = true
	}
	s.index()
	return s, nil
}

// Parse reads a comma separated list of hours and inclusive ranges, e.g.
// "0-7,14-23". A range whose end is before its start wraps past midnight.
func Parse(spec string) (*Schedule, error) {
	var hours []int

	for _, item := range strings.Split(spec, ",") {
		if strings.TrimSpace(item) == "" {
			continue
		}

		m, err := rangeRe.FindStringMatch(item)
		if err != nil {
			return nil, fmt.Errorf("match %q: %w", item, err)
		}
		if m == nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRange, item)
		}

		from, err := strconv.Atoi(m.GroupByName("from").String())
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRange, item)
		}
		to := from
		if g := m.GroupByName("to"); len(g.Captures) > 0 {
			if to, err = strconv.Atoi(g.String()); err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidRange, item)
			}
		}

		if from >= HoursPerDay || to >= HoursPerDay {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRange, item)
		}

		for h := from; ; h = (h + 1) % HoursPerDay {
			hours = append(hours, h)
			if h == to {
				break
			}
		}
	}

	return New(hours...)
}

func (s *Schedule) index() {
	s.awake = skiplist.New(skiplist.Int)
	for h, q := range s.quiet {
		if !q {
			s.awake.Set(h, struct{}{})
		}
	}
}

func normalize(hour int) int {
	hour %= HoursPerDay
	if hour < 0 {
		hour += HoursPerDay
	}
	return hour
}

func (s *Schedule) IsQuiet(hour int) bool {
	return s.quiet[normalize(hour)]
}

// WakeUpIn returns how many hours remain until quiet time ends. It is 0
// outside quiet time and 24 when every hour is quiet.
//
// The count carries on past midnight: with "0-7,14-23" hour 23 gives 9, not
// the 1 a count that stops at the end of the day would give.
func (s *Schedule) WakeUpIn(hour int) uint8 {
	hour = normalize(hour)
	if !s.quiet[hour] {
		return 0
	}

	next := s.awake.Find(hour)
	if next == nil {
		next = s.awake.Front()
		if next == nil {
			return HoursPerDay
		}
		return uint8(next.Key().(int) + HoursPerDay - hour)
	}
	return uint8(next.Key().(int) - hour)
}

// String renders the quiet hours in the format Parse accepts.
func (s *Schedule) String() string {
	var parts []string
	for h := 0; h < HoursPerDay; h++ {
		if !s.quiet[h] {
			continue
		}
		start := h
		for h+1 < HoursPerDay && s.quiet[h+1] {
			h++
		}
		if start == h {
			parts = append(parts, strconv.Itoa(h))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, h))
		}
	}
	return strings.Join(parts, ",")
}
