package recurrence

import (
	"errors"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

var jst = time.FixedZone("JST", 9*60*60)

// DefaultHorizon bounds how long a series may run past its first occurrence.
const DefaultHorizon = 366 * 24 * time.Hour

// Frequency represents supported recurrence intervals.
type Frequency int

const (
	// FrequencyNone indicates a single occurrence.
	FrequencyNone Frequency = iota
	// FrequencyDaily repeats every calendar day.
	FrequencyDaily
	// FrequencyWeekly repeats on the weekday of the first occurrence.
	FrequencyWeekly
	// FrequencyCustom evaluates an RFC 5545 RRULE.
	FrequencyCustom
)

// Series describes a booking and the way it repeats.
type Series struct {
	BookingID string
	Frequency Frequency
	// Rule is the RRULE body used by FrequencyCustom, e.g. "FREQ=WEEKLY;BYDAY=MO,WE".
	Rule string
	// Start and End bound the first occurrence.
	Start time.Time
	End   time.Time
	// Until is the last calendar day on which an occurrence may start.
	Until *time.Time
}

// GenerateOptions defines optional range bounds for occurrence generation.
type GenerateOptions struct {
	RangeStart *time.Time
	RangeEnd   *time.Time
}

// Occurrence represents a generated instance of a series.
type Occurrence struct {
	BookingID string
	Start     time.Time
	End       time.Time
}

// Engine expands series into occurrences.
type Engine struct {
	location *time.Location
	horizon  time.Duration
}

// NewEngine constructs an Engine that normalizes results to the provided location.
// If loc is nil, Asia/Tokyo (JST) is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = jst
	}
	return &Engine{location: loc, horizon: DefaultHorizon}
}

// WithHorizon returns a copy of the engine that accepts series ending at most
// horizon past their start. Non-positive values keep the current horizon.
func (e *Engine) WithHorizon(horizon time.Duration) *Engine {
	clone := *e
	if horizon > 0 {
		clone.horizon = horizon
	}
	return &clone
}

// Location returns the engine's timezone.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return jst
	}
	return e.location
}

var (
	// ErrInvalidFrequency indicates the recurrence frequency is not supported.
	ErrInvalidFrequency = errors.New("recurrence: invalid frequency")
	// ErrMissingUntil indicates a repeating series has no end date.
	ErrMissingUntil = errors.New("recurrence: repeating series requires an end date")
	// ErrInvalidDuration indicates the base occurrence duration is invalid.
	ErrInvalidDuration = errors.New("recurrence: occurrence duration must be positive")
	// ErrInvalidRule indicates a custom rule could not be parsed.
	ErrInvalidRule = errors.New("recurrence: invalid rule")
	// ErrBeyondHorizon indicates a series ends later than the engine accepts.
	ErrBeyondHorizon = errors.New("recurrence: series ends beyond the horizon")
)

// LastUntil returns the latest Until day accepted for a series starting at
// start.
func (e *Engine) LastUntil(start time.Time) time.Time {
	loc := e.Location()
	horizon := DefaultHorizon
	if e != nil && e.horizon > 0 {
		horizon = e.horizon
	}
	y, m, d := start.In(loc).Add(horizon).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// CheckHorizon reports ErrBeyondHorizon when a repeating series ends after
// LastUntil. Stored series are always expanded up to their own Until day, so
// the limit is enforced when a series is accepted.
func (e *Engine) CheckHorizon(series Series) error {
	if series.Frequency == FrequencyNone || series.Until == nil {
		return nil
	}
	loc := e.Location()
	y, m, d := series.Until.In(loc).Date()
	until := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if until.After(e.LastUntil(series.Start)) {
		return ErrBeyondHorizon
	}
	return nil
}

// ValidateRule checks that a custom RRULE body parses and repeats at most
// daily.
func ValidateRule(rule string) error {
	_, err := parseRule(rule)
	return err
}

// GenerateOccurrences produces the series occurrences that intersect the
// requested range.
//
// All timestamps are normalized to the engine's timezone. Generation stops at
// the earlier of the series' Until day and the range end. The first
// occurrence of every series is its base interval, whether or not a custom
// rule matches it.
func (e *Engine) GenerateOccurrences(series Series, opts GenerateOptions) ([]Occurrence, error) {
	loc := e.Location()

	baseStart := series.Start.In(loc)
	baseEnd := series.End.In(loc)
	if !baseEnd.After(baseStart) {
		return nil, ErrInvalidDuration
	}
	duration := baseEnd.Sub(baseStart)

	var rangeStart, rangeEnd time.Time
	if opts.RangeStart != nil {
		rangeStart = opts.RangeStart.In(loc)
	}
	if opts.RangeEnd != nil {
		rangeEnd = opts.RangeEnd.In(loc)
	}

	keep := func(start time.Time) bool {
		end := start.Add(duration)
		if !rangeStart.IsZero() && !end.After(rangeStart) {
			return false
		}
		if !rangeEnd.IsZero() && !start.Before(rangeEnd) {
			return false
		}
		return true
	}

	if series.Frequency == FrequencyNone {
		if !keep(baseStart) {
			return nil, nil
		}
		return []Occurrence{{BookingID: series.BookingID, Start: baseStart, End: baseEnd}}, nil
	}

	if series.Until == nil {
		return nil, ErrMissingUntil
	}

	// Exclusive upper bound on occurrence starts.
	y, m, d := series.Until.In(loc).Date()
	upper := time.Date(y, m, d, 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	if !rangeEnd.IsZero() && rangeEnd.Before(upper) {
		upper = rangeEnd
	}
	if !upper.After(baseStart) {
		return nil, nil
	}

	var starts []time.Time
	switch series.Frequency {
	case FrequencyDaily:
		starts = stepDays(baseStart, upper, 1)
	case FrequencyWeekly:
		starts = stepDays(baseStart, upper, 7)
	case FrequencyCustom:
		opt, err := parseRule(series.Rule)
		if err != nil {
			return nil, err
		}
		opt.Dtstart = baseStart
		r, err := rrule.NewRRule(*opt)
		if err != nil {
			return nil, errors.Join(ErrInvalidRule, err)
		}
		after := baseStart
		if !rangeStart.IsZero() && rangeStart.Add(-duration).After(after) {
			after = rangeStart.Add(-duration)
		}
		starts = r.Between(after, upper, true)
		if len(starts) == 0 || !starts[0].Equal(baseStart) {
			starts = append([]time.Time{baseStart}, starts...)
		}
	default:
		return nil, ErrInvalidFrequency
	}

	occurrences := make([]Occurrence, 0, len(starts))
	for _, start := range starts {
		start = start.In(loc)
		if !start.Before(upper) || !keep(start) {
			continue
		}
		occurrences = append(occurrences, Occurrence{
			BookingID: series.BookingID,
			Start:     start,
			End:       start.Add(duration),
		})
	}

	return occurrences, nil
}

// stepDays walks from first in steps of days while starts stay before upper.
func stepDays(first, upper time.Time, days int) []time.Time {
	starts := make([]time.Time, 0)
	current := first
	for i := 1; current.Before(upper); i++ {
		starts = append(starts, current)
		current = combineDateTime(first.AddDate(0, 0, i*days), first)
	}
	return starts
}

func combineDateTime(dateSource, template time.Time) time.Time {
	loc := template.Location()
	y, m, d := dateSource.In(loc).Date()
	return time.Date(y, m, d, template.Hour(), template.Minute(), template.Second(), template.Nanosecond(), loc)
}

func parseRule(rule string) (*rrule.ROption, error) {
	body := strings.TrimSpace(rule)
	body = strings.TrimPrefix(body, "RRULE:")
	if body == "" {
		return nil, ErrInvalidRule
	}
	opt, err := rrule.StrToROption(body)
	if err != nil {
		return nil, errors.Join(ErrInvalidRule, err)
	}
	if opt.Freq > rrule.DAILY {
		return nil, ErrInvalidRule
	}
	return opt, nil
}
