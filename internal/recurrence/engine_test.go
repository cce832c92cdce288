package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_GenerateOccurrences(t *testing.T) {
	t.Parallel()

	baseStart := time.Date(2024, time.March, 4, 9, 0, 0, 0, jst) // Monday
	baseEnd := baseStart.Add(1 * time.Hour)
	engine := NewEngine(jst)

	t.Run("single booking yields its own interval", func(t *testing.T) {
		t.Parallel()

		got, err := engine.GenerateOccurrences(Series{BookingID: "b-1", Start: baseStart, End: baseEnd}, GenerateOptions{})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, Occurrence{BookingID: "b-1", Start: baseStart, End: baseEnd}, got[0])
	})

	t.Run("weekly series repeats on the same weekday until the end date", func(t *testing.T) {
		t.Parallel()

		until := baseStart.AddDate(0, 0, 14)
		got, err := engine.GenerateOccurrences(Series{
			BookingID: "b-2",
			Frequency: FrequencyWeekly,
			Start:     baseStart,
			End:       baseEnd,
			Until:     &until,
		}, GenerateOptions{})
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i, occ := range got {
			assert.Equal(t, time.Monday, occ.Start.Weekday())
			assert.Equal(t, baseStart.AddDate(0, 0, 7*i), occ.Start)
			assert.Equal(t, time.Hour, occ.End.Sub(occ.Start))
			assert.Equal(t, "b-2", occ.BookingID)
		}
	})

	t.Run("until day is inclusive", func(t *testing.T) {
		t.Parallel()

		until := time.Date(2024, time.March, 6, 0, 0, 0, 0, jst)
		got, err := engine.GenerateOccurrences(Series{
			Frequency: FrequencyDaily,
			Start:     baseStart,
			End:       baseEnd,
			Until:     &until,
		}, GenerateOptions{})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, 6, got[2].Start.Day())
	})

	t.Run("clips occurrences to the requested period", func(t *testing.T) {
		t.Parallel()

		until := baseStart.AddDate(0, 0, 30)
		rangeStart := baseStart.AddDate(0, 0, 3)
		rangeEnd := baseStart.AddDate(0, 0, 10)
		got, err := engine.GenerateOccurrences(Series{
			Frequency: FrequencyDaily,
			Start:     baseStart,
			End:       baseEnd,
			Until:     &until,
		}, GenerateOptions{RangeStart: &rangeStart, RangeEnd: &rangeEnd})
		require.NoError(t, err)
		require.Len(t, got, 7)
		assert.Equal(t, rangeStart, got[0].Start)
		assert.True(t, got[len(got)-1].Start.Before(rangeEnd))
	})

	t.Run("custom rule honours weekday selections", func(t *testing.T) {
		t.Parallel()

		until := baseStart.AddDate(0, 0, 13)
		got, err := engine.GenerateOccurrences(Series{
			Frequency: FrequencyCustom,
			Rule:      "FREQ=WEEKLY;BYDAY=MO,WE,FR",
			Start:     baseStart,
			End:       baseEnd,
			Until:     &until,
		}, GenerateOptions{})
		require.NoError(t, err)
		require.Len(t, got, 6)

		want := []time.Weekday{time.Monday, time.Wednesday, time.Friday, time.Monday, time.Wednesday, time.Friday}
		for i, occ := range got {
			assert.Equal(t, want[i], occ.Start.Weekday())
			assert.Equal(t, 9, occ.Start.Hour())
		}
	})

	t.Run("normalizes to the engine timezone", func(t *testing.T) {
		t.Parallel()

		until := baseStart.AddDate(0, 0, 7).In(time.UTC)
		got, err := engine.GenerateOccurrences(Series{
			Frequency: FrequencyWeekly,
			Start:     baseStart.In(time.UTC),
			End:       baseEnd.In(time.UTC),
			Until:     &until,
		}, GenerateOptions{})
		require.NoError(t, err)
		require.Len(t, got, 2)
		for _, occ := range got {
			assert.Equal(t, jst, occ.Start.Location())
			assert.Equal(t, 9, occ.Start.Hour())
		}
	})

	t.Run("expands a series up to its own end date regardless of the horizon", func(t *testing.T) {
		t.Parallel()

		until := baseStart.AddDate(0, 0, 9)
		got, err := engine.WithHorizon(72*time.Hour).GenerateOccurrences(Series{
			Frequency: FrequencyDaily,
			Start:     baseStart,
			End:       baseEnd,
			Until:     &until,
		}, GenerateOptions{})
		require.NoError(t, err)
		require.Len(t, got, 10)
		assert.Equal(t, until.Day(), got[9].Start.Day())
	})

	t.Run("custom rule keeps the base interval when it does not match", func(t *testing.T) {
		t.Parallel()

		tuesday := baseStart.AddDate(0, 0, 1)
		sameDay := tuesday
		got, err := engine.GenerateOccurrences(Series{
			Frequency: FrequencyCustom,
			Rule:      "FREQ=WEEKLY;BYDAY=MO",
			Start:     tuesday,
			End:       tuesday.Add(time.Hour),
			Until:     &sameDay,
		}, GenerateOptions{})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, tuesday, got[0].Start)

		until := tuesday.AddDate(0, 0, 14)
		got, err = engine.GenerateOccurrences(Series{
			Frequency: FrequencyCustom,
			Rule:      "FREQ=WEEKLY;BYDAY=MO",
			Start:     tuesday,
			End:       tuesday.Add(time.Hour),
			Until:     &until,
		}, GenerateOptions{})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, time.Tuesday, got[0].Start.Weekday())
		assert.Equal(t, time.Monday, got[1].Start.Weekday())
		assert.Equal(t, time.Monday, got[2].Start.Weekday())

		// The base interval is dropped only by the requested period.
		rangeStart := tuesday.AddDate(0, 0, 2)
		got, err = engine.GenerateOccurrences(Series{
			Frequency: FrequencyCustom,
			Rule:      "FREQ=WEEKLY;BYDAY=MO",
			Start:     tuesday,
			End:       tuesday.Add(time.Hour),
			Until:     &until,
		}, GenerateOptions{RangeStart: &rangeStart})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, time.Monday, got[0].Start.Weekday())
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		t.Parallel()

		_, err := engine.GenerateOccurrences(Series{Start: baseEnd, End: baseStart}, GenerateOptions{})
		assert.ErrorIs(t, err, ErrInvalidDuration)

		_, err = engine.GenerateOccurrences(Series{Frequency: FrequencyWeekly, Start: baseStart, End: baseEnd}, GenerateOptions{})
		assert.ErrorIs(t, err, ErrMissingUntil)

		until := baseStart.AddDate(0, 1, 0)
		_, err = engine.GenerateOccurrences(Series{Frequency: FrequencyCustom, Rule: "FREQ=SOMETIMES", Start: baseStart, End: baseEnd, Until: &until}, GenerateOptions{})
		assert.ErrorIs(t, err, ErrInvalidRule)

		_, err = engine.GenerateOccurrences(Series{Frequency: Frequency(42), Start: baseStart, End: baseEnd, Until: &until}, GenerateOptions{})
		assert.ErrorIs(t, err, ErrInvalidFrequency)
	})
}

func TestEngine_CheckHorizon(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, time.January, 10, 9, 0, 0, 0, jst)
	engine := NewEngine(jst)
	assert.Equal(t, time.Date(2025, time.January, 10, 0, 0, 0, 0, jst), engine.LastUntil(start))

	series := func(until time.Time) Series {
		return Series{Frequency: FrequencyDaily, Start: start, End: start.Add(time.Hour), Until: &until}
	}

	assert.NoError(t, engine.CheckHorizon(series(time.Date(2025, time.January, 10, 0, 0, 0, 0, jst))))
	assert.ErrorIs(t, engine.CheckHorizon(series(time.Date(2025, time.January, 11, 0, 0, 0, 0, jst))), ErrBeyondHorizon)
	assert.ErrorIs(t, engine.CheckHorizon(series(time.Date(2025, time.December, 31, 0, 0, 0, 0, jst))), ErrBeyondHorizon)
	assert.NoError(t, engine.CheckHorizon(Series{Start: start, End: start.Add(time.Hour)}))

	short := engine.WithHorizon(72 * time.Hour)
	assert.ErrorIs(t, short.CheckHorizon(series(start.AddDate(0, 0, 4))), ErrBeyondHorizon)
	assert.NoError(t, short.CheckHorizon(series(start.AddDate(0, 0, 3))))
}

func TestValidateRule(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateRule("FREQ=WEEKLY;BYDAY=TU"))
	assert.NoError(t, ValidateRule("RRULE:FREQ=MONTHLY;BYMONTHDAY=1"))
	assert.ErrorIs(t, ValidateRule(""), ErrInvalidRule)
	assert.ErrorIs(t, ValidateRule("FREQ=HOURLY"), ErrInvalidRule)
	assert.ErrorIs(t, ValidateRule("not a rule"), ErrInvalidRule)
}
