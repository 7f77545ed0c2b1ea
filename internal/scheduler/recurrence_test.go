package scheduler

import (
	"testing"
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandSingleEntry(t *testing.T) {
	entry := &domain.AvailabilityEntry{ID: 1, Start: hm(9, 0), End: hm(12, 0), Kind: domain.AvailabilityBlock}

	got := expandEntry(entry, hm(11, 0), hm(13, 0), time.UTC)
	require.Len(t, got, 1)
	assert.Equal(t, hm(9, 0), got[0].Start)

	assert.Empty(t, expandEntry(entry, hm(12, 0), hm(13, 0), time.UTC))
}

func TestExpandWeeklyEntry(t *testing.T) {
	// 2026-03-04 是周三
	entry := &domain.AvailabilityEntry{
		ID:    1,
		Start: hm(9, 0),
		End:   hm(10, 0),
		Kind:  domain.AvailabilityBlock,
		Recurrence: &domain.Recurrence{
			Frequency: domain.RecurrenceWeekly,
			Weekdays:  []time.Weekday{time.Monday, time.Wednesday},
			Until:     time.Date(2026, time.March, 16, 0, 0, 0, 0, time.UTC),
		},
	}

	got := expandEntry(entry, base.AddDate(0, 0, -10), base.AddDate(0, 0, 30), time.UTC)
	var starts []string
	for _, inst := range got {
		starts = append(starts, inst.Start.Format("2006-01-02 15:04"))
		assert.Equal(t, time.Hour, inst.End.Sub(inst.Start))
	}
	assert.Equal(t, []string{
		"2026-03-04 09:00",
		"2026-03-09 09:00",
		"2026-03-11 09:00",
		"2026-03-16 09:00",
	}, starts)
}

func TestExpandWeeklyDefaultsToStartWeekday(t *testing.T) {
	entry := &domain.AvailabilityEntry{
		Start: hm(9, 0),
		End:   hm(10, 0),
		Recurrence: &domain.Recurrence{
			Frequency: domain.RecurrenceWeekly,
			Until:     time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC),
		},
	}
	got := expandEntry(entry, base, base.AddDate(0, 0, 21), time.UTC)
	require.Len(t, got, 3)
	for _, inst := range got {
		assert.Equal(t, time.Wednesday, inst.Start.Weekday())
	}
}

func TestExpandDailyEntryAcrossMidnight(t *testing.T) {
	// 每晚 22:00 到次日 02:00
	entry := &domain.AvailabilityEntry{
		Start: hm(22, 0),
		End:   hm(26, 0),
		Recurrence: &domain.Recurrence{
			Frequency: domain.RecurrenceDaily,
			Until:     time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
		},
	}
	from := base.AddDate(0, 0, 2).Add(time.Hour) // 3 月 6 日 01:00
	got := expandEntry(entry, from, from.Add(time.Hour), time.UTC)
	require.Len(t, got, 1)
	assert.Equal(t, base.AddDate(0, 0, 1).Add(22*time.Hour), got[0].Start)
}

func TestExpandKeepsLocalClockTime(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 夏令时 2026-03-08 开始，本地 09:00 不变
	start := time.Date(2026, time.March, 6, 9, 0, 0, 0, loc)
	entry := &domain.AvailabilityEntry{
		Start: start,
		End:   start.Add(time.Hour),
		Recurrence: &domain.Recurrence{
			Frequency: domain.RecurrenceDaily,
			Until:     time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC),
		},
	}
	got := expandEntry(entry, start, start.AddDate(0, 0, 7), loc)
	require.Len(t, got, 4)
	for _, inst := range got {
		assert.Equal(t, 9, inst.Start.In(loc).Hour())
	}
	assert.Equal(t, 13, got[3].Start.UTC().Hour())
}

func TestValidateRecurrence(t *testing.T) {
	entry := &domain.AvailabilityEntry{Start: hm(9, 0), End: hm(10, 0)}
	assert.NoError(t, validateRecurrence(entry, time.UTC))

	entry.Recurrence = &domain.Recurrence{Frequency: "monthly", Until: base}
	var vErr *ValidationError
	require.ErrorAs(t, validateRecurrence(entry, time.UTC), &vErr)
	assert.Equal(t, "recurrence.frequency", vErr.Field)

	entry.Recurrence = &domain.Recurrence{Frequency: domain.RecurrenceDaily}
	require.ErrorAs(t, validateRecurrence(entry, time.UTC), &vErr)
	assert.Equal(t, "recurrence.until", vErr.Field)

	entry.Recurrence = &domain.Recurrence{Frequency: domain.RecurrenceDaily, Until: base.AddDate(0, 0, -1)}
	require.ErrorAs(t, validateRecurrence(entry, time.UTC), &vErr)
	assert.Equal(t, "recurrence.until", vErr.Field)

	entry.Recurrence = &domain.Recurrence{Frequency: domain.RecurrenceWeekly, Weekdays: []time.Weekday{7}, Until: base}
	require.ErrorAs(t, validateRecurrence(entry, time.UTC), &vErr)
	assert.Equal(t, "recurrence.weekdays", vErr.Field)

	entry.Recurrence = &domain.Recurrence{Frequency: domain.RecurrenceWeekly, Until: base}
	assert.NoError(t, validateRecurrence(entry, time.UTC))

	entry.Recurrence = &domain.Recurrence{Frequency: domain.RecurrenceDaily, Until: base.AddDate(1, 0, 0)}
	assert.NoError(t, validateRecurrence(entry, time.UTC))

	entry.Recurrence = &domain.Recurrence{Frequency: domain.RecurrenceDaily, Until: base.AddDate(1, 0, 1)}
	require.ErrorAs(t, validateRecurrence(entry, time.UTC), &vErr)
	assert.Equal(t, "recurrence.until", vErr.Field)

	entry.Recurrence = &domain.Recurrence{Frequency: domain.RecurrenceDaily, Until: time.Date(2226, time.January, 1, 0, 0, 0, 0, time.UTC)}
	require.ErrorAs(t, validateRecurrence(entry, time.UTC), &vErr)
	assert.Equal(t, "recurrence.until", vErr.Field)
}

func TestOverlappingInstances(t *testing.T) {
	daily := func(startHour, endHour, days int) []domain.AvailabilityInstance {
		var out []domain.AvailabilityInstance
		for d := 0; d < days; d++ {
			day := base.AddDate(0, 0, d)
			out = append(out, domain.AvailabilityInstance{
				Start: day.Add(time.Duration(startHour) * time.Hour),
				End:   day.Add(time.Duration(endHour) * time.Hour),
			})
		}
		return out
	}

	// 首尾相接不算重叠
	assert.Empty(t, overlappingInstances(daily(9, 10, 30), daily(10, 11, 30)))
	assert.Empty(t, overlappingInstances(daily(9, 10, 30), nil))

	hits := overlappingInstances(daily(9, 12, 3), daily(11, 13, 5))
	require.Len(t, hits, 3)
	assert.Equal(t, base.AddDate(0, 0, 2).Add(11*time.Hour), hits[2].Start)

	// 跨天的发生与次日凌晨的发生重叠
	hits = overlappingInstances(daily(22, 26, 2), daily(1, 2, 3))
	require.Len(t, hits, 2)
	assert.Equal(t, base.AddDate(0, 0, 1).Add(time.Hour), hits[0].Start)
}
