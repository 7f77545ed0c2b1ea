package scheduler

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC)

func hm(hour, minute int) time.Time {
	return base.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func TestWindowValidate(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		field string
	}{
		{"missing start", time.Time{}, hm(10, 0), "windowStart"},
		{"missing end", hm(9, 0), time.Time{}, "windowEnd"},
		{"zero width", hm(9, 0), hm(9, 0), "windowEnd"},
		{"inverted", hm(10, 0), hm(9, 0), "windowEnd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWindow(tt.start, tt.end)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}

	w, err := NewWindow(hm(9, 0), hm(10, 0))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, w.Duration())
}

func TestOverlapsIsHalfOpen(t *testing.T) {
	w := Window{Start: hm(9, 0), End: hm(10, 0)}

	assert.False(t, w.Overlaps(hm(10, 0), hm(11, 0)), "back-to-back after")
	assert.False(t, w.Overlaps(hm(8, 0), hm(9, 0)), "back-to-back before")
	assert.True(t, w.Overlaps(hm(9, 30), hm(10, 30)))
	assert.True(t, w.Overlaps(hm(8, 0), hm(12, 0)), "containing")
	assert.True(t, w.Overlaps(hm(9, 15), hm(9, 45)), "contained")
	assert.True(t, w.Overlaps(hm(9, 0), hm(10, 0)), "identical")
}

// 与逐分钟求交集的结果比较
func TestOverlapsMatchesMinuteSets(t *testing.T) {
	rng := rand.New(rand.NewSource(20260304))
	for i := 0; i < 2000; i++ {
		s1 := rng.Intn(120)
		e1 := s1 + 1 + rng.Intn(60)
		s2 := rng.Intn(120)
		e2 := s2 + 1 + rng.Intn(60)

		shared := false
		for m := s1; m < e1; m++ {
			if m >= s2 && m < e2 {
				shared = true
				break
			}
		}
		got := Overlaps(hm(0, s1), hm(0, e1), hm(0, s2), hm(0, e2))
		require.Equal(t, shared, got, "[%d,%d) vs [%d,%d)", s1, e1, s2, e2)
	}
}

func TestNormalizePostalCode(t *testing.T) {
	for in, want := range map[string]string{
		"32703":      "32703",
		" 32703 ":    "32703",
		"32703-1234": "32703",
		"32703 1234": "32703",
		"327031234":  "32703",
	} {
		got, err := NormalizePostalCode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"", "3270", "ABCDE", "32703-12"} {
		_, err := NormalizePostalCode(in)
		var vErr *ValidationError
		assert.ErrorAs(t, err, &vErr, in)
	}
}

func TestRuleErrorMatchesByCode(t *testing.T) {
	err := ErrBookingConflict.WithDetails([]Conflict{{Kind: ConflictBooking, BookingID: 7}})
	assert.True(t, errors.Is(err, ErrBookingConflict))
	assert.False(t, errors.Is(err, ErrOverCapacity))
	assert.Nil(t, ErrBookingConflict.Details)

	assert.True(t, IsExpected(err))
	assert.True(t, IsExpected(notFound("resource", 1)))
	assert.True(t, IsExpected(invalid("start", "is required")))
	assert.False(t, IsExpected(errors.New("connection refused")))
}

func TestWeekBoundsStartOnMonday(t *testing.T) {
	sunday := time.Date(2026, time.March, 8, 23, 0, 0, 0, time.UTC)
	start, end := weekBounds(sunday, time.UTC)
	assert.Equal(t, time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC), end)

	monday := time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC)
	start, _ = weekBounds(monday, time.UTC)
	assert.Equal(t, monday, start)
}

func TestComputeDuration(t *testing.T) {
	total, net := ComputeDuration(hm(9, 0), hm(17, 30), 30)
	assert.Equal(t, int32(510), total)
	assert.Equal(t, int32(480), net)

	_, net = ComputeDuration(hm(9, 0), hm(9, 20), 30)
	assert.Equal(t, int32(-10), net)

	total, _ = ComputeDuration(hm(9, 0), hm(9, 0).Add(59*time.Second), 0)
	assert.Equal(t, int32(0), total)
}
