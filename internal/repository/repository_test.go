package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"github.com/appraisal-ops/field-scheduler/backend/internal/scheduler"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, scheduler.ErrNotFound},
		{"booking overlap", &pgconn.PgError{Code: "23P01", ConstraintName: "bookings_no_overlap"}, scheduler.ErrBookingConflict},
		{"open assignment", &pgconn.PgError{Code: "23505", ConstraintName: "equipment_assignments_open_key"}, scheduler.ErrNotAvailable},
		{"open time entry", &pgconn.PgError{Code: "23505", ConstraintName: "time_entries_open_key"}, scheduler.ErrActiveEntryExists},
		{"wrapped", fmt.Errorf("insert: %w", &pgconn.PgError{ConstraintName: "bookings_no_overlap"}), scheduler.ErrBookingConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, translate(tt.err, "booking", 7), tt.want)
		})
	}

	t.Run("not found carries entity", func(t *testing.T) {
		var nf *scheduler.NotFoundError
		require.ErrorAs(t, translate(sql.ErrNoRows, "booking", 7), &nf)
		assert.Equal(t, "booking", nf.Entity)
		assert.Equal(t, int64(7), nf.ID)
	})

	t.Run("window check is a validation error", func(t *testing.T) {
		var ve *scheduler.ValidationError
		require.ErrorAs(t, translate(&pgconn.PgError{ConstraintName: "bookings_window_check"}, "booking", 0), &ve)
		assert.Equal(t, "end", ve.Field)
	})

	t.Run("unknown errors pass through", func(t *testing.T) {
		boom := errors.New("connection reset")
		assert.Same(t, boom, translate(boom, "booking", 0))
		assert.NoError(t, translate(nil, "booking", 0))
	})
}

func TestWeekdayMask(t *testing.T) {
	days := []time.Weekday{time.Monday, time.Wednesday, time.Saturday}
	mask := weekdayMask(days)
	assert.Equal(t, int16(0b1001010), mask)
	assert.Equal(t, days, weekdaysOf(mask))
	assert.Empty(t, weekdaysOf(0))
}

func TestRecurrenceArgs(t *testing.T) {
	frequency, weekdays, until := recurrenceArgs(nil)
	assert.False(t, frequency.Valid)
	assert.Zero(t, weekdays)
	assert.False(t, until.Valid)

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	rule := &domain.Recurrence{
		Frequency: domain.RecurrenceWeekly,
		Weekdays:  []time.Weekday{time.Tuesday},
		Until:     time.Date(2026, 4, 30, 23, 0, 0, 0, ny),
	}
	frequency, weekdays, until = recurrenceArgs(rule)
	assert.Equal(t, "weekly", frequency.String)
	assert.Equal(t, int16(1<<2), weekdays)
	// 截止日按日历日保存，不受时区换算影响
	assert.Equal(t, time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC), until.Time)
}

type countingIndex struct {
	calls       int
	territories []*domain.Territory
	err         error
}

func (c *countingIndex) FindActiveTerritoriesByPostalCode(ctx context.Context, orgID int64, postalCode string) ([]*domain.Territory, error) {
	c.calls++
	return c.territories, c.err
}

func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestTerritoryCacheFallsBackWhenRedisIsDown(t *testing.T) {
	rdb := unreachableRedis()
	defer rdb.Close()

	next := &countingIndex{territories: []*domain.Territory{{ID: 1, Name: "North", IsActive: true}}}
	cache := NewTerritoryCache(next, rdb, time.Minute, 100*time.Millisecond, nil)

	got, err := cache.FindActiveTerritoriesByPostalCode(context.Background(), 1, "10001")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "North", got[0].Name)
	assert.Equal(t, 1, next.calls)

	// 清除缓存时 redis 不可用需要报告给调用方
	assert.Error(t, cache.Invalidate(context.Background(), 1, "10001"))
}

func TestTerritoryCacheDisabled(t *testing.T) {
	rdb := unreachableRedis()
	defer rdb.Close()

	boom := errors.New("db down")
	next := &countingIndex{err: boom}
	cache := NewTerritoryCache(next, rdb, 0, time.Second, nil)

	_, err := cache.FindActiveTerritoriesByPostalCode(context.Background(), 1, "10001")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, next.calls)
	assert.NoError(t, cache.Invalidate(context.Background(), 1))
}

func TestTerritoryKey(t *testing.T) {
	assert.Equal(t, "territories_42_10001", territoryKey(42, "10001"))
}
