package scheduler

import (
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
)

// MaxRecurrenceYears 重复规则从首次发生起最多持续的年数，更长的安排需要到期后重新登记
const MaxRecurrenceYears = 1

func validateRecurrence(entry *domain.AvailabilityEntry, loc *time.Location) error {
	rule := entry.Recurrence
	if rule == nil {
		return nil
	}
	switch rule.Frequency {
	case domain.RecurrenceDaily, domain.RecurrenceWeekly:
	default:
		return invalid("recurrence.frequency", "must be one of daily weekly")
	}
	for _, day := range rule.Weekdays {
		if day < time.Sunday || day > time.Saturday {
			return invalid("recurrence.weekdays", "must be between 0 (Sunday) and 6 (Saturday)")
		}
	}
	if rule.Until.IsZero() {
		return invalid("recurrence.until", "is required")
	}
	until := civilDate(rule.Until, rule.Until.Location())
	first := civilDate(entry.Start, loc)
	if until.Before(first) {
		return invalid("recurrence.until", "must not be before start")
	}
	if until.After(first.AddDate(MaxRecurrenceYears, 0, 0)) {
		return invalid("recurrence.until", "must be within 1 year of start")
	}
	return nil
}

// civilDate 取 t 在 loc 中的年月日
func civilDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func instanceOf(entry *domain.AvailabilityEntry, start, end time.Time) domain.AvailabilityInstance {
	return domain.AvailabilityInstance{
		EntryID:    entry.ID,
		ResourceID: entry.ResourceID,
		Kind:       entry.Kind,
		Status:     entry.Status,
		Start:      start,
		End:        end,
	}
}

// expandEntry 把一条记录展开为与 [from, to) 相交的具体发生。
// 重复记录的每次发生沿用基础区间在 loc 中的时分秒与时长，截止日当天仍会发生。
func expandEntry(entry *domain.AvailabilityEntry, from, to time.Time, loc *time.Location) []domain.AvailabilityInstance {
	if entry.Recurrence == nil {
		if Overlaps(entry.Start, entry.End, from, to) {
			return []domain.AvailabilityInstance{instanceOf(entry, entry.Start, entry.End)}
		}
		return nil
	}

	rule := entry.Recurrence
	duration := entry.End.Sub(entry.Start)
	base := entry.Start.In(loc)

	weekdays := make(map[time.Weekday]struct{}, len(rule.Weekdays))
	for _, day := range rule.Weekdays {
		weekdays[day] = struct{}{}
	}
	if rule.Frequency == domain.RecurrenceWeekly && len(weekdays) == 0 {
		weekdays[base.Weekday()] = struct{}{}
	}

	baseDay := time.Date(base.Year(), base.Month(), base.Day(), 0, 0, 0, 0, loc)
	uy, um, ud := rule.Until.Date()
	lastDay := time.Date(uy, um, ud, 0, 0, 0, 0, loc)

	// 跨天的区间可能从 from 之前开始
	first := from.Add(-duration).In(loc)
	day := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc)
	if day.Before(baseDay) {
		day = baseDay
	}

	var instances []domain.AvailabilityInstance
	for ; !day.After(lastDay); day = day.AddDate(0, 0, 1) {
		start := time.Date(day.Year(), day.Month(), day.Day(), base.Hour(), base.Minute(), base.Second(), base.Nanosecond(), loc)
		if !start.Before(to) {
			break
		}
		if len(weekdays) > 0 {
			if _, ok := weekdays[start.Weekday()]; !ok {
				continue
			}
		}
		end := start.Add(duration)
		if Overlaps(start, end, from, to) {
			instances = append(instances, instanceOf(entry, start, end))
		}
	}
	return instances
}

// entrySpan 返回记录所有发生覆盖的总区间
func entrySpan(entry *domain.AvailabilityEntry, loc *time.Location) (time.Time, time.Time) {
	if entry.Recurrence == nil {
		return entry.Start, entry.End
	}
	base := entry.Start.In(loc)
	uy, um, ud := entry.Recurrence.Until.Date()
	last := time.Date(uy, um, ud, base.Hour(), base.Minute(), base.Second(), base.Nanosecond(), loc)
	return entry.Start, last.Add(entry.End.Sub(entry.Start))
}
