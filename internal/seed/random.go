package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"github.com/appraisal-ops/field-scheduler/backend/internal/scheduler"
	"github.com/appraisal-ops/field-scheduler/backend/internal/utils"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

type ResourceWriter interface {
	CreateResource(ctx context.Context, res *domain.Resource) error
}

// SeedRandomResources 插入 n 个随机评估师，单条失败只记录日志，返回成功插入的数量
func SeedRandomResources(ctx context.Context, w ResourceWriter, rng *rand.Rand, orgID int64, n int, emailDomain string, territoryIDs []int64) int {
	cnt := 0
	for i := 0; i < n; i++ {
		res := utils.GenerateRandomResource(rng, emailDomain, territoryIDs)
		res.OrganizationID = orgID

		if err := w.CreateResource(ctx, res); err != nil {
			slog.Error("无法插入资源", slog.String("code", res.Code), slog.String("error", err.Error()))
			continue
		}
		cnt++
	}

	slog.Info("插入资源成功", slog.Int("count", cnt))
	return cnt
}

type BookingPlan struct {
	OrganizationID int64
	PostalCodes    []string
	Start          time.Time // 第一天的零点
	Days           int
	Count          int
	Location       *time.Location
}

type BookingSummary struct {
	Reserved int
	Skipped  map[scheduler.ReasonCode]int
}

// SeedBookings 为随机时段走一遍自动分配，选中资源后通过 Reserve 落库。
// 找不到资源或者预约冲突的时段会被跳过并按原因计数。
func SeedBookings(ctx context.Context, sched *scheduler.Scheduler, rng *rand.Rand, plan BookingPlan) (*BookingSummary, error) {
	if len(plan.PostalCodes) == 0 {
		return nil, errors.New("至少需要一个邮编")
	}
	if plan.Days <= 0 {
		plan.Days = 1
	}
	loc := plan.Location
	if loc == nil {
		loc = time.UTC
	}

	summary := &BookingSummary{Skipped: map[scheduler.ReasonCode]int{}}
	for i := 0; i < plan.Count; i++ {
		day := plan.Start.AddDate(0, 0, rng.Intn(plan.Days))
		start, end := utils.GenerateRandomVisitWindow(rng, day, loc)
		postal := plan.PostalCodes[rng.Intn(len(plan.PostalCodes))]

		result, err := sched.FindBestResource(ctx, scheduler.AssignmentRequest{
			OrganizationID: plan.OrganizationID,
			PostalCode:     postal,
			Window:         scheduler.Window{Start: start, End: end},
		})
		if err != nil {
			return summary, err
		}
		if !result.Found() {
			summary.Skipped[result.ReasonCode]++
			continue
		}

		_, err = sched.Reserve(ctx, scheduler.ReserveRequest{
			OrganizationID: plan.OrganizationID,
			ResourceID:     *result.ResourceID,
			Window:         scheduler.Window{Start: start, End: end},
			PostalCode:     postal,
			Notes:          "seed",
		})
		var ruleErr *scheduler.RuleError
		switch {
		case err == nil:
			summary.Reserved++
		case errors.As(err, &ruleErr):
			summary.Skipped[ruleErr.Code]++
		default:
			return summary, err
		}
	}

	slog.Info("插入预约完成", slog.Int("reserved", summary.Reserved), slog.Any("skipped", summary.Skipped))
	return summary, nil
}

// ParseStart 解析 "2026-03-02" 或者 "next monday" 这样的日期短语，返回该日在 loc 中的零点
func ParseStart(phrase string, base time.Time, loc *time.Location) (time.Time, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return startOfDay(base, loc), nil
	}

	if t, err := time.ParseInLocation(time.DateOnly, phrase, loc); err == nil {
		return t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(phrase, base.In(loc))
	if err != nil {
		return time.Time{}, err
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("无法识别的日期短语 %q", phrase)
	}
	return startOfDay(r.Time, loc), nil
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
