package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"github.com/google/uuid"
)

// Scheduler 调度核心：冲突检测、容量检查、自动分配、可用性台账、设备借还与工时打卡。
// 核心本身无状态，并发正确性依赖存储层的排他约束与部分唯一索引。
type Scheduler struct {
	store        Store
	territories  TerritoryIndex
	events       EventPublisher
	now          func() time.Time
	logger       *slog.Logger
	location     *time.Location
	parallelism  int
	alternatives int
	metrics      *metrics

	locations sync.Map // 时区名 -> *time.Location
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTerritoryIndex 用带缓存的实现替换 store 自带的区域索引
func WithTerritoryIndex(index TerritoryIndex) Option {
	return func(s *Scheduler) {
		if index != nil {
			s.territories = index
		}
	}
}

func WithEventPublisher(p EventPublisher) Option {
	return func(s *Scheduler) {
		s.events = p
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDefaultLocation 资源没有配置时区时用于计算日历日和日历周
func WithDefaultLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithParallelism(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

func WithAlternatives(n int) Option {
	return func(s *Scheduler) {
		if n >= 0 {
			s.alternatives = n
		}
	}
}

func New(store Store, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:        store,
		territories:  store,
		now:          time.Now,
		logger:       slog.Default(),
		location:     time.UTC,
		parallelism:  4,
		alternatives: 3,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newMetrics()
	return s
}

// locationOf 返回资源所在时区，无法解析时回退到默认时区
func (s *Scheduler) locationOf(res *domain.Resource) *time.Location {
	if res == nil || res.Timezone == "" {
		return s.location
	}
	if loc, ok := s.locations.Load(res.Timezone); ok {
		return loc.(*time.Location)
	}
	loc, err := time.LoadLocation(res.Timezone)
	if err != nil {
		s.logger.Warn("无法解析资源时区，使用默认时区", "resourceID", res.ID, "timezone", res.Timezone, "error", err)
		return s.location
	}
	s.locations.Store(res.Timezone, loc)
	return loc
}

// dayBounds 返回 t 在 loc 中所属日历日的 [开始, 结束)
func dayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// weekBounds 返回 t 在 loc 中所属日历周（周一开始）的 [开始, 结束)
func weekBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	dayStart, _ := dayBounds(t, loc)
	offset := (int(dayStart.Weekday()) + 6) % 7
	start := dayStart.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 7)
}

func (s *Scheduler) publish(ctx context.Context, typ domain.EventType, orgID, resourceID int64, data any) {
	if s.events == nil {
		return
	}
	event := domain.Event{
		ID:             uuid.NewString(),
		Type:           typ,
		OrganizationID: orgID,
		ResourceID:     resourceID,
		OccurredAt:     s.now().UTC(),
		Data:           data,
	}
	// 事件只用于通知，发布失败不影响已经提交的写操作
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("无法发布调度事件", "type", typ, "resourceID", resourceID, "error", err)
	}
}
