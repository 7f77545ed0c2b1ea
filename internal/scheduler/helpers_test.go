package scheduler_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"github.com/appraisal-ops/field-scheduler/backend/internal/scheduler"
	"github.com/appraisal-ops/field-scheduler/backend/internal/testfixtures"
	"github.com/stretchr/testify/require"
)

const orgID int64 = 1

type fixture struct {
	store  *testfixtures.Store
	clock  *testfixtures.Clock
	events *recordingPublisher
	sched  *scheduler.Scheduler
}

func newFixture(t *testing.T, opts ...scheduler.Option) *fixture {
	t.Helper()
	f := &fixture{
		store:  testfixtures.NewStore(),
		clock:  testfixtures.NewClock(time.Time{}),
		events: &recordingPublisher{},
	}
	all := []scheduler.Option{
		scheduler.WithClock(f.clock.NowFunc()),
		scheduler.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		scheduler.WithEventPublisher(f.events),
	}
	f.sched = scheduler.New(f.store, append(all, opts...)...)
	return f
}

// wed 返回 2026-03-04（周三）UTC 的某个时刻
func wed(hour, minute int) time.Time {
	return time.Date(2026, time.March, 4, hour, minute, 0, 0, time.UTC)
}

func window(t *testing.T, start, end time.Time) scheduler.Window {
	t.Helper()
	w, err := scheduler.NewWindow(start, end)
	require.NoError(t, err)
	return w
}

func (f *fixture) territory(postalCodes ...string) *domain.Territory {
	return f.store.AddTerritory(domain.Territory{
		OrganizationID: orgID,
		Name:           "Territory " + postalCodes[0],
		IsActive:       true,
		PostalCodes:    postalCodes,
	})
}

// person 可预约的外勤人员，每天最多 8 单
func (f *fixture) person(name string, territories ...int64) *domain.Resource {
	return f.store.AddResource(domain.Resource{
		OrganizationID:        orgID,
		Name:                  name,
		Kind:                  domain.ResourceKindPerson,
		Employment:            domain.EmploymentEmployee,
		IsBookable:            true,
		MaxAppointmentsPerDay: 8,
		TerritoryIDs:          territories,
	})
}

func (f *fixture) book(resourceID int64, start, end time.Time) *domain.Booking {
	return f.store.AddBooking(domain.Booking{
		OrganizationID: orgID,
		ResourceID:     resourceID,
		ScheduledStart: start,
		ScheduledEnd:   end,
		PostalCode:     "32703",
	})
}

func (f *fixture) grantSkill(resourceID, skillID int64, expiresOn *time.Time) {
	f.store.AddSkillAssignment(domain.SkillAssignment{
		ResourceID:       resourceID,
		SkillID:          skillID,
		ProficiencyLevel: 3,
		ExpiresOn:        expiresOn,
	})
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type failingPublisher struct{}

func (failingPublisher) Publish(ctx context.Context, event domain.Event) error {
	return io.ErrClosedPipe
}
