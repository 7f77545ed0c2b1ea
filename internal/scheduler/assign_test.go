package scheduler_test

import (
	"context"
	"testing"
	"time"

	_ "time/tzdata"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"github.com/appraisal-ops/field-scheduler/backend/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindBestResourcePrimaryTerritoryBonus(t *testing.T) {
	f := newFixture(t)
	territory := f.territory("32703")
	fha := f.store.AddSkill(domain.Skill{OrganizationID: orgID, Code: "FHA-cert", Name: "FHA certification", IsCertification: true})

	a := f.person("A", territory.ID)
	f.store.AddResource(domain.Resource{}) // 其他组织的数据不可见
	f.setPrimary(a, territory.ID)
	f.grantSkill(a.ID, fha.ID, nil)

	result, err := f.sched.FindBestResource(context.Background(), scheduler.AssignmentRequest{
		OrganizationID:   orgID,
		PostalCode:       "32703",
		Window:           window(t, wed(9, 0), wed(10, 0)),
		RequiredSkillIDs: []int64{fha.ID},
	})
	require.NoError(t, err)
	require.True(t, result.Found())
	assert.Equal(t, a.ID, *result.ResourceID)
	assert.Equal(t, 120, result.Score)
	assert.Empty(t, result.Alternatives)
	assert.Empty(t, result.ReasonCode)
}

func TestFindBestResourceConflictingBooking(t *testing.T) {
	f := newFixture(t)
	territory := f.territory("32703")
	fha := f.store.AddSkill(domain.Skill{OrganizationID: orgID, Code: "FHA-cert"})
	a := f.person("A", territory.ID)
	f.setPrimary(a, territory.ID)
	f.grantSkill(a.ID, fha.ID, nil)
	f.book(a.ID, wed(9, 30), wed(10, 30))

	result, err := f.sched.FindBestResource(context.Background(), scheduler.AssignmentRequest{
		OrganizationID:   orgID,
		PostalCode:       "32703",
		Window:           window(t, wed(9, 0), wed(10, 0)),
		RequiredSkillIDs: []int64{fha.ID},
	})
	require.NoError(t, err)
	assert.False(t, result.Found())
	assert.Nil(t, result.ResourceID)
	assert.Equal(t, scheduler.ReasonNoAvailableSlots, result.ReasonCode)
	assert.NotEmpty(t, result.Message)
}

func TestFindBestResourceOnlyQualifiedCandidateWins(t *testing.T) {
	f := newFixture(t)
	territory := f.territory("32703")
	fha := f.store.AddSkill(domain.Skill{OrganizationID: orgID, Code: "FHA-cert"})

	notBookable := f.person("not bookable", territory.ID)
	f.grantSkill(notBookable.ID, fha.ID, nil)
	f.store.AddResource(domain.Resource{
		ID:             notBookable.ID,
		OrganizationID: orgID,
		Kind:           domain.ResourceKindPerson,
		IsBookable:     false,
		TerritoryIDs:   []int64{territory.ID},
	})

	f.person("no skill", territory.ID)

	full := f.store.AddResource(domain.Resource{
		OrganizationID:        orgID,
		Kind:                  domain.ResourceKindPerson,
		IsBookable:            true,
		MaxAppointmentsPerDay: 1,
		TerritoryIDs:          []int64{territory.ID},
	})
	f.grantSkill(full.ID, fha.ID, nil)
	f.book(full.ID, wed(14, 0), wed(15, 0))

	busy := f.person("busy", territory.ID)
	f.grantSkill(busy.ID, fha.ID, nil)
	f.book(busy.ID, wed(9, 30), wed(10, 30))

	qualified := f.person("qualified", territory.ID)
	f.grantSkill(qualified.ID, fha.ID, nil)

	result, err := f.sched.FindBestResource(context.Background(), scheduler.AssignmentRequest{
		OrganizationID:   orgID,
		PostalCode:       "32703",
		Window:           window(t, wed(9, 0), wed(10, 0)),
		RequiredSkillIDs: []int64{fha.ID},
	})
	require.NoError(t, err)
	require.True(t, result.Found())
	assert.Equal(t, qualified.ID, *result.ResourceID)
	assert.Equal(t, 100, result.Score)
	assert.Empty(t, result.Alternatives)
}

func TestFindBestResourceIsWorkloadAverse(t *testing.T) {
	f := newFixture(t)
	territory := f.territory("32703")
	busier := f.person("busier", territory.ID)
	idle := f.person("idle", territory.ID)

	// 本周两单，不与请求窗口冲突
	f.book(busier.ID, time.Date(2026, time.March, 2, 13, 0, 0, 0, time.UTC), time.Date(2026, time.March, 2, 14, 0, 0, 0, time.UTC))
	f.book(busier.ID, time.Date(2026, time.March, 3, 13, 0, 0, 0, time.UTC), time.Date(2026, time.March, 3, 14, 0, 0, 0, time.UTC))
	// 下周与已取消的预约不计入
	f.book(idle.ID, time.Date(2026, time.March, 9, 13, 0, 0, 0, time.UTC), time.Date(2026, time.March, 9, 14, 0, 0, 0, time.UTC))
	f.store.AddBooking(domain.Booking{
		OrganizationID: orgID,
		ResourceID:     idle.ID,
		ScheduledStart: wed(13, 0),
		ScheduledEnd:   wed(14, 0),
		Status:         domain.BookingStatusCancelled,
	})

	result, err := f.sched.FindBestResource(context.Background(), scheduler.AssignmentRequest{
		OrganizationID: orgID,
		PostalCode:     "32703",
		Window:         window(t, wed(9, 0), wed(10, 0)),
	})
	require.NoError(t, err)
	require.True(t, result.Found())
	assert.Equal(t, idle.ID, *result.ResourceID)
	assert.Equal(t, 100, result.Score)
	assert.Equal(t, []scheduler.Candidate{{ResourceID: busier.ID, Score: 90}}, result.Alternatives)
}

func TestFindBestResourceTieBreakAndAlternatives(t *testing.T) {
	f := newFixture(t)
	territory := f.territory("32703")
	var ids []int64
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		ids = append(ids, f.person(name, territory.ID).ID)
	}

	result, err := f.sched.FindBestResource(context.Background(), scheduler.AssignmentRequest{
		OrganizationID: orgID,
		PostalCode:     "32703-0001",
		Window:         window(t, wed(9, 0), wed(10, 0)),
	})
	require.NoError(t, err)
	require.True(t, result.Found())
	assert.Equal(t, ids[0], *result.ResourceID)
	require.Len(t, result.Alternatives, 3)
	for i, alt := range result.Alternatives {
		assert.Equal(t, ids[i+1], alt.ResourceID)
		assert.Equal(t, 100, alt.Score)
	}
}

func TestFindBestResourceReasonCodes(t *testing.T) {
	ctx := context.Background()

	t.Run("no territory", func(t *testing.T) {
		f := newFixture(t)
		f.territory("32703")
		inactive := f.store.AddTerritory(domain.Territory{OrganizationID: orgID, PostalCodes: []string{"32801"}})
		f.person("A", inactive.ID)

		for _, postal := range []string{"99999", "32801"} {
			result, err := f.sched.FindBestResource(ctx, scheduler.AssignmentRequest{
				OrganizationID: orgID,
				PostalCode:     postal,
				Window:         window(t, wed(9, 0), wed(10, 0)),
			})
			require.NoError(t, err)
			assert.Equal(t, scheduler.ReasonNoTerritoryCoverage, result.ReasonCode, postal)
		}
	})

	t.Run("no resources", func(t *testing.T) {
		f := newFixture(t)
		territory := f.territory("32703")
		other := f.territory("32801")
		f.person("elsewhere", other.ID)
		f.store.AddResource(domain.Resource{
			OrganizationID: orgID,
			Kind:           domain.ResourceKindVehicle,
			IsBookable:     true,
			TerritoryIDs:   []int64{territory.ID},
		})

		result, err := f.sched.FindBestResource(ctx, scheduler.AssignmentRequest{
			OrganizationID: orgID,
			PostalCode:     "32703",
			Window:         window(t, wed(9, 0), wed(10, 0)),
		})
		require.NoError(t, err)
		assert.Equal(t, scheduler.ReasonNoAvailableResources, result.ReasonCode)
	})

	t.Run("missing or expired skill", func(t *testing.T) {
		f := newFixture(t)
		territory := f.territory("32703")
		fha, va := int64(900), int64(901)
		expired := time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC)

		partial := f.person("partial", territory.ID)
		f.grantSkill(partial.ID, fha, nil)
		lapsed := f.person("lapsed", territory.ID)
		f.grantSkill(lapsed.ID, fha, &expired)
		f.grantSkill(lapsed.ID, va, nil)

		result, err := f.sched.FindBestResource(ctx, scheduler.AssignmentRequest{
			OrganizationID:   orgID,
			PostalCode:       "32703",
			Window:           window(t, wed(9, 0), wed(10, 0)),
			RequiredSkillIDs: []int64{fha, va},
		})
		require.NoError(t, err)
		assert.Equal(t, scheduler.ReasonNoResourcesWithSkills, result.ReasonCode)
	})

	t.Run("approved block", func(t *testing.T) {
		f := newFixture(t)
		territory := f.territory("32703")
		a := f.person("A", territory.ID)
		f.store.AddAvailabilityEntry(domain.AvailabilityEntry{
			OrganizationID: orgID,
			ResourceID:     a.ID,
			Start:          wed(8, 0),
			End:            wed(12, 0),
			Kind:           domain.AvailabilityBlock,
			Status:         domain.ApprovalApproved,
		})

		result, err := f.sched.FindBestResource(ctx, scheduler.AssignmentRequest{
			OrganizationID: orgID,
			PostalCode:     "32703",
			Window:         window(t, wed(9, 0), wed(10, 0)),
		})
		require.NoError(t, err)
		assert.Equal(t, scheduler.ReasonNoAvailableSlots, result.ReasonCode)
	})

	t.Run("weekly hours", func(t *testing.T) {
		f := newFixture(t)
		territory := f.territory("32703")
		a := f.store.AddResource(domain.Resource{
			OrganizationID:  orgID,
			Kind:            domain.ResourceKindPerson,
			IsBookable:      true,
			MaxHoursPerWeek: 2,
			TerritoryIDs:    []int64{territory.ID},
		})
		f.book(a.ID, time.Date(2026, time.March, 2, 13, 0, 0, 0, time.UTC), time.Date(2026, time.March, 2, 15, 0, 0, 0, time.UTC))

		result, err := f.sched.FindBestResource(ctx, scheduler.AssignmentRequest{
			OrganizationID: orgID,
			PostalCode:     "32703",
			Window:         window(t, wed(9, 0), wed(10, 0)),
		})
		require.NoError(t, err)
		assert.Equal(t, scheduler.ReasonNoAvailableSlots, result.ReasonCode)
	})
}

func TestFindBestResourceIgnoresRejectedBlocksAndGrants(t *testing.T) {
	f := newFixture(t)
	territory := f.territory("32703")
	a := f.person("A", territory.ID)
	for _, e := range []domain.AvailabilityEntry{
		{Kind: domain.AvailabilityBlock, Status: domain.ApprovalRejected},
		{Kind: domain.AvailabilityGrant, Status: domain.ApprovalApproved, Start: wed(12, 0), End: wed(13, 0)},
	} {
		e.OrganizationID = orgID
		e.ResourceID = a.ID
		if e.Start.IsZero() {
			e.Start, e.End = wed(8, 0), wed(11, 0)
		}
		f.store.AddAvailabilityEntry(e)
	}
	f.store.AddAvailabilityEntry(domain.AvailabilityEntry{
		OrganizationID: orgID,
		ResourceID:     a.ID,
		Start:          wed(9, 0),
		End:            wed(10, 0),
		Kind:           domain.AvailabilityGrant,
		Status:         domain.ApprovalApproved,
	})

	result, err := f.sched.FindBestResource(context.Background(), scheduler.AssignmentRequest{
		OrganizationID: orgID,
		PostalCode:     "32703",
		Window:         window(t, wed(9, 0), wed(10, 0)),
	})
	require.NoError(t, err)
	require.True(t, result.Found())
	assert.Equal(t, a.ID, *result.ResourceID)
}

func TestFindBestResourceCountsDayInResourceTimezone(t *testing.T) {
	f := newFixture(t)
	territory := f.territory("32703")
	a := f.store.AddResource(domain.Resource{
		OrganizationID:        orgID,
		Kind:                  domain.ResourceKindPerson,
		IsBookable:            true,
		MaxAppointmentsPerDay: 1,
		Timezone:              "America/New_York",
		TerritoryIDs:          []int64{territory.ID},
	})
	// 3 月 3 日 22:00 EST，UTC 下属于 3 月 4 日
	f.book(a.ID, wed(3, 0), wed(4, 0))

	req := scheduler.AssignmentRequest{
		OrganizationID: orgID,
		PostalCode:     "32703",
		Window:         window(t, wed(14, 0), wed(15, 0)),
	}
	result, err := f.sched.FindBestResource(context.Background(), req)
	require.NoError(t, err)
	require.True(t, result.Found())

	// 同一本地日再加一单后达到上限
	f.book(a.ID, wed(16, 0), wed(17, 0))
	result, err = f.sched.FindBestResource(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, scheduler.ReasonNoAvailableSlots, result.ReasonCode)
}

func TestFindBestResourceRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sched.FindBestResource(ctx, scheduler.AssignmentRequest{
		OrganizationID: orgID,
		PostalCode:     "3270",
		Window:         scheduler.Window{Start: wed(9, 0), End: wed(10, 0)},
	})
	var vErr *scheduler.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "postalCode", vErr.Field)

	_, err = f.sched.FindBestResource(ctx, scheduler.AssignmentRequest{
		OrganizationID: orgID,
		PostalCode:     "32703",
		Window:         scheduler.Window{Start: wed(9, 0), End: wed(9, 0)},
	})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "windowEnd", vErr.Field)
}

func TestFindBestResourceSurfacesStorageFailure(t *testing.T) {
	f := newFixture(t)
	f.territory("32703")
	f.store.FailWith(context.DeadlineExceeded)

	_, err := f.sched.FindBestResource(context.Background(), scheduler.AssignmentRequest{
		OrganizationID: orgID,
		PostalCode:     "32703",
		Window:         window(t, wed(9, 0), wed(10, 0)),
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, scheduler.IsExpected(err))
}

func (f *fixture) setPrimary(res *domain.Resource, territoryID int64) {
	res.PrimaryTerritoryID = &territoryID
	f.store.AddResource(*res)
}
