package seed

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"github.com/appraisal-ops/field-scheduler/backend/internal/scheduler"
	"github.com/appraisal-ops/field-scheduler/backend/internal/testfixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	nextID           int64
	territories      []*domain.Territory
	skills           []*domain.Skill
	equipment        []*domain.Equipment
	resources        []*domain.Resource
	skillAssignments []*domain.SkillAssignment
	failResource     error
}

func (w *memWriter) id() int64 {
	w.nextID++
	return w.nextID
}

func (w *memWriter) CreateTerritory(ctx context.Context, t *domain.Territory) error {
	t.ID = w.id()
	w.territories = append(w.territories, t)
	return nil
}

func (w *memWriter) CreateSkill(ctx context.Context, s *domain.Skill) error {
	s.ID = w.id()
	w.skills = append(w.skills, s)
	return nil
}

func (w *memWriter) CreateEquipment(ctx context.Context, eq *domain.Equipment) error {
	eq.ID = w.id()
	w.equipment = append(w.equipment, eq)
	return nil
}

func (w *memWriter) CreateResource(ctx context.Context, res *domain.Resource) error {
	if w.failResource != nil {
		return w.failResource
	}
	res.ID = w.id()
	w.resources = append(w.resources, res)
	return nil
}

func (w *memWriter) CreateSkillAssignment(ctx context.Context, sa *domain.SkillAssignment) error {
	sa.ID = w.id()
	w.skillAssignments = append(w.skillAssignments, sa)
	return nil
}

type memInvalidator struct {
	invalidated map[int64][]string
}

func (c *memInvalidator) Invalidate(ctx context.Context, orgID int64, postalCodes ...string) error {
	if c.invalidated == nil {
		c.invalidated = make(map[int64][]string)
	}
	c.invalidated[orgID] = append(c.invalidated[orgID], postalCodes...)
	return nil
}

const fixtureYAML = `
organization: 7
territories:
  - name: Downtown
    postalCodes: ["75001", "75002-1234"]
  - name: Uptown
    postalCodes: ["75204"]
skills:
  - code: residential
    name: Residential appraisal
  - code: fha
    name: FHA certified
    certification: true
equipment:
  - name: Laser measure
    serialNumber: LM-001
  - name: Drone
    serialNumber: DR-001
    condition: fair
resources:
  - name: 张伟
    email: zhang.wei@example.com
    timezone: America/Chicago
    maxAppointmentsPerDay: 4
    primaryTerritory: Downtown
    territories: [Uptown]
    skills:
      - code: residential
        proficiency: 3
      - code: fha
        certificationNumber: FHA-42
        expiresOn: "2027-01-31"
    equipment: [LM-001]
  - name: Survey Van
    code: van-1
    kind: vehicle
    bookable: false
`

func TestLoadFixtureAndApply(t *testing.T) {
	f, err := LoadFixture(strings.NewReader(fixtureYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"75001", "75002"}, f.Territories[0].PostalCodes)
	assert.Equal(t, "zhangwei", f.Resources[0].Code)
	assert.Equal(t, "employee", f.Resources[0].Employment)
	assert.Equal(t, []string{"Uptown", "Downtown"}, f.Resources[0].Territories)
	assert.Equal(t, "none", f.Resources[1].Employment)
	assert.Equal(t, "good", f.Equipment[0].Condition)

	w := &memWriter{}
	cache := &memInvalidator{}
	summary, err := Apply(context.Background(), w, cache, f)
	require.NoError(t, err)
	assert.Equal(t, &Summary{
		Territories:      2,
		Skills:           2,
		Equipment:        2,
		Resources:        2,
		SkillAssignments: 2,
		PostalCodes:      []string{"75001", "75002", "75204"},
	}, summary)
	assert.Equal(t, map[int64][]string{7: {"75001", "75002", "75204"}}, cache.invalidated)

	downtown, uptown := w.territories[0], w.territories[1]
	assert.True(t, downtown.IsActive)
	assert.Equal(t, int64(7), downtown.OrganizationID)

	zhang := w.resources[0]
	assert.Equal(t, domain.ResourceKindPerson, zhang.Kind)
	assert.True(t, zhang.IsBookable)
	assert.Equal(t, "America/Chicago", zhang.Timezone)
	assert.Equal(t, []int64{uptown.ID, downtown.ID}, zhang.TerritoryIDs)
	require.NotNil(t, zhang.PrimaryTerritoryID)
	assert.Equal(t, downtown.ID, *zhang.PrimaryTerritoryID)
	assert.Equal(t, []int64{w.equipment[0].ID}, zhang.EquipmentIDs)

	van := w.resources[1]
	assert.False(t, van.IsBookable)
	assert.Equal(t, domain.ResourceKindVehicle, van.Kind)

	fha := w.skillAssignments[1]
	assert.Equal(t, zhang.ID, fha.ResourceID)
	assert.Equal(t, w.skills[1].ID, fha.SkillID)
	require.NotNil(t, fha.ExpiresOn)
	assert.Equal(t, "2027-01-31", fha.ExpiresOn.Format(time.DateOnly))
	assert.Equal(t, domain.ConditionFair, w.equipment[1].Condition)
}

func TestApplyStopsOnWriteError(t *testing.T) {
	f, err := LoadFixture(strings.NewReader(fixtureYAML))
	require.NoError(t, err)

	boom := errors.New("boom")
	w := &memWriter{failResource: boom}
	summary, err := Apply(context.Background(), w, nil, f)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, summary.Territories)
	assert.Zero(t, summary.Resources)
	assert.Empty(t, w.skillAssignments)
}

func TestLoadFixtureRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"空文件", "", "为空"},
		{"未知字段", "organization: 1\ncolour: red\n", "colour"},
		{"缺少组织", "territories: []\n", "organization"},
		{"非法邮编", "organization: 1\nterritories:\n  - name: A\n    postalCodes: [abc]\n", "postalCodes[0]"},
		{"重复区域", "organization: 1\nterritories:\n  - name: A\n  - name: A\n", "重复"},
		{"未知技能", "organization: 1\nresources:\n  - name: Ann\n    skills:\n      - code: nope\n", "nope"},
		{"未知区域", "organization: 1\nresources:\n  - name: Ann\n    territories: [Nowhere]\n", "Nowhere"},
		{"未知时区", "organization: 1\nresources:\n  - name: Ann\n    timezone: Mars/Olympus\n", "Mars/Olympus"},
		{"未知类型", "organization: 1\nresources:\n  - name: Ann\n    kind: robot\n", "robot"},
		{"过期日期格式", "organization: 1\nskills:\n  - code: a\n    name: A\nresources:\n  - name: Ann\n    skills:\n      - code: a\n        expiresOn: 01/02/2027\n", "expiresOn"},
		{"重复编码", "organization: 1\nresources:\n  - name: Ann Lee\n  - name: ann-lee\n", "ann-lee"},
		{"设备重复配备", "organization: 1\nequipment:\n  - name: D\n    serialNumber: S1\nresources:\n  - name: A\n    equipment: [S1]\n  - name: B\n    equipment: [S1]\n", "S1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFixture(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSeedRandomResources(t *testing.T) {
	w := &memWriter{}
	n := SeedRandomResources(context.Background(), w, rand.New(rand.NewSource(1)), 3, 5, "example.com", []int64{10, 11})
	assert.Equal(t, 5, n)
	require.Len(t, w.resources, 5)
	for _, res := range w.resources {
		assert.Equal(t, int64(3), res.OrganizationID)
		assert.NotEmpty(t, res.TerritoryIDs)
	}

	failing := &memWriter{failResource: errors.New("duplicate")}
	assert.Zero(t, SeedRandomResources(context.Background(), failing, rand.New(rand.NewSource(1)), 3, 2, "example.com", nil))
}

func TestSeedBookings(t *testing.T) {
	store := testfixtures.NewStore()
	clock := testfixtures.NewClock(time.Time{})
	sched := scheduler.New(store, scheduler.WithClock(clock.NowFunc()))

	territory := store.AddTerritory(domain.Territory{OrganizationID: 1, Name: "Downtown", IsActive: true, PostalCodes: []string{"75001"}})
	var people []*domain.Resource
	for _, name := range []string{"Ann", "Bo"} {
		people = append(people, store.AddResource(domain.Resource{
			OrganizationID:        1,
			Name:                  name,
			Kind:                  domain.ResourceKindPerson,
			Employment:            domain.EmploymentEmployee,
			IsBookable:            true,
			MaxAppointmentsPerDay: 3,
			TerritoryIDs:          []int64{territory.ID},
		}))
	}

	plan := BookingPlan{
		OrganizationID: 1,
		PostalCodes:    []string{"75001", "99999"},
		Start:          time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		Days:           3,
		Count:          40,
	}
	summary, err := SeedBookings(context.Background(), sched, rand.New(rand.NewSource(5)), plan)
	require.NoError(t, err)

	skipped := 0
	for _, n := range summary.Skipped {
		skipped += n
	}
	assert.Equal(t, 40, summary.Reserved+skipped)
	assert.Positive(t, summary.Reserved)
	assert.Positive(t, summary.Skipped[scheduler.ReasonNoTerritoryCoverage])

	for _, res := range people {
		bookings := store.Bookings(res.ID)
		perDay := map[int]int{}
		for i, a := range bookings {
			perDay[a.ScheduledStart.YearDay()]++
			for _, b := range bookings[i+1:] {
				assert.False(t, scheduler.Overlaps(a.ScheduledStart, a.ScheduledEnd, b.ScheduledStart, b.ScheduledEnd),
					"资源 %d 的预约 %d 与 %d 重叠", res.ID, a.ID, b.ID)
			}
		}
		for day, n := range perDay {
			assert.LessOrEqual(t, n, 3, "第 %d 天超出容量", day)
		}
	}
}

func TestSeedBookingsRequiresPostalCodes(t *testing.T) {
	sched := scheduler.New(testfixtures.NewStore())
	_, err := SeedBookings(context.Background(), sched, rand.New(rand.NewSource(1)), BookingPlan{OrganizationID: 1, Count: 1})
	require.Error(t, err)
}

func TestParseStart(t *testing.T) {
	base := testfixtures.ReferenceTime()
	chicago := time.FixedZone("CST", -6*3600)

	got, err := ParseStart("2026-03-10", base, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseStart("tomorrow", base, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseStart("", base, chicago)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, chicago), got)

	_, err = ParseStart("xyzzy", base, time.UTC)
	assert.Error(t, err)
}
