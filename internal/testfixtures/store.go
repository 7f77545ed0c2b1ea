package testfixtures

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"github.com/appraisal-ops/field-scheduler/backend/internal/scheduler"
)

// Store 内存版存储，实现 scheduler.Store。
// 写操作套用与数据库约束相同的规则：非终止预约不重叠、设备只有一条未归还记录、
// 每个资源只有一条未结束的工时记录，以及基于 version 的乐观锁。
type Store struct {
	mu      sync.Mutex
	nextID  int64
	failure error

	territories      map[int64]*domain.Territory
	resources        map[int64]*domain.Resource
	skills           map[int64]*domain.Skill
	skillAssignments map[int64]*domain.SkillAssignment
	bookings         map[int64]*domain.Booking
	entries          map[int64]*domain.AvailabilityEntry
	equipment        map[int64]*domain.Equipment
	assignments      map[int64]*domain.EquipmentAssignment
	timeEntries      map[int64]*domain.TimeEntry
}

var _ scheduler.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		territories:      make(map[int64]*domain.Territory),
		resources:        make(map[int64]*domain.Resource),
		skills:           make(map[int64]*domain.Skill),
		skillAssignments: make(map[int64]*domain.SkillAssignment),
		bookings:         make(map[int64]*domain.Booking),
		entries:          make(map[int64]*domain.AvailabilityEntry),
		equipment:        make(map[int64]*domain.Equipment),
		assignments:      make(map[int64]*domain.EquipmentAssignment),
		timeEntries:      make(map[int64]*domain.TimeEntry),
	}
}

// FailWith 让之后的每次调用都返回 err，传 nil 恢复正常
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	s.failure = err
	s.mu.Unlock()
}

func (s *Store) id(current int64) int64 {
	if current > 0 {
		if current > s.nextID {
			s.nextID = current
		}
		return current
	}
	s.nextID++
	return s.nextID
}

/*****************************************************************************
 * 测试数据
 *****************************************************************************/

func (s *Store) AddTerritory(t domain.Territory) *domain.Territory {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.id(t.ID)
	t.Version = 1
	s.territories[t.ID] = &t
	return copyTerritory(&t)
}

func (s *Store) AddResource(r domain.Resource) *domain.Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.id(r.ID)
	r.Version = 1
	s.resources[r.ID] = &r
	return copyResource(&r)
}

func (s *Store) AddSkill(sk domain.Skill) *domain.Skill {
	s.mu.Lock()
	defer s.mu.Unlock()
	sk.ID = s.id(sk.ID)
	s.skills[sk.ID] = &sk
	c := sk
	return &c
}

func (s *Store) AddSkillAssignment(sa domain.SkillAssignment) *domain.SkillAssignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	sa.ID = s.id(sa.ID)
	s.skillAssignments[sa.ID] = &sa
	c := sa
	return &c
}

// AddBooking 直接写入，不做重叠检查
func (s *Store) AddBooking(b domain.Booking) *domain.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = s.id(b.ID)
	b.Version = 1
	if b.Status == "" {
		b.Status = domain.BookingStatusScheduled
	}
	s.bookings[b.ID] = &b
	c := b
	return &c
}

func (s *Store) AddAvailabilityEntry(e domain.AvailabilityEntry) *domain.AvailabilityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.id(e.ID)
	e.Version = 1
	if e.Status == "" {
		e.Status = domain.ApprovalApproved
	}
	s.entries[e.ID] = &e
	return copyEntry(&e)
}

func (s *Store) AddEquipment(eq domain.Equipment) *domain.Equipment {
	s.mu.Lock()
	defer s.mu.Unlock()
	eq.ID = s.id(eq.ID)
	eq.Version = 1
	if eq.Status == "" {
		eq.Status = domain.EquipmentAvailable
	}
	if eq.Condition == "" {
		eq.Condition = domain.ConditionGood
	}
	s.equipment[eq.ID] = &eq
	c := eq
	return &c
}

func (s *Store) AddTimeEntry(e domain.TimeEntry) *domain.TimeEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.id(e.ID)
	s.timeEntries[e.ID] = &e
	return copyTimeEntry(&e)
}

// Bookings 返回某资源的全部预约（含终止状态），按开始时间排序
func (s *Store) Bookings(resourceID int64) []*domain.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Booking
	for _, b := range s.bookings {
		if b.ResourceID == resourceID {
			c := *b
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledStart.Before(out[j].ScheduledStart) })
	return out
}

/*****************************************************************************
 * 区域、技能与资源
 *****************************************************************************/

func (s *Store) FindActiveTerritoriesByPostalCode(ctx context.Context, orgID int64, postalCode string) ([]*domain.Territory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return nil, s.failure
	}
	var out []*domain.Territory
	for _, t := range s.territories {
		if t.OrganizationID == orgID && t.IsActive && slices.Contains(t.PostalCodes, postalCode) {
			out = append(out, copyTerritory(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListSkillAssignments(ctx context.Context, orgID int64, resourceIDs []int64) (map[int64][]*domain.SkillAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return nil, s.failure
	}
	out := make(map[int64][]*domain.SkillAssignment)
	for _, sa := range s.skillAssignments {
		res, ok := s.resources[sa.ResourceID]
		if !ok || res.OrganizationID != orgID || !slices.Contains(resourceIDs, sa.ResourceID) {
			continue
		}
		c := *sa
		out[sa.ResourceID] = append(out[sa.ResourceID], &c)
	}
	return out, nil
}

func (s *Store) GetResource(ctx context.Context, orgID int64, id int64) (*domain.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return nil, s.failure
	}
	r, ok := s.resources[id]
	if !ok || r.OrganizationID != orgID {
		return nil, &scheduler.NotFoundError{Entity: "resource", ID: id}
	}
	return copyResource(r), nil
}

func (s *Store) ListResources(ctx context.Context, orgID int64, filter scheduler.ResourceFilter) ([]*domain.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return nil, s.failure
	}
	var out []*domain.Resource
	for _, r := range s.resources {
		if r.OrganizationID != orgID {
			continue
		}
		if filter.Kind != "" && r.Kind != filter.Kind {
			continue
		}
		if filter.Bookable != nil && r.IsBookable != *filter.Bookable {
			continue
		}
		if len(filter.TerritoryIDs) > 0 && !slices.ContainsFunc(r.TerritoryIDs, func(id int64) bool {
			return slices.Contains(filter.TerritoryIDs, id)
		}) {
			continue
		}
		out = append(out, copyResource(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

/*****************************************************************************
 * 预约
 *****************************************************************************/

func (s *Store) GetBooking(ctx context.Context, orgID int64, id int64) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return nil, s.failure
	}
	b, ok := s.bookings[id]
	if !ok || b.OrganizationID != orgID {
		return nil, &scheduler.NotFoundError{Entity: "booking", ID: id}
	}
	c := *b
	return &c, nil
}

func (s *Store) ListBookings(ctx context.Context, orgID int64, filter scheduler.BookingFilter) ([]*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return nil, s.failure
	}
	var out []*domain.Booking
	for _, b := range s.bookings {
		if b.OrganizationID != orgID || (filter.ResourceID != 0 && b.ResourceID != filter.ResourceID) {
			continue
		}
		if filter.ExcludeID != 0 && b.ID == filter.ExcludeID {
			continue
		}
		if filter.ActiveOnly && b.Status.IsTerminal() {
			continue
		}
		if !filter.From.IsZero() && !filter.To.IsZero() &&
			!scheduler.Overlaps(b.ScheduledStart, b.ScheduledEnd, filter.From, filter.To) {
			continue
		}
		c := *b
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledStart.Before(out[j].ScheduledStart) })
	return out, nil
}

// overlapsActive 模拟 bookings_no_overlap 排他约束
func (s *Store) overlapsActive(b *domain.Booking) bool {
	if b.Status.IsTerminal() {
		return false
	}
	for _, other := range s.bookings {
		if other.ID == b.ID || other.ResourceID != b.ResourceID || other.Status.IsTerminal() {
			continue
		}
		if scheduler.Overlaps(b.ScheduledStart, b.ScheduledEnd, other.ScheduledStart, other.ScheduledEnd) {
			return true
		}
	}
	return false
}

func (s *Store) CreateBooking(ctx context.Context, booking *domain.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	if s.overlapsActive(booking) {
		return scheduler.ErrBookingConflict
	}
	booking.ID = s.id(0)
	booking.Version = 1
	c := *booking
	s.bookings[c.ID] = &c
	return nil
}

func (s *Store) UpdateBooking(ctx context.Context, booking *domain.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	stored, ok := s.bookings[booking.ID]
	if !ok || stored.OrganizationID != booking.OrganizationID || stored.Version != booking.Version {
		return scheduler.ErrVersionConflict
	}
	if s.overlapsActive(booking) {
		return scheduler.ErrBookingConflict
	}
	booking.Version++
	c := *booking
	s.bookings[c.ID] = &c
	return nil
}

/*****************************************************************************
 * 可用性
 *****************************************************************************/

func (s *Store) GetAvailabilityEntry(ctx context.Context, orgID int64, id int64) (*domain.AvailabilityEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return nil, s.failure
	}
	e, ok := s.entries[id]
	if !ok || e.OrganizationID != orgID {
		return nil, &scheduler.NotFoundError{Entity: "availability entry", ID: id}
	}
	return copyEntry(e), nil
}

func (s *Store) ListAvailabilityEntries(ctx context.Context, orgID int64, filter scheduler.AvailabilityFilter) ([]*domain.AvailabilityEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return nil, s.failure
	}
	var out []*domain.AvailabilityEntry
	for _, e := range s.entries {
		if e.OrganizationID != orgID || (filter.ResourceID != 0 && e.ResourceID != filter.ResourceID) {
			continue
		}
		if filter.ExcludeID != 0 && e.ID == filter.ExcludeID {
			continue
		}
		if !filter.IncludeRejected && e.Status == domain.ApprovalRejected {
			continue
		}
		if !filter.From.IsZero() && !filter.To.IsZero() && !entryMayOverlap(e, filter.From, filter.To) {
			continue
		}
		out = append(out, copyEntry(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// entryMayOverlap 与 SQL 查询的条件一致：重复记录只要截止日不早于 from 所在日就返回
func entryMayOverlap(e *domain.AvailabilityEntry, from, to time.Time) bool {
	if !e.Start.Before(to) {
		return false
	}
	if e.End.After(from) {
		return true
	}
	if e.Recurrence == nil {
		return false
	}
	return !e.Recurrence.Until.Add(24 * time.Hour).Before(from.Add(-e.End.Sub(e.Start)))
}

func (s *Store) CreateAvailabilityEntry(ctx context.Context, entry *domain.AvailabilityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	entry.ID = s.id(0)
	entry.Version = 1
	s.entries[entry.ID] = copyEntry(entry)
	return nil
}

func (s *Store) UpdateAvailabilityEntry(ctx context.Context, entry *domain.AvailabilityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	stored, ok := s.entries[entry.ID]
	if !ok || stored.OrganizationID != entry.OrganizationID || stored.Version != entry.Version {
		return scheduler.ErrVersionConflict
	}
	entry.Version++
	s.entries[entry.ID] = copyEntry(entry)
	return nil
}

/*****************************************************************************
 * 设备
 *****************************************************************************/

func (s *Store) GetEquipment(ctx context.Context, orgID int64, id int64) (*domain.Equipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return nil, s.failure
	}
	eq, ok := s.equipment[id]
	if !ok || eq.OrganizationID != orgID {
		return nil, &scheduler.NotFoundError{Entity: "equipment", ID: id}
	}
	c := *eq
	return &c, nil
}

func (s *Store) GetEquipmentAssignment(ctx context.Context, orgID int64, id int64) (*domain.EquipmentAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return nil, s.failure
	}
	a, ok := s.assignments[id]
	if !ok || a.OrganizationID != orgID {
		return nil, &scheduler.NotFoundError{Entity: "equipment assignment", ID: id}
	}
	return copyAssignment(a), nil
}

func (s *Store) ListEquipmentAssignments(ctx context.Context, orgID int64, equipmentID int64, openOnly bool) ([]*domain.EquipmentAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return nil, s.failure
	}
	var out []*domain.EquipmentAssignment
	for _, a := range s.assignments {
		if a.OrganizationID != orgID || a.EquipmentID != equipmentID || (openOnly && !a.IsOpen()) {
			continue
		}
		out = append(out, copyAssignment(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) openAssignment(equipmentID int64) *domain.EquipmentAssignment {
	for _, a := range s.assignments {
		if a.EquipmentID == equipmentID && a.IsOpen() {
			return a
		}
	}
	return nil
}

func (s *Store) CheckOutEquipment(ctx context.Context, assignment *domain.EquipmentAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	eq, ok := s.equipment[assignment.EquipmentID]
	if !ok || eq.OrganizationID != assignment.OrganizationID {
		return &scheduler.NotFoundError{Entity: "equipment", ID: assignment.EquipmentID}
	}
	if s.openAssignment(eq.ID) != nil || eq.Status != domain.EquipmentAvailable {
		return scheduler.ErrNotAvailable
	}
	assignment.ID = s.id(0)
	s.assignments[assignment.ID] = copyAssignment(assignment)
	eq.Status = domain.EquipmentInUse
	eq.Version++
	return nil
}

func (s *Store) CheckInEquipment(ctx context.Context, assignment *domain.EquipmentAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	stored, ok := s.assignments[assignment.ID]
	if !ok || stored.OrganizationID != assignment.OrganizationID {
		return &scheduler.NotFoundError{Entity: "equipment assignment", ID: assignment.ID}
	}
	if !stored.IsOpen() {
		return scheduler.ErrAlreadyCheckedIn
	}
	s.assignments[assignment.ID] = copyAssignment(assignment)
	if eq, ok := s.equipment[assignment.EquipmentID]; ok {
		eq.Status = domain.EquipmentAvailable
		if assignment.ConditionAtReturn != nil {
			eq.Condition = *assignment.ConditionAtReturn
		}
		eq.Version++
	}
	return nil
}

func (s *Store) RetireEquipment(ctx context.Context, orgID int64, equipmentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	eq, ok := s.equipment[equipmentID]
	if !ok || eq.OrganizationID != orgID {
		return &scheduler.NotFoundError{Entity: "equipment", ID: equipmentID}
	}
	if s.openAssignment(equipmentID) != nil {
		return scheduler.ErrActiveAssignmentExists
	}
	eq.Status = domain.EquipmentRetired
	eq.Version++
	return nil
}

/*****************************************************************************
 * 工时
 *****************************************************************************/

func (s *Store) GetOpenTimeEntry(ctx context.Context, orgID int64, resourceID int64) (*domain.TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return nil, s.failure
	}
	var latest *domain.TimeEntry
	for _, e := range s.timeEntries {
		if e.OrganizationID != orgID || e.ResourceID != resourceID || !e.IsOpen() {
			continue
		}
		if latest == nil || e.CreatedAt.After(latest.CreatedAt) || (e.CreatedAt.Equal(latest.CreatedAt) && e.ID > latest.ID) {
			latest = e
		}
	}
	if latest == nil {
		return nil, &scheduler.NotFoundError{Entity: "open time entry for resource", ID: resourceID}
	}
	return copyTimeEntry(latest), nil
}

func (s *Store) ListTimeEntries(ctx context.Context, orgID int64, filter scheduler.TimeEntryFilter) ([]*domain.TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return nil, s.failure
	}
	var out []*domain.TimeEntry
	for _, e := range s.timeEntries {
		if e.OrganizationID != orgID || (filter.ResourceID != 0 && e.ResourceID != filter.ResourceID) {
			continue
		}
		if !filter.From.IsZero() && e.StartTime.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !e.StartTime.Before(filter.To) {
			continue
		}
		out = append(out, copyTimeEntry(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *Store) CreateTimeEntry(ctx context.Context, entry *domain.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	for _, e := range s.timeEntries {
		if e.ResourceID == entry.ResourceID && e.IsOpen() {
			return scheduler.ErrActiveEntryExists
		}
	}
	entry.ID = s.id(0)
	s.timeEntries[entry.ID] = copyTimeEntry(entry)
	return nil
}

func (s *Store) CloseTimeEntry(ctx context.Context, entry *domain.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	stored, ok := s.timeEntries[entry.ID]
	if !ok || stored.OrganizationID != entry.OrganizationID || !stored.IsOpen() {
		return scheduler.ErrNoActiveEntry
	}
	s.timeEntries[entry.ID] = copyTimeEntry(entry)
	return nil
}

/*****************************************************************************
 * 拷贝，避免调用方修改存储中的数据
 *****************************************************************************/

func copyTerritory(t *domain.Territory) *domain.Territory {
	c := *t
	c.PostalCodes = slices.Clone(t.PostalCodes)
	return &c
}

func copyResource(r *domain.Resource) *domain.Resource {
	c := *r
	c.TerritoryIDs = slices.Clone(r.TerritoryIDs)
	c.EquipmentIDs = slices.Clone(r.EquipmentIDs)
	if r.PrimaryTerritoryID != nil {
		id := *r.PrimaryTerritoryID
		c.PrimaryTerritoryID = &id
	}
	return &c
}

func copyEntry(e *domain.AvailabilityEntry) *domain.AvailabilityEntry {
	c := *e
	if e.Recurrence != nil {
		rule := *e.Recurrence
		rule.Weekdays = slices.Clone(e.Recurrence.Weekdays)
		c.Recurrence = &rule
	}
	return &c
}

func copyAssignment(a *domain.EquipmentAssignment) *domain.EquipmentAssignment {
	c := *a
	if a.ReturnedAt != nil {
		t := *a.ReturnedAt
		c.ReturnedAt = &t
	}
	if a.ConditionAtReturn != nil {
		cond := *a.ConditionAtReturn
		c.ConditionAtReturn = &cond
	}
	return &c
}

func copyTimeEntry(e *domain.TimeEntry) *domain.TimeEntry {
	c := *e
	if e.BookingID != nil {
		id := *e.BookingID
		c.BookingID = &id
	}
	if e.EndTime != nil {
		t := *e.EndTime
		c.EndTime = &t
	}
	if e.DurationMinutes != nil {
		d := *e.DurationMinutes
		c.DurationMinutes = &d
	}
	return &c
}
