package maintenance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/notify"
	apperrors "github.com/ukydev/fleet-maintenance/pkg/errors"
	"github.com/zoobzio/clockz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memStore is an in-memory implementation of the rule, vehicle and record collections.
type memStore struct {
	mu       sync.Mutex
	rules    map[string]models.MaintenanceRule
	vehicles map[string]models.Vehicle
	records  map[string]models.MaintenanceRecord
}

func newMemStore() *memStore {
	return &memStore{
		rules:    map[string]models.MaintenanceRule{},
		vehicles: map[string]models.Vehicle{},
		records:  map[string]models.MaintenanceRecord{},
	}
}

func (m *memStore) InsertRule(_ context.Context, rule models.MaintenanceRule) (*models.MaintenanceRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule.ID = primitive.NewObjectID()
	m.rules[rule.ID.Hex()] = rule
	return &rule, nil
}

func (m *memStore) FindRuleByID(_ context.Context, id string) (*models.MaintenanceRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.rules[id]
	if !ok {
		return nil, apperrors.NotFound("maintenance rule %s not found", id)
	}
	return &rule, nil
}

func (m *memStore) FindRules(_ context.Context, activeOnly bool) ([]models.MaintenanceRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.MaintenanceRule{}
	for _, r := range m.rules {
		if activeOnly && !r.IsActive {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) ListActiveRules(ctx context.Context) ([]models.MaintenanceRule, error) {
	return m.FindRules(ctx, true)
}

func (m *memStore) UpdateRule(_ context.Context, id string, rule models.MaintenanceRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[id]; !ok {
		return apperrors.NotFound("maintenance rule %s not found", id)
	}
	m.rules[id] = rule
	return nil
}

func (m *memStore) DeleteRule(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[id]; !ok {
		return apperrors.NotFound("maintenance rule %s not found", id)
	}
	delete(m.rules, id)
	return nil
}

func (m *memStore) InsertVehicle(_ context.Context, v models.Vehicle) (*models.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.ID = primitive.NewObjectID()
	m.vehicles[v.ID.Hex()] = v
	return &v, nil
}

func (m *memStore) FindVehicleByID(_ context.Context, id string) (*models.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[id]
	if !ok {
		return nil, apperrors.NotFound("vehicle %s not found", id)
	}
	return &v, nil
}

func (m *memStore) FindVehicles(_ context.Context, filter models.VehicleFilter) ([]models.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Vehicle{}
	for _, v := range m.vehicles {
		if filter.DriverID != "" && v.DriverID != filter.DriverID {
			continue
		}
		if filter.Status != "" && v.Status != filter.Status {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (m *memStore) UpdateMileage(_ context.Context, id string, mileage int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[id]
	if !ok {
		return apperrors.NotFound("vehicle %s not found", id)
	}
	if mileage < v.CurrentMileage {
		return apperrors.Validation("mileage %d is below the vehicle's current odometer", mileage)
	}
	v.CurrentMileage = mileage
	m.vehicles[id] = v
	return nil
}

func (m *memStore) CreateOpenRecord(_ context.Context, rec models.MaintenanceRecord) (*models.MaintenanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.records {
		if existing.Open && existing.VehicleID == rec.VehicleID && existing.RuleID == rec.RuleID {
			return nil, apperrors.Conflict("vehicle %s already has an open record for rule %s", rec.VehicleID, rec.RuleID)
		}
	}
	rec.ID = primitive.NewObjectID()
	m.records[rec.ID.Hex()] = rec
	return &rec, nil
}

func (m *memStore) FindRecordByID(_ context.Context, id string) (*models.MaintenanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, apperrors.NotFound("maintenance record %s not found", id)
	}
	return &rec, nil
}

func (m *memStore) FindRecords(_ context.Context, filter models.RecordFilter) ([]models.MaintenanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	allowed := map[string]bool{}
	for _, id := range filter.VehicleIDs {
		allowed[id] = true
	}
	out := []models.MaintenanceRecord{}
	for _, rec := range m.records {
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		if filter.VehicleID != "" && rec.VehicleID != filter.VehicleID {
			continue
		}
		if len(allowed) > 0 && !allowed[rec.VehicleID] {
			continue
		}
		if filter.DateRange != nil && !filter.DateRange.Contains(rec.ScheduledDate) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *memStore) OpenRecord(_ context.Context, vehicleID, ruleID string) (*models.MaintenanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.Open && rec.VehicleID == vehicleID && rec.RuleID == ruleID {
			return &rec, nil
		}
	}
	return nil, nil
}

func (m *memStore) LastCompleted(_ context.Context, vehicleID, ruleID string) (*models.MaintenanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *models.MaintenanceRecord
	for _, rec := range m.records {
		if rec.Status != models.RecordCompleted || rec.VehicleID != vehicleID || rec.RuleID != ruleID {
			continue
		}
		if last == nil || rec.CompletedAt.After(*last.CompletedAt) {
			r := rec
			last = &r
		}
	}
	return last, nil
}

func (m *memStore) LatestCompletions(ctx context.Context) ([]models.MaintenanceRecord, error) {
	m.mu.Lock()
	pairs := map[[2]string]bool{}
	for _, rec := range m.records {
		if rec.Status == models.RecordCompleted {
			pairs[[2]string{rec.VehicleID, rec.RuleID}] = true
		}
	}
	m.mu.Unlock()

	out := []models.MaintenanceRecord{}
	for pair := range pairs {
		last, _ := m.LastCompleted(ctx, pair[0], pair[1])
		out = append(out, *last)
	}
	return out, nil
}

func (m *memStore) ListOpenRecords(_ context.Context) ([]models.MaintenanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.MaintenanceRecord{}
	for _, rec := range m.records {
		if rec.Open {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memStore) PromoteRecord(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return apperrors.NotFound("maintenance record %s not found", id)
	}
	if rec.Status != models.RecordScheduled {
		return apperrors.Conflict("maintenance record %s is %s", id, rec.Status)
	}
	rec.Status = models.RecordPending
	rec.UpdatedAt = at
	m.records[id] = rec
	return nil
}

func (m *memStore) CompleteRecord(_ context.Context, rec models.MaintenanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := rec.ID.Hex()
	stored, ok := m.records[id]
	if !ok {
		return apperrors.NotFound("maintenance record %s not found", id)
	}
	if stored.Status == models.RecordCompleted {
		return apperrors.Conflict("maintenance record %s is already completed", id)
	}
	m.records[id] = rec
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc   *Service
	store *memStore
	clock *clockz.FakeClock
	pub   *recordingPublisher
	logs  *test.Hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	clock := clockz.NewFakeClock()
	pub := &recordingPublisher{}
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	svc := NewService(store, store, store, DefaultThresholds(),
		WithClock(clock),
		WithPublisher(pub),
		WithLogger(logger),
	)
	return &fixture{svc: svc, store: store, clock: clock, pub: pub, logs: hook}
}

func (f *fixture) vehicle(t *testing.T, name string, registration, current int) *models.Vehicle {
	t.Helper()
	v, err := f.svc.RegisterVehicle(context.Background(), models.Vehicle{
		Name:                name,
		DriverID:            "driver-" + name,
		RegistrationMileage: registration,
		CurrentMileage:      current,
	})
	require.NoError(t, err)
	return v
}

func (f *fixture) rule(t *testing.T, r models.MaintenanceRule) *models.MaintenanceRule {
	t.Helper()
	created, err := f.svc.CreateRule(context.Background(), r)
	require.NoError(t, err)
	return created
}

func TestService_ReportUsesRegistrationBaseline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.rule(t, mileageRule(10000))
	due := f.vehicle(t, "due", 40000, 49600)
	f.vehicle(t, "fresh", 40000, 41000)

	pending, err := f.svc.PendingAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, due.ID.Hex(), pending[0].VehicleID)
	assert.Equal(t, 400, *pending[0].KmRemaining)
	assert.Equal(t, StatusDue, pending[0].Status)

	overdue, err := f.svc.OverdueAlerts(ctx)
	require.NoError(t, err)
	assert.Empty(t, overdue)
}

func TestService_CreatePendingRecordConcurrentCreatesOne(t *testing.T) {
	f := newFixture(t)
	rule := f.rule(t, mileageRule(10000))
	v := f.vehicle(t, "t1", 0, 11000)

	const callers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	var created, conflicts int
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreatePendingRecord(context.Background(), v.ID.Hex(), rule.ID.Hex())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, apperrors.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, callers-1, conflicts)

	open, err := f.store.ListOpenRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, models.RecordPending, open[0].Status)
	require.NotNil(t, open[0].Due)
	assert.Equal(t, string(StatusOverdue), open[0].Due.Status)
	assert.Equal(t, []string{notify.EventRecordOpened}, f.pub.types())
}

func TestService_CreatePendingRecordRequiresDue(t *testing.T) {
	f := newFixture(t)
	rule := f.rule(t, mileageRule(10000))
	v := f.vehicle(t, "t1", 0, 100)

	_, err := f.svc.CreatePendingRecord(context.Background(), v.ID.Hex(), rule.ID.Hex())
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.CreatePendingRecord(context.Background(), "missing", rule.ID.Hex())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestService_CompleteResetsInterval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := f.rule(t, mileageRule(10000))
	v := f.vehicle(t, "t1", 40000, 49600)

	rec, err := f.svc.CreatePendingRecord(ctx, v.ID.Hex(), rule.ID.Hex())
	require.NoError(t, err)

	report, err := f.svc.Report(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Pending)
	require.Len(t, report.Tracked, 1)
	assert.Equal(t, rec.ID.Hex(), report.Tracked[0].Record.ID)

	f.clock.Advance(24 * time.Hour)
	serviced := 49700
	done, err := f.svc.CompleteRecord(ctx, rec.ID.Hex(), Completion{MileageAtService: &serviced, Notes: "done"})
	require.NoError(t, err)
	assert.Equal(t, models.RecordCompleted, done.Status)
	assert.Equal(t, f.clock.Now(), *done.CompletedAt)

	stored, err := f.store.FindVehicleByID(ctx, v.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 49700, stored.CurrentMileage)

	statuses, err := f.svc.VehicleStatus(ctx, v.ID.Hex())
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, StatusOK, statuses[0].Status)
	assert.Equal(t, 10000, *statuses[0].KmRemaining)
	assert.Nil(t, statuses[0].Record)

	report, err = f.svc.Report(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Pending)
	assert.Empty(t, report.Tracked)
	assert.Equal(t, []string{notify.EventRecordOpened, notify.EventRecordCompleted}, f.pub.types())
}

func TestService_CompleteTwiceLeavesListsUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := f.rule(t, mileageRule(10000))
	v := f.vehicle(t, "t1", 0, 10500)
	f.vehicle(t, "t2", 0, 9700)

	rec, err := f.svc.CreatePendingRecord(ctx, v.ID.Hex(), rule.ID.Hex())
	require.NoError(t, err)
	_, err = f.svc.CompleteRecord(ctx, rec.ID.Hex(), Completion{})
	require.NoError(t, err)

	before, err := f.svc.Report(ctx)
	require.NoError(t, err)

	_, err = f.svc.CompleteRecord(ctx, rec.ID.Hex(), Completion{})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	after, err := f.svc.Report(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Pending, after.Pending)
	assert.Equal(t, before.Overdue, after.Overdue)
	assert.Equal(t, before.Tracked, after.Tracked)
}

func TestService_OpenDueRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := f.rule(t, mileageRule(10000))
	overdue := f.vehicle(t, "overdue", 0, 10200)
	due := f.vehicle(t, "due", 0, 9800)
	f.vehicle(t, "upcoming", 0, 8500)

	result, err := f.svc.OpenDueRecords(ctx)
	require.NoError(t, err)
	require.Len(t, result.Created, 2)
	assert.Equal(t, overdue.ID.Hex(), result.Created[0].VehicleID)
	assert.Equal(t, due.ID.Hex(), result.Created[1].VehicleID)
	assert.Equal(t, rule.ID.Hex(), result.Created[0].RuleID)
	assert.Empty(t, result.Promoted)

	again, err := f.svc.OpenDueRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Created)
	assert.Empty(t, again.Errors)

	summary, err := f.svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalPending)
	assert.Equal(t, 0, summary.TotalOverdue)
	assert.Equal(t, 2, summary.TotalTracked)
}

func TestService_OpenDuePromotesScheduled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := f.rule(t, mileageRule(10000))
	v := f.vehicle(t, "t1", 0, 5000)

	booked, err := f.svc.ScheduleRecord(ctx, ScheduleRequest{
		VehicleID:     v.ID.Hex(),
		RuleID:        rule.ID.Hex(),
		ScheduledDate: f.clock.Now().AddDate(0, 0, 14),
	})
	require.NoError(t, err)
	assert.Equal(t, models.RecordScheduled, booked.Status)
	assert.Equal(t, "Oil change", booked.Description)

	_, err = f.svc.UpdateMileage(ctx, v.ID.Hex(), 9900)
	require.NoError(t, err)

	result, err := f.svc.OpenDueRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Created)
	assert.Equal(t, []string{booked.ID.Hex()}, result.Promoted)

	stored, err := f.store.FindRecordByID(ctx, booked.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.RecordPending, stored.Status)
	assert.Contains(t, f.pub.types(), notify.EventRecordPromoted)
}

func TestService_ScheduleConflictsWithOpenRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := f.rule(t, mileageRule(10000))
	v := f.vehicle(t, "t1", 0, 10100)

	_, err := f.svc.CreatePendingRecord(ctx, v.ID.Hex(), rule.ID.Hex())
	require.NoError(t, err)

	_, err = f.svc.ScheduleRecord(ctx, ScheduleRequest{VehicleID: v.ID.Hex(), RuleID: rule.ID.Hex(), ScheduledDate: f.clock.Now()})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = f.svc.ScheduleRecord(ctx, ScheduleRequest{VehicleID: v.ID.Hex()})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestService_PublishFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")
	rule := f.rule(t, mileageRule(10000))
	v := f.vehicle(t, "t1", 0, 10100)

	rec, err := f.svc.CreatePendingRecord(context.Background(), v.ID.Hex(), rule.ID.Hex())
	require.NoError(t, err)
	assert.NotNil(t, rec)

	last := f.logs.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, logrus.WarnLevel, last.Level)
	assert.Equal(t, "Failed to publish maintenance event", last.Message)
}

func TestService_OrphanRecordsReported(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := f.rule(t, mileageRule(10000))
	f.vehicle(t, "t1", 0, 100)

	_, err := f.store.CreateOpenRecord(ctx, models.MaintenanceRecord{
		VehicleID: "gone",
		RuleID:    rule.ID.Hex(),
		Status:    models.RecordPending,
		Open:      true,
		CreatedAt: f.clock.Now(),
	})
	require.NoError(t, err)

	report, err := f.svc.Report(ctx)
	require.NoError(t, err)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, ItemNotFound, report.Errors[0].Kind)
	assert.Equal(t, "gone", report.Errors[0].VehicleID)
	assert.Equal(t, 1, report.Summary.TotalErrors)
}

func TestService_UpdateMileageRejectsDecrease(t *testing.T) {
	f := newFixture(t)
	v := f.vehicle(t, "t1", 0, 5000)

	_, err := f.svc.UpdateMileage(context.Background(), v.ID.Hex(), 4000)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	updated, err := f.svc.UpdateMileage(context.Background(), v.ID.Hex(), 6000)
	require.NoError(t, err)
	assert.Equal(t, 6000, updated.CurrentMileage)
}

func TestService_UpdateMileageConcurrentReadingsKeepHighest(t *testing.T) {
	f := newFixture(t)
	v := f.vehicle(t, "t1", 0, 1000)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 50; i >= 1; i-- {
		wg.Add(1)
		go func(reading int) {
			defer wg.Done()
			_, err := f.svc.UpdateMileage(ctx, v.ID.Hex(), reading)
			if err != nil {
				assert.ErrorIs(t, err, apperrors.ErrValidation)
			}
		}(1000 + i*10)
	}
	wg.Wait()

	stored, err := f.store.FindVehicleByID(ctx, v.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 1500, stored.CurrentMileage)

	_, err = f.svc.UpdateMileage(ctx, v.ID.Hex(), 1490)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = f.svc.UpdateMileage(ctx, v.ID.Hex(), -1)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = f.svc.UpdateMileage(ctx, primitive.NewObjectID().Hex(), 2000)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestService_AuthorizeDriverOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := f.rule(t, mileageRule(10000))
	mine := f.vehicle(t, "t1", 0, 9800)
	other := f.vehicle(t, "t2", 0, 9800)
	unassigned, err := f.svc.RegisterVehicle(ctx, models.Vehicle{Name: "spare"})
	require.NoError(t, err)

	assert.NoError(t, f.svc.AuthorizeVehicle(ctx, mine.ID.Hex(), "driver-t1"))
	assert.ErrorIs(t, f.svc.AuthorizeVehicle(ctx, other.ID.Hex(), "driver-t1"), apperrors.ErrForbidden)
	assert.ErrorIs(t, f.svc.AuthorizeVehicle(ctx, unassigned.ID.Hex(), ""), apperrors.ErrForbidden)
	assert.ErrorIs(t, f.svc.AuthorizeVehicle(ctx, primitive.NewObjectID().Hex(), "driver-t1"), apperrors.ErrNotFound)

	rec, err := f.svc.CreatePendingRecord(ctx, other.ID.Hex(), rule.ID.Hex())
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.AuthorizeRecord(ctx, rec.ID.Hex(), "driver-t1"), apperrors.ErrForbidden)
	assert.NoError(t, f.svc.AuthorizeRecord(ctx, rec.ID.Hex(), "driver-t2"))
}

func TestService_RegisterVehicleDefaults(t *testing.T) {
	f := newFixture(t)

	v, err := f.svc.RegisterVehicle(context.Background(), models.Vehicle{Name: "Truck 9", RegistrationMileage: 1200})
	require.NoError(t, err)
	assert.Equal(t, "truck", v.Type)
	assert.Equal(t, "active", v.Status)
	assert.Equal(t, 1200, v.CurrentMileage)
	assert.Equal(t, f.clock.Now(), v.RegistrationDate)

	_, err = f.svc.RegisterVehicle(context.Background(), models.Vehicle{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestService_ListRecordsByDriver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := f.rule(t, mileageRule(10000))
	mine := f.vehicle(t, "alice", 0, 10100)
	theirs := f.vehicle(t, "bob", 0, 10100)

	_, err := f.svc.CreatePendingRecord(ctx, mine.ID.Hex(), rule.ID.Hex())
	require.NoError(t, err)
	_, err = f.svc.CreatePendingRecord(ctx, theirs.ID.Hex(), rule.ID.Hex())
	require.NoError(t, err)

	records, err := f.svc.ListRecords(ctx, models.RecordFilter{DriverID: "driver-alice"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, mine.ID.Hex(), records[0].VehicleID)

	none, err := f.svc.ListRecords(ctx, models.RecordFilter{DriverID: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, none)

	bad := models.RecordStatus("lost")
	_, err = f.svc.ListRecords(ctx, models.RecordFilter{Status: &bad})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	now := f.clock.Now()
	_, err = f.svc.ListRecords(ctx, models.RecordFilter{DateRange: &models.DateRange{Start: now, End: now.Add(-time.Hour)}})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestService_RuleCRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateRule(ctx, models.MaintenanceRule{Name: "Broken", Category: "oil_change", IntervalType: models.IntervalMileage, Priority: models.PriorityLow})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	rule := f.rule(t, mileageRule(10000))
	assert.Equal(t, f.clock.Now(), rule.CreatedAt)

	f.clock.Advance(time.Hour)
	change := *rule
	change.IsActive = false
	updated, err := f.svc.UpdateRule(ctx, rule.ID.Hex(), change)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, rule.CreatedAt, updated.CreatedAt)
	assert.Equal(t, f.clock.Now(), updated.UpdatedAt)

	active, err := f.svc.ListRules(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := f.svc.ListRules(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, f.svc.DeleteRule(ctx, rule.ID.Hex()))
	_, err = f.svc.GetRule(ctx, rule.ID.Hex())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
