package services_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/iPranay05/Skill-Prob-sub002/database"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	aws_pkg "github.com/iPranay05/Skill-Prob-sub002/pkg/aws"
	"github.com/iPranay05/Skill-Prob-sub002/repository"
	"github.com/iPranay05/Skill-Prob-sub002/services"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// memStore is an in-memory stand-in for Postgres. Transactions snapshot the
// whole store and restore it on error; capacity records only roll back when
// capacityInTx is set, mirroring a capacity backend outside the database.
type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	coupons      map[uuid.UUID]*models.Coupon
	usages       []*models.CouponUsage
	capacities   map[uuid.UUID]*models.CourseCapacity
	courses      map[uuid.UUID]*models.Course
	enrollments  map[uuid.UUID]*models.CourseEnrollment
	payments     map[uuid.UUID]*models.Payment
	subs         map[uuid.UUID]*models.Subscription
	capacityInTx bool

	reserveConflicts int
	recordConflicts  int
	paymentCreateErr error
}

func newMemStore() *memStore {
	return &memStore{
		coupons:      map[uuid.UUID]*models.Coupon{},
		capacities:   map[uuid.UUID]*models.CourseCapacity{},
		courses:      map[uuid.UUID]*models.Course{},
		enrollments:  map[uuid.UUID]*models.CourseEnrollment{},
		payments:     map[uuid.UUID]*models.Payment{},
		subs:         map[uuid.UUID]*models.Subscription{},
		capacityInTx: true,
	}
}

type snapshot struct {
	coupons     map[uuid.UUID]*models.Coupon
	usages      []*models.CouponUsage
	capacities  map[uuid.UUID]*models.CourseCapacity
	courses     map[uuid.UUID]*models.Course
	enrollments map[uuid.UUID]*models.CourseEnrollment
	payments    map[uuid.UUID]*models.Payment
	subs        map[uuid.UUID]*models.Subscription
}

func cloneMap[T any](m map[uuid.UUID]*T) map[uuid.UUID]*T {
	out := make(map[uuid.UUID]*T, len(m))
	for k, v := range m {
		c := *v
		out[k] = &c
	}
	return out
}

func (s *memStore) snapshot() snapshot {
	usages := make([]*models.CouponUsage, len(s.usages))
	for i, u := range s.usages {
		c := *u
		usages[i] = &c
	}
	return snapshot{
		coupons:     cloneMap(s.coupons),
		usages:      usages,
		capacities:  cloneMap(s.capacities),
		courses:     cloneMap(s.courses),
		enrollments: cloneMap(s.enrollments),
		payments:    cloneMap(s.payments),
		subs:        cloneMap(s.subs),
	}
}

func (s *memStore) restore(snap snapshot) {
	s.coupons = snap.coupons
	s.usages = snap.usages
	s.courses = snap.courses
	s.enrollments = snap.enrollments
	s.payments = snap.payments
	s.subs = snap.subs
	if s.capacityInTx {
		s.capacities = snap.capacities
	}
}

func (s *memStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := s.snapshot()
	s.mu.Unlock()

	if err := fn(database.WithTx(ctx, new(gorm.DB))); err != nil {
		s.mu.Lock()
		s.restore(snap)
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) addCourse(maxStudents *int) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.courses[id] = &models.Course{ID: id, Title: "Go in Practice", MentorID: uuid.New(), MaxStudents: maxStudents}
	return id
}

func (s *memStore) addCapacity(courseID uuid.UUID, maxStudents *int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capacities[courseID] = &models.CourseCapacity{CourseID: courseID, MaxStudents: maxStudents}
}

func (s *memStore) addCoupon(c *models.Coupon) *models.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.Code = strings.ToUpper(c.Code)
	stored := *c
	s.coupons[c.ID] = &stored
	return c
}

func (s *memStore) mentorOf(courseID uuid.UUID) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.courses[courseID].MentorID
}

func (s *memStore) capacityCount(courseID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.capacities[courseID]; ok {
		return c.CurrentEnrollment
	}
	return s.courses[courseID].CurrentEnrollment
}

func (s *memStore) couponByCode(code string) *models.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.coupons {
		if c.Code == code {
			copied := *c
			return &copied
		}
	}
	return nil
}

func (s *memStore) usageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.usages)
}

func (s *memStore) enrollmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.enrollments)
}

func intPtr(v int) *int { return &v }

func isLive(status models.EnrollmentStatus) bool {
	return status == models.EnrollmentStatusActive ||
		status == models.EnrollmentStatusCompleted ||
		status == models.EnrollmentStatusExpired
}

// coupons

type memCouponRepo struct{ s *memStore }

func (r memCouponRepo) Create(_ context.Context, coupon *models.Coupon) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.coupons {
		if c.Code == coupon.Code {
			return repository.ErrDuplicate
		}
	}
	if coupon.ID == uuid.Nil {
		coupon.ID = uuid.New()
	}
	stored := *coupon
	r.s.coupons[coupon.ID] = &stored
	return nil
}

func (r memCouponRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Coupon, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.coupons[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (r memCouponRepo) FindByCode(_ context.Context, code string) (*models.Coupon, error) {
	if c := r.s.couponByCode(strings.ToUpper(code)); c != nil {
		return c, nil
	}
	return nil, repository.ErrNotFound
}

func (r memCouponRepo) ExistsByCode(_ context.Context, code string) (bool, error) {
	return r.s.couponByCode(strings.ToUpper(code)) != nil, nil
}

func (r memCouponRepo) Update(_ context.Context, id uuid.UUID, updates map[string]interface{}) (*models.Coupon, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.coupons[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if limit, ok := updates["usage_limit"].(int); ok && c.UsedCount > limit {
		return nil, repository.ErrUsageLimitReached
	}
	for key, value := range updates {
		switch key {
		case "code":
			c.Code = value.(string)
		case "description":
			c.Description = value.(string)
		case "discount_type":
			c.DiscountType = value.(models.DiscountType)
		case "discount_value":
			c.DiscountValue = value.(decimal.Decimal)
		case "min_amount":
			c.MinAmount = value.(decimal.Decimal)
		case "max_discount":
			c.MaxDiscount = value.(decimal.NullDecimal)
		case "usage_limit":
			if value == nil {
				c.UsageLimit = nil
			} else {
				c.UsageLimit = intPtr(value.(int))
			}
		case "valid_from":
			c.ValidFrom = value.(time.Time)
		case "valid_until":
			v := value.(time.Time)
			c.ValidUntil = &v
		case "is_active":
			c.IsActive = value.(bool)
		}
	}
	copied := *c
	return &copied, nil
}

func (r memCouponRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.coupons[id]
	if !ok {
		return repository.ErrNotFound
	}
	if c.UsedCount > 0 {
		return repository.ErrCouponInUse
	}
	delete(r.s.coupons, id)
	return nil
}

func (r memCouponRepo) FindAll(_ context.Context, page, limit int) ([]models.Coupon, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := make([]models.Coupon, 0, len(r.s.coupons))
	for _, c := range r.s.coupons {
		all = append(all, *c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

// coupon usages

type memUsageRepo struct{ s *memStore }

func sameCourse(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r memUsageRepo) Record(_ context.Context, usage *models.CouponUsage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.recordConflicts > 0 {
		r.s.recordConflicts--
		return repository.ErrConcurrentUpdate
	}
	for _, u := range r.s.usages {
		if u.CouponID == usage.CouponID && u.UserID == usage.UserID && sameCourse(u.CourseID, usage.CourseID) {
			return repository.ErrDuplicate
		}
	}
	c, ok := r.s.coupons[usage.CouponID]
	if !ok {
		return repository.ErrNotFound
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return repository.ErrUsageLimitReached
	}
	c.UsedCount++
	stored := *usage
	r.s.usages = append(r.s.usages, &stored)
	return nil
}

func (r memUsageRepo) Exists(_ context.Context, couponID, userID uuid.UUID, courseID *uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.usages {
		if u.CouponID == couponID && u.UserID == userID && sameCourse(u.CourseID, courseID) {
			return true, nil
		}
	}
	return false, nil
}

func (r memUsageRepo) Totals(_ context.Context, couponID uuid.UUID) (*repository.CouponUsageTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	totals := &repository.CouponUsageTotals{}
	for _, u := range r.s.usages {
		if u.CouponID != couponID {
			continue
		}
		totals.Rows++
		totals.TotalDiscount = totals.TotalDiscount.Add(u.DiscountAmount)
		totals.TotalRevenue = totals.TotalRevenue.Add(u.FinalAmount)
	}
	return totals, nil
}

// capacity

type memCapacityRepo struct{ s *memStore }

func (r memCapacityRepo) Get(_ context.Context, courseID uuid.UUID) (*models.CourseCapacity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.capacities[courseID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (r memCapacityRepo) Reserve(_ context.Context, courseID uuid.UUID) (*models.CourseCapacity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.capacities[courseID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if r.s.reserveConflicts > 0 {
		r.s.reserveConflicts--
		return nil, repository.ErrConcurrentUpdate
	}
	if c.MaxStudents != nil && c.CurrentEnrollment >= *c.MaxStudents {
		return nil, repository.ErrCapacityExceeded
	}
	c.CurrentEnrollment++
	copied := *c
	return &copied, nil
}

func (r memCapacityRepo) Release(_ context.Context, courseID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.capacities[courseID]
	if !ok {
		return repository.ErrNotFound
	}
	if c.CurrentEnrollment > 0 {
		c.CurrentEnrollment--
	}
	return nil
}

func (r memCapacityRepo) SetMaxStudents(_ context.Context, courseID uuid.UUID, max *int) (*models.CourseCapacity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.capacities[courseID]
	if !ok {
		c = &models.CourseCapacity{CourseID: courseID}
		r.s.capacities[courseID] = c
	}
	if max != nil && *max < c.CurrentEnrollment {
		return nil, repository.ErrBelowEnrollment
	}
	c.MaxStudents = max
	copied := *c
	return &copied, nil
}

func (r memCapacityRepo) JoinsTransaction() bool { return r.s.capacityInTx }

// courses

type memCourseRepo struct{ s *memStore }

func (r memCourseRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Course, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.courses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (r memCourseRepo) FindMentorID(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	c, err := r.FindByID(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	return c.MentorID, nil
}

func (r memCourseRepo) ReserveSeat(_ context.Context, id uuid.UUID) (*models.Course, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.courses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if c.MaxStudents != nil && c.CurrentEnrollment >= *c.MaxStudents {
		return nil, repository.ErrCapacityExceeded
	}
	c.CurrentEnrollment++
	copied := *c
	return &copied, nil
}

func (r memCourseRepo) ReleaseSeat(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.courses[id]
	if !ok {
		return repository.ErrNotFound
	}
	if c.CurrentEnrollment > 0 {
		c.CurrentEnrollment--
	}
	return nil
}

// enrollments

type memEnrollmentRepo struct{ s *memStore }

func (r memEnrollmentRepo) liveLocked(courseID, studentID, except uuid.UUID) *models.CourseEnrollment {
	for _, e := range r.s.enrollments {
		if e.ID != except && e.CourseID == courseID && e.StudentID == studentID && isLive(e.Status) {
			return e
		}
	}
	return nil
}

func (r memEnrollmentRepo) Create(_ context.Context, enrollment *models.CourseEnrollment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.liveLocked(enrollment.CourseID, enrollment.StudentID, uuid.Nil) != nil {
		return repository.ErrDuplicate
	}
	stored := *enrollment
	r.s.enrollments[enrollment.ID] = &stored
	return nil
}

func (r memEnrollmentRepo) FindByID(_ context.Context, id uuid.UUID) (*models.CourseEnrollment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.enrollments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (r memEnrollmentRepo) FindLive(_ context.Context, courseID, studentID uuid.UUID) (*models.CourseEnrollment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e := r.liveLocked(courseID, studentID, uuid.Nil); e != nil {
		copied := *e
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r memEnrollmentRepo) UpdateStatus(_ context.Context, id uuid.UUID, status models.EnrollmentStatus) (*models.CourseEnrollment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.enrollments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if isLive(status) && r.liveLocked(e.CourseID, e.StudentID, e.ID) != nil {
		return nil, repository.ErrDuplicate
	}
	e.Status = status
	copied := *e
	return &copied, nil
}

func (r memEnrollmentRepo) ApplyProgress(_ context.Context, id, studentID uuid.UUID, update models.ProgressUpdate) (*models.CourseEnrollment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.enrollments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if e.StudentID != studentID {
		return nil, repository.ErrOwnershipMismatch
	}
	e.Progress.CompletedSessions = update.CompletedSessions
	e.Progress.CompletionPercentage = update.CompletionPercentage
	e.Progress.TimeSpent += update.TimeSpent
	if update.TotalSessions != nil {
		e.Progress.TotalSessions = *update.TotalSessions
	}
	if update.LastSessionCompleted != nil {
		e.Progress.LastSessionCompleted = update.LastSessionCompleted
	}
	copied := *e
	return &copied, nil
}

func (r memEnrollmentRepo) SetPaymentID(_ context.Context, id, studentID, paymentID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.enrollments[id]
	if !ok {
		return repository.ErrNotFound
	}
	if e.StudentID != studentID {
		return repository.ErrOwnershipMismatch
	}
	e.PaymentID = &paymentID
	return nil
}

func (r memEnrollmentRepo) list(match func(*models.CourseEnrollment) bool) ([]models.CourseEnrollment, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.CourseEnrollment{}
	for _, e := range r.s.enrollments {
		if match(e) {
			out = append(out, *e)
		}
	}
	return out, int64(len(out)), nil
}

func (r memEnrollmentRepo) ListByStudent(_ context.Context, studentID uuid.UUID, _, _ int) ([]models.CourseEnrollment, int64, error) {
	return r.list(func(e *models.CourseEnrollment) bool { return e.StudentID == studentID })
}

func (r memEnrollmentRepo) ListByCourse(_ context.Context, courseID uuid.UUID, _, _ int) ([]models.CourseEnrollment, int64, error) {
	return r.list(func(e *models.CourseEnrollment) bool { return e.CourseID == courseID })
}

func (r memEnrollmentRepo) CountByStatus(_ context.Context, courseID uuid.UUID) (map[models.EnrollmentStatus]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := map[models.EnrollmentStatus]int64{}
	for _, e := range r.s.enrollments {
		if e.CourseID == courseID {
			counts[e.Status]++
		}
	}
	return counts, nil
}

func (r memEnrollmentRepo) Totals(_ context.Context, courseID uuid.UUID) (*repository.EnrollmentTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	totals := &repository.EnrollmentTotals{}
	var n int
	var sum float64
	for _, e := range r.s.enrollments {
		if e.CourseID != courseID {
			continue
		}
		totals.Revenue = totals.Revenue.Add(e.AmountPaid)
		sum += e.Progress.CompletionPercentage
		n++
	}
	if n > 0 {
		totals.AverageCompletion = sum / float64(n)
	}
	return totals, nil
}

// payments

type memPaymentRepo struct{ s *memStore }

func (r memPaymentRepo) Create(_ context.Context, payment *models.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.paymentCreateErr != nil {
		return r.s.paymentCreateErr
	}
	stored := *payment
	r.s.payments[payment.ID] = &stored
	return nil
}

func (r memPaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (r memPaymentRepo) UpdateStatus(_ context.Context, id uuid.UUID, from []models.PaymentStatus, updates map[string]interface{}) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	allowed := len(from) == 0
	for _, f := range from {
		if p.Status == f {
			allowed = true
		}
	}
	if !allowed {
		return nil, repository.ErrStatusPrecondition
	}
	for key, value := range updates {
		switch key {
		case "status":
			p.Status = value.(models.PaymentStatus)
		case "payment_date":
			v := value.(time.Time)
			p.PaymentDate = &v
		case "failure_reason":
			if value == nil {
				p.FailureReason = nil
			} else {
				v := value.(string)
				p.FailureReason = &v
			}
		case "gateway_payment_id":
			v := value.(string)
			p.GatewayPaymentID = &v
		case "refund_amount":
			p.RefundAmount = decimal.NewNullDecimal(value.(decimal.Decimal))
		}
	}
	copied := *p
	return &copied, nil
}

// subscriptions

type memSubscriptionRepo struct{ s *memStore }

func (r memSubscriptionRepo) Create(_ context.Context, sub *models.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *sub
	r.s.subs[sub.ID] = &stored
	return nil
}

func (r memSubscriptionRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.subs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *sub
	return &copied, nil
}

func (r memSubscriptionRepo) UpdateStatus(_ context.Context, id uuid.UUID, from []models.SubscriptionStatus, updates map[string]interface{}) (*models.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.subs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	allowed := len(from) == 0
	for _, f := range from {
		if sub.Status == f {
			allowed = true
		}
	}
	if !allowed {
		return nil, repository.ErrStatusPrecondition
	}
	for key, value := range updates {
		switch key {
		case "status":
			sub.Status = value.(models.SubscriptionStatus)
		case "cancelled_at":
			v := value.(time.Time)
			sub.CancelledAt = &v
		case "auto_renew":
			sub.AutoRenew = value.(bool)
		case "cancellation_reason":
			v := value.(string)
			sub.CancellationReason = &v
		}
	}
	copied := *sub
	return &copied, nil
}

func (r memSubscriptionRepo) IncrementFailedPayments(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.subs[id]
	if !ok {
		return repository.ErrNotFound
	}
	sub.FailedPaymentCount++
	return nil
}

// idempotency

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func (m *memIdempotency) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], nil
}

func (m *memIdempotency) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; !ok {
		m.keys[key] = value
	}
	return nil
}

// events

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event models.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

// harness wires every service onto one memStore.
type harness struct {
	store       *memStore
	pub         *recordingPublisher
	idem        *memIdempotency
	coupons     services.CouponService
	ledger      *services.CouponLedger
	admission   *services.AdmissionController
	enrollments services.EnrollmentService
	payments    services.PaymentService
	subs        services.SubscriptionService
	stats       services.StatsService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := newMemStore()
	pub := &recordingPublisher{}
	idem := &memIdempotency{keys: map[string]string{}}
	logger := zap.NewNop()
	metrics := aws_pkg.NoopMetrics{}
	engine := newTestEngine()
	retry := services.RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}

	coupons := memCouponRepo{store}
	usages := memUsageRepo{store}
	courses := memCourseRepo{store}
	enrollments := memEnrollmentRepo{store}
	payments := memPaymentRepo{store}
	subs := memSubscriptionRepo{store}

	ledger := services.NewCouponLedger(coupons, usages, engine, retry, pub, metrics, logger)
	admission := services.NewAdmissionController(memCapacityRepo{store}, courses, enrollments, retry, metrics, logger)

	return &harness{
		store:       store,
		pub:         pub,
		idem:        idem,
		coupons:     services.NewCouponService(coupons, engine, logger),
		ledger:      ledger,
		admission:   admission,
		enrollments: services.NewEnrollmentService(store, enrollments, payments, courses, admission, ledger, idem, pub, logger),
		payments:    services.NewPaymentService(store, payments, enrollments, subs, pub, metrics, logger),
		subs:        services.NewSubscriptionService(subs, pub, logger),
		stats:       services.NewStatsService(enrollments, courses, coupons, usages, admission, logger),
	}
}

func student() models.Identity {
	return models.Identity{UserID: uuid.New(), Role: models.RoleStudent}
}

func admin() models.Identity {
	return models.Identity{UserID: uuid.New(), Role: models.RoleAdmin}
}
