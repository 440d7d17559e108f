// Package memory is a test double: it keeps every repository in process
// memory for the service and handler tests and mirrors the PostgreSQL
// semantics they rely on. It is not a supported backend; cmd/api and
// cmd/worker only wire internal/repository/postgres.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type Store struct {
	mu            sync.Mutex
	nextID        int64
	doctors       map[int64]*model.Doctor
	patients      map[int64]*model.Patient
	admins        map[int64]*model.Admin
	rules         map[int64][]*model.AvailabilityRule
	appointments  map[int64]*model.Appointment
	prescriptions map[uuid.UUID]*model.Prescription
	Events        []*model.OutboxEvent

	// RuleReads counts availability lookups, for cache assertions.
	RuleReads int
}

func NewStore() *Store {
	return &Store{
		doctors:       map[int64]*model.Doctor{},
		patients:      map[int64]*model.Patient{},
		admins:        map[int64]*model.Admin{},
		rules:         map[int64][]*model.AvailabilityRule{},
		appointments:  map[int64]*model.Appointment{},
		prescriptions: map[uuid.UUID]*model.Prescription{},
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) Doctors() repository.DoctorRepository            { return doctorRepo{s} }
func (s *Store) Patients() repository.PatientRepository          { return patientRepo{s} }
func (s *Store) Admins() repository.AdminRepository              { return adminRepo{s} }
func (s *Store) Availability() repository.AvailabilityRepository { return availabilityRepo{s} }
func (s *Store) Appointments() repository.AppointmentRepository  { return appointmentRepo{s} }
func (s *Store) Prescriptions() repository.PrescriptionRepository {
	return prescriptionRepo{s}
}
func (s *Store) Outbox() repository.OutboxRepository { return outboxRepo{s} }

// EventTypes lists the recorded outbox event types in order.
func (s *Store) EventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, 0, len(s.Events))
	for _, e := range s.Events {
		types = append(types, e.EventType)
	}
	return types
}

type doctorRepo struct{ s *Store }

func (r doctorRepo) Create(ctx context.Context, d *model.Doctor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.doctors {
		if strings.EqualFold(existing.Email, d.Email) {
			return fmt.Errorf("doctor %s: %w", d.Email, repository.ErrDuplicate)
		}
	}
	d.ID = r.s.id()
	cp := *d
	r.s.doctors[d.ID] = &cp
	return nil
}

func (r doctorRepo) Get(ctx context.Context, id int64) (*model.Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.doctors[id]
	if !ok {
		return nil, fmt.Errorf("doctor: %w", repository.ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

func (r doctorRepo) GetByEmail(ctx context.Context, email string) (*model.Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.doctors {
		if strings.EqualFold(d.Email, email) {
			cp := *d
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("doctor: %w", repository.ErrNotFound)
}

func (r doctorRepo) List(ctx context.Context, specialty string) ([]*model.Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Doctor
	for _, d := range r.s.doctors {
		if specialty == "" || strings.Contains(strings.ToLower(d.Specialty), strings.ToLower(specialty)) {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r doctorRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.doctors[id]
	if !ok {
		return fmt.Errorf("doctor: %w", repository.ErrNotFound)
	}
	d.PasswordHash = hash
	return nil
}

type patientRepo struct{ s *Store }

func (r patientRepo) Create(ctx context.Context, p *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.patients {
		if strings.EqualFold(existing.Email, p.Email) {
			return fmt.Errorf("patient %s: %w", p.Email, repository.ErrDuplicate)
		}
	}
	p.ID = r.s.id()
	cp := *p
	r.s.patients[p.ID] = &cp
	return nil
}

func (r patientRepo) Get(ctx context.Context, id int64) (*model.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.patients[id]
	if !ok {
		return nil, fmt.Errorf("patient: %w", repository.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (r patientRepo) GetByEmail(ctx context.Context, email string) (*model.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.patients {
		if strings.EqualFold(p.Email, email) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("patient: %w", repository.ErrNotFound)
}

func (r patientRepo) Update(ctx context.Context, p *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.patients[p.ID]; !ok {
		return fmt.Errorf("patient: %w", repository.ErrNotFound)
	}
	cp := *p
	r.s.patients[p.ID] = &cp
	return nil
}

func (r patientRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.patients[id]
	if !ok {
		return fmt.Errorf("patient: %w", repository.ErrNotFound)
	}
	p.PasswordHash = hash
	return nil
}

type adminRepo struct{ s *Store }

func (r adminRepo) Create(ctx context.Context, a *model.Admin) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.admins {
		if strings.EqualFold(other.Email, a.Email) || other.Username == a.Username {
			return fmt.Errorf("admin %s: %w", a.Email, repository.ErrDuplicate)
		}
	}
	a.ID = r.s.id()
	a.CreatedAt = time.Now()
	cp := *a
	r.s.admins[a.ID] = &cp
	return nil
}

func (r adminRepo) GetByEmail(ctx context.Context, email string) (*model.Admin, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.admins {
		if strings.EqualFold(a.Email, email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("admin: %w", repository.ErrNotFound)
}

func (r adminRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.admins[id]
	if !ok {
		return fmt.Errorf("admin: %w", repository.ErrNotFound)
	}
	a.PasswordHash = hash
	return nil
}

type availabilityRepo struct{ s *Store }

func (r availabilityRepo) ListByDoctor(ctx context.Context, doctorID int64) ([]*model.AvailabilityRule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.RuleReads++
	out := make([]*model.AvailabilityRule, 0, len(r.s.rules[doctorID]))
	for _, rule := range r.s.rules[doctorID] {
		cp := *rule
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (r availabilityRepo) Replace(ctx context.Context, doctorID int64, rules []*model.AvailabilityRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := make([]*model.AvailabilityRule, 0, len(rules))
	for _, rule := range rules {
		rule.ID = r.s.id()
		rule.DoctorID = doctorID
		cp := *rule
		stored = append(stored, &cp)
	}
	r.s.rules[doctorID] = stored
	return nil
}

type appointmentRepo struct{ s *Store }

func (r appointmentRepo) CreateIfFree(ctx context.Context, a *model.Appointment, window time.Duration, build repository.EventBuilder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	from, to := a.AppointmentTime.Add(-window), a.AppointmentTime.Add(window)
	for _, existing := range r.s.appointments {
		if existing.DoctorID != a.DoctorID || existing.Status != model.AppointmentStatusScheduled {
			continue
		}
		if !existing.AppointmentTime.Before(from) && !existing.AppointmentTime.After(to) {
			return repository.ErrSlotTaken
		}
	}

	a.ID = r.s.id()
	cp := *a
	if err := r.s.record(&cp, build); err != nil {
		return err
	}
	r.s.appointments[a.ID] = &cp
	return nil
}

func (r appointmentRepo) Get(ctx context.Context, id int64) (*model.AppointmentDetail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, fmt.Errorf("appointment: %w", repository.ErrNotFound)
	}
	return r.s.detail(a), nil
}

func (r appointmentRepo) ListScheduledBetween(ctx context.Context, doctorID int64, from, to time.Time) ([]*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Appointment
	for _, a := range r.s.appointments {
		if a.DoctorID == doctorID && a.Status == model.AppointmentStatusScheduled &&
			!a.AppointmentTime.Before(from) && !a.AppointmentTime.After(to) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppointmentTime.Before(out[j].AppointmentTime) })
	return out, nil
}

func (r appointmentRepo) List(ctx context.Context, f *model.AppointmentFilters) ([]*model.AppointmentDetail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.AppointmentDetail
	for _, a := range r.s.appointments {
		if f != nil {
			if f.DoctorID != 0 && a.DoctorID != f.DoctorID ||
				f.PatientID != 0 && a.PatientID != f.PatientID ||
				f.Status != "" && a.Status != f.Status ||
				!f.From.IsZero() && a.AppointmentTime.Before(f.From) ||
				!f.To.IsZero() && a.AppointmentTime.After(f.To) {
				continue
			}
		}
		out = append(out, r.s.detail(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AppointmentTime.Equal(out[j].AppointmentTime) {
			return out[i].AppointmentTime.Before(out[j].AppointmentTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r appointmentRepo) Transition(ctx context.Context, a *model.Appointment, from model.AppointmentStatus, build repository.EventBuilder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.appointments[a.ID]
	if !ok || existing.Status != from {
		return repository.ErrStaleStatus
	}
	cp := *existing
	cp.Status = a.Status
	cp.Notes = a.Notes
	cp.UpdatedAt = a.UpdatedAt
	if err := r.s.record(&cp, build); err != nil {
		return err
	}
	r.s.appointments[a.ID] = &cp
	return nil
}

// Seed stores an appointment as is, bypassing the conflict check.
func (s *Store) Seed(a *model.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	cp := *a
	s.appointments[a.ID] = &cp
}

func (s *Store) detail(a *model.Appointment) *model.AppointmentDetail {
	d := &model.AppointmentDetail{Appointment: *a}
	if doc, ok := s.doctors[a.DoctorID]; ok {
		d.DoctorName, d.DoctorSpecialty, d.DoctorEmail = doc.Name, doc.Specialty, doc.Email
	}
	if p, ok := s.patients[a.PatientID]; ok {
		d.PatientName, d.PatientEmail = p.Name, p.Email
	}
	return d
}

func (s *Store) record(a *model.Appointment, build repository.EventBuilder) error {
	if build == nil {
		return nil
	}
	event, err := build(a)
	if err != nil {
		return err
	}
	if event != nil {
		s.appendEvent(event)
	}
	return nil
}

func (s *Store) appendEvent(e *model.OutboxEvent) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.Status = model.OutboxStatusPending
	s.Events = append(s.Events, e)
}

type prescriptionRepo struct{ s *Store }

func (r prescriptionRepo) Create(ctx context.Context, p *model.Prescription, event *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.prescriptions {
		if existing.AppointmentID == p.AppointmentID {
			return fmt.Errorf("prescription for appointment %d: %w", p.AppointmentID, repository.ErrDuplicate)
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	r.s.prescriptions[p.ID] = &cp
	if event != nil {
		r.s.appendEvent(event)
	}
	return nil
}

func (r prescriptionRepo) Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.prescriptions[id]
	if !ok {
		return nil, fmt.Errorf("prescription: %w", repository.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (r prescriptionRepo) List(ctx context.Context, f *model.PrescriptionFilters) ([]*model.Prescription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Prescription
	for _, p := range r.s.prescriptions {
		if f != nil && (f.PatientID != 0 && p.PatientID != f.PatientID ||
			f.DoctorID != 0 && p.DoctorID != f.DoctorID ||
			f.AppointmentID != 0 && p.AppointmentID != f.AppointmentID) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PrescriptionDate.After(out[j].PrescriptionDate) })
	return out, nil
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) Create(ctx context.Context, e *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.appendEvent(e)
	return nil
}

func (r outboxRepo) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.OutboxEvent
	for _, e := range r.s.Events {
		if e.Status == model.OutboxStatusPending && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r outboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var kept []*model.OutboxEvent
	var n int64
	for _, e := range r.s.Events {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.s.Events = kept
	return n, nil
}
