package slot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// ScheduleReader is the part of the appointment store the engine reads.
type ScheduleReader interface {
	ListScheduledBetween(ctx context.Context, doctorID int64, from, to time.Time) ([]*model.Appointment, error)
}

type Config struct {
	// RuleCacheTTL bounds how long weekly rules are served from memory.
	RuleCacheTTL time.Duration
	// Location is the clinic's time zone; dates and rule times are read in it.
	Location *time.Location
}

// Service computes free appointment slots from weekly availability rules.
type Service struct {
	rules    repository.AvailabilityRepository
	schedule ScheduleReader
	doctors  repository.DoctorRepository
	cache    *cache.Cache
	loc      *time.Location
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewService(
	rules repository.AvailabilityRepository,
	schedule ScheduleReader,
	doctors repository.DoctorRepository,
	cfg Config,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	clock func() time.Time,
) *Service {
	if cfg.RuleCacheTTL <= 0 {
		cfg.RuleCacheTTL = 5 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		rules:    rules,
		schedule: schedule,
		doctors:  doctors,
		cache:    cache.New(cfg.RuleCacheTTL, 2*cfg.RuleCacheTTL),
		loc:      cfg.Location,
		logger:   logger,
		metrics:  metrics,
		now:      clock,
	}
}

// Location returns the clinic time zone.
func (s *Service) Location() *time.Location {
	return s.loc
}

// AvailableSlots returns the doctor's free slot start times on date as HH:MM,
// in chronological order within each rule. Lookup failures are logged and
// yield an empty result.
func (s *Service) AvailableSlots(ctx context.Context, doctorID int64, date time.Time, band Band) []string {
	start := time.Now()
	defer func() { s.metrics.SlotQueryLatency.Observe(time.Since(start).Seconds()) }()

	slots := []string{}
	day, dayEnd := model.DayBounds(date, s.loc)

	rules, err := s.activeRules(ctx, doctorID, day.Weekday())
	if err != nil {
		s.logger.Error(err, "Failed to load availability rules", "doctor_id", doctorID)
		return slots
	}
	if len(rules) == 0 {
		return slots
	}

	booked, err := s.schedule.ListScheduledBetween(ctx, doctorID, day, dayEnd)
	if err != nil {
		s.logger.Error(err, "Failed to load scheduled appointments", "doctor_id", doctorID)
		return slots
	}
	taken := make(map[int64]struct{}, len(booked))
	for _, a := range booked {
		taken[a.AppointmentTime.UnixNano()] = struct{}{}
	}

	now := s.now()
	for _, rule := range rules {
		candidates, err := rule.Slots(day)
		if err != nil {
			s.logger.Error(err, "Skipping malformed availability rule", "rule_id", rule.ID)
			continue
		}
		for _, c := range candidates {
			if _, ok := taken[c.UnixNano()]; ok {
				continue
			}
			if !c.After(now) || !band.Contains(c) {
				continue
			}
			slots = append(slots, c.Format(model.ClockLayout))
		}
	}
	return slots
}

// DoctorAvailability lists every doctor matching specialty that has at least
// one free slot on date.
func (s *Service) DoctorAvailability(ctx context.Context, date time.Time, specialty string, band Band) ([]*model.DoctorAvailability, error) {
	doctors, err := s.doctors.List(ctx, specialty)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}

	day := s.midnight(date)
	result := []*model.DoctorAvailability{}
	for _, d := range doctors {
		slots := s.AvailableSlots(ctx, d.ID, day, band)
		if len(slots) == 0 {
			continue
		}
		result = append(result, &model.DoctorAvailability{
			DoctorID:        d.ID,
			DoctorName:      d.Name,
			Specialty:       d.Specialty,
			Date:            day.Format(model.DateLayout),
			AvailableSlots:  slots,
			ConsultationFee: d.ConsultationFee,
		})
	}
	return result, nil
}

// IsOnSlot reports whether t is the start of a slot of one of the doctor's
// active rules for that weekday.
func (s *Service) IsOnSlot(ctx context.Context, doctorID int64, t time.Time) (bool, error) {
	local := t.In(s.loc)
	day := s.midnight(local)

	rules, err := s.activeRules(ctx, doctorID, day.Weekday())
	if err != nil {
		return false, err
	}
	for _, rule := range rules {
		candidates, err := rule.Slots(day)
		if err != nil {
			continue
		}
		for _, c := range candidates {
			if c.Equal(t) {
				return true, nil
			}
		}
	}
	return false, nil
}

// Rules returns all of the doctor's weekly rules.
func (s *Service) Rules(ctx context.Context, doctorID int64) ([]*model.AvailabilityRule, error) {
	return s.loadRules(ctx, doctorID)
}

// ReplaceRules swaps the doctor's rule set and drops the cached copy.
func (s *Service) ReplaceRules(ctx context.Context, doctorID int64, inputs []model.AvailabilityRuleInput) ([]*model.AvailabilityRule, error) {
	if _, err := s.doctors.Get(ctx, doctorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("doctor", err)
		}
		return nil, apperrors.Internal(err)
	}

	rules := make([]*model.AvailabilityRule, 0, len(inputs))
	for i, in := range inputs {
		rule, err := ruleFromInput(doctorID, in)
		if err != nil {
			return nil, apperrors.BadRequest(fmt.Sprintf("rule %d: %v", i, err), nil)
		}
		rules = append(rules, rule)
	}

	if err := s.rules.Replace(ctx, doctorID, rules); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to replace availability rules: %w", err))
	}
	s.Invalidate(doctorID)
	s.logger.Info("Availability rules replaced", "doctor_id", doctorID, "count", len(rules))
	return rules, nil
}

func ruleFromInput(doctorID int64, in model.AvailabilityRuleInput) (*model.AvailabilityRule, error) {
	if in.DayOfWeek == nil || *in.DayOfWeek < 0 || *in.DayOfWeek > 6 {
		return nil, fmt.Errorf("day of week must be between 0 and 6")
	}
	rule := &model.AvailabilityRule{
		DoctorID:  doctorID,
		DayOfWeek: time.Weekday(*in.DayOfWeek),
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Active:    in.Active == nil || *in.Active,
	}
	start, end, err := rule.Bounds()
	if err != nil {
		return nil, err
	}
	if start >= end {
		return nil, fmt.Errorf("start time %s must be before end time %s", in.StartTime, in.EndTime)
	}
	return rule, nil
}

// Invalidate forgets the cached rules of a doctor.
func (s *Service) Invalidate(doctorID int64) {
	s.cache.Delete(cacheKey(doctorID))
}

func (s *Service) activeRules(ctx context.Context, doctorID int64, day time.Weekday) ([]*model.AvailabilityRule, error) {
	all, err := s.loadRules(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	var matching []*model.AvailabilityRule
	for _, r := range all {
		if r.Active && r.DayOfWeek == day {
			matching = append(matching, r)
		}
	}
	sort.SliceStable(matching, func(i, j int) bool {
		return matching[i].StartTime < matching[j].StartTime
	})
	return matching, nil
}

func (s *Service) loadRules(ctx context.Context, doctorID int64) ([]*model.AvailabilityRule, error) {
	key := cacheKey(doctorID)
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.CacheLookups.WithLabelValues("availability_rules", "hit").Inc()
		return cached.([]*model.AvailabilityRule), nil
	}
	s.metrics.CacheLookups.WithLabelValues("availability_rules", "miss").Inc()

	rules, err := s.rules.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, rules)
	return rules, nil
}

func (s *Service) midnight(t time.Time) time.Time {
	day, _ := model.DayBounds(t, s.loc)
	return day
}

func cacheKey(doctorID int64) string {
	return "rules:" + strconv.FormatInt(doctorID, 10)
}
