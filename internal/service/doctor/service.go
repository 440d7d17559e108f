package doctor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

type Service struct {
	repo   repository.DoctorRepository
	hasher security.PasswordHasher
	logger *logger.Logger
}

func NewService(repo repository.DoctorRepository, hasher security.PasswordHasher, logger *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		logger: logger,
	}
}

func (s *Service) Create(ctx context.Context, req *model.CreateDoctorRequest) (*model.Doctor, error) {
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, apperrors.BadRequest("password is too short", err)
		}
		return nil, apperrors.Internal(err)
	}

	now := time.Now()
	doctor := &model.Doctor{
		Base:            model.Base{CreatedAt: now, UpdatedAt: now},
		Name:            strings.TrimSpace(req.Name),
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash:    hash,
		Specialty:       strings.TrimSpace(req.Specialty),
		Phone:           req.Phone,
		Qualification:   req.Qualification,
		ExperienceYears: req.ExperienceYears,
		ConsultationFee: req.ConsultationFee,
	}

	if err := s.repo.Create(ctx, doctor); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("email already registered", err)
		}
		return nil, apperrors.Internal(err)
	}

	s.logger.WithContext(ctx).Info("Doctor created", "doctor_id", doctor.ID, "specialty", doctor.Specialty)
	return doctor, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*model.Doctor, error) {
	doctor, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("doctor", err)
		}
		return nil, apperrors.Internal(err)
	}
	return doctor, nil
}

// List returns all doctors, or those whose specialty contains the filter.
func (s *Service) List(ctx context.Context, specialty string) ([]*model.Doctor, error) {
	doctors, err := s.repo.List(ctx, strings.TrimSpace(specialty))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if doctors == nil {
		doctors = []*model.Doctor{}
	}
	return doctors, nil
}
