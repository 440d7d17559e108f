package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/clinic-api/internal/email"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

// Emitter records domain events on the outbox.
type Emitter interface {
	Emit(ctx context.Context, eventType string, payload interface{}) error
}

type Service struct {
	patients repository.PatientRepository
	doctors  repository.DoctorRepository
	admins   repository.AdminRepository
	tokens   auth.TokenService
	hasher   security.PasswordHasher
	events   Emitter
	emailSvc email.Service
	logger   *logger.Logger
	now      func() time.Time
}

func NewService(
	patients repository.PatientRepository,
	doctors repository.DoctorRepository,
	admins repository.AdminRepository,
	tokens auth.TokenService,
	hasher security.PasswordHasher,
	events Emitter,
	emailSvc email.Service,
	logger *logger.Logger,
) *Service {
	return &Service{
		patients: patients,
		doctors:  doctors,
		admins:   admins,
		tokens:   tokens,
		hasher:   hasher,
		events:   events,
		emailSvc: emailSvc,
		logger:   logger,
		now:      time.Now,
	}
}

// account is the part of a doctor, patient or admin that authentication needs.
type account struct {
	id           int64
	email        string
	passwordHash string
	role         model.Role
}

// Login checks the password of the account of the given role and issues a
// session token for it.
func (s *Service) Login(ctx context.Context, role model.Role, email, password string) (*model.TokenResponse, error) {
	acc, err := s.findAccount(ctx, role, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Unauthorized(model.ErrInvalidCredentials)
		}
		return nil, apperrors.Internal(err)
	}

	if err := s.hasher.Verify(acc.passwordHash, password); err != nil {
		s.logger.WithContext(ctx).Warn("Failed login attempt", "email", acc.email, "role", role)
		return nil, apperrors.Unauthorized(model.ErrInvalidCredentials)
	}

	return s.issue(acc)
}

// Register creates a patient account. Doctors and admins are provisioned by admins.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.Patient, error) {
	emailAddr := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := s.patients.GetByEmail(ctx, emailAddr); err == nil {
		return nil, apperrors.Conflict("email already registered", nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Internal(err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, apperrors.BadRequest("password is too short", err)
		}
		return nil, apperrors.Internal(err)
	}

	now := s.now()
	patient := &model.Patient{
		Base:         model.Base{CreatedAt: now, UpdatedAt: now},
		Name:         strings.TrimSpace(req.Name),
		Email:        emailAddr,
		PasswordHash: hash,
		Phone:        req.Phone,
		Address:      req.Address,
	}
	if req.DateOfBirth != "" {
		dob, err := time.Parse(model.DateLayout, req.DateOfBirth)
		if err != nil {
			return nil, apperrors.BadRequest("dateOfBirth must be YYYY-MM-DD", err)
		}
		patient.DateOfBirth = &dob
	}

	if err := s.patients.Create(ctx, patient); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("email already registered", err)
		}
		return nil, apperrors.Internal(err)
	}

	payload := event.PatientPayload{PatientID: patient.ID, Name: patient.Name, Email: patient.Email}
	if err := s.events.Emit(ctx, model.EventPatientRegistered, payload); err != nil {
		s.logger.WithContext(ctx).Error(err, "Failed to record registration event", "patient_id", patient.ID)
	}

	s.logger.WithContext(ctx).Info("Patient registered", "patient_id", patient.ID)
	return patient, nil
}

// ProvisionAdmin creates an admin account. Admins cannot register themselves.
func (s *Service) ProvisionAdmin(ctx context.Context, username, emailAddr, password string) (*model.Admin, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperrors.BadRequest("username is required", nil)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, apperrors.BadRequest("password is too short", err)
		}
		return nil, apperrors.Internal(err)
	}

	admin := &model.Admin{
		Username:     username,
		Email:        strings.ToLower(strings.TrimSpace(emailAddr)),
		PasswordHash: hash,
	}
	if err := s.admins.Create(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("admin already exists", err)
		}
		return nil, apperrors.Internal(err)
	}

	s.logger.WithContext(ctx).Info("Admin provisioned", "admin_id", admin.ID)
	return admin, nil
}

// ForgotPassword mails a reset token when an account with the email exists.
// The outcome is the same either way so callers cannot probe for accounts.
func (s *Service) ForgotPassword(ctx context.Context, emailAddr string) error {
	acc, err := s.firstAccount(ctx, emailAddr)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.WithContext(ctx).Error(err, "Account lookup failed during password reset")
		}
		return nil
	}

	token, err := s.tokens.IssuePasswordReset(acc.email)
	if err != nil {
		return apperrors.Internal(err)
	}

	if err := s.emailSvc.SendPasswordReset(ctx, acc.email, token); err != nil {
		s.logger.WithContext(ctx).Error(err, "Failed to send password reset email", "role", acc.role)
	}
	return nil
}

// ResetPassword sets a new password on the account named by a reset token.
// When the email is shared across roles, the first match in patient, doctor,
// admin order is updated.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if !s.tokens.ValidatePasswordReset(token) {
		return apperrors.InvalidToken(nil)
	}
	emailAddr, err := s.tokens.PasswordResetEmail(token)
	if err != nil {
		return apperrors.InvalidToken(err)
	}

	acc, err := s.firstAccount(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("account", err)
		}
		return apperrors.Internal(err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return apperrors.BadRequest("password is too short", err)
		}
		return apperrors.Internal(err)
	}

	switch acc.role {
	case model.RolePatient:
		err = s.patients.UpdatePassword(ctx, acc.id, hash)
	case model.RoleDoctor:
		err = s.doctors.UpdatePassword(ctx, acc.id, hash)
	case model.RoleAdmin:
		err = s.admins.UpdatePassword(ctx, acc.id, hash)
	}
	if err != nil {
		return apperrors.Internal(fmt.Errorf("failed to update password: %w", err))
	}

	s.logger.WithContext(ctx).Info("Password reset", "role", acc.role, "user_id", acc.id)
	return nil
}

// Refresh exchanges a valid session token for a new one with a fresh expiry.
func (s *Service) Refresh(ctx context.Context, token string) (*model.TokenResponse, error) {
	claims, err := s.tokens.Decode(token)
	if err != nil {
		return nil, apperrors.InvalidToken(err)
	}
	refreshed, err := s.tokens.Refresh(token)
	if err != nil {
		return nil, apperrors.InvalidToken(err)
	}
	return &model.TokenResponse{
		Token:  refreshed,
		Role:   claims.Role,
		UserID: claims.UserID,
		Email:  claims.Email,
	}, nil
}

func (s *Service) issue(acc *account) (*model.TokenResponse, error) {
	token, err := s.tokens.Issue(acc.email, acc.role, acc.id)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &model.TokenResponse{
		Token:  token,
		Role:   acc.role,
		UserID: acc.id,
		Email:  acc.email,
	}, nil
}

func (s *Service) findAccount(ctx context.Context, role model.Role, emailAddr string) (*account, error) {
	switch role {
	case model.RolePatient:
		p, err := s.patients.GetByEmail(ctx, emailAddr)
		if err != nil {
			return nil, err
		}
		return &account{id: p.ID, email: p.Email, passwordHash: p.PasswordHash, role: role}, nil
	case model.RoleDoctor:
		d, err := s.doctors.GetByEmail(ctx, emailAddr)
		if err != nil {
			return nil, err
		}
		return &account{id: d.ID, email: d.Email, passwordHash: d.PasswordHash, role: role}, nil
	case model.RoleAdmin:
		a, err := s.admins.GetByEmail(ctx, emailAddr)
		if err != nil {
			return nil, err
		}
		return &account{id: a.ID, email: a.Email, passwordHash: a.PasswordHash, role: role}, nil
	}
	return nil, fmt.Errorf("role %q: %w", role, repository.ErrNotFound)
}

func (s *Service) firstAccount(ctx context.Context, emailAddr string) (*account, error) {
	for _, role := range []model.Role{model.RolePatient, model.RoleDoctor, model.RoleAdmin} {
		acc, err := s.findAccount(ctx, role, emailAddr)
		if err == nil {
			return acc, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("account %s: %w", emailAddr, repository.ErrNotFound)
}
