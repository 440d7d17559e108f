package doctor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

func TestService_CreateAndList(t *testing.T) {
	store := memory.NewStore()
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	svc := NewService(store.Doctors(), hasher, logger.Nop())
	ctx := context.Background()

	doc, err := svc.Create(ctx, &model.CreateDoctorRequest{
		Name:      "Dr. Ada",
		Email:     "Ada@Clinic.test",
		Password:  "doctor-pass",
		Specialty: "Cardiology",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@clinic.test", doc.Email)
	assert.NoError(t, hasher.Verify(doc.PasswordHash, "doctor-pass"))

	_, err = svc.Create(ctx, &model.CreateDoctorRequest{Name: "Dup", Email: "ada@clinic.test", Password: "doctor-pass", Specialty: "X"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))

	_, err = svc.Create(ctx, &model.CreateDoctorRequest{Name: "Short", Email: "s@clinic.test", Password: "short", Specialty: "X"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))

	list, err := svc.List(ctx, "CARDIO")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = svc.List(ctx, "neurology")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	_, err = svc.Get(ctx, 404)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}
