package validator

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// Validator validates structs outside of gin request binding.
type Validator interface {
	Validate(interface{}) error
}

type structValidator struct {
	v *validator.Validate
}

// New returns a validator reading `binding` tags with the custom clinic tags
// registered.
func New() Validator {
	v := validator.New()
	v.SetTagName("binding")
	if err := Register(v); err != nil {
		panic(err)
	}
	return &structValidator{v: v}
}

func (s *structValidator) Validate(obj interface{}) error {
	return s.v.Struct(obj)
}

// Register adds the json tag name func and the custom tags to v.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	custom := map[string]validator.Func{
		"clock":              validateClock,
		"role":               validateRole,
		"appointment_status": validateAppointmentStatus,
	}
	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validation: %w", tag, err)
		}
	}
	return nil
}

// RegisterGin installs the custom tags on gin's binding engine.
func RegisterGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected gin validator engine %T", binding.Validator.Engine())
	}
	return Register(v)
}

func validateClock(fl validator.FieldLevel) bool {
	_, err := model.ClockOffset(fl.Field().String())
	return err == nil
}

func validateRole(fl validator.FieldLevel) bool {
	_, err := model.ParseRole(fl.Field().String())
	return err == nil
}

func validateAppointmentStatus(fl validator.FieldLevel) bool {
	return model.AppointmentStatus(fl.Field().String()).Valid()
}
