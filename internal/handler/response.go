package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

// ParamID reads a positive integer path parameter.
func ParamID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.BadRequest("invalid "+name, err)
	}
	return id, nil
}

// QueryID reads an optional positive integer query parameter; 0 means absent.
func QueryID(c *gin.Context, name string) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.BadRequest("invalid "+name, err)
	}
	return id, nil
}

// QueryDate reads a YYYY-MM-DD query parameter as midnight in loc. It returns
// nil when the parameter is absent.
func QueryDate(c *gin.Context, name string, loc *time.Location) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	d, err := time.ParseInLocation(model.DateLayout, raw, loc)
	if err != nil {
		return nil, apperrors.BadRequest(name+" must be YYYY-MM-DD", err)
	}
	return &d, nil
}

// Principal returns the authenticated caller or an Unauthorized error.
func Principal(c *gin.Context) (model.Principal, error) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		return model.Principal{}, apperrors.Unauthorized(nil)
	}
	return p, nil
}

// IsSelfOrAdmin reports whether the caller is an admin or the user with the
// given role and id.
func IsSelfOrAdmin(p model.Principal, role model.Role, id int64) bool {
	return p.Role == model.RoleAdmin || (p.Role == role && p.UserID == id)
}
