package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/charlesng35/bookshelf/pkg/errors"
	"github.com/charlesng35/bookshelf/pkg/response"
	appValidator "github.com/charlesng35/bookshelf/pkg/validator"
)

// MaxListLimit caps the page size accepted over HTTP.
const MaxListLimit = 100

var errNotInteger = errors.New("not an integer")

// bindAndValidate binds the JSON payload into dest and runs struct validation rules.
// describe maps rule failures to the client-facing error. When binding or validation
// fails, an error response is written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T, describe func(appValidator.ValidationErrors) *apperrors.AppError) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, apperrors.NewBadRequest("Invalid JSON payload"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		var ve appValidator.ValidationErrors
		if errors.As(err, &ve) && describe != nil {
			if appErr := describe(ve); appErr != nil {
				response.Error(c, appErr)
				return false
			}
		}
		response.Error(c, apperrors.NewBadRequest(err.Error()))
		return false
	}

	return true
}

// parseIntQuery returns fallback when the parameter is absent and errNotInteger when
// it is present but malformed.
func parseIntQuery(c *gin.Context, key string, fallback int) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, errNotInteger
	}
	return parsed, nil
}

// isValidResourceID accepts canonical RFC 4122 UUIDs of versions 1 to 5.
func isValidResourceID(value string) bool {
	if len(value) != 36 {
		return false
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return false
	}
	if id.Variant() != uuid.RFC4122 {
		return false
	}
	return id.Version() >= 1 && id.Version() <= 5
}
