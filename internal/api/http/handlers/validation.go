package handlers

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/vendor-desk/pkg/util/errorutil"
)

var validate = validator.New()

func init() {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})
}

// parseBody decodes the JSON body into v and validates it.
func parseBody(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return validateStruct(v)
}

// parseQuery decodes query parameters into v and validates it.
func parseQuery(c *fiber.Ctx, v any) error {
	if err := c.QueryParser(v); err != nil {
		return apperrors.NewValidationError("invalid query", nil)
	}
	return validateStruct(v)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return apperrors.NewValidationError("invalid "+verrs[0].Field(), map[string]any{
			"field": verrs[0].Field(),
			"rule":  verrs[0].Tag(),
		})
	}
	return apperrors.NewValidationError("invalid payload", nil)
}
