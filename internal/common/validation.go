package common

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

const maxIDLength = 64

// ValidateStruct runs the `validate` tags of s and wraps the first failure
// in ErrInvalidRequest.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s is %s", ErrInvalidRequest, jsonFieldName(fe), describeTag(fe))
	}
	return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
}

func ValidateUserID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	if err := validate.Var(id, "max="+strconv.Itoa(maxIDLength)+",printascii"); err != nil {
		return fmt.Errorf("%w: malformed user id", ErrInvalidRequest)
	}
	return nil
}

func ValidateConversationID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: conversation_id is required", ErrInvalidRequest)
	}
	if err := validate.Var(id, "max="+strconv.Itoa(maxIDLength)+",printascii"); err != nil {
		return fmt.Errorf("%w: malformed conversation_id", ErrInvalidRequest)
	}
	return nil
}

// ValidateMessageBody rejects blank bodies and bodies longer than maxRunes.
// maxRunes <= 0 disables the length check.
func ValidateMessageBody(body string, maxRunes int) error {
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: message must not be empty", ErrInvalidRequest)
	}
	if maxRunes > 0 {
		if err := validate.Var(body, "max="+strconv.Itoa(maxRunes)); err != nil {
			return fmt.Errorf("%w: message exceeds %d characters", ErrInvalidRequest, maxRunes)
		}
	}
	return nil
}

// field errors report the json name, not the Go one
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func jsonFieldName(fe validator.FieldError) string {
	if fe.Field() == "" {
		return "field"
	}
	return fe.Field()
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "max":
		return "too long"
	default:
		return "invalid"
	}
}
