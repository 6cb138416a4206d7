package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/penshort/shortlytics/internal/apperror"
	"github.com/penshort/shortlytics/internal/service"
)

// Client messages for rejected input.
const (
	MsgInvalidBody   = "Invalid request body"
	MsgInvalidAlias  = "Alias must be between 3-20 characters and can contain letters, numbers, hyphens, and underscores"
	MsgTopicTooShort = "Topic must be at least 3 characters long"
	MsgTopicTooLong  = "Topic cannot be longer than 100 characters"
)

// newValidator returns a validator with the "alias" tag registered.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("alias", func(fl validator.FieldLevel) bool {
		return service.AliasPattern.MatchString(fl.Field().String())
	})
	return v
}

// validateAlias checks an alias path parameter.
func validateAlias(v *validator.Validate, alias string) error {
	if err := v.Var(alias, "required,alias"); err != nil {
		return apperror.Validation(MsgInvalidAlias)
	}
	return nil
}

// validateTopic checks a topic path parameter.
func validateTopic(v *validator.Validate, topic string) error {
	err := v.Var(topic, "required,min=3,max=100")
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "max" {
		return apperror.Validation(MsgTopicTooLong)
	}
	return apperror.Validation(MsgTopicTooShort)
}

// shortenRequestError turns the first failed rule of a shorten request into
// a client message.
func shortenRequestError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperror.Validation(MsgInvalidBody)
	}

	fe := verrs[0]
	switch fe.Field() {
	case "LongURL":
		switch fe.Tag() {
		case "required":
			return apperror.Validation(service.MsgLongURLRequired)
		case "max":
			return apperror.Validation(service.MsgLongURLTooLong)
		default:
			return apperror.Validation(service.MsgInvalidLongURL)
		}
	case "CustomAlias":
		return apperror.Validation(service.MsgInvalidCustomAlias)
	case "Topic":
		if fe.Tag() == "max" {
			return apperror.Validation(MsgTopicTooLong)
		}
		return apperror.Validation(MsgTopicTooShort)
	default:
		return apperror.Validation(MsgInvalidBody)
	}
}
