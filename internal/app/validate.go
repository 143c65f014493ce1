package app

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"buildea/api/internal/rbac"
	"buildea/api/internal/store"
)

const dateLayout = "2006-01-02"

var (
	validate   *validator.Validate
	translator ut.Translator
)

const (
	notBlankTag     = "notblank"
	ideaStatusTag   = "idea_status"
	ideaModeTag     = "idea_mode"
	calendarDateTag = "calendar_date"
	roleTag         = "role"
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	english := en.New()
	uni := ut.New(english, english)
	translator, _ = uni.GetTranslator("en")
	_ = entranslations.RegisterDefaultTranslations(validate, translator)

	// Report JSON names so error details match request bodies.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = validate.RegisterValidation(ideaStatusTag, func(fl validator.FieldLevel) bool {
		return store.IdeaStatus(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation(ideaModeTag, func(fl validator.FieldLevel) bool {
		return store.IdeaMode(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation(calendarDateTag, func(fl validator.FieldLevel) bool {
		_, err := time.Parse(dateLayout, fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation(roleTag, func(fl validator.FieldLevel) bool {
		return rbac.Valid(fl.Field().String())
	})

	noop := func(ut.Translator) error { return nil }
	for _, tag := range []string{notBlankTag, ideaStatusTag, ideaModeTag, calendarDateTag, roleTag} {
		_ = validate.RegisterTranslation(tag, translator, noop, translateCustom)
	}
}

func translateCustom(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return fe.Field() + " cannot be blank"
	case ideaStatusTag:
		return fe.Field() + " must be one of idea, checked, preparing, event_planned, rejected, completed"
	case ideaModeTag:
		return fe.Field() + " must be online or offline"
	case calendarDateTag:
		return fe.Field() + " must be a date in YYYY-MM-DD format"
	case roleTag:
		return fe.Field() + " must be member or admin"
	default:
		return fe.Field() + " is invalid"
	}
}

// validationDetails maps each failing field to its translated message.
func validationDetails(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := fe.Field()
		if _, exists := details[field]; exists {
			continue
		}
		details[field] = fe.Translate(translator)
	}
	return details
}

func parseDate(value string) time.Time {
	parsed, _ := time.Parse(dateLayout, value)
	return parsed
}

func formatDate(value time.Time) string {
	return value.UTC().Format(dateLayout)
}
