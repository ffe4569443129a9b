package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"problem_market/internal/common"
	"problem_market/internal/domain/model"

	"github.com/go-playground/validator/v10"
)

// Words and phrases that describe a solution rather than a problem.
var (
	titleBlockedWords   = []string{"app", "website", "platform", "system", "build", "create", "make", "develop"}
	descBlockedPhrases  = []string{"i want an app", "build me", "create a website", "make an app", "develop a"}
	outcomeBlockedWords = []string{"ai", "app", "website", "platform", "software", "application", "chatbot", "bot"}

	titleBlockedRe   = wholeWords(titleBlockedWords)
	outcomeBlockedRe = wholeWords(outcomeBlockedWords)
	githubURLRe      = regexp.MustCompile(`^https?://(www\.)?github\.com/.+`)
)

func wholeWords(words []string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(` + strings.Join(words, "|") + `)\b`)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	register := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register %s: %v", tag, err))
		}
	}

	register("problem_title", func(fl validator.FieldLevel) bool {
		return !titleBlockedRe.MatchString(fl.Field().String())
	})
	register("problem_description", func(fl validator.FieldLevel) bool {
		d := strings.ToLower(fl.Field().String())
		for _, phrase := range descBlockedPhrases {
			if strings.Contains(d, phrase) {
				return false
			}
		}
		return true
	})
	register("desired_outcome", func(fl validator.FieldLevel) bool {
		return !outcomeBlockedRe.MatchString(fl.Field().String())
	})
	register("problem_category", func(fl validator.FieldLevel) bool {
		return model.ValidCategory(model.ProblemCategory(fl.Field().String()))
	})
	register("pain_level", func(fl validator.FieldLevel) bool {
		return model.ValidPainLevel(model.PainLevel(fl.Field().String()))
	})
	register("frequency", func(fl validator.FieldLevel) bool {
		return model.ValidFrequency(model.Frequency(fl.Field().String()))
	})
	register("audience", func(fl validator.FieldLevel) bool {
		return model.ValidAudience(model.Audience(fl.Field().String()))
	})
	register("github_url", func(fl validator.FieldLevel) bool {
		return githubURLRe.MatchString(fl.Field().String())
	})
	return v
}

// validateStruct runs the struct tags and converts failures into a
// common.ValidationError with one readable message per field.
func validateStruct(in interface{}) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return common.Errorf("validate input: %w", err)
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fieldMessage(fe))
	}
	return common.NewValidationError(details...)
}

func fieldMessage(fe validator.FieldError) string {
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_if":
		return "Please explain why existing solutions are not good enough"
	case "min":
		if isSliceKind(fe) {
			return fmt.Sprintf("%s must have at least %s item(s)", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		if isSliceKind(fe) {
			return fmt.Sprintf("%s must have at most %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be less than %s characters", field, fe.Param())
	case "problem_title":
		return "Title should describe a problem, not a solution. Avoid words like app, website, build, create"
	case "problem_description":
		return "Description should explain the problem, not suggest a solution"
	case "desired_outcome":
		return "Desired outcome should describe a result, not a solution. Avoid words like AI, app, website, platform"
	case "problem_category", "pain_level", "frequency", "audience":
		return fmt.Sprintf("%s has an unsupported value %q", field, fe.Value())
	case "github_url":
		return "Please provide a valid GitHub URL"
	case "http_url":
		return field + " must be a valid URL"
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

func isSliceKind(fe validator.FieldError) bool {
	k := fe.Kind().String()
	return k == "slice" || k == "array"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
