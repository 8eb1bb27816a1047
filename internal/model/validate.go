package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validate *govalidator.Validate
	trans    ut.Translator
)

func init() {
	validate = govalidator.New(govalidator.WithRequiredStructEnabled())
	validate.RegisterStructValidation(examRequestStructLevel, ExamRequest{})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, trans)
}

// examRequestStructLevel enforces the cross-field question cap: the requested
// total must not exceed the per-type maximum.
func examRequestStructLevel(sl govalidator.StructLevel) {
	req := sl.Current().Interface().(ExamRequest)
	if limit := MaxQuestionsFor(req.QuestionType); req.TotalQuestions > limit {
		sl.ReportError(req.TotalQuestions, "totalQuestions", "TotalQuestions", "questioncap", fmt.Sprint(limit))
	}
}

// Validate checks an ExamRequest against the client-side rules: non-empty
// topics, duration within 1..60 minutes, and the per-type question caps.
// Returns a single human-readable error listing every violation.
func (r ExamRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var ve govalidator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}

	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		if fe.Tag() == "questioncap" {
			msgs = append(msgs, fmt.Sprintf("totalQuestions must be at most %s for question type %s", fe.Param(), r.QuestionType))
			continue
		}
		msgs = append(msgs, fe.Translate(trans))
	}
	return errors.New(strings.Join(msgs, "; "))
}
