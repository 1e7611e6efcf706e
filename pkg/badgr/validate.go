package badgr

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"gopkg.in/go-playground/validator.v9"
	entranslations "gopkg.in/go-playground/validator.v9/translations/en"
)

// validate holds the settings and caches for validating request payloads.
var validate *validator.Validate

// translator is a cache of locale and translation information.
var translator *ut.UniversalTranslator

// english translates validation errors into messages.
var english ut.Translator

func init() {
	validate = validator.New()

	enLocale := en.New()
	translator = ut.New(enLocale, enLocale)

	lang, found := translator.GetTranslator("en")
	if !found {
		panic("badgr: english translator not registered")
	}
	if err := entranslations.RegisterDefaultTranslations(validate, lang); err != nil {
		panic(fmt.Sprintf("badgr: registering validation translations: %v", err))
	}
	english = lang

	// Use JSON tag names for errors instead of Go struct field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})
}

// validateStruct checks the validate tags of val and converts failures into
// a *ValidationError keyed by JSON field name.
func validateStruct(val any) error {
	err := validate.Struct(val)
	if err == nil {
		return nil
	}

	var vErrors validator.ValidationErrors
	if !errors.As(err, &vErrors) {
		return err
	}

	fields := make(map[string]string, len(vErrors))
	for _, vError := range vErrors {
		fields[fieldPath(vError.Namespace())] = vError.Translate(english)
	}
	return &ValidationError{Fields: fields}
}

// fieldPath drops the root struct name from a validator namespace,
// e.g. "IssueRequest.recipient.identity" -> "recipient.identity".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// validateEmail checks a single email value.
func validateEmail(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, "required")
	}
	if err := validate.Var(value, "email"); err != nil {
		return invalid(field, "must be a valid email address")
	}
	return nil
}

// validateEntityID rejects ids that are empty or would change the request
// path when interpolated.
func validateEntityID(id string) error {
	switch {
	case id == "":
		return invalid("entityId", "entityId is required for this operation")
	case strings.ContainsAny(id, "/?#% \t\r\n"):
		return invalid("entityId", "malformed entityId")
	}
	return nil
}
