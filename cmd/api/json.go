package main

import (
	"encoding/json"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var Validate *validator.Validate

var (
	roleKeyRegex = regexp.MustCompile(`^[a-z_]+$`)
	// Letters (any script, diacritics included), spaces, hyphen, period,
	// apostrophe. No digits.
	personNameRegex = regexp.MustCompile(`^[\p{L}\s\-.']+$`)
)

func init() {
	Validate = validator.New(validator.WithRequiredStructEnabled())

	// Violation messages name fields by their JSON name, not the Go one.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Lowercase, underscore-separated role keys, e.g. "admin_role".
	Validate.RegisterValidation("rolekey", func(fl validator.FieldLevel) bool {
		return roleKeyRegex.MatchString(fl.Field().String())
	})

	Validate.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return personNameRegex.MatchString(fl.Field().String())
	})

	// No duplicate entries in a list of strings (role keys).
	Validate.RegisterValidation("uniquelist", func(fl validator.FieldLevel) bool {
		field := fl.Field()
		if field.Kind() != reflect.Slice {
			return false
		}
		seen := make(map[string]struct{}, field.Len())
		for i := 0; i < field.Len(); i++ {
			v := field.Index(i).String()
			if _, ok := seen[v]; ok {
				return false
			}
			seen[v] = struct{}{}
		}
		return true
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

func readJSON(w http.ResponseWriter, r *http.Request, data any) error {
	maxBytes := 1_048_576 // 1mb
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(data)
}
