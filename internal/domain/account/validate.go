package account

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	apperrors "github.com/yanqian/user-accounts/pkg/errors"
)

const forbiddenPasswordFragment = "password"

// patchableFields lists the schema fields a client may change.
var patchableFields = map[string]struct{}{
	"name":     {},
	"email":    {},
	"password": {},
	"age":      {},
}

var errPasswordFragment = errors.New(`must not contain "password"`)

// DecodePatch parses a JSON profile update. Every key must be a patchable
// schema field, otherwise the whole body is rejected.
func DecodePatch(body []byte) (Patch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Patch{}, apperrors.Wrap("invalid_input", "request body must be a JSON object", err)
	}
	var unknown []string
	for key := range raw {
		if _, ok := patchableFields[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Patch{}, apperrors.WithDetails("invalid_input",
			"one or more of the provided properties do not belong to user",
			map[string][]string{"invalidFields": unknown})
	}
	var patch Patch
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&patch); err != nil {
		return Patch{}, apperrors.Wrap("invalid_input", "malformed update payload", err)
	}
	return patch, nil
}

func normalizeRegister(req RegisterRequest) RegisterRequest {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	req.Password = strings.TrimSpace(req.Password)
	return req
}

func normalizePatch(p Patch) Patch {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		p.Name = &name
	}
	if p.Email != nil {
		email := normalizeEmail(*p.Email)
		p.Email = &email
	}
	if p.Password != nil {
		password := strings.TrimSpace(*p.Password)
		p.Password = &password
	}
	return p
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func validateRegister(req RegisterRequest) error {
	err := validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required),
		validation.Field(&req.Email, validation.Required, is.Email),
		validation.Field(&req.Password, validation.Required, validation.RuneLength(6, 100), validation.By(notContainsPassword)),
		validation.Field(&req.Age, validation.Min(0)),
	)
	return asValidationError(err)
}

func validatePatch(p Patch) error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.NilOrNotEmpty),
		validation.Field(&p.Email, validation.NilOrNotEmpty, is.Email),
		validation.Field(&p.Password, validation.NilOrNotEmpty, validation.RuneLength(6, 100), validation.By(notContainsPassword)),
		validation.Field(&p.Age, validation.Min(0)),
	)
	return asValidationError(err)
}

func notContainsPassword(value interface{}) error {
	v, isNil := validation.Indirect(value)
	if isNil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	if strings.Contains(s, forbiddenPasswordFragment) {
		return errPasswordFragment
	}
	return nil
}

func asValidationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]string, len(fieldErrs))
		for field, ferr := range fieldErrs {
			details[field] = ferr.Error()
		}
		return apperrors.WithDetails("invalid_input", "validation failed", details)
	}
	return apperrors.Wrap("invalid_input", "validation failed", err)
}
