// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/holomush/accountd/internal/auth"
)

// FieldError is a single violation reported against a request field.
type FieldError struct {
	Field   string
	Message string
}

// Validator validates request payloads against the compiled request schemas.
// It is safe for concurrent use.
type Validator struct {
	schemas map[string]*compiled
	printer *message.Printer
}

// New compiles every request schema.
func New() (*Validator, error) {
	v := &Validator{
		schemas: make(map[string]*compiled, len(requestTypes)),
		printer: message.NewPrinter(language.English),
	}
	for name := range requestTypes {
		c, err := compile(name)
		if err != nil {
			return nil, err
		}
		v.schemas[name] = c
	}
	return v, nil
}

// DecodeJSON validates body against the named schema and, when valid,
// decodes it into dst. An empty body is treated as an empty object.
func (v *Validator) DecodeJSON(name string, body []byte, dst any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	instance, err := jschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return oops.Code(auth.CodeValidation).
			Public("Invalid JSON body").
			With("schema", name).
			Wrap(err)
	}
	if err := v.Validate(name, instance); err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return oops.Code(auth.CodeValidation).
			Public("Invalid JSON body").
			With("schema", name).
			Wrap(err)
	}
	return nil
}

// Validate checks an already decoded JSON instance against the named schema.
func (v *Validator) Validate(name string, instance any) error {
	c, ok := v.schemas[name]
	if !ok {
		return oops.Code("SCHEMA_UNKNOWN").With("schema", name).Errorf("unknown schema %q", name)
	}

	err := c.schema.Validate(instance)
	if err == nil {
		return nil
	}

	var verr *jschema.ValidationError
	if !errors.As(err, &verr) {
		return oops.With("schema", name).Wrap(err)
	}

	fields := v.fieldErrors(verr, c.order)
	msg := formatFieldErrors(fields)
	return oops.Code(auth.CodeValidation).
		Public(msg).
		With("schema", name).
		With("fields", fields).
		Errorf("request failed validation: %s", msg)
}

// fieldErrors flattens the leaves of a validation error tree into
// per-field messages ordered by property declaration.
func (v *Validator) fieldErrors(verr *jschema.ValidationError, order map[string]int) []FieldError {
	var out []FieldError
	var walk func(e *jschema.ValidationError)
	walk = func(e *jschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, cause := range e.Causes {
				walk(cause)
			}
			return
		}
		if req, ok := e.ErrorKind.(*kind.Required); ok {
			for _, missing := range req.Missing {
				out = append(out, FieldError{Field: missing, Message: "Required"})
			}
			return
		}
		out = append(out, FieldError{
			Field:   fieldName(e.InstanceLocation),
			Message: v.describe(e.ErrorKind),
		})
	}
	walk(verr)

	sort.SliceStable(out, func(i, j int) bool {
		oi, iok := order[out[i].Field]
		oj, jok := order[out[j].Field]
		if iok != jok {
			return iok
		}
		if oi != oj {
			return oi < oj
		}
		return out[i].Field < out[j].Field
	})
	return out
}

func fieldName(location []string) string {
	if len(location) == 0 {
		return "body"
	}
	return location[len(location)-1]
}

func (v *Validator) describe(k jschema.ErrorKind) string {
	switch k := k.(type) {
	case *kind.MinLength:
		return v.printer.Sprintf("String must contain at least %d character(s)", k.Want)
	case *kind.MaxLength:
		return v.printer.Sprintf("String must contain at most %d character(s)", k.Want)
	case *kind.Format:
		if k.Want == "email" {
			return "Invalid email address"
		}
		return v.printer.Sprintf("Invalid %s", k.Want)
	case *kind.Type:
		return v.printer.Sprintf("Expected %s, received %s", strings.Join(k.Want, " or "), k.Got)
	default:
		return k.LocalizedString(v.printer)
	}
}
