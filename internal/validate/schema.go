// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package validate checks inbound request payloads against JSON Schemas
// reflected from the auth request types.
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/holomush/accountd/internal/auth"
)

// Schema names accepted by Validator.
const (
	Register            = "register"
	Login               = "login"
	Update              = "update"
	AccountNumberQuery  = "account-number-query"
	IdentityNumberQuery = "identity-number-query"
)

type requestType struct {
	title string
	value any
}

var requestTypes = map[string]requestType{
	Register:            {"Register request", &auth.RegisterInput{}},
	Login:               {"Login request", &auth.LoginInput{}},
	Update:              {"Update request", &auth.UpdateInput{}},
	AccountNumberQuery:  {"Lookup by account number", &auth.AccountNumberQuery{}},
	IdentityNumberQuery: {"Lookup by identity number", &auth.IdentityNumberQuery{}},
}

// Names lists the known schema names in sorted order.
func Names() []string {
	names := make([]string, 0, len(requestTypes))
	for name := range requestTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SchemaID returns the $id of the named schema.
func SchemaID(name string) string {
	return "https://holomush.dev/schemas/accountd/" + name + ".schema.json"
}

func reflectSchema(name string) (*jsonschema.Schema, error) {
	rt, ok := requestTypes[name]
	if !ok {
		return nil, oops.Code("SCHEMA_UNKNOWN").With("schema", name).Errorf("unknown schema %q", name)
	}
	r := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	schema := r.Reflect(rt.value)
	schema.ID = jsonschema.ID(SchemaID(name))
	schema.Title = rt.title
	return schema, nil
}

// GenerateSchema returns the indented JSON Schema document for name.
func GenerateSchema(name string) ([]byte, error) {
	schema, err := reflectSchema(name)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.With("schema", name).Wrapf(err, "marshal schema")
	}
	return data, nil
}

// compiled is one schema ready for validation plus its property order,
// used to report violations in declaration order.
type compiled struct {
	schema *jschema.Schema
	order  map[string]int
}

func compile(name string) (*compiled, error) {
	reflected, err := reflectSchema(name)
	if err != nil {
		return nil, err
	}

	order := make(map[string]int)
	i := 0
	for pair := reflected.Properties.Oldest(); pair != nil; pair = pair.Next() {
		order[pair.Key] = i
		i++
	}

	raw, err := json.Marshal(reflected)
	if err != nil {
		return nil, oops.With("schema", name).Wrapf(err, "marshal schema")
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, oops.With("schema", name).Wrapf(err, "parse schema JSON")
	}

	c := jschema.NewCompiler()
	c.AssertFormat()
	url := SchemaID(name)
	if err := c.AddResource(url, doc); err != nil {
		return nil, oops.With("schema", name).Wrapf(err, "add schema resource")
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, oops.With("schema", name).Wrapf(err, "compile schema")
	}
	return &compiled{schema: sch, order: order}, nil
}

func formatFieldErrors(errs []FieldError) string {
	var buf bytes.Buffer
	for i, fe := range errs {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%s %s", fe.Field, fe.Message)
	}
	return buf.String()
}
