package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// bodyValidator holds one compiled schema per request type.
type bodyValidator struct {
	schemas map[reflect.Type]*jschema.Schema
}

func newBodyValidator(requests ...any) (*bodyValidator, error) {
	v := &bodyValidator{schemas: make(map[reflect.Type]*jschema.Schema, len(requests))}
	for _, req := range requests {
		sch, err := compileSchema(req)
		if err != nil {
			return nil, err
		}
		v.schemas[reflect.TypeOf(req)] = sch
	}
	return v, nil
}

// generateSchema reflects the JSON Schema document for req, which must be a
// pointer to a struct. Every field without omitempty is required and unknown
// properties are rejected.
func generateSchema(req any) ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(req)
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

func compileSchema(req any) (*jschema.Schema, error) {
	data, err := generateSchema(req)
	if err != nil {
		return nil, err
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema JSON: %w", err)
	}

	name := reflect.TypeOf(req).Elem().Name() + ".json"
	c := jschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	sch, err := c.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	return sch, nil
}

// badBody describes why a request body was rejected.
type badBody struct {
	message string
	details []string
}

func (b *badBody) Error() string { return b.message }

// validate parses body and checks it against the schema registered for
// dst's type. It does not decode into dst.
func (v *bodyValidator) validate(body []byte, dst any) error {
	sch, ok := v.schemas[reflect.TypeOf(dst)]
	if !ok {
		return fmt.Errorf("no schema registered for %T", dst)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return &badBody{message: "request body is required"}
	}

	inst, err := jschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return &badBody{message: "request body is not valid JSON"}
	}
	if err := sch.Validate(inst); err != nil {
		var ve *jschema.ValidationError
		if !errors.As(err, &ve) {
			return &badBody{message: "request body failed validation"}
		}
		return &badBody{message: "request body failed validation", details: validationDetails(ve)}
	}
	return nil
}

// validationDetails flattens a validation error into "location: reason"
// strings, sorted for stable output.
func validationDetails(ve *jschema.ValidationError) []string {
	var details []string
	out := ve.BasicOutput()
	if out == nil {
		return nil
	}
	for _, unit := range out.Errors {
		if unit.Error == nil {
			continue
		}
		loc := unit.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		details = append(details, loc+": "+unit.Error.String())
	}
	sort.Strings(details)
	return details
}
