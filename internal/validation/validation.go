// Package validation checks inbound prediction requests against the model's
// expected input shape.
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/SyedDaiam9101/diagnosis-service/internal/inference"
)

// FeatureCount is the arity the classifier was trained on.
const FeatureCount = 30

// FeaturesField is the request key holding the feature vector.
const FeaturesField = "features"

// Kind classifies a validation failure.
type Kind string

const (
	MalformedBody Kind = "malformed_body"
	MissingField  Kind = "missing_field"
	WrongArity    Kind = "wrong_arity"
	NonNumeric    Kind = "non_numeric"
	NonFinite     Kind = "non_finite"
)

// Error is returned for any request that must not reach the model.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("malformed or incomplete data: %s", e.Msg)
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Validate decodes raw as {"features": [...]} and returns the feature vector.
// Elements may be JSON numbers or numeric strings; anything else is rejected.
func Validate(raw []byte) (inference.Vector, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, newError(MalformedBody, "request body is empty")
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, newError(MalformedBody, "request body must be a JSON object")
	}

	field, ok := body[FeaturesField]
	if !ok {
		return nil, newError(MissingField, "missing %q field", FeaturesField)
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(field, &elems); err != nil || elems == nil {
		return nil, newError(WrongArity, "%q must be an array of %d numbers", FeaturesField, FeatureCount)
	}

	if len(elems) != FeatureCount {
		return nil, newError(WrongArity, "expected %d features, got %d", FeatureCount, len(elems))
	}

	v := make(inference.Vector, FeatureCount)
	for i, elem := range elems {
		x, err := coerce(elem)
		if err != nil {
			return nil, newError(NonNumeric, "feature %d: %v", i, err)
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, newError(NonFinite, "feature %d is not finite", i)
		}
		v[i] = x
	}

	return v, nil
}

func coerce(elem json.RawMessage) (float64, error) {
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(elem))
	dec.UseNumber()

	var val interface{}
	if err := dec.Decode(&val); err != nil {
		return 0, err
	}

	switch t := val.(type) {
	case json.Number:
		n = t
	case string:
		n = json.Number(strings.TrimSpace(t))
	default:
		return 0, fmt.Errorf("value %s is not numeric", string(elem))
	}

	x, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return 0, fmt.Errorf("value %s is not numeric", string(elem))
	}
	return x, nil
}
