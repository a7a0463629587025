package validation

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func featuresJSON(n int, elem string) string {
	elems := make([]string, n)
	for i := range elems {
		elems[i] = elem
	}
	return fmt.Sprintf(`{"features": [%s]}`, strings.Join(elems, ","))
}

func TestValidate_Valid(t *testing.T) {
	v, err := Validate([]byte(featuresJSON(FeatureCount, "0.0")))
	require.NoError(t, err)
	assert.Len(t, v, FeatureCount)
}

func TestValidate_NumericStringsAreCoerced(t *testing.T) {
	v, err := Validate([]byte(featuresJSON(FeatureCount, `"17.99"`)))
	require.NoError(t, err)
	assert.Equal(t, 17.99, v[0])
}

func TestValidate_ExtraFieldsIgnored(t *testing.T) {
	body := strings.Replace(featuresJSON(FeatureCount, "1"), "{", `{"patient": "x", `, 1)
	_, err := Validate([]byte(body))
	assert.NoError(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind Kind
	}{
		{"empty body", "", MalformedBody},
		{"invalid json", "{", MalformedBody},
		{"array body", "[1, 2]", MalformedBody},
		{"null body", "null", MissingField},
		{"missing features", `{"values": [1]}`, MissingField},
		{"features null", `{"features": null}`, WrongArity},
		{"features object", `{"features": {"a": 1}}`, WrongArity},
		{"too short", featuresJSON(29, "0.0"), WrongArity},
		{"too long", featuresJSON(31, "0.0"), WrongArity},
		{"empty array", `{"features": []}`, WrongArity},
		{"boolean element", featuresJSON(FeatureCount, "true"), NonNumeric},
		{"null element", featuresJSON(FeatureCount, "null"), NonNumeric},
		{"word element", featuresJSON(FeatureCount, `"abc"`), NonNumeric},
		{"nested element", featuresJSON(FeatureCount, "[1]"), NonNumeric},
		{"nan string", featuresJSON(FeatureCount, `"NaN"`), NonFinite},
		{"inf string", featuresJSON(FeatureCount, `"Inf"`), NonFinite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate([]byte(tt.body))
			require.Error(t, err)

			var ve *Error
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.kind, ve.Kind)
			assert.Contains(t, err.Error(), "malformed or incomplete data")
		})
	}
}
