package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVariants_JSONWrappedInProse(t *testing.T) {
	raw := `Here you go: {"standard":"a","datadriven":"b","expert":"c"} thanks`

	res := Variants(raw)

	assert.Equal(t, "a", res.Standard)
	assert.Equal(t, "b", res.DataDriven)
	assert.Equal(t, "c", res.Expert)
}

func TestVariants_BareJSON(t *testing.T) {
	raw := `{"standard":"s","datadriven":"d","expert":"e"}`

	res := Variants(raw)

	assert.Equal(t, Result{Standard: "s", DataDriven: "d", Expert: "e"}, res)
}

func TestVariants_NoBracesFallsBack(t *testing.T) {
	// No JSON at all → every field carries the raw text verbatim.
	raw := "just plain text"

	res := Variants(raw)

	assert.Equal(t, raw, res.Standard)
	assert.Equal(t, raw, res.DataDriven)
	assert.Equal(t, raw, res.Expert)
}

func TestVariants_MalformedJSONFallsBack(t *testing.T) {
	raw := `sure! {"standard": "oops, unterminated`

	res := Variants(raw)

	assert.Equal(t, raw, res.Standard)
	assert.Equal(t, raw, res.DataDriven)
	assert.Equal(t, raw, res.Expert)
}

func TestVariants_MissingKeysDecodeEmpty(t *testing.T) {
	// A decodable object with missing keys is taken as-is; absent
	// variants come back as empty strings, not as the raw text.
	raw := `{"standard":"only one"}`

	res := Variants(raw)

	assert.Equal(t, "only one", res.Standard)
	assert.Empty(t, res.DataDriven)
	assert.Empty(t, res.Expert)
}

func TestVariants_NestedBracesInsideStrings(t *testing.T) {
	// Braces inside JSON string values are fine — first '{' to last '}'
	// still spans a valid object.
	raw := `{"standard":"use {placeholder}","datadriven":"x","expert":"y"}`

	res := Variants(raw)

	assert.Equal(t, "use {placeholder}", res.Standard)
}
