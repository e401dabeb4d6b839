package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMarshalCanonical_SortedKeys tests deterministic key ordering.
func TestMarshalCanonical_SortedKeys(t *testing.T) {
	data, err := MarshalCanonical(map[string]any{
		"zeta":  "z",
		"alpha": "a",
		"mid":   int64(3),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":"a","mid":3,"zeta":"z"}`, string(data))
}

// TestMarshalCanonical_NoHTMLEscaping tests that <, > and & pass through.
func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	data, err := MarshalCanonical("a<b>&c")
	require.NoError(t, err)
	assert.Equal(t, `"a<b>&c"`, string(data))
}

// TestMarshalCanonical_RejectsFloats tests the float prohibition.
func TestMarshalCanonical_RejectsFloats(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"x": 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")
}

// TestMarshalCanonical_RejectsNull tests the null prohibition.
func TestMarshalCanonical_RejectsNull(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"x": nil})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null is forbidden")
}

// TestMarshalCanonical_NestedParams tests Params nested inside values.
func TestMarshalCanonical_NestedParams(t *testing.T) {
	data, err := MarshalCanonical(Params{
		"credential": map[string]any{"kind": "plain_secret", "secret": "xy"},
		"name":       "a",
	})
	require.NoError(t, err)
	assert.Equal(t,
		`{"credential":{"kind":"plain_secret","secret":"xy"},"name":"a"}`,
		string(data))
}

// TestSequenceHash_StableAndDistinct tests that equal sequences hash
// equal and differing sequences hash differently.
func TestSequenceHash_StableAndDistinct(t *testing.T) {
	steps := []Step{
		{Index: 1, Rule: "create_principal", Params: Params{"name": "a"}, Outcome: "ok"},
		{Index: 2, Rule: "drop_principal", Params: Params{"name": "a"}, Outcome: "ok"},
	}

	h1, err := SequenceHash(steps)
	require.NoError(t, err)
	h2, err := SequenceHash(CloneSteps(steps))
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	steps[1].Params["name"] = "b"
	h3, err := SequenceHash(steps)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

// TestParams_RoundTrip tests encode/decode preserving integer types.
func TestParams_RoundTrip(t *testing.T) {
	p := Params{
		"name":  "ab",
		"count": int64(7),
		"flag":  true,
		"credential": map[string]any{
			"kind":   "plain_secret",
			"secret": "s3cr",
		},
	}

	data, err := EncodeParams(p)
	require.NoError(t, err)

	got, err := DecodeParams(data)
	require.NoError(t, err)
	assert.Equal(t, "ab", got["name"])
	assert.Equal(t, int64(7), got["count"])
	assert.Equal(t, true, got["flag"])
	cred, ok := got["credential"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "plain_secret", cred["kind"])

	// Round-tripped params must re-encode to identical bytes.
	again, err := EncodeParams(got)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

// TestCloneSteps_Isolated tests that mutating a clone leaves the
// original untouched.
func TestCloneSteps_Isolated(t *testing.T) {
	orig := []Step{
		{Index: 1, Rule: "r", Params: Params{"name": "a", "nested": map[string]any{"k": "v"}}},
	}
	cl := CloneSteps(orig)
	cl[0].Params["name"] = "mutated"
	cl[0].Params["nested"].(map[string]any)["k"] = "mutated"

	assert.Equal(t, "a", orig[0].Params["name"])
	assert.Equal(t, "v", orig[0].Params["nested"].(map[string]any)["k"])
}
