package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortedKeys(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"zebra": 1,
		"alpha": 2,
		"mid":   map[string]any{"b": true, "a": false},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mid":{"a":false,"b":true},"zebra":1}`, string(got))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{"note": "a < b & c > d"})
	require.NoError(t, err)
	assert.Equal(t, `{"note":"a < b & c > d"}`, string(got))
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// "é" as e + combining acute (NFD) must normalize to the single
	// precomposed code point (NFC).
	got, err := MarshalCanonical(map[string]any{"name": "Café"})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Café"}`, string(got))
}

func TestMarshalCanonical_NumbersKeepExactText(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{"cents": int64(1234567890123)})
	require.NoError(t, err)
	assert.Equal(t, `{"cents":1234567890123}`, string(got))
}

func TestMarshalCanonical_Deterministic(t *testing.T) {
	v := map[string]any{"b": []any{1, "two", nil}, "a": true}
	first, err := MarshalCanonical(v)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := MarshalCanonical(v)
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}
