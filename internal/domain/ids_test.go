package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator(t *testing.T) {
	var g UUIDv7Generator

	a := g.NewActionID()
	b := g.NewActionID()
	require.NotEqual(t, a, b)
	// UUIDv7 is time-ordered: IDs generated in sequence sort ascending.
	assert.LessOrEqual(t, a, b)

	temp := g.NewTempID()
	assert.True(t, strings.HasPrefix(temp, TempIDPrefix))
	assert.True(t, IsTempID(temp))
}
