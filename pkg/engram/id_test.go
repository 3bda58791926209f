package engram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDIsUnique(t *testing.T) {
	a := NewID()
	b := NewID()
	assert.NotEqual(t, a, b)
	assert.False(t, a.IsZero())
}

func TestDeriveIDIsStable(t *testing.T) {
	a := DeriveID("seed")
	b := DeriveID("seed")
	assert.Equal(t, a, b)

	c := DeriveID("other")
	assert.NotEqual(t, a, c)
}

func TestIDRoundTripsThroughString(t *testing.T) {
	id := NewID()
	parsed, err := ParseID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseIDRejectsBadInput(t *testing.T) {
	_, err := ParseID("not-hex!!")
	assert.Error(t, err)

	_, err = ParseID("ab")
	assert.Error(t, err)
}

func TestEdgeKeyString(t *testing.T) {
	a := DeriveID("a")
	b := DeriveID("b")
	key := EdgeKey{From: a, To: b}
	assert.Equal(t, a.String()+":"+b.String(), key.String())
}
