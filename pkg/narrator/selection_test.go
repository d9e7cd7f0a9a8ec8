package narrator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelection_Switch(t *testing.T) {
	var sel Selection
	changes := 0
	onChange := func() { changes++ }

	assert.True(t, sel.Switch("France", onChange))
	assert.False(t, sel.Switch("france", onChange), "same subject ignoring case")
	assert.True(t, sel.Switch("Japan", onChange))
	assert.Equal(t, "Japan", sel.Current())
	assert.Equal(t, 2, changes)

	sel.Force("Japan", onChange)
	assert.Equal(t, 3, changes)
}

func TestSelection_Requests(t *testing.T) {
	var sel Selection
	sel.Switch("France", nil)

	first := request("France", "one")
	second := request("France", "two")
	other := request("Japan", "three")

	require.NoError(t, sel.Begin(first, nil))
	assert.True(t, sel.isCurrent(first))

	require.NoError(t, sel.Begin(second, nil))
	assert.False(t, sel.isCurrent(first), "superseded by a newer request")
	assert.True(t, sel.isCurrent(second))

	assert.ErrorIs(t, sel.Begin(other, nil), ErrStaleResponse)

	ran := false
	err := sel.Deliver(first, func() error { ran = true; return nil })
	assert.ErrorIs(t, err, ErrStaleResponse)
	assert.False(t, ran)

	boom := errors.New("boom")
	assert.ErrorIs(t, sel.Deliver(second, func() error { return boom }), boom)

	sel.Switch("Japan", nil)
	assert.False(t, sel.isCurrent(second), "subject change invalidates pending requests")
}
