package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordLifecycle(t *testing.T) {
	s := NewStore(keyring.NewArrayKeyring(nil))

	_, err := s.Password("default")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetPassword("default", "hunter2"))
	pw, err := s.Password("default")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)

	require.NoError(t, s.DeletePassword("default"))
	_, err = s.Password("default")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeletePassword("default"))
}
