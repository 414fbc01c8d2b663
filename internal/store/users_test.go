package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndComparePassword(t *testing.T) {
	u := &User{}
	require.False(t, u.HasPassword())

	require.NoError(t, u.SetPassword("s3cret-pass"))
	assert.True(t, u.HasPassword())
	assert.NotEqual(t, "s3cret-pass", u.Password)

	assert.NoError(t, u.ComparePassword("s3cret-pass"))
	assert.Error(t, u.ComparePassword("wrong-pass"))
}

func TestUserCredentialsHiddenFromJSON(t *testing.T) {
	u := &User{Username: "admin", Email: "admin@example.com"}
	require.NoError(t, u.SetPassword("admin123"))

	data, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "admin@example.com")
	assert.NotContains(t, string(data), u.Password)
}
