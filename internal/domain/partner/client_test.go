package partner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	c, err := NewClient(" Jane Doe ", "ACME", "jane@acme.test", "")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", c.Name)
	assert.Equal(t, "ACME", c.DisplayName())
	assert.True(t, c.IsActive())

	c.Deactivate()
	assert.False(t, c.IsActive())
	assert.Equal(t, 2, c.Version)

	_, err = NewClient("", "", "", "")
	assert.Error(t, err)

	_, err = NewClient("Jane", "", "not-an-email", "")
	assert.Error(t, err)

	solo, err := NewClient("Solo", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "Solo", solo.DisplayName())
}

func TestClient_Update(t *testing.T) {
	c, err := NewClient("Jane", "ACME", "", "")
	require.NoError(t, err)

	require.NoError(t, c.Update("Jane Roe", "", "jane@roe.test", "+1 555"))
	assert.Equal(t, "Jane Roe", c.DisplayName())
	assert.Equal(t, "jane@roe.test", c.Email)
	assert.Equal(t, 2, c.Version)

	err = c.Update("", "", "", "")
	assert.Error(t, err)
	assert.Equal(t, "Jane Roe", c.Name, "failed update leaves the client untouched")

	c.Deactivate()
	c.Activate()
	assert.True(t, c.IsActive())
}
