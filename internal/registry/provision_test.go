package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eReuse/DeviceWare/internal/auth"
	"github.com/eReuse/DeviceWare/internal/config"
	"github.com/eReuse/DeviceWare/internal/models"
)

func TestNewServiceAccountNormalizesEmail(t *testing.T) {
	created, err := newServiceAccount(config.ServiceAccountConfig{
		Email:    "Logger@eReuse.org",
		Password: "secret",
		Name:     "GRD logger",
	})
	require.NoError(t, err)

	// A mixed-case configured address must still match the login path
	assert.Equal(t, "logger@ereuse.org", created.Email)
	assert.Equal(t, models.RoleMachineSuperuser, created.Role)
	assert.True(t, created.Active)
	assert.True(t, auth.CheckPassword(created.Password, "secret"))
	assert.NotEmpty(t, created.Token)
}
