package eventive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRolePermissions(t *testing.T) {
	assert := assert.New(t)

	assert.True(RoleAdmin.HasPermission(PermissionAdminDashboard))
	assert.False(RoleUser.HasPermission(PermissionAdminDashboard))
	assert.False(Role("ghost").HasPermission(PermissionAdminDashboard))

	assert.True(RoleUser.Known())
	assert.True(RoleAdmin.Known())
	assert.False(Role("ghost").Known())
}
