package eventive

type PermissionName string

const (
	PermissionAdminDashboard PermissionName = "admin.dashboard"
	PermissionModerateEvents PermissionName = "events.moderate"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

var rolePermissions = map[Role]map[PermissionName]bool{
	RoleUser: {},
	RoleAdmin: {
		PermissionAdminDashboard: true,
		PermissionModerateEvents: true,
	},
}

func (r Role) Known() bool {
	_, ok := rolePermissions[r]
	return ok
}

func (r Role) HasPermission(permission PermissionName) bool {
	return rolePermissions[r][permission]
}
