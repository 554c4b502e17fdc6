package enums

// Permission names a capability granted to member roles.
type Permission string

const (
	PermissionInventoryRead   Permission = "inventory:read"
	PermissionInventoryWrite  Permission = "inventory:write"
	PermissionInventoryAlerts Permission = "inventory:alerts"
)

var rolePermissions = map[MemberRole][]Permission{
	MemberRoleOwner:   {PermissionInventoryRead, PermissionInventoryWrite, PermissionInventoryAlerts},
	MemberRoleAdmin:   {PermissionInventoryRead, PermissionInventoryWrite, PermissionInventoryAlerts},
	MemberRoleManager: {PermissionInventoryRead, PermissionInventoryWrite, PermissionInventoryAlerts},
	MemberRoleStaff:   {PermissionInventoryRead, PermissionInventoryWrite},
	MemberRoleViewer:  {PermissionInventoryRead},
}

// Grants reports whether the role carries the permission.
func (m MemberRole) Grants(p Permission) bool {
	for _, candidate := range rolePermissions[m] {
		if candidate == p {
			return true
		}
	}
	return false
}

// RolesWithPermission lists roles granting p, in declaration order.
func RolesWithPermission(p Permission) []MemberRole {
	out := make([]MemberRole, 0, len(validMemberRoles))
	for _, role := range validMemberRoles {
		if role.Grants(p) {
			out = append(out, role)
		}
	}
	return out
}
