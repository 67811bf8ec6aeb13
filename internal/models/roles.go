package models

// Определяем константы для ролей за столом
const (
	RolePlayer    = "ROLE_PLAYER"
	RoleDM        = "ROLE_DM"
	RoleWebmaster = "ROLE_WEBMASTER"
)

// AllRoles возвращает слайс всех определенных ролей.
func AllRoles() []string {
	return []string{
		RolePlayer,
		RoleDM,
		RoleWebmaster,
	}
}

// HasRole проверяет, есть ли у пользователя указанная роль.
func HasRole(userRoles []string, targetRole string) bool {
	for _, role := range userRoles {
		if role == targetRole {
			return true
		}
	}
	return false
}

// HasAnyRole проверяет, есть ли у пользователя хотя бы одна из указанных ролей.
func HasAnyRole(userRoles []string, targetRoles ...string) bool {
	for _, target := range targetRoles {
		if HasRole(userRoles, target) {
			return true
		}
	}
	return false
}
