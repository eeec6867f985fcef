package auth

import "booking_service/internal/models"

// Allowed is the role gate used by the HTTP layer. An empty requirement
// admits any authenticated principal.
func Allowed(required []models.Role, role models.Role) bool {
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if r == role {
			return true
		}
	}
	return false
}
