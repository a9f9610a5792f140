package helper

import (
	"errors"

	"clinic-queue/internal/models"
)

var (
	ErrInvalidRole  = errors.New("role not allowed")
	ErrWrongStation = errors.New("operator is not assigned to this station")
)

// CheckRole returns ErrInvalidRole unless role is one of allowedRoles.
func CheckRole(role string, allowedRoles ...string) error {
	for _, allowedRole := range allowedRoles {
		if role == allowedRole {
			return nil
		}
	}
	return ErrInvalidRole
}

// CheckStationAccess lets admins act on any station and station operators
// only on the one bound to their account.
func CheckStationAccess(role string, boundStation *int64, stationID int64) error {
	switch role {
	case models.RoleAdmin:
		return nil
	case models.RoleStation:
		if boundStation != nil && *boundStation == stationID {
			return nil
		}
		return ErrWrongStation
	}
	return ErrInvalidRole
}

func IsAdmin(role string) bool {
	return role == models.RoleAdmin
}
