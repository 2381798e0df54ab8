package services

import "github.com/yeremiapane/restaurant-booking/utils"

// Actor is the already-authenticated caller supplied by the identity provider.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) IsStaff() bool {
	return utils.IsStaffRole(a.Role)
}

func (a Actor) canAccess(ownerID string) bool {
	return a.IsStaff() || (a.UserID != "" && a.UserID == ownerID)
}
