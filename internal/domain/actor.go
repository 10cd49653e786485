package domain

import "crypto/subtle"

const RoleAdmin = "ADMIN"

// Actor is the authenticated caller; a zero Actor is a guest.
type Actor struct {
	UserID *uint64
	Role   string
	// OrderToken is the access token a guest presents for an order placed
	// without an account.
	OrderToken string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanAccess reports whether the actor may see or act on the order. Guest
// orders need the token issued at checkout.
func (a Actor) CanAccess(o *Order) bool {
	if a.IsAdmin() {
		return true
	}
	if o.UserID == nil {
		return o.AccessToken != "" && a.OrderToken != "" &&
			subtle.ConstantTimeCompare([]byte(a.OrderToken), []byte(o.AccessToken)) == 1
	}
	return a.UserID != nil && *a.UserID == *o.UserID
}
