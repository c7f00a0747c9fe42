package constants

const (
	Viewer = "viewer"
	Bidder = "bidder"
	Admin  = "admin"
)

const (
	ViewAuctions = "view_auctions"
	PlaceBids    = "place_bids"
)

// ValidRoles is the set of roles a session user may carry.
var ValidRoles = []string{Viewer, Bidder, Admin}

// PermissionRoles maps each permission to the roles allowed to perform it.
var PermissionRoles = map[string][]string{
	ViewAuctions: {Viewer, Bidder, Admin},
	PlaceBids:    {Bidder, Admin},
}

// IsValidRole returns true if role is one of the allowed values.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// AllowedRole returns true if role is in the list of allowed roles for the permission.
func AllowedRole(permission, role string) bool {
	for _, r := range PermissionRoles[permission] {
		if r == role {
			return true
		}
	}
	return false
}
