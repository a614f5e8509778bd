package services

import "github.com/dhrustimirsdar/customerreviewpost/internal/models"

// Caller is the identity behind a request, as established by the auth
// middleware.
type Caller struct {
	UserID *uint
	Email  string
	Role   string
	// Anonymous is set when only the public API key was presented.
	Anonymous bool
	// AnonManage lets an anonymous caller change complaint status.
	AnonManage bool
}

func (c *Caller) IsAdmin() bool {
	return c != nil && !c.Anonymous && c.Role == models.RoleAdmin
}

// SeesAll reports whether the caller may read every complaint. The
// public dashboard client uses the API key and lists everything.
func (c *Caller) SeesAll() bool {
	return c == nil || c.IsAdmin() || c.Anonymous
}

// CanManage reports whether the caller may change complaint status.
func (c *Caller) CanManage() bool {
	return c.IsAdmin() || (c != nil && c.Anonymous && c.AnonManage)
}

// Owns reports whether the complaint belongs to the caller.
func (c *Caller) Owns(complaint *models.Complaint) bool {
	return c != nil && c.UserID != nil && complaint.UserID != nil && *c.UserID == *complaint.UserID
}

// CanSee reports whether the caller may read the complaint.
func (c *Caller) CanSee(complaint *models.Complaint) bool {
	return c.SeesAll() || c.Owns(complaint)
}
