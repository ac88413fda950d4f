package domain

// Role is a staff role.
type Role string

const (
	RoleAdmin      Role = "Admin"
	RoleTechnician Role = "Technician"
	RoleSupervisor Role = "Supervisor"
	RoleHelpDesk   Role = "Help Desk"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTechnician, RoleSupervisor, RoleHelpDesk:
		return true
	}
	return false
}

// Availability tracks whether a staff member can take work.
type Availability string

const (
	AvailabilityAvailable Availability = "Available"
	AvailabilityOnLeave   Availability = "On Leave"
)

// User is a staff identity stored in the users collection.
type User struct {
	ID           string       `json:"-"`
	UID          string       `json:"uid"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	Role         Role         `json:"role"`
	Availability Availability `json:"availability"`
	Avatar       string       `json:"avatar,omitempty"`
	PersalNumber string       `json:"persalNumber,omitempty"`
	PhoneNumber  string       `json:"phoneNumber,omitempty"`
	Disabled     bool         `json:"disabled"`
	PasswordHash string       `json:"passwordHash,omitempty"`
}

// UnknownUserName is shown for references that cannot be resolved.
const UnknownUserName = "Unknown"

// UserSummary is the display form of a referenced user.
type UserSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Role    Role   `json:"role,omitempty"`
	Unknown bool   `json:"unknown,omitempty"`
}

// Summary returns the display form of u.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// UnknownUser is the summary for a dangling reference.
func UnknownUser(id string) UserSummary {
	return UserSummary{ID: id, Name: UnknownUserName, Unknown: true}
}

// EscalationLevelFor maps the role of an escalation target to the level
// recorded on the ticket.
func EscalationLevelFor(role Role) EscalationLevel {
	if role == RoleTechnician {
		return EscalationLevelTechnician
	}
	return EscalationLevelSupervisor
}
