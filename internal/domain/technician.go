package domain

import "time"

// StaffRole enumerates internal operator roles.
type StaffRole string

const (
	StaffRoleTechnician StaffRole = "TECHNICIAN"
	StaffRoleTeamLead   StaffRole = "TEAM_LEAD"
	StaffRoleAdmin      StaffRole = "ADMIN"
)

// Rank orders roles by privilege. Unknown roles rank 0.
func (r StaffRole) Rank() int {
	switch r {
	case StaffRoleTechnician:
		return 1
	case StaffRoleTeamLead:
		return 2
	case StaffRoleAdmin:
		return 3
	default:
		return 0
	}
}

// Technician is a staff member who can be assigned tickets. ID is the user ID.
type Technician struct {
	ID           string
	Name         string
	Email        string
	DepartmentID *string
	Active       bool
	CreatedAt    time.Time
}

// TechnicianWorkload is a live view of a technician's queue.
type TechnicianWorkload struct {
	TechnicianID   string
	ActiveTickets  int
	LastAssignedAt *time.Time
}

// BackupAssignment redirects new assignments from one technician to another
// while now falls within [StartDate, EndDate].
type BackupAssignment struct {
	ID                   string
	OriginalTechnicianID string
	BackupTechnicianID   string
	StartDate            time.Time
	EndDate              time.Time
	Active               bool
}

// Covers reports whether the redirect applies at t.
func (b BackupAssignment) Covers(t time.Time) bool {
	return b.Active && !t.Before(b.StartDate) && !t.After(b.EndDate)
}
