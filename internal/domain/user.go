package domain

// User is a directory entry used to resolve notification recipients.
type User struct {
	ID           string
	Name         string
	Email        string
	DepartmentID *string
	Active       bool
}
