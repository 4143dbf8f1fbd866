package domain

// SupportGroup is a pool of technicians tickets can be routed to.
type SupportGroup struct {
	ID       string
	Name     string
	IsActive bool
}

// GroupRoute is one entry of a template's support group priority list.
type GroupRoute struct {
	SupportGroupID string
	Strategy       string
	Priority       int
}
