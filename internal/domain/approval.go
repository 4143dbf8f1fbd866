package domain

import "time"

// ApprovalStatus enumerates approval states.
type ApprovalStatus string

const (
	ApprovalPending          ApprovalStatus = "pending_approval"
	ApprovalForClarification ApprovalStatus = "for_clarification"
	ApprovalApproved         ApprovalStatus = "approved"
	ApprovalRejected         ApprovalStatus = "rejected"
)

// Approval is an approver's pending decision on the current level of a ticket.
type Approval struct {
	ID            string
	TicketID      string
	TicketSubject string
	Level         int
	ApproverID    string
	ApproverName  string
	ApproverEmail string
	Status        ApprovalStatus
	CreatedAt     time.Time
}
