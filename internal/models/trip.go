package models

import (
	"time"
)

// Member roles
const (
	RoleAuthor      = "author"
	RoleCoLeader    = "co_leader"
	RoleParticipant = "participant"
)

// Member statuses
const (
	MemberInvited   = "invited"
	MemberPending   = "pending"
	MemberAccepted  = "accepted"
	MemberRejected  = "rejected"
	MemberRequested = "requested"
)

// PaymentDeadlineLead is how long before the trip starts that share payments
// are expected. Advisory only; late payments are warned about, never blocked.
const PaymentDeadlineLead = 48 * time.Hour

// Trip is the directory record the ledger consumes: membership roster, roles,
// and dates. Trip planning itself is an external concern.
type Trip struct {
	ID        uint   `gorm:"primarykey"`
	Name      string `gorm:"not null"`
	StartDate time.Time
	EndDate   time.Time
	Members   []TripMember `gorm:"foreignKey:TripID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TripMember links a user to a trip with a role and invitation status.
type TripMember struct {
	ID        uint   `gorm:"primarykey"`
	TripID    uint   `gorm:"uniqueIndex:idx_trip_member;not null"`
	UserID    uint   `gorm:"uniqueIndex:idx_trip_member;not null"`
	Role      string `gorm:"default:'participant'"`
	Status    string `gorm:"default:'pending'"`
	AddedBy   uint
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PaymentDeadline is the advisory date by which shares should be settled.
func (t *Trip) PaymentDeadline() time.Time {
	return t.StartDate.Add(-PaymentDeadlineLead)
}

// AuthorID returns the user id of the trip author, or 0 if the roster has none.
func (t *Trip) AuthorID() uint {
	for _, m := range t.Members {
		if m.Role == RoleAuthor {
			return m.UserID
		}
	}
	return 0
}

// AcceptedMemberIDs returns the user ids of members with accepted status,
// author included.
func (t *Trip) AcceptedMemberIDs() []uint {
	ids := make([]uint, 0, len(t.Members))
	for _, m := range t.Members {
		if m.Status == MemberAccepted {
			ids = append(ids, m.UserID)
		}
	}
	return ids
}

// IsAcceptedMember reports whether userID is an accepted member of the trip.
func (t *Trip) IsAcceptedMember(userID uint) bool {
	for _, m := range t.Members {
		if m.UserID == userID && m.Status == MemberAccepted {
			return true
		}
	}
	return false
}

// VotingThreshold is the majority of accepted members required to approve a
// withdrawal: ceil(accepted / 2). The author counts in the denominator but
// does not vote.
func VotingThreshold(acceptedMembers int) int {
	return (acceptedMembers + 1) / 2
}
