package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testTrip() *Trip {
	return &Trip{
		ID:        1,
		Name:      "Lisbon",
		StartDate: time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC),
		Members: []TripMember{
			{UserID: 1, Role: RoleAuthor, Status: MemberAccepted},
			{UserID: 2, Role: RoleParticipant, Status: MemberAccepted},
			{UserID: 3, Role: RoleParticipant, Status: MemberAccepted},
			{UserID: 4, Role: RoleParticipant, Status: MemberInvited},
			{UserID: 5, Role: RoleParticipant, Status: MemberRejected},
		},
	}
}

func TestTripMembership(t *testing.T) {
	trip := testTrip()

	assert.Equal(t, uint(1), trip.AuthorID())
	assert.Equal(t, []uint{1, 2, 3}, trip.AcceptedMemberIDs())
	assert.True(t, trip.IsAcceptedMember(2))
	assert.False(t, trip.IsAcceptedMember(4), "invited member is not accepted")
	assert.False(t, trip.IsAcceptedMember(99))
}

func TestPaymentDeadline(t *testing.T) {
	trip := testTrip()
	want := time.Date(2026, 6, 8, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, want, trip.PaymentDeadline())
}

func TestVotingThreshold(t *testing.T) {
	tests := []struct {
		accepted int
		want     int
	}{
		{1, 1},
		{2, 1},
		{3, 2},
		{4, 2},
		{5, 3},
		{10, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, VotingThreshold(tt.accepted), "accepted=%d", tt.accepted)
	}
}
