package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from    RequestStatus
		to      RequestStatus
		allowed bool
	}{
		{StatusNew, StatusAssigned, true},
		{StatusNew, StatusPendingApproval, true},
		{StatusNew, StatusCancelled, true},
		{StatusNew, StatusResolved, false},
		{StatusNew, StatusInProgress, false},
		{StatusPendingApproval, StatusApproved, true},
		{StatusPendingApproval, StatusRejected, true},
		{StatusPendingApproval, StatusAssigned, false},
		{StatusApproved, StatusAssigned, true},
		{StatusApproved, StatusInProgress, false},
		{StatusAssigned, StatusInProgress, true},
		{StatusAssigned, StatusResolved, false},
		{StatusInProgress, StatusWaitingForUser, true},
		{StatusInProgress, StatusResolved, true},
		{StatusInProgress, StatusClosed, false},
		{StatusWaitingForUser, StatusInProgress, true},
		{StatusWaitingForUser, StatusResolved, true},
		{StatusResolved, StatusClosed, true},
		{StatusResolved, StatusCancelled, true},
		{StatusResolved, StatusInProgress, false},
		{StatusClosed, StatusInProgress, false},
		{StatusCancelled, StatusNew, false},
		{StatusRejected, StatusAssigned, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestCancellableFromAnyNonTerminal(t *testing.T) {
	nonTerminal := []RequestStatus{
		StatusNew, StatusPendingApproval, StatusApproved,
		StatusAssigned, StatusInProgress, StatusWaitingForUser, StatusResolved,
	}
	for _, status := range nonTerminal {
		assert.True(t, CanTransition(status, StatusCancelled), "cancel from %s", status)
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	all := []RequestStatus{
		StatusNew, StatusPendingApproval, StatusApproved, StatusRejected,
		StatusAssigned, StatusInProgress, StatusWaitingForUser,
		StatusResolved, StatusClosed, StatusCancelled,
	}
	for _, terminal := range []RequestStatus{StatusClosed, StatusCancelled, StatusRejected} {
		assert.True(t, IsTerminal(terminal))
		for _, target := range all {
			assert.False(t, CanTransition(terminal, target), "%s -> %s", terminal, target)
		}
	}
	assert.False(t, IsTerminal(StatusResolved))
}

func TestValidPriority(t *testing.T) {
	assert.True(t, ValidPriority(PriorityLow))
	assert.True(t, ValidPriority(PriorityCritical))
	assert.False(t, ValidPriority("URGENT"))
	assert.False(t, ValidPriority(""))
}
