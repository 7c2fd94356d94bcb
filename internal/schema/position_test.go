package schema

import "testing"

func TestPositionStatusCanTransition(t *testing.T) {
	testCases := []struct {
		desc     string
		from     PositionStatus
		to       PositionStatus
		expected bool
	}{
		{"pending to open", PositionPending, PositionOpen, true},
		{"pending to rejected", PositionPending, PositionRejected, true},
		{"pending to closed", PositionPending, PositionClosed, false},
		{"open to closed", PositionOpen, PositionClosed, true},
		{"open to rejected", PositionOpen, PositionRejected, false},
		{"closed is terminal", PositionClosed, PositionOpen, false},
		{"rejected is terminal", PositionRejected, PositionOpen, false},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			if got := tc.from.CanTransition(tc.to); got != tc.expected {
				t.Fatalf("transition %s -> %s: should be %t but got %t", tc.from, tc.to, tc.expected, got)
			}
		})
	}
}

func TestPositionStatusTerminal(t *testing.T) {
	if PositionPending.Terminal() || PositionOpen.Terminal() {
		t.Fatal("pending/open should not be terminal")
	}
	if !PositionClosed.Terminal() || !PositionRejected.Terminal() {
		t.Fatal("closed/rejected should be terminal")
	}
}
