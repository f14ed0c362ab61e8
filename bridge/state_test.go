package bridge

import "testing"

func TestStateReadyOnlyWhenEstablished(t *testing.T) {
	for s := Disconnected; s <= Disconnecting; s++ {
		if s.Ready() != (s == ConnectedEstablished) {
			t.Fatalf("state %s: Ready() mismatch", s)
		}
	}
}

func TestStateStringCoversAllValues(t *testing.T) {
	for s := Disconnected; s <= Disconnecting; s++ {
		if s.String() == "Unknown" {
			t.Fatalf("state %d missing from String()", s)
		}
	}
	if State(99).String() != "Unknown" {
		t.Fatalf("expected Unknown for an out-of-range state")
	}
}

func TestRoleString(t *testing.T) {
	if Interactive.String() != "Interactive" || Subscription.String() != "Subscription" {
		t.Fatalf("unexpected Role.String() output")
	}
}
