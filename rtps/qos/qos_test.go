package qos

import "testing"

func TestCheckCompatibleDefaultsAreCompatible(t *testing.T) {
	if got := CheckCompatible(Default(), Default()); got != PolicyNone {
		t.Fatalf("CheckCompatible(Default, Default) = %v, want PolicyNone", got)
	}
}

func TestCheckCompatibleReliability(t *testing.T) {
	offered := Default()
	requested := Default()
	requested.Reliability.Kind = Reliable
	if got := CheckCompatible(offered, requested); got != PolicyReliability {
		t.Fatalf("CheckCompatible = %v, want PolicyReliability", got)
	}

	offered.Reliability.Kind = Reliable
	if got := CheckCompatible(offered, requested); got != PolicyNone {
		t.Fatalf("CheckCompatible = %v, want PolicyNone once writer offers RELIABLE", got)
	}
}

func TestCheckCompatibleDurability(t *testing.T) {
	offered := Default()
	requested := Default()
	requested.Durability.Kind = TransientLocal
	if got := CheckCompatible(offered, requested); got != PolicyDurability {
		t.Fatalf("CheckCompatible = %v, want PolicyDurability", got)
	}
}

func TestCheckCompatibleDeadline(t *testing.T) {
	offered := Default()
	offered.Deadline.Period = 100
	requested := Default()
	requested.Deadline.Period = 50
	if got := CheckCompatible(offered, requested); got != PolicyDeadline {
		t.Fatalf("CheckCompatible = %v, want PolicyDeadline for a tighter request than offer", got)
	}

	requested.Deadline.Period = 200
	if got := CheckCompatible(offered, requested); got != PolicyNone {
		t.Fatalf("CheckCompatible = %v, want PolicyNone for a looser request than offer", got)
	}
}

func TestCheckCompatibleOwnershipMustMatch(t *testing.T) {
	offered := Default()
	offered.Ownership.Kind = Exclusive
	requested := Default()
	requested.Ownership.Kind = Shared
	if got := CheckCompatible(offered, requested); got != PolicyOwnership {
		t.Fatalf("CheckCompatible = %v, want PolicyOwnership", got)
	}
}

func TestCheckCompatiblePresentationAccessScope(t *testing.T) {
	offered := Default()
	offered.Presentation.AccessScope = InstancePresentation
	requested := Default()
	requested.Presentation.AccessScope = GroupPresentation
	if got := CheckCompatible(offered, requested); got != PolicyPresentation {
		t.Fatalf("CheckCompatible = %v, want PolicyPresentation", got)
	}
}
