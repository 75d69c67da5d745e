package typesupport

import (
	"testing"

	"rtpsgo/rtps/types"
)

type point struct {
	X, Y int32
}

type measurement struct {
	SensorId int32 `rtps:"key"`
	Value    float64
	Label    string
}

func TestStructTypeSupportRoundTrip(t *testing.T) {
	ts := NewStructTypeSupport("Measurement", (*measurement)(nil))
	in := &measurement{SensorId: 7, Value: 98.6, Label: "core-temp"}

	payload, err := ts.Serialize(in)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	decoded, err := ts.Deserialize(payload)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	out, ok := decoded.(*measurement)
	if !ok {
		t.Fatalf("Deserialize returned %T, want *measurement", decoded)
	}
	if *out != *in {
		t.Fatalf("round trip mismatch: got %+v, want %+v", *out, *in)
	}
}

func TestStructTypeSupportInstanceHandleStableOnKeyOnly(t *testing.T) {
	ts := NewStructTypeSupport("Measurement", (*measurement)(nil))
	a := &measurement{SensorId: 7, Value: 1, Label: "x"}
	b := &measurement{SensorId: 7, Value: 2, Label: "y"}
	if ts.InstanceHandle(a) != ts.InstanceHandle(b) {
		t.Fatal("InstanceHandle must depend only on key fields, not the whole struct")
	}

	c := &measurement{SensorId: 8, Value: 1, Label: "x"}
	if ts.InstanceHandle(a) == ts.InstanceHandle(c) {
		t.Fatal("different key fields must produce different InstanceHandles")
	}
}

func TestStructTypeSupportUnkeyedHasNilInstanceHandle(t *testing.T) {
	ts := NewStructTypeSupport("Point", (*point)(nil))
	if ts.IsKeyed() {
		t.Fatal("point has no rtps:\"key\" tag and should not be keyed")
	}
	if got := ts.InstanceHandle(&point{X: 1, Y: 2}); got != (types.InstanceHandle{}) {
		t.Fatalf("unkeyed InstanceHandle = %v, want the nil handle", got)
	}
}
