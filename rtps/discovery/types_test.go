package discovery

import (
	"testing"

	"rtpsgo/rtps/qos"
)

func TestEvaluateRequiresMatchingTopicAndType(t *testing.T) {
	w := DiscoveredWriterData{TopicName: "Chat", TypeName: "ChatMessage", Qos: qos.Default()}
	r := DiscoveredReaderData{TopicName: "Chat", TypeName: "OtherType", Qos: qos.Default()}
	if got := Evaluate(w, r); got.Compatible {
		t.Fatal("writer and reader on different types should not match")
	}
}

func TestEvaluateCompatibleQos(t *testing.T) {
	w := DiscoveredWriterData{TopicName: "Chat", TypeName: "ChatMessage", Qos: qos.Default()}
	r := DiscoveredReaderData{TopicName: "Chat", TypeName: "ChatMessage", Qos: qos.Default()}
	got := Evaluate(w, r)
	if !got.Compatible {
		t.Fatalf("matching topic/type/default QoS should be compatible, got PolicyId=%v", got.PolicyId)
	}
}

func TestEvaluateIncompatibleQosSurfacesPolicy(t *testing.T) {
	wq := qos.Default()
	rq := qos.Default()
	rq.Reliability.Kind = qos.Reliable // requests RELIABLE from a BEST_EFFORT writer

	w := DiscoveredWriterData{TopicName: "Chat", TypeName: "ChatMessage", Qos: wq}
	r := DiscoveredReaderData{TopicName: "Chat", TypeName: "ChatMessage", Qos: rq}
	got := Evaluate(w, r)
	if got.Compatible {
		t.Fatal("RELIABLE request against a BEST_EFFORT offer should be incompatible")
	}
	if got.PolicyId != qos.PolicyReliability {
		t.Fatalf("PolicyId = %v, want PolicyReliability", got.PolicyId)
	}
}
