package history

import (
	"testing"

	"rtpsgo/rtps/qos"
	"rtpsgo/rtps/types"
)

func TestWriterHistoryCacheKeepLastEvicts(t *testing.T) {
	q := qos.Default()
	q.History = qos.HistoryQos{Kind: qos.KeepLast, Depth: 2}
	c := NewWriterHistoryCache(q)

	instance := types.InstanceHandle{1}
	for i := 0; i < 3; i++ {
		sn := c.NextSequenceNumber()
		if err := c.AddChange(CacheChange{SequenceNumber: sn, InstanceHandle: instance}, nil); err != nil {
			t.Fatalf("AddChange: %v", err)
		}
	}
	if got := c.Count(); got != 2 {
		t.Fatalf("Count() = %d, want 2", got)
	}
	if _, ok := c.GetChange(1); ok {
		t.Fatal("oldest change should have been evicted")
	}
}

func TestWriterHistoryCacheKeepLastRetainsPendingAck(t *testing.T) {
	q := qos.Default()
	q.Reliability.Kind = qos.Reliable
	q.History = qos.HistoryQos{Kind: qos.KeepLast, Depth: 1}
	c := NewWriterHistoryCache(q)

	instance := types.InstanceHandle{1}
	sn1 := c.NextSequenceNumber()
	c.AddChange(CacheChange{SequenceNumber: sn1, InstanceHandle: instance}, func(types.SequenceNumber) bool { return true })
	sn2 := c.NextSequenceNumber()
	c.AddChange(CacheChange{SequenceNumber: sn2, InstanceHandle: instance}, func(types.SequenceNumber) bool { return true })

	if _, ok := c.GetChange(sn1); !ok {
		t.Fatal("change still pending ack must not be evicted despite exceeding depth")
	}
}

func TestWriterHistoryCacheRejectsOutOfOrderSequenceNumber(t *testing.T) {
	c := NewWriterHistoryCache(qos.Default())
	if err := c.AddChange(CacheChange{SequenceNumber: 5}, nil); err == nil {
		t.Fatal("expected an error for a non-consecutive sequence number")
	}
}

func TestWriterHistoryCacheKeepAllEnforcesResourceLimits(t *testing.T) {
	q := qos.Default()
	q.History.Kind = qos.KeepAll
	q.ResourceLimits.MaxSamples = 1
	c := NewWriterHistoryCache(q)

	sn1 := c.NextSequenceNumber()
	if err := c.AddChange(CacheChange{SequenceNumber: sn1}, nil); err != nil {
		t.Fatalf("AddChange: %v", err)
	}
	sn2 := c.NextSequenceNumber()
	if err := c.AddChange(CacheChange{SequenceNumber: sn2}, nil); err == nil {
		t.Fatal("expected ErrOutOfResources once MaxSamples is hit")
	}
}

func TestWriterHistoryCacheIterChanges(t *testing.T) {
	// All five changes share the nil instance, so the default KEEP_LAST depth
	// of one would evict all but the last; widen it to hold all five.
	q := qos.Default()
	q.History = qos.HistoryQos{Kind: qos.KeepLast, Depth: 5}
	c := NewWriterHistoryCache(q)
	for i := 0; i < 5; i++ {
		sn := c.NextSequenceNumber()
		c.AddChange(CacheChange{SequenceNumber: sn}, nil)
	}
	got := c.IterChanges(2, 4)
	if len(got) != 3 {
		t.Fatalf("IterChanges(2,4) returned %d changes, want 3", len(got))
	}
	for i, ch := range got {
		want := types.SequenceNumber(2 + i)
		if ch.SequenceNumber != want {
			t.Errorf("got[%d].SequenceNumber = %d, want %d", i, ch.SequenceNumber, want)
		}
	}
}
