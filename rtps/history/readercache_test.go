package history

import (
	"testing"

	"rtpsgo/rtps/qos"
	"rtpsgo/rtps/types"
)

func writer(n byte) types.GUID {
	return types.GUID{Prefix: types.GuidPrefix{n}, EntityId: types.EntityId{0, 0, 0, types.EntityKindWriterWithKey}}
}

func TestReaderHistoryCacheRejectsDuplicates(t *testing.T) {
	c := NewReaderHistoryCache(qos.Default())
	w := writer(1)
	change := CacheChange{WriterGuid: w, SequenceNumber: 1, InstanceHandle: types.InstanceHandle{1}}

	accepted, err := c.AddChange(change)
	if err != nil || !accepted {
		t.Fatalf("first AddChange: accepted=%v err=%v", accepted, err)
	}
	accepted, err = c.AddChange(change)
	if err != nil || accepted {
		t.Fatalf("duplicate AddChange should be silently rejected: accepted=%v err=%v", accepted, err)
	}
}

func TestReaderHistoryCacheReadDoesNotMutateTakeDoes(t *testing.T) {
	// All three changes share one instance, so the default KEEP_LAST depth of
	// one would evict the first two; widen it to hold all three.
	q := qos.Default()
	q.History = qos.HistoryQos{Kind: qos.KeepLast, Depth: 3}
	c := NewReaderHistoryCache(q)
	w := writer(1)
	for i := 1; i <= 3; i++ {
		c.AddChange(CacheChange{WriterGuid: w, SequenceNumber: types.SequenceNumber(i), InstanceHandle: types.InstanceHandle{1}})
	}

	read := c.Read(10, SelectionFilter{})
	if len(read) != 3 {
		t.Fatalf("Read returned %d changes, want 3", len(read))
	}
	readAgain := c.Read(10, SelectionFilter{})
	if len(readAgain) != 3 {
		t.Fatalf("second Read returned %d changes, want 3 (Read must not remove)", len(readAgain))
	}

	taken := c.Take(10, SelectionFilter{})
	if len(taken) != 3 {
		t.Fatalf("Take returned %d changes, want 3", len(taken))
	}
	if left := c.Read(10, SelectionFilter{}); len(left) != 0 {
		t.Fatalf("cache should be empty after Take, got %d", len(left))
	}
}

func TestReaderHistoryCacheKeepLastPerInstance(t *testing.T) {
	q := qos.Default()
	q.History = qos.HistoryQos{Kind: qos.KeepLast, Depth: 1}
	c := NewReaderHistoryCache(q)
	w := writer(1)
	instance := types.InstanceHandle{1}

	c.AddChange(CacheChange{WriterGuid: w, SequenceNumber: 1, InstanceHandle: instance})
	c.AddChange(CacheChange{WriterGuid: w, SequenceNumber: 2, InstanceHandle: instance})

	got := c.Read(10, SelectionFilter{})
	if len(got) != 1 {
		t.Fatalf("Read returned %d changes, want 1 under KeepLast(1)", len(got))
	}
	if got[0].SequenceNumber != 2 {
		t.Fatalf("surviving change has seq %d, want 2 (the newest)", got[0].SequenceNumber)
	}
}

func TestReaderHistoryCacheInstanceStateTransitions(t *testing.T) {
	c := NewReaderHistoryCache(qos.Default())
	w := writer(1)
	instance := types.InstanceHandle{1}

	c.RegisterWriterForInstance(instance, w)
	if got := c.InstanceState(instance); got != InstanceAlive {
		t.Fatalf("InstanceState = %v, want InstanceAlive", got)
	}

	c.AddChange(CacheChange{WriterGuid: w, SequenceNumber: 1, InstanceHandle: instance, Kind: types.ChangeKindNotAliveDisposed})
	if got := c.InstanceState(instance); got != InstanceNotAliveDisposed {
		t.Fatalf("InstanceState after dispose = %v, want InstanceNotAliveDisposed", got)
	}

	c.UnregisterWriterForInstance(instance, w)
	// Disposed takes precedence in this record; unregistering the sole writer
	// of an already-disposed instance leaves it disposed, not NO_WRITERS.
	if got := c.InstanceState(instance); got != InstanceNotAliveDisposed {
		t.Fatalf("InstanceState after unregister = %v, want still InstanceNotAliveDisposed", got)
	}
}

func TestReaderHistoryCacheSelectionFilter(t *testing.T) {
	c := NewReaderHistoryCache(qos.Default())
	w := writer(1)
	c.AddChange(CacheChange{WriterGuid: w, SequenceNumber: 1, InstanceHandle: types.InstanceHandle{1}})

	taken := c.Take(10, SelectionFilter{})
	if len(taken) != 1 {
		t.Fatalf("Take returned %d, want 1", len(taken))
	}
	if taken[0].SampleState != NotRead {
		t.Fatalf("freshly added sample state = %v, want NotRead", taken[0].SampleState)
	}
}
