package signals

import "testing"

func TestSignal_EmitOrder(t *testing.T) {
	s := New[int]()

	var order []string
	s.Connect(func(v int) { order = append(order, "first") })
	s.Connect(func(v int) { order = append(order, "second") })
	s.Connect(func(v int) { order = append(order, "third") })

	s.Emit(1)

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("got %d deliveries, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("delivery %d = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestSignal_Disconnect(t *testing.T) {
	s := New[string]()

	var got []string
	conn := s.Connect(func(v string) { got = append(got, "a:"+v) })
	s.Connect(func(v string) { got = append(got, "b:"+v) })

	s.Emit("one")
	conn.Disconnect()
	s.Emit("two")

	want := []string{"a:one", "b:one", "b:two"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSignal_DisconnectTwice(t *testing.T) {
	s := New[int]()
	conn := s.Connect(func(int) {})
	conn.Disconnect()
	conn.Disconnect() // must not panic
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestSignal_Clear(t *testing.T) {
	s := New[int]()

	calls := 0
	s.Connect(func(int) { calls++ })
	s.Connect(func(int) { calls++ })

	s.Clear()
	s.Emit(1)

	if calls != 0 {
		t.Errorf("got %d calls after Clear, want 0", calls)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestSignal_DisconnectDuringEmit(t *testing.T) {
	s := New[int]()

	calls := 0
	var conn Connection
	conn = s.Connect(func(int) {
		calls++
		conn.Disconnect()
	})
	s.Connect(func(int) { calls++ })

	// Snapshot delivery: the self-disconnect must not skip the second handler.
	s.Emit(1)
	if calls != 2 {
		t.Errorf("got %d calls, want 2", calls)
	}

	s.Emit(2)
	if calls != 3 {
		t.Errorf("got %d calls after disconnect, want 3", calls)
	}
}
