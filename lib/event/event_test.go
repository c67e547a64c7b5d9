package event

import "testing"

func TestBusSubscribe(t *testing.T) {
	bus := NewBus()

	var all, updates []Type
	cancelAll := bus.Subscribe(func(ev Event) { all = append(all, ev.Type) })
	bus.Subscribe(func(ev Event) { updates = append(updates, ev.Type) }, FieldUpdate)

	bus.Notify(Event{Type: FieldCreate})
	bus.Notify(Event{Type: FieldUpdate})

	if len(all) != 2 {
		t.Errorf("Expected 2 events for catch-all subscriber, got %d", len(all))
	}
	if len(updates) != 1 || updates[0] != FieldUpdate {
		t.Errorf("Expected only field.update for filtered subscriber, got %v", updates)
	}

	cancelAll()
	cancelAll() // must be a no-op
	bus.Notify(Event{Type: FieldUpdate})

	if len(all) != 2 {
		t.Errorf("Cancelled subscriber should not receive events, got %d", len(all))
	}
	if len(updates) != 2 {
		t.Errorf("Expected 2 updates, got %d", len(updates))
	}
}

func TestBusUnsubscribeDuringNotify(t *testing.T) {
	bus := NewBus()
	calls := 0
	var cancel func()
	cancel = bus.Subscribe(func(ev Event) {
		calls++
		cancel()
	})

	bus.Notify(Event{Type: StoreClear})
	bus.Notify(Event{Type: StoreClear})

	if calls != 1 {
		t.Errorf("Expected exactly one call, got %d", calls)
	}
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{}
	Notify(rec, Event{Type: RecordCreate})
	Notify(rec, Event{Type: RecordCreate})
	Notify(rec, Event{Type: RecordDelete})
	Notify(nil, Event{Type: RecordDelete}) // nil observers are ignored

	if rec.Count(RecordCreate) != 2 || rec.Count(RecordDelete) != 1 {
		t.Errorf("Unexpected counts: %v", rec.Types())
	}

	rec.Reset()
	if len(rec.Events()) != 0 {
		t.Errorf("Expected empty recorder after Reset")
	}
}
