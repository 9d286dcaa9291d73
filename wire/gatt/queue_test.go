package gatt

import "testing"

func TestCommandQueueFIFO(t *testing.T) {
	var q commandQueue
	if q.head() != nil || q.popHead() != nil {
		t.Fatal("an empty queue must return nil from head/popHead")
	}

	a := &command{opcode: 1}
	b := &command{opcode: 2}
	q.push(a)
	q.push(b)

	if q.len() != 2 {
		t.Fatalf("len() = %d, want 2", q.len())
	}
	if q.head() != a {
		t.Fatal("head() must return the first pushed command")
	}
	if q.popHead() != a {
		t.Fatal("popHead() must return and remove the first pushed command")
	}
	if q.head() != b {
		t.Fatal("head() must now return the second command")
	}
}

func TestCommandQueuePurge(t *testing.T) {
	var q commandQueue
	q.push(&command{opcode: 1})
	q.push(&command{opcode: 2})

	drained := q.purge()
	if len(drained) != 2 {
		t.Fatalf("purge() returned %d entries, want 2", len(drained))
	}
	if q.len() != 0 {
		t.Fatal("purge() must empty the queue")
	}
}
