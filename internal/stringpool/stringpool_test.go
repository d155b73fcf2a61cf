package stringpool

import (
	"bytes"
	"testing"
)

func TestInternIdempotentCaseInsensitive(t *testing.T) {
	p := New("node-a")
	id1 := p.Intern("Hello")
	id2 := p.Intern("hello")
	id3 := p.Intern("HELLO")
	if id1 != id2 || id2 != id3 {
		t.Fatalf("expected same id, got %d %d %d", id1, id2, id3)
	}
	s, ok := p.Resolve(id1)
	if !ok || s != "Hello" {
		t.Fatalf("expected case-preserving resolve, got %q", s)
	}
}

func TestStaticReservedNoInsertion(t *testing.T) {
	p := New("node-a")
	before := p.Highest()
	id := p.Intern("typeId")
	if id != TypeIDStr {
		t.Fatalf("expected static id %d, got %d", TypeIDStr, id)
	}
	if p.Highest() != before {
		t.Fatalf("static intern must not grow the dynamic pool")
	}
}

func TestWriteReadDeltaIdempotent(t *testing.T) {
	p := New("node-a")
	p.Intern("foo")
	p.Intern("bar")

	var buf bytes.Buffer
	if err := p.Write(&buf, FirstDynamicID); err != nil {
		t.Fatal(err)
	}

	nodeID, err := ReadNodeID(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if nodeID != "node-a" {
		t.Fatalf("got node id %q", nodeID)
	}

	q := New("node-a")
	raw := buf.Bytes()
	if err := q.Read(bytes.NewReader(raw)); err != nil {
		t.Fatal(err)
	}
	if err := q.Read(bytes.NewReader(raw)); err != nil {
		t.Fatalf("re-applying the same delta must be idempotent: %v", err)
	}
	if q.Highest() != p.Highest() {
		t.Fatalf("highest mismatch after merge: %d vs %d", q.Highest(), p.Highest())
	}
}

func TestReadConflictingIDIsFatal(t *testing.T) {
	p := New("node-a")
	p.Intern("foo")
	var buf bytes.Buffer
	_ = p.Write(&buf, FirstDynamicID)
	_, _ = ReadNodeID(&buf)

	// Corrupt pool with same id but a different string.
	q := New("node-a")
	q.byID[FirstDynamicID] = "different"
	q.next = FirstDynamicID + 1

	if err := q.Read(bytes.NewReader(buf.Bytes())); err == nil {
		t.Fatal("expected conflict error")
	} else if _, ok := err.(*ErrConflict); !ok {
		t.Fatalf("expected ErrConflict, got %T: %v", err, err)
	}
}

func TestHighestTracksDeltaOffset(t *testing.T) {
	p := New("node-a")
	p.Intern("a")
	p.Intern("b")
	h1 := p.Highest()

	var buf bytes.Buffer
	_ = p.Write(&buf, FirstDynamicID)

	p.Intern("c")
	h2 := p.Highest()
	if h2 <= h1 {
		t.Fatalf("expected highest to grow after new intern")
	}
}
