package pool

import "testing"

func TestFixedBufferPoolRoundTrip(t *testing.T) {
	p := NewFixedBuffer(1024)

	b := p.Get()
	if len(*b) != 1024 {
		t.Fatalf("buffer len = %d, want 1024", len(*b))
	}
	p.Put(b)

	again := p.Get()
	if len(*again) != 1024 {
		t.Errorf("reused buffer len = %d, want 1024", len(*again))
	}
}

func TestFixedBufferPoolRejectsWrongSize(t *testing.T) {
	p := NewFixedBuffer(1024)

	wrong := make([]byte, 10)
	p.Put(&wrong) // must be dropped, not recycled
	p.Put(nil)

	b := p.Get()
	if len(*b) != 1024 {
		t.Errorf("pool handed out wrong-size buffer, len = %d", len(*b))
	}
}
