package buffer

import "testing"

func TestBytePoolGetReturnsRequestedLength(t *testing.T) {
	p := NewBytePool()
	buf := p.Get(3000)
	if len(buf) != 3000 {
		t.Errorf("len = %d, want 3000", len(buf))
	}
}

func TestBytePoolPutGetRoundTrip(t *testing.T) {
	p := NewBytePool()
	buf := p.Get(4096)
	buf[0] = 0xFF
	p.Put(buf)

	reused := p.Get(4096)
	if len(reused) != 4096 {
		t.Errorf("len = %d, want 4096", len(reused))
	}
	if reused[0] != 0 {
		t.Error("expected pooled buffer to be cleared before reuse")
	}
}

func TestBytePoolUnbucketedSizeAllocatesDirectly(t *testing.T) {
	p := NewBytePool()
	buf := p.Get(100 * 1024 * 1024)
	if len(buf) != 100*1024*1024 {
		t.Errorf("len = %d, want 104857600", len(buf))
	}
}
