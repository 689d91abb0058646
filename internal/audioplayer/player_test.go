package audioplayer

import "testing"

func TestEnqueueDropsEmptyBlobsSilently(t *testing.T) {
	p := New(nil)
	p.Enqueue(nil)
	p.Enqueue([]byte{})
	if got := p.QueueSize(); got != 0 {
		t.Fatalf("queue size = %d, want 0", got)
	}
}

func TestEnqueueIncreasesQueueSize(t *testing.T) {
	p := New(nil)
	p.Enqueue([]byte{1, 2, 3})
	if got := p.QueueSize(); got != 1 {
		t.Fatalf("queue size = %d, want 1", got)
	}
}

func TestEnqueueDropsOldestOnOverflow(t *testing.T) {
	p := New(nil)
	for i := 0; i < queueCapacity+5; i++ {
		p.Enqueue([]byte{byte(i)})
	}
	if got := p.QueueSize(); got != queueCapacity {
		t.Fatalf("queue size = %d, want capped at %d", got, queueCapacity)
	}
	blob, ok := p.dequeue()
	if !ok {
		t.Fatal("expected a blob")
	}
	if blob[0] != byte(5) {
		t.Errorf("oldest surviving blob = %v, want the 6th enqueued (index 5)", blob)
	}
}

func TestApplyFadeIsNoOpOnTinyBuffers(t *testing.T) {
	pcm := []byte{1, 2, 3}
	out := applyFade(pcm, 2, fadeFrames)
	if len(out) != len(pcm) {
		t.Fatalf("length changed: got %d want %d", len(out), len(pcm))
	}
}

func TestApplyFadeTapersFirstAndLastFrame(t *testing.T) {
	frameSize := 4 // 2 channels * 2 bytes
	frames := 10
	pcm := make([]byte, frames*frameSize)
	for i := range pcm {
		// constant full-scale positive sample in every slot
		if i%2 == 0 {
			pcm[i] = 0xFF
		} else {
			pcm[i] = 0x7F
		}
	}
	out := applyFade(pcm, 2, 3)
	firstSample := int16(out[0]) | int16(out[1])<<8
	if firstSample == int16(0x7FFF) {
		t.Error("expected the very first sample to be scaled down by the fade-in")
	}
	last := len(out) - frameSize
	lastSample := int16(out[last]) | int16(out[last+1])<<8
	if lastSample == int16(0x7FFF) {
		t.Error("expected the very last sample to be scaled down by the fade-out")
	}
}
