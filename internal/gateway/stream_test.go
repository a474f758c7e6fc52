package gateway

import (
	"errors"
	"testing"
	"time"

	"github.com/fluxbyte/chatgate/pkg/protocol"
)

func collectFrames(frames *[]protocol.StreamFrame) func(protocol.StreamFrame) error {
	return func(f protocol.StreamFrame) error {
		*frames = append(*frames, f)
		return nil
	}
}

func TestStreamBufferWordBoundaryFlush(t *testing.T) {
	var frames []protocol.StreamFrame
	sb := NewStreamBuffer("c1", "a1", 5, time.Hour, collectFrames(&frames))
	fixed := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	sb.now = func() time.Time { return fixed }

	for _, tok := range []string{"Hel", "lo ", "wor", "ld."} {
		sb.OnToken(tok)
	}
	full, msgUUID, contentUUID := sb.Complete()

	// "Hello " and "world." each reach minChunk ending on a boundary.
	if len(frames) != 3 {
		t.Fatalf("frames = %d, want 2 partials + terminal", len(frames))
	}
	if !frames[0].Partial || frames[0].Content != "Hello " {
		t.Errorf("frames[0] = %+v, want partial %q", frames[0], "Hello ")
	}
	if !frames[1].Partial || frames[1].Content != "world." {
		t.Errorf("frames[1] = %+v, want partial %q", frames[1], "world.")
	}

	terminal := frames[2]
	if terminal.Partial {
		t.Error("terminal frame must not be partial")
	}
	if terminal.Content != "Hello world." {
		t.Errorf("terminal content = %q, want %q", terminal.Content, "Hello world.")
	}
	if terminal.MessageUUID != msgUUID || terminal.MessageContentUUID != contentUUID {
		t.Error("terminal frame identifiers do not match Complete's return values")
	}
	if full != "Hello world." {
		t.Errorf("full = %q, want %q", full, "Hello world.")
	}
	if terminal.ChatUUID != "c1" || terminal.AgentUUID != "a1" {
		t.Errorf("terminal routing = %q/%q", terminal.ChatUUID, terminal.AgentUUID)
	}
}

func TestStreamBufferDelayFlush(t *testing.T) {
	var frames []protocol.StreamFrame
	sb := NewStreamBuffer("c1", "a1", 50, 300*time.Millisecond, collectFrames(&frames))

	clock := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	sb.now = func() time.Time { return clock }
	sb.lastSend = clock

	sb.OnToken("ab") // short, no boundary, no delay
	if len(frames) != 0 {
		t.Fatalf("frames = %d, want 0 before delay", len(frames))
	}

	clock = clock.Add(301 * time.Millisecond)
	sb.OnToken("cd")
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1 after delay elapsed", len(frames))
	}
	if frames[0].Content != "abcd" {
		t.Errorf("flushed %q, want %q", frames[0].Content, "abcd")
	}
}

func TestStreamBufferHardCeiling(t *testing.T) {
	var frames []protocol.StreamFrame
	sb := NewStreamBuffer("c1", "a1", 3, time.Hour, collectFrames(&frames))
	fixed := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	sb.now = func() time.Time { return fixed }

	// No boundary characters at all: flush only at 2*minChunk.
	sb.OnToken("abcd")
	if len(frames) != 0 {
		t.Fatalf("frames = %d, want 0 below ceiling", len(frames))
	}
	sb.OnToken("ef")
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1 at ceiling", len(frames))
	}
	if frames[0].Content != "abcdef" {
		t.Errorf("flushed %q", frames[0].Content)
	}
}

func TestStreamBufferDeadTransport(t *testing.T) {
	sends := 0
	sb := NewStreamBuffer("c1", "a1", 2, time.Hour, func(protocol.StreamFrame) error {
		sends++
		return errors.New("broken pipe")
	})
	fixed := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	sb.now = func() time.Time { return fixed }

	sb.OnToken("one ")
	sb.OnToken("two ")
	full, msgUUID, _ := sb.Complete()

	if sends != 1 {
		t.Errorf("sends = %d, want 1 (transport marked dead after first failure)", sends)
	}
	if full != "one two " {
		t.Errorf("full = %q, want accumulation despite dead transport", full)
	}
	if msgUUID == "" {
		t.Error("Complete should still mint identifiers")
	}
}

func TestStreamBufferEmptyResponse(t *testing.T) {
	var frames []protocol.StreamFrame
	sb := NewStreamBuffer("c1", "a1", 5, time.Hour, collectFrames(&frames))

	full, _, _ := sb.Complete()

	if full != "" {
		t.Errorf("full = %q, want empty", full)
	}
	// No partials, only the terminal frame.
	if len(frames) != 1 || frames[0].Partial {
		t.Fatalf("frames = %+v, want single terminal frame", frames)
	}
}
