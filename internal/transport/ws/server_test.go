package ws

import (
	"context"
	"testing"
	"time"
)

func TestReplyDeliversWhenWriterKeepsUp(t *testing.T) {
	s := &Server{}
	out := make(chan []byte, 1)

	s.reply(context.Background(), out, []byte(`{"type":"BUILD_VERDICT"}`))
	select {
	case b := <-out:
		if len(b) == 0 {
			t.Fatalf("empty verdict queued")
		}
	default:
		t.Fatalf("verdict not queued")
	}
}

func TestReplyBailsOutWhenSessionTearsDown(t *testing.T) {
	s := &Server{}
	out := make(chan []byte, 1)
	out <- []byte("backlog") // writer is gone, channel full

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		s.reply(ctx, out, []byte(`{"type":"DAMAGE_VERDICT"}`))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("reply wedged on a full channel after teardown")
	}
}
