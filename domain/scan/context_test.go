package scan

import (
	"image"
	"testing"
)

func TestSetAnchorFirstWriteWins(t *testing.T) {
	c := NewSessionContext()
	if _, ok := c.Anchor(); ok {
		t.Fatal("anchor set before capture")
	}
	if !c.SetAnchor(image.Pt(10, 20)) {
		t.Fatal("first SetAnchor rejected")
	}
	if c.SetAnchor(image.Pt(99, 99)) {
		t.Fatal("second SetAnchor accepted")
	}
	p, ok := c.Anchor()
	if !ok || p != image.Pt(10, 20) {
		t.Fatalf("anchor = %v ok=%v", p, ok)
	}
	select {
	case <-c.Armed():
	default:
		t.Fatal("armed channel not closed after anchor capture")
	}
}

func TestTogglePause(t *testing.T) {
	c := NewSessionContext()
	if c.Paused() {
		t.Fatal("fresh context paused")
	}
	if !c.TogglePause() {
		t.Fatal("first toggle should pause")
	}
	if !c.Paused() {
		t.Fatal("pause flag not set")
	}
	if c.TogglePause() {
		t.Fatal("second toggle should resume")
	}
}

func TestAbortFirstReasonWins(t *testing.T) {
	c := NewSessionContext()
	if c.AbortReason() != AbortNone {
		t.Fatal("fresh context aborted")
	}
	c.Abort(AbortFailSafe)
	c.Abort(AbortSignal)
	if got := c.AbortReason(); got != AbortFailSafe {
		t.Fatalf("abort reason = %v, want failsafe", got)
	}
	select {
	case <-c.Aborted():
	default:
		t.Fatal("aborted channel not closed")
	}
}
