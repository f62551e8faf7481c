package anchorsink

import (
	"context"
	"testing"
)

func TestNoopSinkReturnsIDUnchanged(t *testing.T) {
	s := NoopSink{}
	id, err := s.Put(context.Background(), "anchor-123", []byte(`{"root":"abc"}`))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if id != "anchor-123" {
		t.Errorf("Put returned id %q, want %q", id, "anchor-123")
	}
}
