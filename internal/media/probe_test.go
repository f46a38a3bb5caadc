package media

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParseProbeOutput(t *testing.T) {
	payload := []byte(`{
  "streams": [{"codec_type": "video", "codec_name": "h264", "duration": "4.0"}],
  "format": {"duration": "5.500000"}
}`)
	d, err := parseProbeOutput(payload)
	if err != nil {
		t.Fatalf("parseProbeOutput: %v", err)
	}
	if d != 5500*time.Millisecond {
		t.Fatalf("unexpected duration: %v", d)
	}
}

func TestParseProbeOutputFallsBackToStream(t *testing.T) {
	d, err := parseProbeOutput([]byte(`{"streams": [{"codec_type": "video", "duration": "2"}], "format": {}}`))
	if err != nil {
		t.Fatalf("parseProbeOutput: %v", err)
	}
	if d != 2*time.Second {
		t.Fatalf("unexpected duration: %v", d)
	}
}

func TestParseProbeOutputNoDuration(t *testing.T) {
	_, err := parseProbeOutput([]byte(`{"streams": [], "format": {}}`))
	if !errors.Is(err, ErrNoDuration) {
		t.Fatalf("expected ErrNoDuration, got %v", err)
	}
}

func TestFFProbeRejectsEmptyPath(t *testing.T) {
	p := &FFProbe{}
	if _, err := p.Probe(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
