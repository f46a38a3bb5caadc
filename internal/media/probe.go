package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrNoDuration is returned when the probed media reports no duration.
var ErrNoDuration = errors.New("media has no duration")

// Prober derives the play duration of a local media file.
type Prober interface {
	Probe(ctx context.Context, path string) (time.Duration, error)
}

// FFProbe shells out to ffprobe.
type FFProbe struct {
	Binary string // defaults to "ffprobe"
}

func (p *FFProbe) Probe(ctx context.Context, path string) (time.Duration, error) {
	if strings.TrimSpace(path) == "" {
		return 0, errors.New("probe: empty path")
	}

	bin := p.Binary
	if bin == "" {
		bin = "ffprobe"
	}

	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return parseProbeOutput(stdout.Bytes())
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbeOutput(payload []byte) (time.Duration, error) {
	var out probeOutput
	if err := json.Unmarshal(payload, &out); err != nil {
		return 0, fmt.Errorf("decode ffprobe output: %w", err)
	}

	raw := out.Format.Duration
	if raw == "" {
		for _, s := range out.Streams {
			if s.CodecType == "video" && s.Duration != "" {
				raw = s.Duration
				break
			}
		}
	}
	if raw == "" {
		return 0, ErrNoDuration
	}

	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", raw, err)
	}
	if secs <= 0 {
		return 0, ErrNoDuration
	}
	return time.Duration(secs * float64(time.Second)), nil
}
