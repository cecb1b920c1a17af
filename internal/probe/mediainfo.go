package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mitchellh/mapstructure"
)

type (
	commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

	mediaInfoProber struct {
		binaryPath string
		run        commandRunner
	}

	mediaInfoOutput struct {
		Media *struct {
			Ref    string           `json:"@ref"`
			Tracks []map[string]any `json:"track"`
		} `json:"media"`
	}
)

func NewMediaInfoProber(binaryPath string) *mediaInfoProber {
	if binaryPath == "" {
		binaryPath = MediaInfoBackend
	}

	return &mediaInfoProber{binaryPath: binaryPath, run: execCommand}
}

// Probe runs mediainfo against the path provided and decodes the
// JSON output in to a TrackSet.
func (prober *mediaInfoProber) Probe(ctx context.Context, path string) (*TrackSet, error) {
	out, err := prober.run(ctx, prober.binaryPath, "--Output=JSON", path)
	if err != nil {
		return nil, err
	}

	return ParseMediaInfoJSON(path, out)
}

// ParseMediaInfoJSON decodes the output of `mediainfo --Output=JSON`. Each
// track object is mapped on to a Track using mapstructure, which allows
// numeric values to be weakly decoded in to the string fields.
func ParseMediaInfoJSON(path string, data []byte) (*TrackSet, error) {
	var output mediaInfoOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("failed to decode mediainfo output: %w", err)
	}

	if output.Media == nil {
		return nil, ErrUnrecognisedContainer
	}

	set := &TrackSet{Path: path, Tracks: make([]Track, 0, len(output.Media.Tracks))}
	for i, raw := range output.Media.Tracks {
		var track Track
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &track,
		})
		if err != nil {
			return nil, err
		}

		// 'extra' holds nested vendor specific fields we never read
		delete(raw, "extra")
		if err := decoder.Decode(raw); err != nil {
			return nil, fmt.Errorf("failed to decode mediainfo track #%d: %w", i, err)
		}

		// mediainfo reports timecode tracks as 'Other' with a sub-type
		if track.Type == OtherTrack && track.Kind == string(TimeCodeTrack) {
			track.Type = TimeCodeTrack
		}

		set.Tracks = append(set.Tracks, track)
	}

	if err := set.validate(); err != nil {
		return nil, err
	}

	return set, nil
}

func execCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s aborted: %w", name, context.Cause(ctx))
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%s failed: %w (%s)", name, err, strings.TrimSpace(string(exitErr.Stderr)))
		}

		return nil, fmt.Errorf("%s failed: %w", name, err)
	}

	return out, nil
}
