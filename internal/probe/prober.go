// Package probe wraps the external media parsers (mediainfo and ffprobe) behind
// a single interface, returning a backend-neutral TrackSet for each file.
package probe

import (
	"context"
	"errors"
	"fmt"

	"github.com/hbomb79/mediatab/pkg/logger"
)

var log = logger.Get("Probe")

const (
	MediaInfoBackend = "mediainfo"
	FfprobeBackend   = "ffprobe"
)

var (
	ErrUnrecognisedContainer = errors.New("parser did not recognise any tracks in the container")
	ErrUnknownBackend        = errors.New("unknown probe backend")
)

type (
	Prober interface {
		Probe(ctx context.Context, path string) (*TrackSet, error)
	}

	Config struct {
		Backend             string `yaml:"backend" env:"PROBE_BACKEND" env-default:"mediainfo" validate:"oneof=mediainfo ffprobe"`
		MediaInfoBinaryPath string `yaml:"mediainfo_binary" env:"MEDIAINFO_BINARY" env-default:"mediainfo"`
		FfprobeBinaryPath   string `yaml:"ffprobe_binary" env:"FFPROBE_BINARY" env-default:"ffprobe"`
		FfmpegBinaryPath    string `yaml:"ffmpeg_binary" env:"FFMPEG_BINARY" env-default:"ffmpeg"`
	}
)

// New constructs the Prober for the backend named in the config.
func New(config Config) (Prober, error) {
	switch config.Backend {
	case MediaInfoBackend, "":
		log.Emit(logger.DEBUG, "Using mediainfo backend (binary %s)\n", config.MediaInfoBinaryPath)
		return NewMediaInfoProber(config.MediaInfoBinaryPath), nil
	case FfprobeBackend:
		log.Emit(logger.DEBUG, "Using ffprobe backend (binary %s)\n", config.FfprobeBinaryPath)
		return NewFfprobeProber(config.FfmpegBinaryPath, config.FfprobeBinaryPath), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, config.Backend)
	}
}
