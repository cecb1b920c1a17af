package probe

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/floostack/transcoder"
	"github.com/floostack/transcoder/ffmpeg"
)

type ffprobeProber struct {
	config ffmpeg.Config
}

func NewFfprobeProber(ffmpegBinaryPath string, ffprobeBinaryPath string) *ffprobeProber {
	return &ffprobeProber{
		config: ffmpeg.Config{
			FfmpegBinPath:  ffmpegBinaryPath,
			FfprobeBinPath: ffprobeBinaryPath,
		},
	}
}

type probeResult struct {
	metadata transcoder.Metadata
	err      error
}

// Probe reads the file metadata using ffprobe. The transcoder library does not
// accept a context, so the probe runs in its own goroutine and is abandoned if
// the context is cancelled first.
func (prober *ffprobeProber) Probe(ctx context.Context, path string) (*TrackSet, error) {
	resultChan := make(chan probeResult, 1)
	go func(cfg ffmpeg.Config) {
		metadata, err := ffmpeg.New(&cfg).Input(path).GetMetadata()
		resultChan <- probeResult{metadata, err}
	}(prober.config)

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("ffprobe aborted: %w", context.Cause(ctx))
	case result := <-resultChan:
		if result.err != nil {
			return nil, fmt.Errorf("failed to extract file metadata information using ffprobe: %w", result.err)
		}

		set := metadataToTrackSet(path, result.metadata)
		if err := set.validate(); err != nil {
			return nil, err
		}

		return set, nil
	}
}

// metadataToTrackSet maps the ffprobe format section to the General track,
// and each stream to a track based on it's codec type.
func metadataToTrackSet(path string, metadata transcoder.Metadata) *TrackSet {
	set := &TrackSet{Path: path, Tracks: make([]Track, 0)}
	if metadata == nil {
		return set
	}

	if format := metadata.GetFormat(); format != nil {
		set.Tracks = append(set.Tracks, Track{
			Type:               GeneralTrack,
			Format:             format.GetFormatName(),
			Duration:           format.GetDuration(),
			BitRate:            format.GetBitRate(),
			WritingApplication: encoderOf(format.GetTags()),
		})
	}

	for _, stream := range metadata.GetStreams() {
		track := Track{
			Type:          codecTypeToTrackType(stream.GetCodecType()),
			Format:        stream.GetCodecName(),
			FormatProfile: stream.GetProfile(),
			Duration:      stream.GetDuration(),
			BitRate:       stream.GetBitRate(),
		}

		if track.Type == VideoTrack {
			track.Width = strconv.Itoa(stream.GetWidth())
			track.Height = strconv.Itoa(stream.GetHeight())
			track.DisplayAspectRatio = stream.GetDisplayAspectRatio()
			track.FrameRate = rationalToDecimal(stream.GetAvgFrameRate())
			track.ColorSpace = stream.GetPixFmt()
		}

		set.Tracks = append(set.Tracks, track)
	}

	return set
}

// encoderOf returns the encoder recorded in the container tags, which is the
// closest ffprobe equivalent of mediainfo's writing application.
func encoderOf(tags transcoder.Tags) string {
	if tags == nil {
		return ""
	}

	return tags.GetEncoder()
}

func codecTypeToTrackType(codecType string) TrackType {
	switch codecType {
	case "video":
		return VideoTrack
	case "audio":
		return AudioTrack
	case "data":
		return DataTrack
	case "subtitle":
		return TextTrack
	default:
		return OtherTrack
	}
}

// rationalToDecimal converts an ffprobe rational ("30000/1001") to the
// decimal form mediainfo reports ("29.970"). Values which are not a
// valid rational are returned untouched, and a zero rate becomes empty.
func rationalToDecimal(rational string) string {
	num, den, found := strings.Cut(rational, "/")
	if !found {
		return rational
	}

	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return rational
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return rational
	}

	if d == 0 || n == 0 {
		return ""
	}

	return strconv.FormatFloat(n/d, 'f', 3, 64)
}
