package media

import (
	"path/filepath"
	"regexp"

	"github.com/hbomb79/mediatab/internal/probe"
)

const (
	notAvailable    = "N/A"
	maxOtherColumns = 3
)

var (
	sdtiTitleMatcher = regexp.MustCompile(`(\d+)i_SDTI`)

	frameRateHeader = []string{
		"filename",
		"video_frame_rate",
		"audio_sampling_rate",
		"mxf_frame_rate",
		"sdti_frame_rate",
		"timecode_frame_rate",
		"other1_frame_rate",
		"other2_frame_rate",
		"other3_frame_rate",
	}
)

// FrameRateRow describes the rates found in each track category of a file.
// Every rate is rendered as "<rate>/1", or N/A when absent. The MXF column is
// part of the established output layout but no track populates it, so it is
// always N/A.
type FrameRateRow struct {
	path              string
	Filename          string
	VideoFrameRate    string
	AudioSamplingRate string
	MxfFrameRate      string
	SdtiFrameRate     string
	TimecodeFrameRate string
	OtherFrameRates   [maxOtherColumns]string
}

// NewFrameRateRow walks the tracks in order, recording the rate of each
// category of interest. Scanning stops at the first matching timecode track
// (MXF material/source package timecode, or SMPTE timecode muxed as SDTI).
func NewFrameRateRow(set *probe.TrackSet) *FrameRateRow {
	row := &FrameRateRow{
		path:              set.Path,
		Filename:          filepath.Base(set.Path),
		VideoFrameRate:    notAvailable,
		AudioSamplingRate: notAvailable,
		MxfFrameRate:      notAvailable,
		SdtiFrameRate:     notAvailable,
		TimecodeFrameRate: notAvailable,
		OtherFrameRates:   [maxOtherColumns]string{notAvailable, notAvailable, notAvailable},
	}

	others := 0
scan:
	for _, track := range set.Tracks {
		switch track.Type {
		case probe.VideoTrack:
			row.VideoFrameRate = asRate(track.FrameRate)
		case probe.AudioTrack:
			row.AudioSamplingRate = asRate(track.SamplingRate)
		case probe.OtherTrack:
			if others < maxOtherColumns {
				row.OtherFrameRates[others] = asRate(track.FrameRate)
			}
			others++
		case probe.DataTrack:
			if match := sdtiTitleMatcher.FindStringSubmatch(track.Title); match != nil {
				row.SdtiFrameRate = asRate(match[1])
			}
		case probe.TimeCodeTrack:
			if isPackageTimecode(track) {
				row.TimecodeFrameRate = asRate(track.FrameRate)
				break scan
			}

			if track.Format == "SMPTE TC" && track.MuxingMode == "SDTI" {
				row.TimecodeFrameRate = asRate(track.FrameRate)
				break scan
			}
		}
	}

	return row
}

func isPackageTimecode(track probe.Track) bool {
	return track.Format == "MXF TC" &&
		(track.TimeCodeSettings == "Material Package" || track.TimeCodeSettings == "Source Package")
}

func asRate(value string) string {
	if value == "" {
		return notAvailable
	}

	return value + "/1"
}

func (row *FrameRateRow) Header() []string { return frameRateHeader }

func (row *FrameRateRow) Source() string { return row.path }

func (row *FrameRateRow) Record() []string {
	return []string{
		row.Filename,
		row.VideoFrameRate,
		row.AudioSamplingRate,
		row.MxfFrameRate,
		row.SdtiFrameRate,
		row.TimecodeFrameRate,
		row.OtherFrameRates[0],
		row.OtherFrameRates[1],
		row.OtherFrameRates[2],
	}
}
