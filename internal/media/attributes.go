package media

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hbomb79/mediatab/internal/probe"
)

var attributesHeader = []string{
	"path",
	"general_format", "general_duration", "general_bit_rate", "general_writing_application",
	"video_format", "video_commercial_name", "video_format_profile", "video_gop", "video_duration",
	"video_bit_rate", "video_width", "video_height", "video_display_aspect_ratio", "video_frame_rate",
	"video_color_space", "video_chroma_subsampling", "video_bit_depth", "video_scan_type",
	"video_scan_order", "video_time_code_first_frame", "video_gop_structure",
	"audio_format", "audio_duration", "audio_bit_rate", "audio_channels", "audio_sampling_rate",
	"other_type", "other_frame_rate", "other_time_code_first_frame", "other_time_code_last_frame",
}

type (
	GeneralAttributes struct {
		Format             string
		Duration           string
		BitRate            string
		WritingApplication string
	}

	VideoAttributes struct {
		Format             string
		CommercialName     string
		FormatProfile      string
		GOP                string
		Duration           string
		BitRate            string
		Width              string
		Height             string
		DisplayAspectRatio string
		FrameRate          string
		ColorSpace         string
		ChromaSubsampling  string
		BitDepth           string
		ScanType           string
		ScanOrder          string
		TimeCodeFirstFrame string
		GOPStructure       string
	}

	AudioAttributes struct {
		Format       string
		Duration     string
		BitRate      string
		Channels     string
		SamplingRate string
	}

	OtherAttributes struct {
		Type               string
		FrameRate          string
		TimeCodeFirstFrame string
		TimeCodeLastFrame  string
	}

	// AttributesRow is the full technical description of a file. Absent track
	// categories leave their fields as empty strings.
	AttributesRow struct {
		Path    string
		General GeneralAttributes
		Video   VideoAttributes
		Audio   AudioAttributes
		Other   OtherAttributes
	}
)

// NewAttributesRow assembles the row from the General track (always the first
// track), the first Video track, the first Audio track and the first of up to
// three tracks which are none of General, Video or Audio.
func NewAttributesRow(set *probe.TrackSet) *AttributesRow {
	row := &AttributesRow{Path: set.Path}
	if abs, err := filepath.Abs(set.Path); err == nil {
		row.Path = abs
	}

	if general := set.General(); general != nil {
		row.General = GeneralAttributes{
			Format:             general.Format,
			Duration:           formatDuration(general.Duration),
			BitRate:            general.BitRate,
			WritingApplication: general.WritingApplication,
		}
	}

	if video := set.First(probe.VideoTrack); video != nil {
		row.Video = VideoAttributes{
			Format:             video.Format,
			CommercialName:     video.CommercialName,
			FormatProfile:      video.FormatProfile,
			GOP:                video.GOP,
			Duration:           formatDuration(video.Duration),
			BitRate:            video.BitRate,
			Width:              video.Width,
			Height:             video.Height,
			DisplayAspectRatio: video.DisplayAspectRatio,
			FrameRate:          video.FrameRate,
			ColorSpace:         video.ColorSpace,
			ChromaSubsampling:  video.ChromaSubsampling,
			BitDepth:           video.BitDepth,
			ScanType:           video.ScanType,
			ScanOrder:          video.ScanOrder,
			TimeCodeFirstFrame: video.TimeCodeFirstFrame,
			GOPStructure:       video.GOPStructure,
		}
	}

	if audio := set.OfType(probe.AudioTrack); len(audio) > 0 {
		row.Audio = AudioAttributes{
			Format:       audio[0].Format,
			Duration:     formatDuration(audio[0].Duration),
			BitRate:      audio[0].BitRate,
			Channels:     audio[0].Channels,
			SamplingRate: audio[0].SamplingRate,
		}
	}

	if others := otherTracks(set); len(others) > 0 {
		row.Other = OtherAttributes{
			Type:               string(others[0].Type),
			FrameRate:          others[0].FrameRate,
			TimeCodeFirstFrame: others[0].TimeCodeFirstFrame,
			TimeCodeLastFrame:  others[0].TimeCodeLastFrame,
		}
	}

	return row
}

// otherTracks returns up to three tracks whose type is none of General, Video or Audio.
func otherTracks(set *probe.TrackSet) []probe.Track {
	out := make([]probe.Track, 0, maxOtherColumns)
	for _, t := range set.Tracks {
		if len(out) == maxOtherColumns {
			break
		}

		switch t.Type {
		case probe.GeneralTrack, probe.VideoTrack, probe.AudioTrack:
			continue
		default:
			out = append(out, t)
		}
	}

	return out
}

// formatDuration renders a duration given in (possibly fractional) seconds as
// "H:MM:SS" with a ".ffffff" suffix when there is a sub-second component, and a
// "N day(s), " prefix for durations of a day or more. Values which are not
// numeric are passed through untouched.
func formatDuration(seconds string) string {
	if seconds == "" {
		return ""
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(seconds), 64)
	if err != nil || secs < 0 {
		return seconds
	}

	micros := int64(math.Round(secs * 1e6))
	days := micros / (86400 * 1e6)
	micros -= days * 86400 * 1e6

	hours := micros / (3600 * 1e6)
	micros -= hours * 3600 * 1e6
	minutes := micros / (60 * 1e6)
	micros -= minutes * 60 * 1e6
	wholeSeconds := micros / 1e6
	micros -= wholeSeconds * 1e6

	out := fmt.Sprintf("%d:%02d:%02d", hours, minutes, wholeSeconds)
	if micros > 0 {
		out += fmt.Sprintf(".%06d", micros)
	}

	switch {
	case days == 1:
		out = "1 day, " + out
	case days > 1:
		out = fmt.Sprintf("%d days, %s", days, out)
	}

	return out
}

func (row *AttributesRow) Header() []string { return attributesHeader }

func (row *AttributesRow) Source() string { return row.Path }

func (row *AttributesRow) Record() []string {
	return []string{
		row.Path,
		row.General.Format, row.General.Duration, row.General.BitRate, row.General.WritingApplication,
		row.Video.Format, row.Video.CommercialName, row.Video.FormatProfile, row.Video.GOP, row.Video.Duration,
		row.Video.BitRate, row.Video.Width, row.Video.Height, row.Video.DisplayAspectRatio, row.Video.FrameRate,
		row.Video.ColorSpace, row.Video.ChromaSubsampling, row.Video.BitDepth, row.Video.ScanType,
		row.Video.ScanOrder, row.Video.TimeCodeFirstFrame, row.Video.GOPStructure,
		row.Audio.Format, row.Audio.Duration, row.Audio.BitRate, row.Audio.Channels, row.Audio.SamplingRate,
		row.Other.Type, row.Other.FrameRate, row.Other.TimeCodeFirstFrame, row.Other.TimeCodeLastFrame,
	}
}
