package probe

type TrackType string

const (
	GeneralTrack  TrackType = "General"
	VideoTrack    TrackType = "Video"
	AudioTrack    TrackType = "Audio"
	TextTrack     TrackType = "Text"
	OtherTrack    TrackType = "Other"
	DataTrack     TrackType = "Data"
	TimeCodeTrack TrackType = "Time code"
	MenuTrack     TrackType = "Menu"
	ImageTrack    TrackType = "Image"
)

type (
	// Track is a single elementary stream (or the container itself, in the
	// case of the General track) as described by the external parser. All
	// values are passed through as strings; interpretation is left to
	// the profile consuming the track.
	//
	// The mapstructure tags match the field names used by `mediainfo --Output=JSON`.
	Track struct {
		Type               TrackType `mapstructure:"@type"`
		Kind               string    `mapstructure:"Type"`
		Format             string    `mapstructure:"Format"`
		CommercialName     string    `mapstructure:"Format_Commercial_IfAny"`
		FormatProfile      string    `mapstructure:"Format_Profile"`
		GOP                string    `mapstructure:"Format_Settings_GOP"`
		GOPStructure       string    `mapstructure:"Gop_OpenClosed"`
		Duration           string    `mapstructure:"Duration"`
		BitRate            string    `mapstructure:"BitRate"`
		Width              string    `mapstructure:"Width"`
		Height             string    `mapstructure:"Height"`
		DisplayAspectRatio string    `mapstructure:"DisplayAspectRatio"`
		FrameRate          string    `mapstructure:"FrameRate"`
		ColorSpace         string    `mapstructure:"ColorSpace"`
		ChromaSubsampling  string    `mapstructure:"ChromaSubsampling"`
		BitDepth           string    `mapstructure:"BitDepth"`
		ScanType           string    `mapstructure:"ScanType"`
		ScanOrder          string    `mapstructure:"ScanOrder"`
		TimeCodeFirstFrame string    `mapstructure:"TimeCode_FirstFrame"`
		TimeCodeLastFrame  string    `mapstructure:"TimeCode_LastFrame"`
		TimeCodeSettings   string    `mapstructure:"TimeCode_Settings"`
		MuxingMode         string    `mapstructure:"MuxingMode"`
		Title              string    `mapstructure:"Title"`
		SamplingRate       string    `mapstructure:"SamplingRate"`
		Channels           string    `mapstructure:"Channels"`
		WritingApplication string    `mapstructure:"Encoded_Application"`
	}

	// TrackSet is the backend-neutral result of probing a single file. The
	// order of Tracks is the order reported by the parser; by convention the
	// first track is the General (container) track.
	TrackSet struct {
		Path   string
		Tracks []Track
	}
)

// General returns the container-level track, which is always
// the first track in the set. Nil is returned if the set is empty.
func (set *TrackSet) General() *Track {
	if len(set.Tracks) == 0 {
		return nil
	}

	return &set.Tracks[0]
}

// First returns the first track of the type provided, or nil if
// no such track exists.
func (set *TrackSet) First(trackType TrackType) *Track {
	for i := range set.Tracks {
		if set.Tracks[i].Type == trackType {
			return &set.Tracks[i]
		}
	}

	return nil
}

// OfType returns all tracks matching the type provided, in order.
func (set *TrackSet) OfType(trackType TrackType) []Track {
	out := make([]Track, 0)
	for _, t := range set.Tracks {
		if t.Type == trackType {
			out = append(out, t)
		}
	}

	return out
}

// validate ensures the track set describes something the parser
// actually recognised.
func (set *TrackSet) validate() error {
	if len(set.Tracks) == 0 {
		return ErrUnrecognisedContainer
	}

	if len(set.Tracks) == 1 && set.Tracks[0].Type == GeneralTrack && set.Tracks[0].Format == "" {
		return ErrUnrecognisedContainer
	}

	return nil
}
