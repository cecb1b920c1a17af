package media_test

import (
	"path/filepath"
	"testing"

	"github.com/hbomb79/mediatab/internal/media"
	"github.com/hbomb79/mediatab/internal/probe"
	"github.com/stretchr/testify/assert"
)

func Test_AttributesRow_FullFile(t *testing.T) {
	t.Parallel()

	row := media.NewAttributesRow(&probe.TrackSet{
		Path: "/media/master.mxf",
		Tracks: []probe.Track{
			{Type: probe.GeneralTrack, Format: "MXF", Duration: "120.04", BitRate: "52000000", WritingApplication: "Avid"},
			{Type: probe.VideoTrack, Format: "MPEG Video", CommercialName: "XDCAM HD422", Duration: "120", Width: "1920", Height: "1080", FrameRate: "25.000", GOPStructure: "Closed"},
			{Type: probe.AudioTrack, Format: "PCM", Duration: "0.5", Channels: "2", SamplingRate: "48000"},
			{Type: probe.AudioTrack, Format: "AAC"},
			{Type: probe.TimeCodeTrack, FrameRate: "25.000", TimeCodeFirstFrame: "10:00:00:00", TimeCodeLastFrame: "10:02:00:00"},
		},
	})

	record := row.Record()
	assert.Len(t, record, len(row.Header()))
	assert.Equal(t, "/media/master.mxf", record[0])
	assert.Equal(t, "0:02:00.040000", row.General.Duration)
	assert.Equal(t, "0:02:00", row.Video.Duration)
	assert.Equal(t, "0:00:00.500000", row.Audio.Duration)
	assert.Equal(t, "PCM", row.Audio.Format, "first audio track should be used")
	assert.Equal(t, "Time code", row.Other.Type)
	assert.Equal(t, "10:02:00:00", row.Other.TimeCodeLastFrame)
	assert.Equal(t, "Closed", record[21])
}

func Test_AttributesRow_ArityIsConstant(t *testing.T) {
	t.Parallel()

	sets := []*probe.TrackSet{
		{Path: "a.mp4", Tracks: []probe.Track{{Type: probe.GeneralTrack, Format: "MPEG-4"}}},
		{Path: "b.mp4", Tracks: []probe.Track{{Type: probe.GeneralTrack}, {Type: probe.AudioTrack}}},
		{Path: "c.mp4", Tracks: []probe.Track{{Type: probe.GeneralTrack}, {Type: probe.VideoTrack}, {Type: probe.OtherTrack}, {Type: probe.OtherTrack}, {Type: probe.OtherTrack}, {Type: probe.OtherTrack}}},
	}

	for _, set := range sets {
		row := media.NewAttributesRow(set)
		assert.Len(t, row.Record(), 31, "attributes row for %s", set.Path)
	}

	frameRow := media.NewFrameRateRow(&probe.TrackSet{Path: "d.mp4"})
	assert.Len(t, frameRow.Record(), 9)
	assert.Len(t, frameRow.Header(), 9)
}

func Test_AttributesRow_AbsentCategoriesAreEmpty(t *testing.T) {
	t.Parallel()

	row := media.NewAttributesRow(&probe.TrackSet{
		Path:   "relative/audio.mov",
		Tracks: []probe.Track{{Type: probe.GeneralTrack, Format: "QuickTime"}, {Type: probe.AudioTrack, Format: "AAC"}},
	})

	assert.True(t, filepath.IsAbs(row.Path), "path should be made absolute")
	assert.Equal(t, media.VideoAttributes{}, row.Video)
	assert.Equal(t, media.OtherAttributes{}, row.Other)
	assert.Equal(t, "AAC", row.Audio.Format)
}

func Test_AttributesRow_DurationFormatting(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":          "",
		"0":         "0:00:00",
		"3661.25":   "1:01:01.250000",
		"86400":     "1 day, 0:00:00",
		"180000.5":  "2 days, 2:00:00.500000",
		"not-a-num": "not-a-num",
	}

	for in, expected := range tests {
		row := media.NewAttributesRow(&probe.TrackSet{Path: "x", Tracks: []probe.Track{{Type: probe.GeneralTrack, Duration: in}}})
		assert.Equal(t, expected, row.General.Duration, "duration %q", in)
	}
}
