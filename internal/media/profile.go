package media

import (
	"errors"
	"fmt"
	"strings"
)

// Profile selects the fixed row schema (and the field extraction policy
// used to populate it) for a run. Rows of different profiles are never
// mixed in the same output.
type Profile string

const (
	FrameRateProfile  Profile = "framerate"
	AttributesProfile Profile = "attributes"
)

var ErrUnknownProfile = errors.New("unknown extraction profile")

// Row is a single fixed-arity output record. The length of Record
// always matches the length of Header for a given profile.
type Row interface {
	Header() []string
	Record() []string
	// Source is the path of the file this row describes.
	Source() string
}

func ParseProfile(name string) (Profile, error) {
	switch Profile(strings.ToLower(strings.TrimSpace(name))) {
	case FrameRateProfile:
		return FrameRateProfile, nil
	case AttributesProfile:
		return AttributesProfile, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
}

// Header returns the CSV header for the profile.
func (p Profile) Header() []string {
	switch p {
	case FrameRateProfile:
		return frameRateHeader
	case AttributesProfile:
		return attributesHeader
	default:
		return nil
	}
}

// DefaultExtensions returns the extension allow-list applied when the
// user has not configured one. The frame-rate profile accepts everything.
func (p Profile) DefaultExtensions() []string {
	if p == AttributesProfile {
		return []string{"avi", "mp4", "mkv", "mov", "flv", "mxf"}
	}

	return nil
}

func (p Profile) String() string { return string(p) }
