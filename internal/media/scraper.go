package media

// Responsible for turning a single file in to a fixed-shape output row. The
// heavy lifting is done by the external parser (see the probe package); this
// file only guards the call and applies the profile's extraction policy.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hbomb79/mediatab/internal/probe"
	"github.com/hbomb79/mediatab/pkg/logger"
)

var (
	log = logger.Get("Inspector")

	ErrEmptyFile = errors.New("file is empty")
)

type (
	// Inspector produces exactly one Row, or an error, for a given path.
	Inspector interface {
		Inspect(ctx context.Context, path string) (Row, error)
	}

	// InspectError is returned for any failure to inspect a file. It is
	// never fatal to a run; the file is instead reported as skipped.
	InspectError struct {
		Path string
		Err  error
	}

	MetadataScraper struct {
		prober  probe.Prober
		profile Profile
		timeout time.Duration
	}
)

// NewMetadataScraper creates an Inspector which uses the prober provided to
// read file metadata, and the profile provided to shape the resulting row. A
// zero timeout disables the per-file timeout.
func NewMetadataScraper(prober probe.Prober, profile Profile, timeout time.Duration) *MetadataScraper {
	return &MetadataScraper{prober: prober, profile: profile, timeout: timeout}
}

// Inspect probes the file at the path provided and builds a row from the
// result. All failures, including a panic inside the prober, are returned
// as an *InspectError.
func (scraper *MetadataScraper) Inspect(ctx context.Context, path string) (row Row, err error) {
	defer func() {
		if r := recover(); r != nil {
			row = nil
			err = &InspectError{Path: path, Err: fmt.Errorf("panic whilst probing file: %v", r)}
		}
	}()

	info, err := os.Stat(path)
	if err != nil {
		return nil, &InspectError{Path: path, Err: err}
	} else if info.Size() == 0 {
		return nil, &InspectError{Path: path, Err: ErrEmptyFile}
	}

	if scraper.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, scraper.timeout)
		defer cancel()
	}

	start := time.Now()
	set, err := scraper.prober.Probe(ctx, path)
	if err != nil {
		return nil, &InspectError{Path: path, Err: err}
	} else if set == nil {
		return nil, &InspectError{Path: path, Err: errors.New("probe returned no error, but nil track set received")}
	}
	log.Emit(logger.VERBOSE, "Probed %s in %s (%d tracks)\n", path, time.Since(start), len(set.Tracks))

	switch scraper.profile {
	case FrameRateProfile:
		return NewFrameRateRow(set), nil
	case AttributesProfile:
		return NewAttributesRow(set), nil
	default:
		return nil, &InspectError{Path: path, Err: fmt.Errorf("%w: %q", ErrUnknownProfile, scraper.profile)}
	}
}

func (err *InspectError) Error() string {
	return fmt.Sprintf("failed to inspect %s: %v", err.Path, err.Err)
}

func (err *InspectError) Unwrap() error { return err.Err }
