package blink

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/pkg/errors"

	"github.com/jake-scott/blink-homekit/internal/pkg/blinkapi"
)

var thumbnailTimeRE = regexp.MustCompile(`(?i)(\d{4})_(\d\d)_(\d\d)__(\d\d)_(\d\d)(am|pm)?$`)

// ParseThumbnailTime extracts the UTC capture time embedded at the end of
// a thumbnail path (..._YYYY_MM_DD__HH_MM).  Blink may append am or pm;
// the hour is taken as written either way.
func ParseThumbnailTime(thumbnail string) (time.Time, bool) {
	m := thumbnailTimeRE.FindStringSubmatch(thumbnail)
	if m == nil {
		return time.Time{}, false
	}

	t, err := time.Parse("2006-01-02 15:04", fmt.Sprintf("%s-%s-%s %s:%s", m[1], m[2], m[3], m[4], m[5]))
	if err != nil {
		return time.Time{}, false
	}

	return t, true
}

// SavedMedia returns the media change feed plus one entry for each camera
// whose current thumbnail carries a capture time, so that a camera with
// only a live thumbnail still has a most recent image
func (s *Store) SavedMedia(ctx context.Context) ([]*blinkapi.Media, error) {
	changes, err := s.client.MediaChanges(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetching saved media")
	}

	var media []*blinkapi.Media
	if changes != nil {
		for _, m := range changes.Media {
			if m != nil {
				media = append(media, m)
			}
		}
	}

	for _, c := range s.Snapshot().Cameras {
		created, ok := ParseThumbnailTime(c.Thumbnail)
		if !ok {
			continue
		}

		media = append(media, &blinkapi.Media{
			DeviceID:  c.ID,
			NetworkID: c.NetworkID,
			Thumbnail: c.Thumbnail,
			CreatedAt: strfmt.DateTime(created),
			UpdatedAt: strfmt.DateTime(created),
		})
	}

	return media, nil
}

// newestMedia returns the entry with the latest creation time, or nil
func newestMedia(media []*blinkapi.Media) *blinkapi.Media {
	var newest *blinkapi.Media
	for _, m := range media {
		if newest == nil || time.Time(m.CreatedAt).After(time.Time(newest.CreatedAt)) {
			newest = m
		}
	}
	return newest
}
