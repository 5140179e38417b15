package models

import (
	"fmt"
	"sort"
	"strings"

	"github.com/desertthunder/radiosync/internal/shared"
)

// KeyFunc extracts the identity key of a track. Two tracks with equal keys are the same track.
type KeyFunc func(Track) string

// ByID identifies tracks by catalog id.
//
// The same recording released on several albums has several ids and counts as several tracks.
func ByID(t Track) string {
	return t.ID
}

// ByNameAndArtists identifies tracks by name and ordered artist names.
func ByNameAndArtists(t Track) string {
	return t.Name + "\x1f" + strings.Join(t.ArtistNames(), "\x1e")
}

// IdentityFor returns the [KeyFunc] registered under name.
func IdentityFor(name string) (KeyFunc, error) {
	switch name {
	case shared.IdentityByID, "":
		return ByID, nil
	case shared.IdentityByNameAndArtists:
		return ByNameAndArtists, nil
	default:
		return nil, fmt.Errorf("%w: unknown identity policy %q", shared.ErrInvalidConfig, name)
	}
}

// TrackSet is an insertion-ordered set of tracks keyed by a [KeyFunc].
//
// The first track added under a key wins. The zero value is not usable; use [NewTrackSet].
type TrackSet struct {
	key    KeyFunc
	index  map[string]int
	tracks []Track
}

// NewTrackSet returns a set using key, seeded with tracks.
func NewTrackSet(key KeyFunc, tracks ...Track) *TrackSet {
	if key == nil {
		key = ByID
	}
	s := &TrackSet{key: key, index: make(map[string]int, len(tracks))}
	for _, t := range tracks {
		s.Add(t)
	}
	return s
}

// Key returns the identity key of t under this set's policy.
func (s *TrackSet) Key(t Track) string {
	return s.key(t)
}

// Add inserts t and reports whether it was new.
func (s *TrackSet) Add(t Track) bool {
	k := s.key(t)
	if _, ok := s.index[k]; ok {
		return false
	}
	s.index[k] = len(s.tracks)
	s.tracks = append(s.tracks, t)
	return true
}

// Has reports whether a track with the same identity is in the set.
func (s *TrackSet) Has(t Track) bool {
	_, ok := s.index[s.key(t)]
	return ok
}

// Len returns the number of distinct tracks.
func (s *TrackSet) Len() int {
	return len(s.tracks)
}

// Tracks returns a copy of the tracks in insertion order.
func (s *TrackSet) Tracks() []Track {
	out := make([]Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

// Sorted returns the tracks ordered by name, then identity key.
func (s *TrackSet) Sorted() []Track {
	out := s.Tracks()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return s.key(out[i]) < s.key(out[j])
	})
	return out
}

// Difference returns the tracks of s that other does not contain.
//
// Both sets should share a [KeyFunc]; membership in other is decided by other's policy.
func (s *TrackSet) Difference(other *TrackSet) *TrackSet {
	diff := NewTrackSet(s.key)
	for _, t := range s.tracks {
		if other == nil || !other.Has(t) {
			diff.Add(t)
		}
	}
	return diff
}
