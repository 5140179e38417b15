package tasks

import "github.com/desertthunder/radiosync/internal/models"

// Delta is the set of playlist edits that brings a playlist in line with the current tracks.
type Delta struct {
	ToAdd    []models.Track
	ToRemove []models.Track
}

// Empty reports whether the delta has nothing to apply.
func (d Delta) Empty() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0
}

// Reconcile computes the tracks to add (current minus existing) and, when removeOutdated is set, the
// tracks to remove (existing minus current). Both lists are sorted by name, then identity key.
func Reconcile(current, existing *models.TrackSet, removeOutdated bool) Delta {
	delta := Delta{
		ToAdd:    current.Difference(existing).Sorted(),
		ToRemove: []models.Track{},
	}
	if removeOutdated {
		delta.ToRemove = existing.Difference(current).Sorted()
	}
	return delta
}

// removalURIs returns the URI of every playlist entry whose identity is in remove, in playlist order and
// without repeats. Under a name based identity one removed track can stand for several playlist entries.
func removalURIs(entries []models.Track, remove []models.Track, key models.KeyFunc) []string {
	doomed := models.NewTrackSet(key, remove...)
	seen := map[string]bool{}
	uris := []string{}
	for _, t := range entries {
		if !doomed.Has(t) || seen[t.URI] {
			continue
		}
		seen[t.URI] = true
		uris = append(uris, t.URI)
	}
	return uris
}
