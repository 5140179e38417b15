// Package models defines the domain types shared by the scraper, the catalog client and the sync engine.
//
// # Types
//
//   - [ScrapedMention] : raw artist/name pair read from the radio playlist page
//   - [Track], [Artist], [Album] : catalog records returned by search and playlist reads
//   - [Playlist] : a full snapshot of a target playlist
//
// # Identity
//
// Whether two tracks are "the same" is decided by a [KeyFunc], never by struct equality.
// [ByID] compares catalog ids. [ByNameAndArtists] compares the track name and the ordered
// artist names, which folds the same recording released on several albums into one track.
//
// [TrackSet] is an insertion-ordered set keyed by a [KeyFunc] and is what reconciliation works on.
package models
