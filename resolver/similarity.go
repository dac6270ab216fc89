package resolver

import "strings"

// defaultSimilarity builds the request's scorer. Structured requests score
// each category against the matching candidate field; full-text requests
// score the query text against a per-category projection of the candidate.
func defaultSimilarity(q *Request) SimilarityFunc {
	return func(c Candidate, category Category) float64 {
		track := Normalize(c.Track)
		album := Normalize(c.Album)
		artist := Normalize(c.Artist)

		if q.fullText != "" {
			switch category {
			case CategoryTrack:
				return textSimilarity(q.fullText, joinFields(artist, track))
			case CategoryAlbum:
				return textSimilarity(q.fullText, joinFields(artist, album))
			case CategoryArtist:
				return textSimilarity(q.fullText, artist)
			}
			return 0
		}

		switch category {
		case CategoryTrack:
			s := textSimilarity(q.track, track)
			if q.artist != "" {
				// Weight: 60% track, 40% artist.
				s = s*0.6 + textSimilarity(q.artist, artist)*0.4
			}
			return s
		case CategoryAlbum:
			return textSimilarity(q.album, album)
		case CategoryArtist:
			return textSimilarity(q.artist, artist)
		}
		return 0
	}
}

func joinFields(parts ...string) string {
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

// textSimilarity returns how similar two normalized strings are (0.0-1.0).
// Compact comparison handles cases like "theweeknd" vs "the weeknd";
// otherwise the score is the token overlap relative to the larger token set.
func textSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	if strings.ReplaceAll(a, " ", "") == strings.ReplaceAll(b, " ", "") {
		return 1.0
	}

	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)

	setB := make(map[string]bool, len(tokensB))
	for _, t := range tokensB {
		setB[t] = true
	}

	matches := 0
	for _, t := range tokensA {
		if setB[t] {
			matches++
		}
	}

	denom := len(tokensA)
	if len(tokensB) > denom {
		denom = len(tokensB)
	}
	return float64(matches) / float64(denom)
}
