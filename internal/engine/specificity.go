package engine

import "whenthen/internal/domain"

// SpecificityScore ranks a playlet by how narrowly it is configured. When a
// torrent_added event could be claimed by several playlets the highest score
// wins; on equal scores the playlet encountered first in the engine's stable
// iteration order (insertion order) wins. That tie-break is part of the
// contract, not an accident.
func SpecificityScore(p *domain.Playlet) int {
	score := 0

	for _, c := range p.Conditions {
		score += 2
		if c.Operator == domain.OperatorEquals {
			score++
		}
		if c.Field == domain.FieldName && c.Operator == domain.OperatorRegex {
			score++
		}
	}

	if f := p.FileFilter; f != nil {
		switch f.Category {
		case domain.FilterCustom:
			score += 3
		case domain.FilterVideo, domain.FilterAudio, domain.FilterSubtitle:
			score += 2
		case domain.FilterAll:
			score++
		}
		if f.SelectLargest {
			score++
		}
		if f.MinSize > 0 {
			score++
		}
	}

	switch p.Trigger.Type {
	case domain.TriggerFolderWatch:
		if p.Trigger.WatchFolder != "" {
			score += 2
		}
	case domain.TriggerSeedingRatio:
		score++
	}

	return score
}

// mostSpecific returns the winner among candidates, preserving slice order
// on ties. Returns nil for an empty candidate set.
func mostSpecific(candidates []*domain.Playlet) *domain.Playlet {
	var best *domain.Playlet
	bestScore := -1
	for _, p := range candidates {
		if s := SpecificityScore(p); s > bestScore {
			best = p
			bestScore = s
		}
	}
	return best
}
