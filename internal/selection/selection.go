// Package selection filters and ranks candidate resources for a single slot
// of a study day. Every filter stage is a "keep the previous pool if the
// result is empty" step: a slot is never returned empty while any candidate
// survives an earlier stage.
package selection

import (
	"sort"

	"github.com/prepworks/mcat-scheduler/internal/catalog"
)

// SlotType names a content need within a day's recipe.
type SlotType string

const (
	SlotKaplan     SlotType = "kaplan"
	SlotKAVideo    SlotType = "ka_video"
	SlotKAArticle  SlotType = "ka_article"
	SlotKADiscrete SlotType = "ka_discrete"
	SlotJWDiscrete SlotType = "jw_discrete"
	SlotJWPassage  SlotType = "jw_passage"
	SlotUWorld     SlotType = "uworld"
	SlotAAMCSet    SlotType = "aamc_set"
)

// Selection is a scored candidate. It exists only during ranking.
type Selection struct {
	Resource    catalog.Resource
	Provider    catalog.Provider
	TimeMinutes int
	Specificity int
}

// timeFit is an ideal-duration band per resource class. A duration inside the
// band scores 0; outside, the score is the distance from the target.
type timeFit struct {
	target  int
	bandMin int
	bandMax int
}

var timeFits = map[string]timeFit{
	"KA video":   {target: 15, bandMin: 10, bandMax: 15},
	"KA article": {target: 10, bandMin: 8, bandMax: 12},
	"Kaplan":     {target: 30, bandMin: 20, bandMax: 30},
	"Discrete":   {target: 30, bandMin: 25, bandMax: 35},
	"Passage":    {target: 25, bandMin: 20, bandMax: 25},
	"UWorld 10Q": {target: 30, bandMin: 25, bandMax: 35},
	"AAMC":       {target: 30, bandMin: 25, bandMax: 35},
}

var providerRanks = map[catalog.Provider]int{
	catalog.ProviderKhanAcademy: 1,
	catalog.ProviderKaplan:      2,
	catalog.ProviderJackWestin:  3,
	catalog.ProviderUWorld:      4,
	catalog.ProviderAAMC:        5,
}

// ForSlot runs the full candidate pipeline for one slot: slot-type filter,
// high-yield preference (phases 1-2), never-repeat filter (skipped for the
// UWorld slot and all phase-3 slots, whose pools are small enough that
// repetition across days is intended), same-day dedup, the phase-2 discrete
// cross-phase filter, then scoring and the six-key sort. Candidates whose
// duration alone exceeds budgetMinutes are dropped before sorting; packing
// multiple selections into the budget is the caller's job.
func ForSlot(
	anchor catalog.Topic,
	slot SlotType,
	phase int,
	pool []catalog.Resource,
	used map[string]bool,
	budgetMinutes int,
	topics []catalog.Topic,
	sameDayUsed map[string]bool,
) []Selection {
	candidates := filterSlotType(pool, slot)

	// High-yield to the front in phases 1-2; low-yield kept as fallback.
	if phase <= 2 {
		high, low := partitionHighYield(candidates, topics)
		candidates = append(high, low...)
		if len(candidates) == 0 {
			candidates = filterSlotType(pool, slot)
		}
	}

	// Never-repeat across the plan, except where repetition is by design.
	repeatable := slot == SlotUWorld || phase == 3
	if !repeatable {
		unused := make([]catalog.Resource, 0, len(candidates))
		for _, r := range candidates {
			if !used[r.UID()] {
				unused = append(unused, r)
			}
		}
		if len(unused) > 0 {
			candidates = unused
		} else if len(candidates) == 0 {
			candidates = filterSlotType(pool, slot)
		}
	}

	// Same-day dedup; a same-day duplicate is allowed only as a last resort.
	fresh := make([]catalog.Resource, 0, len(candidates))
	for _, r := range candidates {
		if !sameDayUsed[r.UID()] {
			fresh = append(fresh, r)
		}
	}
	if len(fresh) > 0 {
		candidates = fresh
	}

	// Phase 2 discretes should not re-drill what phase 1 already covered.
	if phase == 2 {
		unseen := make([]catalog.Resource, 0, len(candidates))
		for _, r := range candidates {
			if !used[r.UID()] {
				unseen = append(unseen, r)
			}
		}
		if len(unseen) > 0 {
			candidates = unseen
		}
	}

	selections := make([]Selection, 0, len(candidates))
	for _, r := range candidates {
		selections = append(selections, Selection{
			Resource:    r,
			Provider:    r.Provider,
			TimeMinutes: r.TimeMinutes,
			Specificity: catalog.Specificity(anchor.Key, r.Key),
		})
	}

	return sortSelections(selections, budgetMinutes)
}

// MatchesSlot reports whether a resource satisfies a slot's type requirement.
func MatchesSlot(r catalog.Resource, slot SlotType) bool {
	switch r.Provider {
	case catalog.ProviderKaplan:
		return slot == SlotKaplan
	case catalog.ProviderUWorld:
		return slot == SlotUWorld
	case catalog.ProviderKhanAcademy:
		switch slot {
		case SlotKAVideo:
			return r.Type == catalog.TypeVideo
		case SlotKAArticle:
			return r.Type == catalog.TypeArticle
		case SlotKADiscrete:
			return r.Type == catalog.TypeDiscreteQuestion
		}
		return false
	case catalog.ProviderJackWestin:
		switch slot {
		case SlotKADiscrete, SlotJWDiscrete:
			return r.Type == catalog.TypeAAMCStyleDiscrete || r.Type == catalog.TypeFundamentalDiscrete
		case SlotJWPassage:
			return r.Type == catalog.TypeAAMCStylePassage ||
				r.Type == catalog.TypeFundamentalPassage ||
				r.Type == catalog.TypeCARSPassage
		}
		return false
	case catalog.ProviderAAMC:
		return slot == SlotAAMCSet && (r.Type == catalog.TypeQuestionPack || r.Type == catalog.TypeFullLength)
	}
	return false
}

func filterSlotType(pool []catalog.Resource, slot SlotType) []catalog.Resource {
	var out []catalog.Resource
	for _, r := range pool {
		if MatchesSlot(r, slot) {
			out = append(out, r)
		}
	}
	return out
}

// partitionHighYield splits candidates by whether any of their matching keys
// belongs to a high-yield topic.
func partitionHighYield(candidates []catalog.Resource, topics []catalog.Topic) (high, low []catalog.Resource) {
	highYieldKeys := make(map[string]bool)
	for _, t := range topics {
		if t.HighYield {
			highYieldKeys[t.Key] = true
		}
	}

	for _, r := range candidates {
		linked := false
		for _, k := range catalog.MatchingKeys(r.Key) {
			if highYieldKeys[k] {
				linked = true
				break
			}
		}
		if linked {
			high = append(high, r)
		} else {
			low = append(low, r)
		}
	}
	return high, low
}

// timeFitScore is 0 inside the resource class's ideal band, otherwise the
// absolute distance from the band's target.
func timeFitScore(r catalog.Resource) int {
	fit, ok := timeFits[fitClass(r)]
	if !ok {
		fit = timeFits["AAMC"]
	}
	if r.TimeMinutes >= fit.bandMin && r.TimeMinutes <= fit.bandMax {
		return 0
	}
	d := r.TimeMinutes - fit.target
	if d < 0 {
		d = -d
	}
	return d
}

func fitClass(r catalog.Resource) string {
	switch r.Provider {
	case catalog.ProviderKaplan:
		return "Kaplan"
	case catalog.ProviderUWorld:
		return "UWorld 10Q"
	case catalog.ProviderAAMC:
		return "AAMC"
	}
	switch r.Type {
	case catalog.TypeVideo:
		return "KA video"
	case catalog.TypeArticle:
		return "KA article"
	case catalog.TypeDiscreteQuestion, catalog.TypeAAMCStyleDiscrete, catalog.TypeFundamentalDiscrete:
		return "Discrete"
	case catalog.TypePracticePassage, catalog.TypeAAMCStylePassage, catalog.TypeFundamentalPassage, catalog.TypeCARSPassage:
		return "Passage"
	}
	return "AAMC"
}

func providerRank(p catalog.Provider) int {
	if rank, ok := providerRanks[p]; ok {
		return rank
	}
	return 999
}

// sortSelections drops candidates that alone exceed the remaining budget and
// orders the rest by specificity, numeric key order, time-fit, provider rank,
// title and stable ID.
func sortSelections(selections []Selection, budgetMinutes int) []Selection {
	kept := make([]Selection, 0, len(selections))
	for _, s := range selections {
		if s.TimeMinutes <= budgetMinutes {
			kept = append(kept, s)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.Specificity != b.Specificity {
			return a.Specificity < b.Specificity
		}
		an, bn := catalog.NumericOrder(a.Resource.Key), catalog.NumericOrder(b.Resource.Key)
		if an != bn {
			return an < bn
		}
		af, bf := timeFitScore(a.Resource), timeFitScore(b.Resource)
		if af != bf {
			return af < bf
		}
		ar, br := providerRank(a.Provider), providerRank(b.Provider)
		if ar != br {
			return ar < br
		}
		if a.Resource.Title != b.Resource.Title {
			return a.Resource.Title < b.Resource.Title
		}
		return a.Resource.StableID < b.Resource.StableID
	})
	return kept
}
