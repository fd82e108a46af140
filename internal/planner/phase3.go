package planner

import (
	"context"
	"strings"
	"time"

	"github.com/prepworks/mcat-scheduler/internal/calendar"
	"github.com/prepworks/mcat-scheduler/internal/catalog"
	"github.com/prepworks/mcat-scheduler/internal/selection"
)

// PlanPhase3Day builds an exam-simulation day from official AAMC material:
// two question-pack sets from distinct packs where possible, two CARS
// passages, then up to three extra sets and one extra CARS passage toward the
// phase target. AAMC material repeats across days by design; only same-day
// duplication is avoided.
func (p *Planner) PlanPhase3Day(ctx context.Context, date time.Time, anchor catalog.Topic, used map[string]bool) (Day, error) {
	blocks := &Blocks{WrittenReviewMinutes: WrittenReviewMinutes}
	d := newDayState(date, anchor, used)

	packs, err := p.store.AAMCResources(ctx, catalog.TypeQuestionPack)
	if err != nil {
		return Day{}, err
	}

	// 1. AAMC sets: 2 question-pack sets, preferring distinct packs.
	sets := filterAAMCSets(packs)
	setSelections := selection.ForSlot(anchor, selection.SlotAAMCSet, 3, sets, used, d.remaining, p.topics, d.sameDayUsed)

	usedPacks := make(map[string]bool)
	for _, sel := range setSelections {
		if d.remaining < sel.TimeMinutes {
			continue
		}
		packName := sel.Resource.PackName
		if packName == "" {
			packName = "Unknown"
		}
		if len(usedPacks) == 0 || !usedPacks[packName] || len(usedPacks) == 1 {
			if err := p.commit(ctx, d, sel, &blocks.AAMCSets); err != nil {
				return Day{}, err
			}
			usedPacks[packName] = true
			if len(blocks.AAMCSets) >= 2 {
				break
			}
		}
	}

	// 2. AAMC CARS passages: 2.
	carsSelections := selection.ForSlot(anchor, selection.SlotAAMCSet, 3, filterAAMCCARS(packs), used, d.remaining, p.topics, d.sameDayUsed)
	for _, sel := range limit(carsSelections, 2) {
		if d.remaining < sel.TimeMinutes {
			continue
		}
		if err := p.commit(ctx, d, sel, &blocks.AAMCCARSPassages); err != nil {
			return Day{}, err
		}
	}

	// 3. Fill toward the phase target: up to 3 more sets, pack preference
	// relaxed past the first two, then at most 1 more CARS passage.
	target := p.targets.Phase3Target
	extraSets := 0
	for d.remaining >= 25 && extraSets < 3 && d.spent() < target {
		added := false
		for _, sel := range skip(setSelections, 2+extraSets) {
			if d.remaining >= sel.TimeMinutes && !d.sameDayUsed[sel.Resource.UID()] {
				if err := p.commit(ctx, d, sel, &blocks.AAMCSets); err != nil {
					return Day{}, err
				}
				extraSets++
				added = true
				break
			}
		}
		if !added {
			break
		}
	}

	if d.remaining >= 20 && d.spent() < target {
		for _, sel := range window(carsSelections, 2, 3) {
			if d.remaining >= sel.TimeMinutes && !d.sameDayUsed[sel.Resource.UID()] {
				if err := p.commit(ctx, d, sel, &blocks.AAMCCARSPassages); err != nil {
					return Day{}, err
				}
				break
			}
		}
	}

	blocks.TotalResourceMinutes = d.spent()
	return Day{
		Date:   calendar.FormatDate(date),
		Kind:   "study",
		Phase:  3,
		Blocks: blocks,
	}, nil
}

// filterAAMCSets drops annotation rows and CARS-labeled packs from the
// question-pack pool. The source workbook carries developer notes and section
// header rows inline with real material.
func filterAAMCSets(packs []catalog.Resource) []catalog.Resource {
	var out []catalog.Resource
	for _, r := range packs {
		if isAnnotationRow(r.Title) || strings.Contains(r.Title, "CARS") ||
			strings.TrimSpace(r.Title) == "Critical Analysis and Reasoning Skills" {
			continue
		}
		out = append(out, r)
	}
	return out
}

// filterAAMCCARS keeps only genuine CARS passage packs.
func filterAAMCCARS(packs []catalog.Resource) []catalog.Resource {
	var out []catalog.Resource
	for _, r := range packs {
		if !strings.Contains(r.Title, "CARS") || isAnnotationRow(r.Title) ||
			strings.TrimSpace(r.Title) == "Critical Analysis and Reasoning Skills" {
			continue
		}
		out = append(out, r)
	}
	return out
}

func isAnnotationRow(title string) bool {
	return strings.Contains(title, "This color") ||
		strings.Contains(title, "developer") ||
		strings.Contains(title, "note")
}

func skip(selections []selection.Selection, n int) []selection.Selection {
	if n >= len(selections) {
		return nil
	}
	return selections[n:]
}

func window(selections []selection.Selection, from, to int) []selection.Selection {
	if from >= len(selections) {
		return nil
	}
	if to > len(selections) {
		to = len(selections)
	}
	return selections[from:to]
}
