package planner

import (
	"context"
	"time"

	"github.com/prepworks/mcat-scheduler/internal/calendar"
	"github.com/prepworks/mcat-scheduler/internal/catalog"
	"github.com/prepworks/mcat-scheduler/internal/selection"
)

// PlanPhase1Day builds a foundation-phase day: one Kaplan section paired with
// matching Khan Academy content, one discrete set, two CARS passages, then an
// aggressive fill toward the phase target. CARS passages are never topped up
// here; the remaining pool is reserved for phase 2.
func (p *Planner) PlanPhase1Day(ctx context.Context, date time.Time, anchor catalog.Topic, used map[string]bool) (Day, error) {
	blocks := &Blocks{WrittenReviewMinutes: WrittenReviewMinutes}
	d := newDayState(date, anchor, used)

	// 1. Science content: 1 Kaplan section, high-yield preferred.
	kaplan, err := p.store.KaplanResources(ctx, anchor.Key, true)
	if err != nil {
		return Day{}, err
	}
	if len(kaplan) == 0 {
		kaplan, err = p.store.KaplanResources(ctx, anchor.Key, false)
		if err != nil {
			return Day{}, err
		}
	}

	kaplanSelections := selection.ForSlot(anchor, selection.SlotKaplan, 1, kaplan, used, d.remaining, p.topics, d.sameDayUsed)
	if len(kaplanSelections) > 0 {
		if err := p.commit(ctx, d, kaplanSelections[0], &blocks.ScienceContent); err != nil {
			return Day{}, err
		}
	}

	// Matching KA content: up to 2 videos and 1 article.
	videos, err := p.store.KhanAcademyResources(ctx, anchor.Key, catalog.TypeVideo)
	if err != nil {
		return Day{}, err
	}
	videoSelections := selection.ForSlot(anchor, selection.SlotKAVideo, 1, videos, used, d.remaining, p.topics, d.sameDayUsed)
	for _, sel := range limit(videoSelections, 2) {
		if d.remaining < sel.TimeMinutes {
			continue
		}
		if err := p.commit(ctx, d, sel, &blocks.ScienceContent); err != nil {
			return Day{}, err
		}
	}

	articles, err := p.store.KhanAcademyResources(ctx, anchor.Key, catalog.TypeArticle)
	if err != nil {
		return Day{}, err
	}
	articleSelections := selection.ForSlot(anchor, selection.SlotKAArticle, 1, articles, used, d.remaining, p.topics, d.sameDayUsed)
	for _, sel := range limit(articleSelections, 1) {
		if d.remaining < sel.TimeMinutes {
			continue
		}
		if err := p.commit(ctx, d, sel, &blocks.ScienceContent); err != nil {
			return Day{}, err
		}
	}

	// 2. Science discretes: 1 set from the pooled KA/JW candidates.
	discretes, err := p.scienceDiscretes(ctx, anchor.Key)
	if err != nil {
		return Day{}, err
	}
	discreteSelections := selection.ForSlot(anchor, selection.SlotKADiscrete, 1, discretes, used, d.remaining, p.topics, d.sameDayUsed)
	if len(discreteSelections) > 0 {
		if err := p.commit(ctx, d, discreteSelections[0], &blocks.ScienceDiscretes); err != nil {
			return Day{}, err
		}
	}

	// 3. CARS: 2 Jack Westin passages.
	cars, err := p.store.CARSPassages(ctx)
	if err != nil {
		return Day{}, err
	}
	carsSelections := selection.ForSlot(anchor, selection.SlotJWPassage, 2, cars, used, d.remaining, p.topics, d.sameDayUsed)
	for _, sel := range limit(carsSelections, 2) {
		if d.remaining < sel.TimeMinutes {
			continue
		}
		if err := p.commit(ctx, d, sel, &blocks.CARS); err != nil {
			return Day{}, err
		}
	}

	// 4. Fill remaining time toward the phase target.
	if err := p.fillRemainingTime(ctx, d, blocks, 1, p.targets.Phase1Target, used); err != nil {
		return Day{}, err
	}

	blocks.TotalResourceMinutes = d.spent()
	return Day{
		Date:   calendar.FormatDate(date),
		Kind:   "study",
		Phase:  1,
		Blocks: blocks,
	}, nil
}

// fillRemainingTime greedily adds videos, articles and discrete sets, in that
// preference order, until the target is reached or no eligible candidate
// remains. The first pass skips anything already used; a second pass relaxes
// the re-check as a last resort so a short catalog never strands a day far
// below target.
func (p *Planner) fillRemainingTime(ctx context.Context, d *dayState, blocks *Blocks, phase int, target int, used map[string]bool) error {
	if d.remaining <= 0 || d.spent() >= target {
		return nil
	}

	videos, err := p.store.KhanAcademyResources(ctx, d.anchor.Key, catalog.TypeVideo)
	if err != nil {
		return err
	}
	articles, err := p.store.KhanAcademyResources(ctx, d.anchor.Key, catalog.TypeArticle)
	if err != nil {
		return err
	}
	discretes, err := p.scienceDiscretes(ctx, d.anchor.Key)
	if err != nil {
		return err
	}

	type fillStep struct {
		pool  []catalog.Resource
		block *[]ResourceItem
		slot  selection.SlotType
	}
	steps := []fillStep{
		{videos, &blocks.ScienceContent, selection.SlotKAVideo},
		{articles, &blocks.ScienceContent, selection.SlotKAArticle},
		{discretes, &blocks.ScienceDiscretes, selection.SlotKADiscrete},
	}

	for _, step := range steps {
		if d.spent() >= target {
			break
		}
		selections := selection.ForSlot(d.anchor, step.slot, phase, step.pool, used, d.remaining, p.topics, d.sameDayUsed)
		for _, sel := range selections {
			uid := sel.Resource.UID()
			if d.remaining < sel.TimeMinutes || d.sameDayUsed[uid] || used[uid] || d.spent() >= target {
				continue
			}
			used[uid] = true
			if err := p.commit(ctx, d, sel, step.block); err != nil {
				return err
			}
		}
	}

	// Last resort: re-run the steps without the used-set re-check.
	if d.spent() < target && d.remaining >= 10 {
		for _, step := range steps {
			if d.spent() >= target {
				break
			}
			selections := selection.ForSlot(d.anchor, step.slot, phase, step.pool, used, d.remaining, p.topics, d.sameDayUsed)
			for _, sel := range selections {
				if d.remaining < sel.TimeMinutes || d.spent() >= target {
					continue
				}
				if err := p.commit(ctx, d, sel, step.block); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func limit(selections []selection.Selection, n int) []selection.Selection {
	if len(selections) > n {
		return selections[:n]
	}
	return selections
}
