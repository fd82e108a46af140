package planner

import (
	"context"
	"time"

	"github.com/prepworks/mcat-scheduler/internal/calendar"
	"github.com/prepworks/mcat-scheduler/internal/catalog"
	"github.com/prepworks/mcat-scheduler/internal/selection"
)

// PlanPhase2Day builds an integration-phase day: two science passages, one
// UWorld set, up to two discrete sets not already drilled in phase 1, and
// exactly two CARS passages. The filler tops up passages and discretes only;
// the CARS count is a fixed quota, not a target.
func (p *Planner) PlanPhase2Day(ctx context.Context, date time.Time, anchor catalog.Topic, used map[string]bool) (Day, error) {
	blocks := &Blocks{WrittenReviewMinutes: WrittenReviewMinutes}
	d := newDayState(date, anchor, used)

	// 1. Science passages: 2 topic-linked Jack Westin passages.
	passages, err := p.sciencePassages(ctx, anchor.Key)
	if err != nil {
		return Day{}, err
	}
	passageSelections := selection.ForSlot(anchor, selection.SlotJWPassage, 2, passages, used, d.remaining, p.topics, d.sameDayUsed)
	for _, sel := range limit(passageSelections, 2) {
		if d.remaining < sel.TimeMinutes {
			continue
		}
		if err := p.commit(ctx, d, sel, &blocks.SciencePassages); err != nil {
			return Day{}, err
		}
	}

	// 2. UWorld: 1 question set. UWorld sets may repeat across days while
	// the pool lasts, so the never-repeat filter does not apply here.
	uworld, err := p.store.UWorldResources(ctx, anchor.Key)
	if err != nil {
		return Day{}, err
	}
	uworldSelections := selection.ForSlot(anchor, selection.SlotUWorld, 2, uworld, used, d.remaining, p.topics, d.sameDayUsed)
	if len(uworldSelections) > 0 {
		if err := p.commit(ctx, d, uworldSelections[0], &blocks.UWorldSet); err != nil {
			return Day{}, err
		}
	}

	// 3. Extra discretes: up to 2 sets not seen during phase 1.
	discretes, err := p.scienceDiscretes(ctx, anchor.Key)
	if err != nil {
		return Day{}, err
	}
	freshDiscretes := unusedOnly(discretes, used)
	discreteSelections := selection.ForSlot(anchor, selection.SlotKADiscrete, 2, freshDiscretes, used, d.remaining, p.topics, d.sameDayUsed)
	for _, sel := range limit(discreteSelections, 2) {
		if d.remaining < sel.TimeMinutes {
			continue
		}
		if err := p.commit(ctx, d, sel, &blocks.ExtraDiscretes); err != nil {
			return Day{}, err
		}
	}

	// 4. CARS: exactly 2 passages.
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

	// 5. Fill toward the phase target with passages and discretes only.
	if err := p.fillRemainingTimePhase2(ctx, d, blocks, used); err != nil {
		return Day{}, err
	}

	blocks.TotalResourceMinutes = d.spent()
	return Day{
		Date:   calendar.FormatDate(date),
		Kind:   "study",
		Phase:  2,
		Blocks: blocks,
	}, nil
}

// fillRemainingTimePhase2 tops up science passages and phase-1-unseen
// discretes toward the phase 2 target. CARS stays at its fixed quota.
func (p *Planner) fillRemainingTimePhase2(ctx context.Context, d *dayState, blocks *Blocks, used map[string]bool) error {
	target := p.targets.Phase2Target
	if d.remaining <= 0 || d.spent() >= target {
		return nil
	}

	passages, err := p.sciencePassages(ctx, d.anchor.Key)
	if err != nil {
		return err
	}
	discretes, err := p.scienceDiscretes(ctx, d.anchor.Key)
	if err != nil {
		return err
	}
	freshDiscretes := unusedOnly(discretes, used)

	type fillStep struct {
		pool  []catalog.Resource
		block *[]ResourceItem
		slot  selection.SlotType
	}
	steps := []fillStep{
		{passages, &blocks.SciencePassages, selection.SlotJWPassage},
		{freshDiscretes, &blocks.ExtraDiscretes, selection.SlotKADiscrete},
	}

	for _, step := range steps {
		if d.spent() >= target {
			break
		}
		selections := selection.ForSlot(d.anchor, step.slot, 2, step.pool, used, d.remaining, p.topics, d.sameDayUsed)
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

	return nil
}
