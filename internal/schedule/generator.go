// Package schedule drives full-plan generation: the outer loop over the
// calendar, anchor topic rotation, and assembly of the final response.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prepworks/mcat-scheduler/internal/calendar"
	"github.com/prepworks/mcat-scheduler/internal/catalog"
	"github.com/prepworks/mcat-scheduler/internal/planner"
)

// Generator produces one schedule for one schedule identifier. The
// per-category rotation cursors live here for the run's lifetime; two
// generators never share ledger state because the ledger is keyed by
// schedule identifier.
type Generator struct {
	store      catalog.Store
	scheduleID string
	planner    *planner.Planner
	cursors    map[string]int
	observer   DayObserver
}

// NewGenerator creates a generator for a fresh schedule identifier.
func NewGenerator(store catalog.Store, scheduleID string) *Generator {
	return &Generator{
		store:      store,
		scheduleID: scheduleID,
		planner:    planner.New(store, scheduleID),
		cursors:    make(map[string]int),
	}
}

// SetObserver registers a callback invoked for each committed day, in order.
func (g *Generator) SetObserver(obs DayObserver) {
	g.observer = obs
}

// Generate builds the full day-by-day plan. The day loop is strictly
// sequential: each day's plan depends on the ledger rows committed by all
// previous days, so days cannot be planned out of order.
func (g *Generator) Generate(ctx context.Context, req Request) (*Response, error) {
	allDates := calendar.DateRange(req.StartDate, req.TestDate)

	var studyDates []time.Time
	for _, d := range allDates {
		if calendar.IsStudyDay(d, req.Availability) {
			studyDates = append(studyDates, d)
		}
	}

	flDates, err := calendar.DistributeFullLengths(req.StartDate, req.TestDate, req.FLWeekday, calendar.FullLengthCount)
	if err != nil {
		return nil, fmt.Errorf("distributing full lengths: %w", err)
	}
	flSet := make(map[string]int, len(flDates))
	for i, d := range flDates {
		flSet[calendar.FormatDate(d)] = i
	}

	// Full-length days claim their dates outright, so they do not count
	// toward phase distribution.
	actualStudyDays := len(studyDates)
	for _, d := range studyDates {
		if _, ok := flSet[calendar.FormatDate(d)]; ok {
			actualStudyDays--
		}
	}
	split := calendar.SplitPhases(actualStudyDays)

	topics, err := g.store.TopicsByPriority(ctx, req.Priorities)
	if err != nil {
		return nil, fmt.Errorf("loading topics: %w", err)
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("no topics match priorities %v", req.Priorities)
	}

	targets := calendar.TargetsFor(split.Phase1 + split.Phase2 + split.Phase3)
	g.planner.Initialize(topics, targets)

	slog.Info("generating schedule",
		"schedule_id", g.scheduleID,
		"total_days", len(allDates),
		"study_days", len(studyDates),
		"strategy", targets.Strategy,
	)

	days := make([]planner.Day, 0, len(allDates))
	studyDayIndex := 0
	topicIndex := 0

	for _, date := range allDates {
		var day planner.Day

		// Full-length placement takes precedence over study/break.
		if flIndex, ok := flSet[calendar.FormatDate(date)]; ok {
			day = planner.Day{
				Date:     calendar.FormatDate(date),
				Kind:     "full_length",
				Provider: string(catalog.ProviderAAMC),
				Name:     fmt.Sprintf("FL #%d", flIndex+1),
			}
		} else if calendar.IsStudyDay(date, req.Availability) {
			// Re-read the ledger so this day sees every assignment
			// committed by earlier days of the same run.
			used, err := g.store.UsedResources(ctx, g.scheduleID)
			if err != nil {
				return nil, fmt.Errorf("loading used resources: %w", err)
			}

			phase := calendar.PhaseForIndex(studyDayIndex, split)
			anchor, err := g.selectAnchor(ctx, topics, topicIndex, phase, req.Priorities, used)
			if err != nil {
				return nil, err
			}

			day, err = g.planner.PlanDay(ctx, date, phase, anchor, used)
			if err != nil {
				return nil, fmt.Errorf("planning %s: %w", calendar.FormatDate(date), err)
			}
			studyDayIndex++
			topicIndex = (topicIndex + 1) % len(topics)
		} else {
			day = planner.Day{Date: calendar.FormatDate(date), Kind: "break"}
		}

		days = append(days, day)
		if g.observer != nil {
			g.observer(day)
		}
	}

	resp := &Response{
		Schedule: days,
		Metadata: Metadata{
			TotalDays:      len(allDates),
			StudyDays:      len(studyDates),
			BreakDays:      len(allDates) - len(studyDates),
			Phase1Days:     split.Phase1,
			Phase2Days:     split.Phase2,
			Phase3Days:     split.Phase3,
			FullLengthDays: len(flDates),
		},
	}

	slog.Info("schedule generated",
		"schedule_id", g.scheduleID,
		"days", len(days),
		"full_lengths", len(flDates),
	)
	return resp, nil
}

// selectAnchor picks the topic a study day is organized around. Phases 1-2
// round-robin across priority categories, preferring each category's
// high-yield topics, advancing an independent cursor per category and
// skipping topics with no remaining
// supply; if every topic in the chosen category is exhausted, the cursor
// position is accepted anyway rather than blocking the day. Phase 3 uses
// plain rotation: official material is not topic-bound.
func (g *Generator) selectAnchor(ctx context.Context, topics []catalog.Topic, topicIndex, phase int, priorities []string, used map[string]bool) (catalog.Topic, error) {
	if phase > 2 {
		return topics[topicIndex%len(topics)], nil
	}

	// Group by priority category, high-yield topics preferred; a category
	// with no high-yield topics keeps its low-yield topics rather than
	// dropping out of the rotation.
	highYield := make(map[string][]catalog.Topic)
	lowYield := make(map[string][]catalog.Topic)
	for _, t := range topics {
		category := t.Category()
		for _, p := range priorities {
			if p == category {
				if t.HighYield {
					highYield[category] = append(highYield[category], t)
				} else {
					lowYield[category] = append(lowYield[category], t)
				}
				break
			}
		}
	}

	groups := make(map[string][]catalog.Topic, len(highYield))
	for _, p := range priorities {
		if len(highYield[p]) > 0 {
			groups[p] = highYield[p]
		} else if len(lowYield[p]) > 0 {
			groups[p] = lowYield[p]
		}
	}

	var available []string
	for _, p := range priorities {
		if len(groups[p]) > 0 {
			available = append(available, p)
		}
	}
	if len(available) == 0 {
		return topics[topicIndex%len(topics)], nil
	}

	category := available[topicIndex%len(available)]
	categoryTopics := groups[category]

	idx := g.cursors[category] % len(categoryTopics)
	for attempts := 0; attempts < len(categoryTopics); attempts++ {
		candidate := categoryTopics[idx]

		hasSupply, err := g.anchorHasSupply(ctx, candidate, phase, used)
		if err != nil {
			return catalog.Topic{}, err
		}
		if hasSupply {
			g.cursors[category] = (idx + 1) % len(categoryTopics)
			return candidate, nil
		}
		idx = (idx + 1) % len(categoryTopics)
	}

	// Every topic in the category is exhausted; accept a thin day.
	g.cursors[category] = (idx + 1) % len(categoryTopics)
	return categoryTopics[idx], nil
}

// anchorHasSupply checks whether an anchor can still feed its phase's primary
// slots: phase 1 wants an unused Kaplan section or discrete set (low-yield
// Kaplan as a final fallback); phase 2 wants an unused science passage or any
// UWorld set.
func (g *Generator) anchorHasSupply(ctx context.Context, anchor catalog.Topic, phase int, used map[string]bool) (bool, error) {
	switch phase {
	case 1:
		kaplan, err := g.store.KaplanResources(ctx, anchor.Key, true)
		if err != nil {
			return false, err
		}
		if anyUnused(kaplan, used) {
			return true, nil
		}

		discretes, err := g.store.KhanAcademyResources(ctx, anchor.Key, catalog.TypeDiscreteQuestion)
		if err != nil {
			return false, err
		}
		if anyUnused(discretes, used) {
			return true, nil
		}

		lowYield, err := g.store.KaplanResources(ctx, anchor.Key, false)
		if err != nil {
			return false, err
		}
		return anyUnused(lowYield, used), nil

	case 2:
		jw, err := g.store.JackWestinResources(ctx, anchor.Key)
		if err != nil {
			return false, err
		}
		var science []catalog.Resource
		for _, r := range jw {
			if !r.CARS {
				science = append(science, r)
			}
		}
		if anyUnused(science, used) {
			return true, nil
		}

		uworld, err := g.store.UWorldResources(ctx, anchor.Key)
		if err != nil {
			return false, err
		}
		return len(uworld) > 0, nil
	}

	return true, nil
}

func anyUnused(resources []catalog.Resource, used map[string]bool) bool {
	for _, r := range resources {
		if !used[r.UID()] {
			return true
		}
	}
	return false
}
