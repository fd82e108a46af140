// Package planner assembles individual study days. Each phase has a fixed
// recipe of slot-fill steps followed by a greedy filler that works toward the
// plan's dynamic time target. The planner keeps no per-day state between
// calls; each day's plan depends only on the ledger's current contents.
package planner

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/prepworks/mcat-scheduler/internal/calendar"
	"github.com/prepworks/mcat-scheduler/internal/catalog"
	"github.com/prepworks/mcat-scheduler/internal/selection"
)

// WrittenReviewMinutes is the fixed daily written-review allotment. It is not
// counted against the resource budget.
const WrittenReviewMinutes = 60

// ResourceItem is one assigned resource in a day's block.
type ResourceItem struct {
	Title        string `json:"title"`
	TopicNumber  string `json:"topic_number"`
	TopicTitle   string `json:"topic_title"`
	Provider     string `json:"provider"`
	TimeMinutes  int    `json:"time_minutes"`
	URL          string `json:"url,omitempty"`
	HighYield    *bool  `json:"high_yield,omitempty"`
	ResourceType string `json:"resource_type,omitempty"`
}

// Blocks holds a study day's assigned resources grouped by named block.
type Blocks struct {
	ScienceContent       []ResourceItem `json:"science_content,omitempty"`
	ScienceDiscretes     []ResourceItem `json:"science_discretes,omitempty"`
	SciencePassages      []ResourceItem `json:"science_passages,omitempty"`
	UWorldSet            []ResourceItem `json:"uworld_set,omitempty"`
	ExtraDiscretes       []ResourceItem `json:"extra_discretes,omitempty"`
	AAMCSets             []ResourceItem `json:"aamc_sets,omitempty"`
	AAMCCARSPassages     []ResourceItem `json:"aamc_cars_passages,omitempty"`
	CARS                 []ResourceItem `json:"cars,omitempty"`
	WrittenReviewMinutes int            `json:"written_review_minutes"`
	TotalResourceMinutes int            `json:"total_resource_minutes"`
}

// Day is one entry of the generated schedule.
type Day struct {
	Date     string  `json:"date"`
	Kind     string  `json:"kind"` // "break", "study" or "full_length"
	Phase    int     `json:"phase,omitempty"`
	Provider string  `json:"provider,omitempty"`
	Name     string  `json:"name,omitempty"`
	Blocks   *Blocks `json:"blocks,omitempty"`
}

// Planner builds study days against a catalog store. Ledger writes are keyed
// by the generation run's schedule identifier.
type Planner struct {
	store      catalog.Store
	scheduleID string
	topics     []catalog.Topic
	targets    calendar.TimeTargets
}

// New creates a planner bound to a catalog store and a schedule identifier.
func New(store catalog.Store, scheduleID string) *Planner {
	return &Planner{
		store:      store,
		scheduleID: scheduleID,
		targets: calendar.TimeTargets{
			Phase1Target: 200, Phase2Target: 220, Phase3Target: 225,
			Strategy: "balanced",
		},
	}
}

// Initialize sets plan-wide configuration once before the day loop begins.
func (p *Planner) Initialize(topics []catalog.Topic, targets calendar.TimeTargets) {
	p.topics = topics
	p.targets = targets
}

// PlanDay dispatches to the recipe for the given phase.
func (p *Planner) PlanDay(ctx context.Context, date time.Time, phase int, anchor catalog.Topic, used map[string]bool) (Day, error) {
	switch phase {
	case 1:
		return p.PlanPhase1Day(ctx, date, anchor, used)
	case 2:
		return p.PlanPhase2Day(ctx, date, anchor, used)
	case 3:
		return p.PlanPhase3Day(ctx, date, anchor, used)
	}
	return Day{}, &UnknownPhaseError{Phase: phase}
}

// UnknownPhaseError reports a phase outside 1..3, which indicates an internal
// invariant violation in calendar math, not a user-facing condition.
type UnknownPhaseError struct {
	Phase int
}

func (e *UnknownPhaseError) Error() string {
	return fmt.Sprintf("invalid phase: %d", e.Phase)
}

// dayState tracks a single day's running assignment state.
type dayState struct {
	date        time.Time
	anchor      catalog.Topic
	remaining   int
	used        map[string]bool
	sameDayUsed map[string]bool
}

func newDayState(date time.Time, anchor catalog.Topic, used map[string]bool) *dayState {
	return &dayState{
		date:        date,
		anchor:      anchor,
		remaining:   calendar.DayMinutes,
		used:        used,
		sameDayUsed: make(map[string]bool),
	}
}

func (d *dayState) spent() int {
	return calendar.DayMinutes - d.remaining
}

// commit appends a selection to a block, decrements the remaining budget,
// records it in the same-day set and writes through to the ledger so later
// slots on the same day see it.
func (p *Planner) commit(ctx context.Context, d *dayState, sel selection.Selection, block *[]ResourceItem) error {
	*block = append(*block, toResourceItem(sel, d.anchor))
	d.remaining -= sel.TimeMinutes
	d.sameDayUsed[sel.Resource.UID()] = true

	if err := p.store.MarkUsed(ctx, p.scheduleID, sel.Resource, sel.Provider, d.date); err != nil {
		return err
	}
	return nil
}

var urlPattern = regexp.MustCompile(`https?://\S+`)

// toResourceItem converts a ranked selection into the response shape,
// extracting any URL embedded in the catalog title.
func toResourceItem(sel selection.Selection, anchor catalog.Topic) ResourceItem {
	r := sel.Resource
	url := urlPattern.FindString(r.Title)

	title := r.Title
	if url != "" {
		title = strings.TrimSpace(urlPattern.ReplaceAllString(title, ""))
	}
	title = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(title), "-"))

	item := ResourceItem{
		Title:        title,
		TopicNumber:  r.Key,
		TopicTitle:   anchor.ConceptTitle,
		Provider:     string(sel.Provider),
		TimeMinutes:  sel.TimeMinutes,
		URL:          url,
		ResourceType: r.Type,
	}
	if r.Provider == catalog.ProviderKaplan {
		hy := r.HighYield
		item.HighYield = &hy
	}
	return item
}

// scienceDiscretes unions Khan Academy discrete sets with all Jack Westin
// material for the anchor; the slot-type filter keeps only discrete-tagged
// rows from the union.
func (p *Planner) scienceDiscretes(ctx context.Context, key string) ([]catalog.Resource, error) {
	kaDiscretes, err := p.store.KhanAcademyResources(ctx, key, catalog.TypeDiscreteQuestion)
	if err != nil {
		return nil, err
	}
	jw, err := p.store.JackWestinResources(ctx, key)
	if err != nil {
		return nil, err
	}
	return append(kaDiscretes, jw...), nil
}

// sciencePassages returns the anchor's Jack Westin passages excluding CARS
// material, which is reserved for the dedicated CARS blocks.
func (p *Planner) sciencePassages(ctx context.Context, key string) ([]catalog.Resource, error) {
	jw, err := p.store.JackWestinResources(ctx, key)
	if err != nil {
		return nil, err
	}
	var out []catalog.Resource
	for _, r := range jw {
		if !r.CARS {
			out = append(out, r)
		}
	}
	return out, nil
}

// unusedOnly drops resources already present in the used set.
func unusedOnly(resources []catalog.Resource, used map[string]bool) []catalog.Resource {
	var out []catalog.Resource
	for _, r := range resources {
		if !used[r.UID()] {
			out = append(out, r)
		}
	}
	return out
}
