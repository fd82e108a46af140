package planner

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prepworks/mcat-scheduler/internal/calendar"
	"github.com/prepworks/mcat-scheduler/internal/catalog"
	"github.com/prepworks/mcat-scheduler/internal/selection"
)

var testAnchor = catalog.Topic{
	CategoryNumber: "1A", SubtopicNumber: 1, ConceptNumber: 1,
	ConceptTitle: "Amino Acids", HighYield: true, Key: "1A.1.1",
}

var testTopics = []catalog.Topic{
	testAnchor,
	{CategoryNumber: "1A", SubtopicNumber: 1, ConceptTitle: "Proteins", Key: "1A.1.x"},
	{CategoryNumber: "1A", ConceptTitle: "Biomolecules", Key: "1A.x.x"},
}

var testTargets = calendar.TimeTargets{
	Phase1Target: 220, Phase2Target: 230, Phase3Target: 235, Strategy: "balanced",
}

// seedCatalog fills a memory store with enough material for full days in
// every phase.
func seedCatalog(t *testing.T) *catalog.MemoryStore {
	t.Helper()
	ctx := t.Context()
	s := catalog.NewMemoryStore()

	if err := s.ReplaceTopics(ctx, testTopics); err != nil {
		t.Fatalf("ReplaceTopics() error = %v", err)
	}

	var ka []catalog.Resource
	for i := 0; i < 8; i++ {
		ka = append(ka,
			catalog.Resource{StableID: fmt.Sprintf("ka-v%d", i), Title: fmt.Sprintf("Video %d", i), Type: catalog.TypeVideo, Key: "1A.1.1", TimeMinutes: 12, Provider: catalog.ProviderKhanAcademy},
			catalog.Resource{StableID: fmt.Sprintf("ka-a%d", i), Title: fmt.Sprintf("Article %d", i), Type: catalog.TypeArticle, Key: "1A.1.1", TimeMinutes: 10, Provider: catalog.ProviderKhanAcademy},
			catalog.Resource{StableID: fmt.Sprintf("ka-d%d", i), Title: fmt.Sprintf("Discrete set %d", i), Type: catalog.TypeDiscreteQuestion, Key: "1A.1.1", TimeMinutes: 30, Provider: catalog.ProviderKhanAcademy},
		)
	}
	if err := s.ReplaceResources(ctx, catalog.ProviderKhanAcademy, ka); err != nil {
		t.Fatalf("ReplaceResources() error = %v", err)
	}

	if err := s.ReplaceResources(ctx, catalog.ProviderKaplan, []catalog.Resource{
		{StableID: "kap-1", Title: "Biochemistry - Amino Acids", Key: "1A.1.1", TimeMinutes: 30, HighYield: true, Provider: catalog.ProviderKaplan},
		{StableID: "kap-2", Title: "Biochemistry - Proteins", Key: "1A.1.x", TimeMinutes: 30, Provider: catalog.ProviderKaplan},
	}); err != nil {
		t.Fatalf("ReplaceResources() error = %v", err)
	}

	jw := []catalog.Resource{
		{StableID: "jw-p1", Title: "Enzyme passage", Type: catalog.TypeAAMCStylePassage, Key: "1A.1.1", TimeMinutes: 25, Provider: catalog.ProviderJackWestin},
		{StableID: "jw-p2", Title: "Metabolism passage", Type: catalog.TypeFundamentalPassage, Key: "1A.1.x", TimeMinutes: 25, Provider: catalog.ProviderJackWestin},
		{StableID: "jw-p3", Title: "Thermodynamics passage", Type: catalog.TypeAAMCStylePassage, Key: "1A.1.1", TimeMinutes: 25, Provider: catalog.ProviderJackWestin},
		{StableID: "jw-d1", Title: "Biochem discretes", Type: catalog.TypeAAMCStyleDiscrete, Key: "1A.1.1", TimeMinutes: 30, Provider: catalog.ProviderJackWestin},
	}
	for i := 0; i < 6; i++ {
		jw = append(jw, catalog.Resource{
			StableID: fmt.Sprintf("jw-c%d", i), Title: fmt.Sprintf("CARS passage %d", i),
			Type: catalog.TypeCARSPassage, Key: "1A.x.x", TimeMinutes: 25, CARS: true,
			Provider: catalog.ProviderJackWestin,
		})
	}
	if err := s.ReplaceResources(ctx, catalog.ProviderJackWestin, jw); err != nil {
		t.Fatalf("ReplaceResources() error = %v", err)
	}

	if err := s.ReplaceResources(ctx, catalog.ProviderUWorld, []catalog.Resource{
		{StableID: "uw-1", Title: "Amino Acids - Set 1", Key: "1A.1.1", TimeMinutes: 30, QuestionCount: 10, Provider: catalog.ProviderUWorld},
		{StableID: "uw-2", Title: "Amino Acids - Set 2", Key: "1A.1.x", TimeMinutes: 30, QuestionCount: 10, Provider: catalog.ProviderUWorld},
	}); err != nil {
		t.Fatalf("ReplaceResources() error = %v", err)
	}

	if err := s.ReplaceResources(ctx, catalog.ProviderAAMC, []catalog.Resource{
		{StableID: "aamc-1", Title: "Section Bank B/B #1", Type: catalog.TypeQuestionPack, Key: "1A.x.x", TimeMinutes: 30, PackName: "Section Bank B/B #1", Provider: catalog.ProviderAAMC},
		{StableID: "aamc-2", Title: "Question Pack Bio #1", Type: catalog.TypeQuestionPack, Key: "1A.x.x", TimeMinutes: 30, PackName: "Question Pack Bio #1", Provider: catalog.ProviderAAMC},
		{StableID: "aamc-3", Title: "Question Pack Chem #1", Type: catalog.TypeQuestionPack, Key: "1A.x.x", TimeMinutes: 30, PackName: "Question Pack Chem #1", Provider: catalog.ProviderAAMC},
		{StableID: "aamc-4", Title: "CARS Question Pack Vol 1", Type: catalog.TypeQuestionPack, Key: "1A.x.x", TimeMinutes: 30, PackName: "CARS Question Pack Vol 1", Provider: catalog.ProviderAAMC},
		{StableID: "aamc-5", Title: "CARS Question Pack Vol 2", Type: catalog.TypeQuestionPack, Key: "1A.x.x", TimeMinutes: 30, PackName: "CARS Question Pack Vol 2", Provider: catalog.ProviderAAMC},
		{StableID: "aamc-6", Title: "This color marks a developer note", Type: catalog.TypeQuestionPack, Key: "1A.x.x", TimeMinutes: 30, Provider: catalog.ProviderAAMC},
		{StableID: "aamc-7", Title: "FL 1", Type: catalog.TypeFullLength, Key: "1A.x.x", TimeMinutes: 300, Provider: catalog.ProviderAAMC},
	}); err != nil {
		t.Fatalf("ReplaceResources() error = %v", err)
	}

	return s
}

func newTestPlanner(t *testing.T) (*Planner, *catalog.MemoryStore) {
	t.Helper()
	store := seedCatalog(t)
	p := New(store, "schedule_test")
	p.Initialize(testTopics, testTargets)
	return p, store
}

func planDate(t *testing.T) time.Time {
	t.Helper()
	d, err := calendar.ParseDate("2025-10-06")
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func countItems(blocks *Blocks) int {
	n := 0
	for _, b := range [][]ResourceItem{
		blocks.ScienceContent, blocks.ScienceDiscretes, blocks.SciencePassages,
		blocks.UWorldSet, blocks.ExtraDiscretes, blocks.AAMCSets,
		blocks.AAMCCARSPassages, blocks.CARS,
	} {
		n += len(b)
	}
	return n
}

func sumMinutes(blocks *Blocks) int {
	total := 0
	for _, b := range [][]ResourceItem{
		blocks.ScienceContent, blocks.ScienceDiscretes, blocks.SciencePassages,
		blocks.UWorldSet, blocks.ExtraDiscretes, blocks.AAMCSets,
		blocks.AAMCCARSPassages, blocks.CARS,
	} {
		for _, item := range b {
			total += item.TimeMinutes
		}
	}
	return total
}

func TestPlanDay_UnknownPhase(t *testing.T) {
	p, _ := newTestPlanner(t)

	_, err := p.PlanDay(t.Context(), planDate(t), 5, testAnchor, map[string]bool{})
	var phaseErr *UnknownPhaseError
	if !errors.As(err, &phaseErr) {
		t.Fatalf("PlanDay(phase=5) error = %v, want *UnknownPhaseError", err)
	}
	if phaseErr.Phase != 5 {
		t.Errorf("Phase = %d, want 5", phaseErr.Phase)
	}
}

func TestPlanPhase1Day(t *testing.T) {
	p, store := newTestPlanner(t)

	day, err := p.PlanPhase1Day(t.Context(), planDate(t), testAnchor, map[string]bool{})
	if err != nil {
		t.Fatalf("PlanPhase1Day() error = %v", err)
	}

	if day.Kind != "study" || day.Phase != 1 {
		t.Errorf("day = %s/%d, want study/1", day.Kind, day.Phase)
	}
	if day.Blocks.WrittenReviewMinutes != WrittenReviewMinutes {
		t.Errorf("WrittenReviewMinutes = %d, want %d", day.Blocks.WrittenReviewMinutes, WrittenReviewMinutes)
	}
	if day.Blocks.TotalResourceMinutes > calendar.DayMinutes {
		t.Errorf("TotalResourceMinutes = %d, exceeds the %d budget", day.Blocks.TotalResourceMinutes, calendar.DayMinutes)
	}
	if got := sumMinutes(day.Blocks); got != day.Blocks.TotalResourceMinutes {
		t.Errorf("item minutes sum to %d, TotalResourceMinutes says %d", got, day.Blocks.TotalResourceMinutes)
	}

	if len(day.Blocks.ScienceContent) == 0 {
		t.Error("ScienceContent is empty")
	}
	first := day.Blocks.ScienceContent[0]
	if first.Provider != string(catalog.ProviderKaplan) {
		t.Errorf("first content item from %q, want Kaplan", first.Provider)
	}
	if first.HighYield == nil || !*first.HighYield {
		t.Error("Kaplan item should carry its high-yield flag")
	}

	if len(day.Blocks.CARS) != 2 {
		t.Errorf("got %d CARS passages, want 2", len(day.Blocks.CARS))
	}

	// Every committed item landed in the ledger.
	used, err := store.UsedResources(t.Context(), "schedule_test")
	if err != nil {
		t.Fatalf("UsedResources() error = %v", err)
	}
	if len(used) != countItems(day.Blocks) {
		t.Errorf("ledger has %d rows, day has %d items", len(used), countItems(day.Blocks))
	}
}

func TestPlanPhase1Day_EmptyCatalog(t *testing.T) {
	p := New(catalog.NewMemoryStore(), "schedule_empty")
	p.Initialize(testTopics, testTargets)

	day, err := p.PlanPhase1Day(t.Context(), planDate(t), testAnchor, map[string]bool{})
	if err != nil {
		t.Fatalf("PlanPhase1Day() error = %v; an empty catalog is not an error", err)
	}
	if day.Blocks.TotalResourceMinutes != 0 {
		t.Errorf("TotalResourceMinutes = %d, want 0", day.Blocks.TotalResourceMinutes)
	}
	if day.Blocks.WrittenReviewMinutes != WrittenReviewMinutes {
		t.Error("written review is scheduled even on a thin day")
	}
}

func TestPlanPhase2Day(t *testing.T) {
	p, _ := newTestPlanner(t)

	day, err := p.PlanPhase2Day(t.Context(), planDate(t), testAnchor, map[string]bool{})
	if err != nil {
		t.Fatalf("PlanPhase2Day() error = %v", err)
	}

	if day.Phase != 2 {
		t.Errorf("Phase = %d, want 2", day.Phase)
	}
	if len(day.Blocks.UWorldSet) != 1 {
		t.Errorf("got %d UWorld sets, want 1", len(day.Blocks.UWorldSet))
	}
	if len(day.Blocks.CARS) != 2 {
		t.Errorf("got %d CARS passages, want exactly 2", len(day.Blocks.CARS))
	}
	if len(day.Blocks.SciencePassages) == 0 {
		t.Error("SciencePassages is empty")
	}
	for _, item := range day.Blocks.SciencePassages {
		if item.ResourceType == catalog.TypeCARSPassage {
			t.Errorf("CARS passage %q leaked into the science passage block", item.Title)
		}
	}
	if day.Blocks.TotalResourceMinutes > calendar.DayMinutes {
		t.Errorf("TotalResourceMinutes = %d, exceeds the %d budget", day.Blocks.TotalResourceMinutes, calendar.DayMinutes)
	}
}

func TestPlanPhase2Day_DiscretesSkipPhase1Material(t *testing.T) {
	p, _ := newTestPlanner(t)

	// Everything the phase 1 drill block would pick is already in the ledger.
	used := map[string]bool{}
	for i := 0; i < 8; i++ {
		used[fmt.Sprintf("ka-d%d", i)] = true
	}

	day, err := p.PlanPhase2Day(t.Context(), planDate(t), testAnchor, used)
	if err != nil {
		t.Fatalf("PlanPhase2Day() error = %v", err)
	}
	// Only the Jack Westin discrete set remains unseen.
	for _, item := range day.Blocks.ExtraDiscretes {
		if item.Title != "Biochem discretes" {
			t.Errorf("phase-1 material %q re-drilled in phase 2", item.Title)
		}
	}
	if len(day.Blocks.ExtraDiscretes) == 0 {
		t.Error("ExtraDiscretes is empty, want the unseen Jack Westin set")
	}
}

func TestPlanPhase3Day(t *testing.T) {
	p, _ := newTestPlanner(t)

	day, err := p.PlanPhase3Day(t.Context(), planDate(t), testAnchor, map[string]bool{})
	if err != nil {
		t.Fatalf("PlanPhase3Day() error = %v", err)
	}

	if day.Phase != 3 {
		t.Errorf("Phase = %d, want 3", day.Phase)
	}
	if len(day.Blocks.AAMCSets) < 2 {
		t.Fatalf("got %d AAMC sets, want at least 2", len(day.Blocks.AAMCSets))
	}
	if day.Blocks.AAMCSets[0].Title == day.Blocks.AAMCSets[1].Title {
		t.Error("the first two AAMC sets should come from distinct packs")
	}
	if len(day.Blocks.AAMCCARSPassages) != 2 {
		t.Errorf("got %d AAMC CARS passages, want 2", len(day.Blocks.AAMCCARSPassages))
	}

	for _, item := range day.Blocks.AAMCSets {
		if item.Title == "This color marks a developer note" {
			t.Error("annotation row leaked into the AAMC set block")
		}
	}
	if day.Blocks.TotalResourceMinutes > calendar.DayMinutes {
		t.Errorf("TotalResourceMinutes = %d, exceeds the %d budget", day.Blocks.TotalResourceMinutes, calendar.DayMinutes)
	}
}

func TestToResourceItem_ExtractsURL(t *testing.T) {
	sel := selection.Selection{
		Resource: catalog.Resource{
			Title:    "Amino acid structure - https://example.com/v/123",
			Key:      "1A.1.1",
			Type:     catalog.TypeVideo,
			Provider: catalog.ProviderKhanAcademy,
		},
		Provider:    catalog.ProviderKhanAcademy,
		TimeMinutes: 12,
	}

	item := toResourceItem(sel, testAnchor)
	if item.URL != "https://example.com/v/123" {
		t.Errorf("URL = %q, want the embedded link", item.URL)
	}
	if item.Title != "Amino acid structure" {
		t.Errorf("Title = %q, want the cleaned title", item.Title)
	}
	if item.HighYield != nil {
		t.Error("non-Kaplan items should not carry a high-yield flag")
	}
	if item.TopicTitle != "Amino Acids" {
		t.Errorf("TopicTitle = %q, want the anchor concept title", item.TopicTitle)
	}
}
