package catalog

import (
	"testing"
	"time"
)

func TestResourceUID(t *testing.T) {
	tests := []struct {
		name     string
		resource Resource
		want     string
	}{
		{
			"stable-id-wins",
			Resource{StableID: "ka-00042", Title: "Amino Acids", Key: "1A.1.1"},
			"ka-00042",
		},
		{
			"title-fallback",
			Resource{Title: "Amino Acids", Key: "1A.1.1"},
			"amino acids+1A.1.1",
		},
		{
			"trims-and-lowercases",
			Resource{Title: "  Amino ACIDS  ", Key: "1A.1.1"},
			"amino acids+1A.1.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.resource.UID(); got != tt.want {
				t.Errorf("UID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResourceUID_UnicodeNormalization(t *testing.T) {
	// Precomposed vs combining-accent titles must map to the same UID; titles
	// come from spreadsheet cells edited on different platforms.
	composed := Resource{Title: "Résumé Skills", Key: "1A.1.1"}
	decomposed := Resource{Title: "Résumé Skills", Key: "1A.1.1"}

	if composed.UID() != decomposed.UID() {
		t.Errorf("UID mismatch: %q vs %q", composed.UID(), decomposed.UID())
	}
}

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()
	ctx := t.Context()
	s := NewMemoryStore()

	err := s.ReplaceTopics(ctx, []Topic{
		{CategoryNumber: "1A", SubtopicNumber: 1, ConceptNumber: 1, ConceptTitle: "Amino Acids", HighYield: true, Key: "1A.1.1"},
		{CategoryNumber: "1A", SubtopicNumber: 1, ConceptNumber: 2, ConceptTitle: "Protein Structure", Key: "1A.1.2"},
		{CategoryNumber: "1A", SubtopicNumber: 1, ConceptTitle: "Structure and Function of Proteins", Key: "1A.1.x"},
		{CategoryNumber: "1A", ConceptTitle: "Biomolecules", Key: "1A.x.x"},
		{CategoryNumber: "3B", SubtopicNumber: 2, ConceptNumber: 1, ConceptTitle: "Nervous System", HighYield: true, Key: "3B.2.1"},
	})
	if err != nil {
		t.Fatalf("ReplaceTopics() error = %v", err)
	}

	err = s.ReplaceResources(ctx, ProviderKhanAcademy, []Resource{
		{StableID: "ka-1", Title: "Amino acid structure", Type: TypeVideo, Key: "1A.1.1", TimeMinutes: 12, Provider: ProviderKhanAcademy},
		{StableID: "ka-2", Title: "Protein folding", Type: TypeVideo, Key: "1A.1.x", TimeMinutes: 14, Provider: ProviderKhanAcademy},
		{StableID: "ka-3", Title: "Biomolecule overview", Type: TypeArticle, Key: "1A.x.x", TimeMinutes: 10, Provider: ProviderKhanAcademy},
		{StableID: "ka-4", Title: "Neuron questions", Type: TypeDiscreteQuestion, Key: "3B.2.1", TimeMinutes: 30, Provider: ProviderKhanAcademy},
	})
	if err != nil {
		t.Fatalf("ReplaceResources() error = %v", err)
	}

	err = s.ReplaceResources(ctx, ProviderKaplan, []Resource{
		{StableID: "kap-1", Title: "Biochemistry - Amino Acids", Key: "1A.1.1", TimeMinutes: 30, HighYield: true, Provider: ProviderKaplan},
		{StableID: "kap-2", Title: "Biochemistry - Proteins", Key: "1A.1.x", TimeMinutes: 30, Provider: ProviderKaplan},
	})
	if err != nil {
		t.Fatalf("ReplaceResources() error = %v", err)
	}

	err = s.ReplaceResources(ctx, ProviderJackWestin, []Resource{
		{StableID: "jw-1", Title: "Enzyme passage", Type: TypeAAMCStylePassage, Key: "1A.1.1", TimeMinutes: 25, Provider: ProviderJackWestin},
		{StableID: "jw-2", Title: "Zebra mussels", Type: TypeCARSPassage, Key: "1A.x.x", TimeMinutes: 25, CARS: true, Provider: ProviderJackWestin},
		{StableID: "jw-3", Title: "Ancient pottery", Type: TypeCARSPassage, Key: "1A.x.x", TimeMinutes: 25, CARS: true, Provider: ProviderJackWestin},
	})
	if err != nil {
		t.Fatalf("ReplaceResources() error = %v", err)
	}

	return s
}

func TestTopicsByPriority_FiltersAndOrders(t *testing.T) {
	s := seedStore(t)

	topics, err := s.TopicsByPriority(t.Context(), []string{"1A"})
	if err != nil {
		t.Fatalf("TopicsByPriority() error = %v", err)
	}
	if len(topics) != 4 {
		t.Fatalf("got %d topics, want 4", len(topics))
	}

	wantKeys := []string{"1A.1.1", "1A.1.2", "1A.1.x", "1A.x.x"}
	for i, want := range wantKeys {
		if topics[i].Key != want {
			t.Errorf("topics[%d].Key = %q, want %q", i, topics[i].Key, want)
		}
	}
}

func TestTopicsByPriority_NoMatch(t *testing.T) {
	s := seedStore(t)

	topics, err := s.TopicsByPriority(t.Context(), []string{"9Z"})
	if err != nil {
		t.Fatalf("TopicsByPriority() error = %v", err)
	}
	if len(topics) != 0 {
		t.Errorf("got %d topics, want 0", len(topics))
	}
}

func TestKhanAcademyResources_KeyFallback(t *testing.T) {
	s := seedStore(t)

	// The concept key unions exact, subtopic-wildcard and category-wildcard
	// rows, but the article is excluded by the type filter.
	videos, err := s.KhanAcademyResources(t.Context(), "1A.1.1", TypeVideo)
	if err != nil {
		t.Fatalf("KhanAcademyResources() error = %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("got %d videos, want 2", len(videos))
	}

	articles, err := s.KhanAcademyResources(t.Context(), "1A.1.1", TypeArticle)
	if err != nil {
		t.Fatalf("KhanAcademyResources() error = %v", err)
	}
	if len(articles) != 1 || articles[0].StableID != "ka-3" {
		t.Errorf("articles = %v, want the category-wildcard article", articles)
	}

	// A different category sees nothing.
	other, err := s.KhanAcademyResources(t.Context(), "5D.1.1", TypeVideo)
	if err != nil {
		t.Fatalf("KhanAcademyResources() error = %v", err)
	}
	if len(other) != 0 {
		t.Errorf("got %d videos for 5D.1.1, want 0", len(other))
	}
}

func TestKaplanResources_HighYieldFilter(t *testing.T) {
	s := seedStore(t)

	high, err := s.KaplanResources(t.Context(), "1A.1.1", true)
	if err != nil {
		t.Fatalf("KaplanResources() error = %v", err)
	}
	if len(high) != 1 || high[0].StableID != "kap-1" {
		t.Errorf("high yield = %v, want only kap-1", high)
	}

	all, err := s.KaplanResources(t.Context(), "1A.1.1", false)
	if err != nil {
		t.Fatalf("KaplanResources() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d Kaplan resources, want 2", len(all))
	}
}

func TestCARSPassages_DeterministicOrder(t *testing.T) {
	s := seedStore(t)

	cars, err := s.CARSPassages(t.Context())
	if err != nil {
		t.Fatalf("CARSPassages() error = %v", err)
	}
	if len(cars) != 2 {
		t.Fatalf("got %d CARS passages, want 2", len(cars))
	}
	if cars[0].Title != "Ancient pottery" || cars[1].Title != "Zebra mussels" {
		t.Errorf("CARS order = [%s, %s], want title order", cars[0].Title, cars[1].Title)
	}
}

func TestMarkUsed_IdempotentAndScoped(t *testing.T) {
	s := seedStore(t)
	ctx := t.Context()

	r := Resource{StableID: "ka-1", Title: "Amino acid structure", Key: "1A.1.1"}
	when := time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := s.MarkUsed(ctx, "schedule_a", r, ProviderKhanAcademy, when); err != nil {
			t.Fatalf("MarkUsed() error = %v", err)
		}
	}

	used, err := s.UsedResources(ctx, "schedule_a")
	if err != nil {
		t.Fatalf("UsedResources() error = %v", err)
	}
	if len(used) != 1 {
		t.Errorf("got %d used rows, want 1 after duplicate marks", len(used))
	}
	if !used[r.UID()] {
		t.Errorf("UsedResources missing %q", r.UID())
	}

	// Another schedule's ledger is untouched.
	other, err := s.UsedResources(ctx, "schedule_b")
	if err != nil {
		t.Fatalf("UsedResources() error = %v", err)
	}
	if len(other) != 0 {
		t.Errorf("got %d used rows for another schedule, want 0", len(other))
	}
}

func TestUsedResources_GrowsMonotonically(t *testing.T) {
	s := seedStore(t)
	ctx := t.Context()
	when := time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)

	resources := []Resource{
		{StableID: "ka-1", Key: "1A.1.1"},
		{StableID: "kap-1", Key: "1A.1.1"},
		{StableID: "jw-1", Key: "1A.1.1"},
	}

	for i, r := range resources {
		if err := s.MarkUsed(ctx, "schedule_a", r, r.Provider, when); err != nil {
			t.Fatalf("MarkUsed() error = %v", err)
		}
		used, err := s.UsedResources(ctx, "schedule_a")
		if err != nil {
			t.Fatalf("UsedResources() error = %v", err)
		}
		if len(used) != i+1 {
			t.Errorf("after %d marks: got %d rows, want %d", i+1, len(used), i+1)
		}
	}
}
