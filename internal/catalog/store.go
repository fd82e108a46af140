package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store is the read/write boundary between the scheduling engine and the
// resource catalog. Topic-keyed getters union results across the anchor key's
// fallback hierarchy (exact, subtopic wildcard, category wildcard); ranking
// downstream decides which level wins. MarkUsed is idempotent per
// (schedule, resource UID) pair.
type Store interface {
	TopicsByPriority(ctx context.Context, priorities []string) ([]Topic, error)

	KhanAcademyResources(ctx context.Context, key, resourceType string) ([]Resource, error)
	KaplanResources(ctx context.Context, key string, highYieldOnly bool) ([]Resource, error)
	JackWestinResources(ctx context.Context, key string) ([]Resource, error)
	UWorldResources(ctx context.Context, key string) ([]Resource, error)
	AAMCResources(ctx context.Context, resourceType string) ([]Resource, error)
	AAMCFullLengths(ctx context.Context) ([]Resource, error)
	CARSPassages(ctx context.Context) ([]Resource, error)

	UsedResources(ctx context.Context, scheduleID string) (map[string]bool, error)
	MarkUsed(ctx context.Context, scheduleID string, r Resource, provider Provider, usedDate time.Time) error
}

// Writer is the ingestion-facing side of the catalog: each Replace call
// swaps a provider's rows wholesale, matching how the master workbook is
// re-imported.
type Writer interface {
	ReplaceTopics(ctx context.Context, topics []Topic) error
	ReplaceResources(ctx context.Context, provider Provider, resources []Resource) error
}

// MemoryStore is an in-memory Store and Writer used in dev mode and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	topics    []Topic
	resources map[Provider][]Resource
	used      map[string]map[string]UsedResource // scheduleID -> resource UID
}

// NewMemoryStore creates an empty in-memory catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		resources: make(map[Provider][]Resource),
		used:      make(map[string]map[string]UsedResource),
	}
}

func (s *MemoryStore) ReplaceTopics(_ context.Context, topics []Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = append([]Topic(nil), topics...)
	return nil
}

func (s *MemoryStore) ReplaceResources(_ context.Context, provider Provider, resources []Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[provider] = append([]Resource(nil), resources...)
	return nil
}

// TopicsByPriority returns topics whose key starts with any of the priority
// category prefixes, ordered concept-level rows first, then subtopic and
// category wildcard rows, then by hierarchy numbers.
func (s *MemoryStore) TopicsByPriority(_ context.Context, priorities []string) ([]Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Topic
	for _, t := range s.topics {
		for _, p := range priorities {
			if strings.HasPrefix(t.Key, p) {
				out = append(out, t)
				break
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		ca, cb := keyClass(a.Key), keyClass(b.Key)
		if ca != cb {
			return ca < cb
		}
		if a.CategoryNumber != b.CategoryNumber {
			return a.CategoryNumber < b.CategoryNumber
		}
		if a.SubtopicNumber != b.SubtopicNumber {
			return a.SubtopicNumber < b.SubtopicNumber
		}
		return a.ConceptNumber < b.ConceptNumber
	})
	return out, nil
}

// keyClass orders fully-specified keys before wildcard ones.
func keyClass(key string) int {
	parts, err := ParseKey(key)
	if err != nil {
		return 3
	}
	return parts.Specificity
}

func (s *MemoryStore) KhanAcademyResources(_ context.Context, key, resourceType string) ([]Resource, error) {
	return s.byMatchingKeys(ProviderKhanAcademy, key, resourceType), nil
}

func (s *MemoryStore) KaplanResources(_ context.Context, key string, highYieldOnly bool) ([]Resource, error) {
	all := s.byMatchingKeys(ProviderKaplan, key, "")
	if !highYieldOnly {
		return all, nil
	}
	var out []Resource
	for _, r := range all {
		if r.HighYield {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) JackWestinResources(_ context.Context, key string) ([]Resource, error) {
	return s.byMatchingKeys(ProviderJackWestin, key, ""), nil
}

func (s *MemoryStore) UWorldResources(_ context.Context, key string) ([]Resource, error) {
	return s.byMatchingKeys(ProviderUWorld, key, ""), nil
}

// AAMCResources returns general-practice material. AAMC rows are not anchored
// to any topic, so no key filtering applies.
func (s *MemoryStore) AAMCResources(_ context.Context, resourceType string) ([]Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Resource
	for _, r := range s.resources[ProviderAAMC] {
		if resourceType == "" || r.Type == resourceType {
			out = append(out, r)
		}
	}
	sortByTitle(out)
	return out, nil
}

func (s *MemoryStore) AAMCFullLengths(ctx context.Context) ([]Resource, error) {
	return s.AAMCResources(ctx, TypeFullLength)
}

func (s *MemoryStore) CARSPassages(_ context.Context) ([]Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Resource
	for _, r := range s.resources[ProviderJackWestin] {
		if r.CARS {
			out = append(out, r)
		}
	}
	sortByTitle(out)
	return out, nil
}

func (s *MemoryStore) UsedResources(_ context.Context, scheduleID string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]bool, len(s.used[scheduleID]))
	for uid := range s.used[scheduleID] {
		out[uid] = true
	}
	return out, nil
}

func (s *MemoryStore) MarkUsed(_ context.Context, scheduleID string, r Resource, provider Provider, usedDate time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.used[scheduleID]
	if !ok {
		rows = make(map[string]UsedResource)
		s.used[scheduleID] = rows
	}

	uid := r.UID()
	if _, exists := rows[uid]; exists {
		return nil // duplicate insert is a no-op
	}
	rows[uid] = UsedResource{
		ScheduleID:  scheduleID,
		Provider:    provider,
		ResourceID:  r.ID,
		ResourceUID: uid,
		UsedDate:    usedDate,
	}
	return nil
}

func (s *MemoryStore) byMatchingKeys(provider Provider, key, resourceType string) []Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := MatchingKeys(key)
	var out []Resource
	for _, r := range s.resources[provider] {
		if resourceType != "" && r.Type != resourceType {
			continue
		}
		for _, k := range keys {
			if r.Key == k {
				out = append(out, r)
				break
			}
		}
	}
	sortByTitle(out)
	return out
}

func sortByTitle(resources []Resource) {
	sort.SliceStable(resources, func(i, j int) bool {
		return resources[i].Title < resources[j].Title
	})
}
