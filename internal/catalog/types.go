// Package catalog defines the study resource data model and the storage
// boundary for topic-keyed resource lookups and the per-schedule used-resource
// ledger.
package catalog

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Provider identifies the source of a resource.
type Provider string

const (
	ProviderKhanAcademy Provider = "Khan Academy"
	ProviderKaplan      Provider = "Kaplan"
	ProviderJackWestin  Provider = "Jack Westin"
	ProviderUWorld      Provider = "UWorld"
	ProviderAAMC        Provider = "AAMC"
)

// Resource type tags. Khan Academy sheets use plural forms; Jack Westin uses
// snake_case style markers; AAMC distinguishes question packs from full
// lengths. Kaplan and UWorld resources carry no type tag.
const (
	TypeVideo            = "Videos"
	TypeArticle          = "Articles"
	TypePracticePassage  = "Practice Passages"
	TypeDiscreteQuestion = "Discrete Practice Questions"

	TypeAAMCStyleDiscrete   = "aamc_style_discrete"
	TypeAAMCStylePassage    = "aamc_style_passage"
	TypeFundamentalDiscrete = "fundamental_discrete"
	TypeFundamentalPassage  = "fundamental_passage"
	TypeCARSPassage         = "CARS Passage"

	TypeQuestionPack = "Question Pack"
	TypeFullLength   = "Full Length"
)

// Topic is a node in the three-level content hierarchy
// (category.subtopic.concept). Topics are loaded once per plan generation and
// are immutable thereafter.
type Topic struct {
	ID              int64  `yaml:"id"`
	CategoryNumber  string `yaml:"category_number"`
	CategoryTitle   string `yaml:"category_title"`
	SubtopicNumber  int    `yaml:"subtopic_number"`
	SubtopicTitle   string `yaml:"subtopic_title"`
	ConceptNumber   int    `yaml:"concept_number"`
	ConceptTitle    string `yaml:"concept_title"`
	HighYield       bool   `yaml:"high_yield"`
	Key             string `yaml:"key"`
}

// Category returns the topic's category segment ("1A" in "1A.2.3").
func (t Topic) Category() string {
	return strings.SplitN(t.Key, ".", 2)[0]
}

// Resource is one catalog entry. Provider is the variant tag: code that cares
// about provider-specific fields switches on it rather than probing for
// structural presence.
type Resource struct {
	ID          int64    `yaml:"id"`
	StableID    string   `yaml:"stable_id"`
	Title       string   `yaml:"title"`
	Key         string   `yaml:"key"`
	TimeMinutes int      `yaml:"time_minutes"`
	Provider    Provider `yaml:"provider"`

	// Type tag for Khan Academy, Jack Westin and AAMC resources.
	Type string `yaml:"type"`

	// Kaplan only.
	HighYield bool `yaml:"high_yield"`

	// UWorld only.
	QuestionCount int `yaml:"question_count"`

	// AAMC only.
	PackName string `yaml:"pack_name"`

	// Jack Westin only: marks passages from the CARS section, which are not
	// anchored to any science topic.
	CARS bool `yaml:"cars"`
}

// UID returns the resource's ledger identity: the stable cross-run identifier
// when present, otherwise a normalized title+key composite so that
// same-content rows from repeated ingestion runs collapse to one identity.
func (r Resource) UID() string {
	if r.StableID != "" {
		return r.StableID
	}
	title := norm.NFKC.String(strings.ToLower(strings.TrimSpace(r.Title)))
	return title + "+" + r.Key
}

// UsedResource is one row of the per-schedule ledger. There is at most one
// row per (schedule, resource UID) pair.
type UsedResource struct {
	ScheduleID  string
	Provider    Provider
	ResourceID  int64
	ResourceUID string
	UsedDate    time.Time
}
