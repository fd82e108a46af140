// Package ingest loads the master Excel workbook into the resource catalog.
// Each provider has its own sheet; rows with blank keys are skipped and keys
// are truncated to the catalog's column width.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/prepworks/mcat-scheduler/internal/catalog"
)

const maxKeyLen = 20

// Sheet names in the master workbook.
const (
	sheetTopics     = "Organized_MCAT_Topics"
	sheetKhan       = "Khan Academy Resources"
	sheetKaplan     = "Kaplan_Table__Only_Sciences"
	sheetJackWestin = "Jack Westin Resources"
	sheetUWorld     = "UWorld Question Sets"
	sheetAAMC       = "AAMC Materials"
)

var defaultTimes = map[catalog.Provider]map[string]int{
	catalog.ProviderKhanAcademy: {
		catalog.TypeVideo:            12,
		catalog.TypeArticle:          10,
		catalog.TypePracticePassage:  25,
		catalog.TypeDiscreteQuestion: 30,
	},
	catalog.ProviderJackWestin: {
		catalog.TypeCARSPassage:         25,
		catalog.TypeAAMCStylePassage:    25,
		catalog.TypeFundamentalPassage:  25,
		catalog.TypeAAMCStyleDiscrete:   30,
		catalog.TypeFundamentalDiscrete: 30,
	},
	catalog.ProviderAAMC: {
		catalog.TypeQuestionPack: 30,
		catalog.TypeFullLength:   300,
	},
}

// Loader reads a workbook and replaces catalog contents wholesale.
type Loader struct {
	path   string
	writer catalog.Writer
}

// NewLoader creates a loader for the workbook at path.
func NewLoader(path string, writer catalog.Writer) *Loader {
	return &Loader{path: path, writer: writer}
}

// LoadAll imports every sheet into the catalog.
func (l *Loader) LoadAll(ctx context.Context) error {
	f, err := excelize.OpenFile(l.path)
	if err != nil {
		return fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	if err := l.loadTopics(ctx, f); err != nil {
		return err
	}
	if err := l.loadKhanAcademy(ctx, f); err != nil {
		return err
	}
	if err := l.loadKaplan(ctx, f); err != nil {
		return err
	}
	if err := l.loadJackWestin(ctx, f); err != nil {
		return err
	}
	if err := l.loadUWorld(ctx, f); err != nil {
		return err
	}
	if err := l.loadAAMC(ctx, f); err != nil {
		return err
	}

	slog.Info("catalog ingestion complete", "workbook", l.path)
	return nil
}

func (l *Loader) loadTopics(ctx context.Context, f *excelize.File) error {
	rows, err := sheetRows(f, sheetTopics)
	if err != nil {
		return err
	}

	var topics []catalog.Topic
	for _, row := range rows {
		key := row["key"]
		if key == "" {
			continue
		}
		topics = append(topics, catalog.Topic{
			CategoryNumber: row["content_category_#"],
			CategoryTitle:  row["content_category_title"],
			SubtopicNumber: parseInt(row["subtopic_number"]),
			SubtopicTitle:  row["subtopic_title"],
			ConceptNumber:  parseInt(row["concept_number"]),
			ConceptTitle:   row["concept_title"],
			HighYield:      row["high_yield"] == "Yes",
			Key:            truncateKey(key),
		})
	}

	if err := l.writer.ReplaceTopics(ctx, topics); err != nil {
		return fmt.Errorf("replacing topics: %w", err)
	}
	slog.Info("topics loaded", "count", len(topics))
	return nil
}

func (l *Loader) loadKhanAcademy(ctx context.Context, f *excelize.File) error {
	rows, err := sheetRows(f, sheetKhan)
	if err != nil {
		return err
	}

	var resources []catalog.Resource
	for _, row := range rows {
		key := row["key"]
		if key == "" {
			continue
		}
		resourceType := row["resource_type"]
		resources = append(resources, catalog.Resource{
			StableID:    row["stable_id"],
			Title:       row["title"],
			Type:        resourceType,
			Key:         truncateKey(key),
			TimeMinutes: minutesOrDefault(row["time"], catalog.ProviderKhanAcademy, resourceType),
			Provider:    catalog.ProviderKhanAcademy,
		})
	}

	return l.replace(ctx, catalog.ProviderKhanAcademy, resources)
}

func (l *Loader) loadKaplan(ctx context.Context, f *excelize.File) error {
	rows, err := sheetRows(f, sheetKaplan)
	if err != nil {
		return err
	}

	var resources []catalog.Resource
	for _, row := range rows {
		key := row["key"]
		if key == "" {
			continue
		}
		resources = append(resources, catalog.Resource{
			StableID:    row["stable_id"],
			Title:       row["section_title"] + " - " + row["chapter_title"],
			Key:         truncateKey(key),
			TimeMinutes: minutesOr(row["time"], 30),
			HighYield:   row["high_yield"] == "Yes",
			Provider:    catalog.ProviderKaplan,
		})
	}

	return l.replace(ctx, catalog.ProviderKaplan, resources)
}

func (l *Loader) loadJackWestin(ctx context.Context, f *excelize.File) error {
	rows, err := sheetRows(f, sheetJackWestin)
	if err != nil {
		return err
	}

	var resources []catalog.Resource
	for _, row := range rows {
		key := row["key"]
		if key == "" {
			continue
		}
		resourceType := row["resource_type"]
		resources = append(resources, catalog.Resource{
			StableID:    row["stable_id"],
			Title:       row["title"],
			Type:        resourceType,
			Key:         truncateKey(key),
			TimeMinutes: minutesOrDefault(row["time"], catalog.ProviderJackWestin, resourceType),
			CARS:        resourceType == catalog.TypeCARSPassage,
			Provider:    catalog.ProviderJackWestin,
		})
	}

	return l.replace(ctx, catalog.ProviderJackWestin, resources)
}

func (l *Loader) loadUWorld(ctx context.Context, f *excelize.File) error {
	rows, err := sheetRows(f, sheetUWorld)
	if err != nil {
		return err
	}

	var resources []catalog.Resource
	for _, row := range rows {
		key := row["key"]
		if key == "" {
			continue
		}
		resources = append(resources, catalog.Resource{
			StableID:      row["stable_id"],
			Title:         row["topic"] + " - " + row["subtopic"],
			Key:           truncateKey(key),
			TimeMinutes:   minutesOr(row["time"], 30),
			QuestionCount: 10,
			Provider:      catalog.ProviderUWorld,
		})
	}

	return l.replace(ctx, catalog.ProviderUWorld, resources)
}

func (l *Loader) loadAAMC(ctx context.Context, f *excelize.File) error {
	rows, err := sheetRows(f, sheetAAMC)
	if err != nil {
		return err
	}

	const timeColumn = "time (for 20-35 question set or 2 passages if CARS)"

	var resources []catalog.Resource
	for _, row := range rows {
		key := row["key"]
		if key == "" {
			continue
		}

		questionPack := row["AAMC Q's"]
		fullLength := row["AAMC FL's"]

		var title, resourceType, packName string
		switch {
		case questionPack != "":
			title = questionPack
			resourceType = catalog.TypeQuestionPack
			packName = questionPack
		case fullLength != "":
			title = fullLength
			resourceType = catalog.TypeFullLength
		default:
			continue
		}

		resources = append(resources, catalog.Resource{
			StableID:    row["stable_id"],
			Title:       title,
			Type:        resourceType,
			Key:         truncateKey(key),
			TimeMinutes: minutesOrDefault(row[timeColumn], catalog.ProviderAAMC, resourceType),
			PackName:    packName,
			Provider:    catalog.ProviderAAMC,
		})
	}

	return l.replace(ctx, catalog.ProviderAAMC, resources)
}

func (l *Loader) replace(ctx context.Context, provider catalog.Provider, resources []catalog.Resource) error {
	if err := l.writer.ReplaceResources(ctx, provider, resources); err != nil {
		return fmt.Errorf("replacing %s resources: %w", provider, err)
	}
	slog.Info("resources loaded", "provider", provider, "count", len(resources))
	return nil
}

// sheetRows reads a sheet into header-keyed row maps. excelize returns the
// cached calculated value for formula cells, which is what the key columns
// hold in the master workbook.
func sheetRows(f *excelize.File, sheet string) ([]map[string]string, error) {
	raw, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("sheet %q not found: %w", sheet, err)
	}
	if len(raw) < 2 {
		return nil, nil
	}

	headers := make([]string, len(raw[0]))
	for i, h := range raw[0] {
		headers[i] = strings.TrimSpace(h)
	}

	var rows []map[string]string
	for _, cells := range raw[1:] {
		row := make(map[string]string, len(headers))
		empty := true
		for i, h := range headers {
			if h == "" {
				continue
			}
			var v string
			if i < len(cells) {
				v = strings.TrimSpace(cells[i])
			}
			row[h] = v
			if v != "" {
				empty = false
			}
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func truncateKey(key string) string {
	if len(key) > maxKeyLen {
		return key[:maxKeyLen]
	}
	return key
}

func parseInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		if f, ferr := strconv.ParseFloat(strings.TrimSpace(s), 64); ferr == nil {
			return int(f)
		}
		return 0
	}
	return n
}

func minutesOr(s string, fallback int) int {
	if n := parseInt(s); n > 0 {
		return n
	}
	return fallback
}

func minutesOrDefault(s string, provider catalog.Provider, resourceType string) int {
	if n := parseInt(s); n > 0 {
		return n
	}
	if t, ok := defaultTimes[provider][resourceType]; ok {
		return t
	}
	return 30
}
