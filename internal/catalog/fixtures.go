package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// fixtureFile is the YAML shape for catalog fixture files. Each file may
// carry topics, resources, or both; resources declare their provider inline.
type fixtureFile struct {
	Topics    []Topic    `yaml:"topics"`
	Resources []Resource `yaml:"resources"`
}

// LoadFixtures walks rootDir and loads every .yaml/.yml file into the store.
// Used in dev mode and tests in place of the Postgres-backed catalog.
func LoadFixtures(ctx context.Context, store *MemoryStore, rootDir string) error {
	var topics []Topic
	byProvider := make(map[Provider][]Resource)

	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var f fixtureFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			slog.Warn("skipping invalid fixture YAML", "path", path, "error", err)
			return nil
		}

		topics = append(topics, f.Topics...)
		for _, r := range f.Resources {
			if r.Provider == "" {
				slog.Warn("skipping fixture resource without provider", "path", path, "title", r.Title)
				continue
			}
			byProvider[r.Provider] = append(byProvider[r.Provider], r)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("loading fixtures: %w", err)
	}

	if err := store.ReplaceTopics(ctx, topics); err != nil {
		return err
	}
	for provider, resources := range byProvider {
		if err := store.ReplaceResources(ctx, provider, resources); err != nil {
			return err
		}
	}

	slog.Info("catalog fixtures loaded", "topics", len(topics), "providers", len(byProvider))
	return nil
}
