// Package ml holds the detection model registry. Model implementations
// register themselves from init, mirroring the aggregator factory pattern:
// importers pull in the implementations they need with blank imports.
package ml

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"BotSpectra/internal/model"
)

// Factory builds a fresh, untrained classifier.
type Factory func() model.Classifier

var registry = make(map[string]Factory)

// Register adds a model family to the registry.
func Register(name string, factory Factory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("model %q already registered", name))
	}
	registry[name] = factory
}

// New creates an untrained classifier by registry name.
func New(name string) (model.Classifier, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown model %q (available: %v)", name, Names())
	}
	return factory(), nil
}

// Names lists the registered model families, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// modelFile returns the on-disk location of a serialized model.
func modelFile(dir, name string) string {
	return filepath.Join(dir, name+".gob")
}

// LoadFromDir creates a classifier and restores its trained state from
// <dir>/<name>.gob.
func LoadFromDir(dir, name string) (model.Classifier, error) {
	clf, err := New(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(modelFile(dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	if err := clf.Load(data); err != nil {
		return nil, fmt.Errorf("failed to load model %q: %w", name, err)
	}
	return clf, nil
}

// SaveToDir serializes a trained classifier to <dir>/<name>.gob.
func SaveToDir(dir string, clf model.Classifier) (string, error) {
	data, err := clf.Save()
	if err != nil {
		return "", fmt.Errorf("failed to serialize model %q: %w", clf.Name(), err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create model dir: %w", err)
	}

	path := modelFile(dir, clf.Name())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write model file: %w", err)
	}
	return path, nil
}
