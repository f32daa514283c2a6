package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Model describes one entry in a models registry file.
type Model struct {
	ID       string `json:"id"`
	Dir      string `json:"dir"`
	Language string `json:"language,omitempty"`
}

type registryManifest struct {
	Models []Model `json:"models"`
}

// Registry resolves model IDs to model directories through a manifest.json
// kept in the models root. Relative directories resolve against the
// manifest's own location.
type Registry struct {
	manifestPath string
	baseDir      string
	models       []Model
	byID         map[string]Model
}

// RegistryFileName is the registry manifest filename inside a models root.
const RegistryFileName = "manifest.json"

func LoadRegistry(manifestPath string) (*Registry, error) {
	if manifestPath == "" {
		return nil, errors.New("manifest path is required")
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read model registry: %w", err)
	}

	var manifest registryManifest

	err = json.Unmarshal(data, &manifest)
	if err != nil {
		return nil, fmt.Errorf("decode model registry: %w", err)
	}

	reg := &Registry{
		manifestPath: manifestPath,
		baseDir:      filepath.Dir(manifestPath),
		models:       append([]Model(nil), manifest.Models...),
		byID:         make(map[string]Model, len(manifest.Models)),
	}

	for _, m := range manifest.Models {
		if m.ID == "" {
			return nil, errors.New("model registry contains empty id")
		}

		if m.Dir == "" {
			return nil, fmt.Errorf("model %q has empty dir", m.ID)
		}

		if _, exists := reg.byID[m.ID]; exists {
			return nil, fmt.Errorf("duplicate model id %q", m.ID)
		}

		reg.byID[m.ID] = m
	}

	return reg, nil
}

// List returns the registry entries in manifest order.
func (r *Registry) List() []Model {
	return append([]Model(nil), r.models...)
}

// ResolveDir maps a model ID to its directory and checks the directory
// exists.
func (r *Registry) ResolveDir(id string) (string, error) {
	m, ok := r.byID[id]
	if !ok {
		return "", fmt.Errorf("unknown model id %q", id)
	}

	resolved := m.Dir
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(r.baseDir, resolved)
	}

	resolved = filepath.Clean(resolved)

	fi, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("model directory for %q: %w", id, err)
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("model directory for %q: %s is not a directory", id, resolved)
	}

	return resolved, nil
}
