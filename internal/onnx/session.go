package onnx

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Fixed artifact and graph names inside a model directory. The manifest
// records each graph's input and output nodes in graph order, which is what
// lets the engine address outputs by position.
const (
	ManifestFileName = "graphs.json"
	EncoderGraphName = "encoder"
	DecoderGraphName = "decoder"
)

// NodeInfo describes one graph input or output node. Shape entries are
// either int64 dimensions or strings naming symbolic dimensions.
type NodeInfo struct {
	Name  string `json:"name"`
	DType string `json:"dtype"`
	Shape []any  `json:"shape"`
}

// Session is the metadata for one loadable ONNX graph: its resolved file
// path and its ordered input/output node declarations.
type Session struct {
	Name    string
	Path    string
	Inputs  []NodeInfo
	Outputs []NodeInfo
}

func (s Session) clone() Session {
	s.Inputs = append([]NodeInfo(nil), s.Inputs...)
	s.Outputs = append([]NodeInfo(nil), s.Outputs...)

	return s
}

// Manifest holds the validated graph metadata of one model directory.
type Manifest struct {
	sessions map[string]Session
	order    []string
}

type manifestFile struct {
	Graphs []manifestGraph `json:"graphs"`
}

type manifestGraph struct {
	Name     string     `json:"name"`
	Filename string     `json:"filename"`
	Inputs   []NodeInfo `json:"inputs"`
	Outputs  []NodeInfo `json:"outputs"`
}

// LoadManifest reads and validates graphs.json from a model directory. Every
// listed graph file must exist. Any failure here is an initialization error;
// nothing is partially loaded.
func LoadManifest(modelDir string) (*Manifest, error) {
	if modelDir == "" {
		return nil, errors.New("model directory is required")
	}

	path := filepath.Join(modelDir, ManifestFileName)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph manifest: %w", err)
	}

	var mf manifestFile
	if err := json.Unmarshal(raw, &mf); err != nil {
		return nil, fmt.Errorf("decode graph manifest %s: %w", path, err)
	}
	if len(mf.Graphs) == 0 {
		return nil, fmt.Errorf("graph manifest %s lists no graphs", path)
	}

	m := &Manifest{
		sessions: make(map[string]Session, len(mf.Graphs)),
		order:    make([]string, 0, len(mf.Graphs)),
	}

	for _, g := range mf.Graphs {
		session, err := m.validateGraph(modelDir, g)
		if err != nil {
			return nil, err
		}

		m.sessions[g.Name] = session
		m.order = append(m.order, g.Name)

		slog.Info(
			"loaded graph metadata",
			"name", g.Name,
			"path", session.Path,
			"inputs", nodeNames(g.Inputs),
			"outputs", nodeNames(g.Outputs),
		)
	}

	return m, nil
}

// validateGraph turns one manifest entry into Session metadata, checking the
// declaration and resolving the graph file against the model directory.
func (m *Manifest) validateGraph(modelDir string, g manifestGraph) (Session, error) {
	switch {
	case g.Name == "":
		return Session{}, errors.New("manifest graph has empty name")
	case g.Filename == "":
		return Session{}, fmt.Errorf("manifest graph %q has empty filename", g.Name)
	}

	if _, dup := m.sessions[g.Name]; dup {
		return Session{}, fmt.Errorf("duplicate graph name %q in manifest", g.Name)
	}

	path := g.Filename
	if !filepath.IsAbs(path) {
		path = filepath.Join(modelDir, g.Filename)
	}
	path = filepath.Clean(path)

	if _, err := os.Stat(path); err != nil {
		return Session{}, fmt.Errorf("graph file for %q: %w", g.Name, err)
	}

	return Session{Name: g.Name, Path: path, Inputs: g.Inputs, Outputs: g.Outputs}.clone(), nil
}

// Session returns the metadata for a named graph.
func (m *Manifest) Session(name string) (Session, bool) {
	s, ok := m.sessions[name]
	return s, ok
}

// Sessions returns all graph metadata in manifest order.
func (m *Manifest) Sessions() []Session {
	out := make([]Session, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.sessions[name].clone())
	}

	return out
}

func nodeNames(nodes []NodeInfo) string {
	var sb strings.Builder
	for i, n := range nodes {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(n.Name)
	}

	return sb.String()
}
