package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/errors"
)

type document struct {
	Devices []device `json:"devices" yaml:"devices"`
	Holders []holder `json:"holders" yaml:"holders"`
}

type device struct {
	SID   devicegraph.SID  `json:"sid" yaml:"sid"`
	Kind  devicegraph.Kind `json:"kind" yaml:"kind"`
	Attrs any              `json:"attrs" yaml:"attrs"`
}

type holder struct {
	Source devicegraph.SID `json:"source" yaml:"source"`
	Target devicegraph.SID `json:"target" yaml:"target"`
	Type   string          `json:"type" yaml:"type"`
}

func toDocument(g *devicegraph.Graph) document {
	doc := document{
		Devices: make([]device, 0, g.NumDevices()),
		Holders: make([]holder, 0, g.NumHolders()),
	}
	for _, d := range g.Devices() {
		doc.Devices = append(doc.Devices, device{SID: d.SID(), Kind: d.Kind(), Attrs: d})
	}
	for _, h := range g.Holders() {
		doc.Holders = append(doc.Holders, holder{Source: h.Source, Target: h.Target, Type: h.Type.String()})
	}
	return doc
}

// WriteJSON encodes g as indented JSON and writes it to w.
func WriteJSON(g *devicegraph.Graph, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(toDocument(g)); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// WriteYAML encodes g as YAML and writes it to w.
func WriteYAML(g *devicegraph.Graph, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(toDocument(g)); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return enc.Close()
}

// Export writes g to path. Files ending in .yaml or .yml are written as
// YAML, everything else as JSON.
func Export(g *devicegraph.Graph, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", path)
	}
	defer f.Close()

	if isYAML(path) {
		err = WriteYAML(g, f)
	} else {
		err = WriteJSON(g, f)
	}
	if err != nil {
		return err
	}
	return f.Close()
}

func isYAML(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
