package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/devices"
	"github.com/matzehuels/storagegraph/pkg/errors"
)

// rawDevice carries undecoded attributes; decode fills a concrete device.
type rawDevice struct {
	SID    devicegraph.SID
	Kind   devicegraph.Kind
	decode func(v any) error
}

type jsonDocument struct {
	Devices []struct {
		SID   devicegraph.SID  `json:"sid"`
		Kind  devicegraph.Kind `json:"kind"`
		Attrs json.RawMessage  `json:"attrs"`
	} `json:"devices"`
	Holders []holder `json:"holders"`
}

type yamlDocument struct {
	Devices []struct {
		SID   devicegraph.SID  `yaml:"sid"`
		Kind  devicegraph.Kind `yaml:"kind"`
		Attrs yaml.Node        `yaml:"attrs"`
	} `yaml:"devices"`
	Holders []holder `yaml:"holders"`
}

// ReadJSON decodes a JSON device graph from r. ReadJSON does not close r.
func ReadJSON(r io.Reader) (*devicegraph.Graph, error) {
	var doc jsonDocument
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode json")
	}

	raws := make([]rawDevice, len(doc.Devices))
	for i, d := range doc.Devices {
		attrs := d.Attrs
		raws[i] = rawDevice{SID: d.SID, Kind: d.Kind, decode: func(v any) error {
			if len(attrs) == 0 {
				return nil
			}
			return json.Unmarshal(attrs, v)
		}}
	}
	return build(raws, doc.Holders)
}

// ReadYAML decodes a YAML device graph from r. ReadYAML does not close r.
func ReadYAML(r io.Reader) (*devicegraph.Graph, error) {
	var doc yamlDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode yaml")
	}

	raws := make([]rawDevice, len(doc.Devices))
	for i := range doc.Devices {
		d := &doc.Devices[i]
		raws[i] = rawDevice{SID: d.SID, Kind: d.Kind, decode: func(v any) error {
			if d.Attrs.Kind == 0 {
				return nil
			}
			return d.Attrs.Decode(v)
		}}
	}
	return build(raws, doc.Holders)
}

// build assembles the graph, collecting every decoding problem before
// failing.
func build(raws []rawDevice, holders []holder) (*devicegraph.Graph, error) {
	var result *multierror.Error
	g := devicegraph.New()

	for i, raw := range raws {
		if raw.SID == 0 {
			result = multierror.Append(result, fmt.Errorf("device %d: missing sid", i))
			continue
		}
		d, err := devices.New(raw.Kind, raw.SID)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("device %d: %w", raw.SID, err))
			continue
		}
		if err := raw.decode(d); err != nil {
			result = multierror.Append(result, fmt.Errorf("device %d (%s): %w", raw.SID, raw.Kind, err))
			continue
		}
		if err := g.AddDevice(d); err != nil {
			result = multierror.Append(result, err)
		}
	}

	for _, h := range holders {
		typ, err := devicegraph.ParseHolderType(h.Type)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("holder %d -> %d: %w", h.Source, h.Target, err))
			continue
		}
		if err := g.AddHolder(devicegraph.Holder{Source: h.Source, Target: h.Target, Type: typ}); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "invalid device graph")
	}
	if err := g.Check(); err != nil {
		return nil, err
	}
	return g, nil
}

// Import reads a device graph from path. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON.
func Import(path string) (*devicegraph.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "open %s", path)
	}
	defer f.Close()

	if isYAML(path) {
		return ReadYAML(f)
	}
	return ReadJSON(f)
}
