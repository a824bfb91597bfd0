// Package io provides JSON and YAML import and export for device graphs.
//
// # Overview
//
// Device graphs are persisted as a flat list of devices and a list of
// holders. The format is designed for:
//
//   - Feeding a desired storage layout to the planner
//   - Saving probed, system and staging graphs of a session
//   - Round-trip preservation: export, re-import and get a structurally equal
//     graph with the same sids
//
// # Format
//
//	{
//	  "devices": [
//	    {"sid": 1, "kind": "disk", "attrs": {"path": "/dev/sda", "size": 107374182400, "pt_type": "gpt"}},
//	    {"sid": 2, "kind": "partition", "attrs": {"path": "/dev/sda1", "number": 1, "start": 1048576, "size": 10737418240}}
//	  ],
//	  "holders": [
//	    {"source": 1, "target": 2, "type": "subdevice"}
//	  ]
//	}
//
// The same structure is accepted as YAML. The attrs object holds the
// attributes of the device kind, see package devices for the field names.
//
// # Import
//
// Use [Import] to read a file, picking the codec from its extension, or
// [ReadJSON] and [ReadYAML] to read from any io.Reader:
//
//	g, err := io.Import("target.yaml")
//
// Imported sids are reserved so devices created afterwards never collide
// with them. All decoding problems are collected and reported together as a
// *multierror.Error wrapped in an INVALID_FORMAT error. A graph that decodes
// but violates structural constraints fails with the error of
// [devicegraph.Graph.Check].
//
// # Export
//
// Use [Export], [WriteJSON] or [WriteYAML]. Devices and holders are written
// in sid order, so exports of equal graphs are byte-identical.
package io
