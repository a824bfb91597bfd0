package actiongraph

import (
	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/devicegraph"
)

// Contributor is implemented by device types that can be created, deleted
// or modified. Each method returns one ordered chain; an empty chain means
// the unit needs no action.
type Contributor interface {
	// CreateActions is called on the new snapshot of a created device.
	CreateActions(rhs *devicegraph.Graph) []*action.Action

	// DeleteActions is called on the old snapshot of a deleted device.
	DeleteActions(lhs *devicegraph.Graph) []*action.Action

	// ModifyActions is called on the new snapshot of a modified device with
	// its old snapshot. Only genuinely changed attributes produce actions.
	ModifyActions(lhs *devicegraph.Graph, old devicegraph.Device, rhs *devicegraph.Graph) []*action.Action
}

// DependencyContributor adds edges the generic rules cannot express. It is
// asked of every device that contributed a chain, on its newest snapshot.
type DependencyContributor interface {
	ExtraDependencies(g *Graph) []Edge
}

// HolderContributor is asked of a holder's target device for created and
// deleted holder units. For created holders the target is the new snapshot,
// for deleted holders the old one.
type HolderContributor interface {
	AddHolderActions(h devicegraph.Holder, lhs, rhs *devicegraph.Graph) []*action.Action
	RemoveHolderActions(h devicegraph.Holder, lhs, rhs *devicegraph.Graph) []*action.Action
}

// Validator is an optional pre-check run before building. old is nil for
// created devices, and cur is nil for deleted ones. A refusal should be an
// UNSUPPORTED_OPERATION error.
type Validator interface {
	Validate(old, cur devicegraph.Device) error
}
