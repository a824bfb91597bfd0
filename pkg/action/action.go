package action

import (
	"context"
	"fmt"

	"github.com/matzehuels/storagegraph/pkg/devicegraph"
	"github.com/matzehuels/storagegraph/pkg/errors"
)

// ID is the insertion index of an action in its action graph. The scheduler
// breaks ties by smallest ID.
type ID int

// ChainID identifies one contributed chain within an action graph.
type ChainID int

// Unit is the kind of diff unit a chain was contributed for.
type Unit int

const (
	UnitCreate Unit = iota + 1
	UnitDelete
	UnitModify
	UnitHolderCreate
	UnitHolderDelete
)

func (u Unit) String() string {
	switch u {
	case UnitCreate:
		return "create"
	case UnitDelete:
		return "delete"
	case UnitModify:
		return "modify"
	case UnitHolderCreate:
		return "holder-create"
	case UnitHolderDelete:
		return "holder-delete"
	}
	return fmt.Sprintf("Unit(%d)", int(u))
}

// Position is an action's place in its chain.
type Position struct {
	Unit    Unit
	Chain   ChainID
	Ordinal int // 0-based
	Len     int
}

// State is the commit lifecycle state of an action.
type State int

const (
	Pending State = iota
	Scheduled
	Committed
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Scheduled:
		return "scheduled"
	case Committed:
		return "committed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Anchor names a well-known action other actions may depend on without
// knowing which device provides it.
type Anchor string

// AnchorRootMounted is provided by the mount of "/". Actions writing
// persistent configuration below the target root require it.
const AnchorRootMounted Anchor = "root-mounted"

// Op performs and describes the work of one action. Ops are supplied by
// device types.
type Op interface {
	// Commit applies the action to the real system.
	Commit(ctx context.Context, env *Env, a *Action) error

	// Text describes the action in the given tense.
	Text(env *Env, a *Action, tense Tense) string
}

// Action is one atomic low-level operation.
type Action struct {
	Kind     Kind
	SID      devicegraph.SID
	Side     Side
	Features Features

	// Holder is set for actions contributed for a holder unit.
	Holder *devicegraph.Holder

	Provides []Anchor
	Requires []Anchor

	// Trailing actions only record persistent configuration. Devices
	// contained in this one do not wait for them.
	Trailing bool

	op    Op
	id    ID
	pos   Position
	bound bool
	state State
	err   error
}

// New creates a pending action of the given kind for the device sid,
// resolved against side.
func New(kind Kind, sid devicegraph.SID, side Side, op Op) *Action {
	return &Action{Kind: kind, SID: sid, Side: side, op: op}
}

// WithFeatures adds feature bits and returns a.
func (a *Action) WithFeatures(f Features) *Action {
	a.Features |= f
	return a
}

// Providing declares that a provides the anchor and returns a.
func (a *Action) Providing(anchor Anchor) *Action {
	a.Provides = append(a.Provides, anchor)
	return a
}

// Requiring declares that a depends on the provider of anchor, if any, and
// returns a.
func (a *Action) Requiring(anchor Anchor) *Action {
	a.Requires = append(a.Requires, anchor)
	return a
}

// AsTrailing marks a as trailing and returns a.
func (a *Action) AsTrailing() *Action {
	a.Trailing = true
	return a
}

// ForHolder marks a as belonging to a holder unit and returns a.
func (a *Action) ForHolder(h devicegraph.Holder) *Action {
	a.Holder = &h
	return a
}

// Bind assigns the insertion index and chain position. It is called once by
// the action graph builder.
func (a *Action) Bind(id ID, pos Position) error {
	if a.bound {
		return errors.New(errors.ErrCodeInternal, "action %s already bound as %d", a.Kind, a.id)
	}
	if pos.Ordinal < 0 || pos.Ordinal >= pos.Len {
		return errors.New(errors.ErrCodeInternal, "action %s: ordinal %d out of chain length %d", a.Kind, pos.Ordinal, pos.Len)
	}
	a.id, a.pos, a.bound = id, pos, true
	return nil
}

// ID returns the insertion index.
func (a *Action) ID() ID { return a.id }

// Position returns the chain position.
func (a *Action) Position() Position { return a.pos }

// First reports whether a heads its chain.
func (a *Action) First() bool { return a.pos.Ordinal == 0 }

// Last reports whether a is the tail of its chain.
func (a *Action) Last() bool { return a.pos.Ordinal == a.pos.Len-1 }

// State returns the lifecycle state.
func (a *Action) State() State { return a.state }

// Err returns the error recorded when a failed.
func (a *Action) Err() error { return a.err }

// Op returns the operation implementing a.
func (a *Action) Op() Op { return a.op }

var transitions = map[State][]State{
	Pending:   {Scheduled},
	Scheduled: {Committed, Failed},
}

// Transition moves a to state to. Invalid transitions return an INTERNAL
// error and leave the state untouched.
func (a *Action) Transition(to State) error {
	for _, ok := range transitions[a.state] {
		if ok == to {
			a.state = to
			return nil
		}
	}
	return errors.New(errors.ErrCodeInternal, "action %d (%s): invalid transition %s -> %s", a.id, a.Kind, a.state, to)
}

// Fail transitions a to Failed and records err.
func (a *Action) Fail(err error) error {
	if terr := a.Transition(Failed); terr != nil {
		return terr
	}
	a.err = err
	return nil
}

// Commit runs the action's Op.
func (a *Action) Commit(ctx context.Context, env *Env) error {
	if a.op == nil {
		return errors.New(errors.ErrCodeInternal, "action %d (%s) has no operation", a.id, a.Kind)
	}
	return a.op.Commit(ctx, env, a)
}

// Describe renders a human-readable text in the given tense.
func (a *Action) Describe(env *Env, tense Tense) string {
	if a.op == nil {
		return fmt.Sprintf("%s device %d", a.Kind, a.SID)
	}
	return a.op.Text(env, a, tense)
}

// String returns a compact debugging form such as "#3 Mount(7/rhs)".
func (a *Action) String() string {
	return fmt.Sprintf("#%d %s(%d/%s)", a.id, a.Kind, a.SID, a.Side)
}
