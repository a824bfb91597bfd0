package action

// Kind names a low-level operation.
type Kind string

const (
	Create                Kind = "Create"
	Delete                Kind = "Delete"
	Activate              Kind = "Activate"
	Deactivate            Kind = "Deactivate"
	Mount                 Kind = "Mount"
	Umount                Kind = "Umount"
	Remount               Kind = "Remount"
	AddToEtcFstab         Kind = "AddToEtcFstab"
	RemoveFromEtcFstab    Kind = "RemoveFromEtcFstab"
	UpdateInEtcFstab      Kind = "UpdateInEtcFstab"
	AddToEtcCrypttab      Kind = "AddToEtcCrypttab"
	RemoveFromEtcCrypttab Kind = "RemoveFromEtcCrypttab"
	AddToEtcMdadm         Kind = "AddToEtcMdadm"
	RemoveFromEtcMdadm    Kind = "RemoveFromEtcMdadm"
	SetLabel              Kind = "SetLabel"
	SetUuid               Kind = "SetUuid"
	Resize                Kind = "Resize"
	Rename                Kind = "Rename"
	SetPartitionID        Kind = "SetPartitionID"
	CreatePartitionTable  Kind = "CreatePartitionTable"
	SetNocow              Kind = "SetNocow"
	SetLimits             Kind = "SetLimits"
	AssignQgroup          Kind = "AssignQgroup"
	UnassignQgroup        Kind = "UnassignQgroup"
	Reallot               Kind = "Reallot"
)

// Side selects which graph of a diff an action's sid is resolved against.
type Side int

const (
	// SideDefault is only meaningful as an [Env.TargetSide] override and
	// means "use the action's own side".
	SideDefault Side = iota
	LHS
	RHS
)

func (s Side) String() string {
	switch s {
	case LHS:
		return "lhs"
	case RHS:
		return "rhs"
	}
	return "default"
}

// ParseSide parses "lhs", "rhs" or "" (default).
func ParseSide(s string) (Side, bool) {
	switch s {
	case "", "default":
		return SideDefault, true
	case "lhs":
		return LHS, true
	case "rhs":
		return RHS, true
	}
	return SideDefault, false
}

// Tense selects the grammatical form of an action description.
type Tense int

const (
	// TenseSimplePresent renders e.g. "Create partition /dev/sda1".
	TenseSimplePresent Tense = iota
	// TensePresentProgressive renders e.g. "Creating partition /dev/sda1".
	TensePresentProgressive
	// TensePast renders e.g. "Created partition /dev/sda1".
	TensePast
)

// Verb holds the conjugations of one verb.
type Verb struct {
	Simple, Progressive, Past string
}

// In returns the form for t.
func (v Verb) In(t Tense) string {
	switch t {
	case TensePresentProgressive:
		return v.Progressive
	case TensePast:
		return v.Past
	}
	return v.Simple
}

// Common verbs used in action descriptions.
var (
	VerbCreate     = Verb{"Create", "Creating", "Created"}
	VerbDelete     = Verb{"Delete", "Deleting", "Deleted"}
	VerbActivate   = Verb{"Activate", "Activating", "Activated"}
	VerbDeactivate = Verb{"Deactivate", "Deactivating", "Deactivated"}
	VerbMount      = Verb{"Mount", "Mounting", "Mounted"}
	VerbUnmount    = Verb{"Unmount", "Unmounting", "Unmounted"}
	VerbRemount    = Verb{"Remount", "Remounting", "Remounted"}
	VerbAdd        = Verb{"Add", "Adding", "Added"}
	VerbRemove     = Verb{"Remove", "Removing", "Removed"}
	VerbUpdate     = Verb{"Update", "Updating", "Updated"}
	VerbSet        = Verb{"Set", "Setting", "Set"}
	VerbResize     = Verb{"Resize", "Resizing", "Resized"}
	VerbGrow       = Verb{"Grow", "Growing", "Grew"}
	VerbShrink     = Verb{"Shrink", "Shrinking", "Shrank"}
	VerbRename     = Verb{"Rename", "Renaming", "Renamed"}
	VerbFormat     = Verb{"Format", "Formatting", "Formatted"}
	VerbAssign     = Verb{"Assign", "Assigning", "Assigned"}
	VerbUnassign   = Verb{"Unassign", "Unassigning", "Unassigned"}
	VerbExtend     = Verb{"Extend", "Extending", "Extended"}
	VerbReduce     = Verb{"Reduce", "Reducing", "Reduced"}
)
