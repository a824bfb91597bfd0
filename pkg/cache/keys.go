package cache

// keyVersion is mixed into every key; bump it when a cached format changes.
const keyVersion = 1

// Keyer produces cache keys for pipeline artifacts.
type Keyer interface {
	// PlanKey identifies a scheduled plan by the content hashes of its
	// system and staging graphs.
	PlanKey(lhsHash, rhsHash string) string

	// ArtifactKey identifies a rendered artifact of a plan.
	ArtifactKey(planHash string, opts ArtifactKeyOpts) string
}

// ArtifactKeyOpts are the render options that change an artifact.
type ArtifactKeyOpts struct {
	Graph  string `json:"graph"`  // "devices" or "actions"
	Format string `json:"format"` // "dot", "svg" or "png"
	Side   string `json:"side,omitempty"`
}

// DefaultKeyer hashes its inputs into fixed-length keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a [DefaultKeyer].
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

func (DefaultKeyer) PlanKey(lhsHash, rhsHash string) string {
	return hashKey("plan", keyVersion, lhsHash, rhsHash)
}

func (DefaultKeyer) ArtifactKey(planHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", keyVersion, planHash, opts)
}
