package cache

// ScopedKeyer prefixes every key of an inner Keyer, so that entries of
// different sessions or hosts sharing one backend never collide:
//
//	keyer := cache.NewScopedKeyer(nil, "session:"+sess.ID+":")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner, or a [DefaultKeyer] if inner is nil.
func NewScopedKeyer(inner Keyer, prefix string) *ScopedKeyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) PlanKey(lhsHash, rhsHash string) string {
	return k.prefix + k.inner.PlanKey(lhsHash, rhsHash)
}

func (k *ScopedKeyer) ArtifactKey(planHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(planHash, opts)
}
