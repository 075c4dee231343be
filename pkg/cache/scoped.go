package cache

// ScopedKeyer prefixes every key of an inner Keyer. The CLI and the server
// scope keys by release, since a new release may assign different codes to
// the same document.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner, or the default keyer when inner is nil.
//
//	keyer := NewScopedKeyer(nil, buildinfo.Get().Version+":")
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) ResultKey(contentHash string, opts ResultKeyOpts) string {
	return k.prefix + k.inner.ResultKey(contentHash, opts)
}

func (k *ScopedKeyer) StatsKey(contentHash string) string {
	return k.prefix + k.inner.StatsKey(contentHash)
}
