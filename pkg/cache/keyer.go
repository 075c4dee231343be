package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Keyer builds cache keys.
type Keyer interface {
	// ResultKey is the key of a compacted JSON document.
	ResultKey(contentHash string, opts ResultKeyOpts) string

	// StatsKey is the key of the inspection statistics of a document.
	StatsKey(contentHash string) string
}

// ResultKeyOpts are the options that influence compaction output.
type ResultKeyOpts struct {
	Rename        bool   `json:"rename"`
	Monitors      string `json:"monitors"`
	Enumeration   string `json:"enumeration"`
	Alphabet      string `json:"alphabet"`
	AllowExternal bool   `json:"allow_external"`
}

// Fingerprint returns a canonical text form of o. Two option sets produce the
// same compaction output exactly when their fingerprints are equal.
func (o ResultKeyOpts) Fingerprint() string {
	var b strings.Builder
	b.WriteString("rename=" + strconv.FormatBool(o.Rename))
	b.WriteString(" monitors=" + o.Monitors)
	b.WriteString(" enumeration=" + o.Enumeration)
	// Alphabets may contain spaces and '='.
	b.WriteString(" alphabet=" + strconv.Quote(o.Alphabet))
	b.WriteString(" external=" + strconv.FormatBool(o.AllowExternal))
	return b.String()
}

// DefaultKeyer builds keys of the form "kind:sha256".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ResultKey digests the content hash together with the option fingerprint.
func (DefaultKeyer) ResultKey(contentHash string, opts ResultKeyOpts) string {
	return digestKey("result", contentHash, opts.Fingerprint())
}

// StatsKey digests the content hash. Statistics do not depend on options.
func (DefaultKeyer) StatsKey(contentHash string) string {
	return digestKey("stats", contentHash)
}

// digestKey returns kind:sha256(parts), with parts separated by NUL so that
// no two part lists share a digest input.
func digestKey(kind string, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return kind + ":" + hex.EncodeToString(sum[:])
}

// Hash returns the hex SHA-256 of a JSON member. It is the content half of
// every key.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Default lifetimes of cache entries.
const (
	TTLResult = 7 * 24 * time.Hour
	TTLStats  = 24 * time.Hour
)
