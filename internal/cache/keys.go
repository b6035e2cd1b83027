package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Invalidation scopes
const (
	ScopeAll      = "all"
	ScopeOptions  = "options"
	ScopeCascade  = "cascade"
	ScopeData     = "data"
	ScopeSnapshot = "snapshot"
)

// ErrUnknownScope is returned for a scope PatternFor does not know
var ErrUnknownScope = errors.New("unknown cache scope")

type KeyGenerator struct {
	Prefix string
}

// NewKeyGenerator creates a new key generator with the given prefix
func NewKeyGenerator(prefix string) *KeyGenerator {
	if prefix == "" {
		prefix = "h1b"
	}
	return &KeyGenerator{Prefix: prefix}
}

// Facet option lists, keyed by column and the narrowing filters
func (kg *KeyGenerator) OptionsKey(column string, filters interface{}) string {
	return fmt.Sprintf("%s:options:%s:%s", kg.Prefix, column, kg.HashFilter(filters))
}

// Dependent facet lists (cities, job titles, SOC titles)
func (kg *KeyGenerator) CascadeKey(facet string, filters interface{}) string {
	return fmt.Sprintf("%s:cascade:%s:%s", kg.Prefix, facet, kg.HashFilter(filters))
}

// Aggregated data, keyed by fetch kind, filters and aggregation spec
func (kg *KeyGenerator) DataKey(kind string, filters, spec interface{}) string {
	return fmt.Sprintf("%s:data:%s:%s", kg.Prefix, kind,
		kg.HashFilter(struct {
			F interface{} `json:"f"`
			S interface{} `json:"s"`
		}{filters, spec}))
}

// Materialized summaries
func (kg *KeyGenerator) SnapshotKey(name string) string {
	return fmt.Sprintf("%s:snapshot:%s", kg.Prefix, name)
}

// Pattern generation for bulk invalidation
func (kg *KeyGenerator) AllPattern() string {
	return fmt.Sprintf("%s:*", kg.Prefix)
}

func (kg *KeyGenerator) OptionsPattern() string {
	return fmt.Sprintf("%s:options:*", kg.Prefix)
}

func (kg *KeyGenerator) CascadePattern() string {
	return fmt.Sprintf("%s:cascade:*", kg.Prefix)
}

func (kg *KeyGenerator) DataPattern() string {
	return fmt.Sprintf("%s:data:*", kg.Prefix)
}

func (kg *KeyGenerator) SnapshotPattern() string {
	return fmt.Sprintf("%s:snapshot:*", kg.Prefix)
}

// PatternFor maps a scope name to its pattern; "" and "all" mean everything
func (kg *KeyGenerator) PatternFor(scope string) (string, error) {
	switch scope {
	case "", ScopeAll:
		return kg.AllPattern(), nil
	case ScopeOptions:
		return kg.OptionsPattern(), nil
	case ScopeCascade:
		return kg.CascadePattern(), nil
	case ScopeData:
		return kg.DataPattern(), nil
	case ScopeSnapshot:
		return kg.SnapshotPattern(), nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownScope, scope)
}

// HashFilter hashes the JSON encoding of filter. Struct field order makes
// the encoding deterministic.
func (kg *KeyGenerator) HashFilter(filter interface{}) string {
	jsonBytes, err := json.Marshal(filter)
	if err != nil {
		jsonBytes = []byte(fmt.Sprintf("%+v", filter))
	}
	hash := md5.Sum(jsonBytes)
	return hex.EncodeToString(hash[:])
}

// ValidateKey checks if a key follows the expected format
func (kg *KeyGenerator) ValidateKey(key string) bool {
	return strings.HasPrefix(key, kg.Prefix+":")
}
