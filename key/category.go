package key

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/fnv"
)

// Category names a class of cached values. Each category gets its own TTL
// default and its own digest length budget.
type Category string

const (
	CategoryDBQuery     Category = "db_query"
	CategoryAPIResponse Category = "api_response"
	CategoryComputation Category = "computation"
	CategoryExternalAPI Category = "external_api"
	CategoryStartup     Category = "startup"
	CategoryBackground  Category = "background"
)

// digestLen is the per-category hex length of the parameter digest. Larger
// budgets go to categories with bigger, more collision-prone input spaces.
var digestLen = map[Category]int{
	CategoryDBQuery:     20,
	CategoryAPIResponse: 16,
	CategoryComputation: 16,
	CategoryExternalAPI: 12,
}

// canonical serializes params deterministically: encoding/json sorts map
// keys, so equal key/value sets produce identical bytes regardless of
// insertion order, including in nested maps.
func canonical(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: canonicalize: %v", ErrInvalidKey, err)
	}
	return data, nil
}

// digest hashes the canonical bytes with SHA-256 and truncates the hex form
// to the category's budget.
func digest(cat Category, data []byte) string {
	sum := sha256.Sum256(data)
	h := hex.EncodeToString(sum[:])
	if n, ok := digestLen[cat]; ok && n < len(h) {
		return h[:n]
	}
	return h[:16]
}

// legacyDigest is the pre-migration weak scheme: FNV-1a 32-bit over the
// same canonical bytes. Kept only so the dual-read migration path can
// derive the keys old deployments wrote. Do not use for new keys.
func legacyDigest(data []byte) string {
	h := fnv.New32a()
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ForDBQuery builds the key for a database query result. The query text and
// its parameters are folded into one digest so equal queries with equal
// parameter sets share a key.
func (b *Builder) ForDBQuery(query string, params map[string]any) (string, error) {
	data, err := canonical(map[string]any{"query": query, "params": params})
	if err != nil {
		return "", err
	}
	return b.Build("db", digest(CategoryDBQuery, data))
}

// ForAPI builds the key for an internally computed API response.
func (b *Builder) ForAPI(endpoint string, params map[string]any) (string, error) {
	data, err := canonical(params)
	if err != nil {
		return "", err
	}
	return b.Build("api", endpoint, digest(CategoryAPIResponse, data))
}

// ForComputation builds the key for a named expensive computation.
func (b *Builder) ForComputation(name string, params map[string]any) (string, error) {
	data, err := canonical(params)
	if err != nil {
		return "", err
	}
	return b.Build("comp", name, digest(CategoryComputation, data))
}

// ForExternalAPI builds the key for a third-party API call result.
func (b *Builder) ForExternalAPI(service, endpoint string, params map[string]any) (string, error) {
	data, err := canonical(params)
	if err != nil {
		return "", err
	}
	return b.Build("ext", service, endpoint, digest(CategoryExternalAPI, data))
}

// LegacyForDBQuery derives the pre-migration key for a database query.
func (b *Builder) LegacyForDBQuery(query string, params map[string]any) (string, error) {
	data, err := canonical(map[string]any{"query": query, "params": params})
	if err != nil {
		return "", err
	}
	return b.Build("db", legacyDigest(data))
}

// LegacyForExternalAPI derives the pre-migration key for a third-party API
// call, used by the dual-read path during the hash-scheme migration.
func (b *Builder) LegacyForExternalAPI(service, endpoint string, params map[string]any) (string, error) {
	data, err := canonical(params)
	if err != nil {
		return "", err
	}
	return b.Build("ext", service, endpoint, legacyDigest(data))
}
