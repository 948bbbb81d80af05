package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// EndpointClass groups platform read endpoints that share a cache TTL
type EndpointClass string

const (
	EndpointInsights   EndpointClass = "insights"
	EndpointCampaigns  EndpointClass = "campaigns"
	EndpointAdSets     EndpointClass = "adsets"
	EndpointAds        EndpointClass = "ads"
	EndpointAdAccounts EndpointClass = "adaccounts"
)

const (
	InsightsCacheTTL   = time.Hour
	StructuralCacheTTL = 2 * time.Hour
	DefaultCacheTTL    = time.Hour
)

// TTL returns how long responses of the class stay fresh
func (c EndpointClass) TTL() time.Duration {
	switch c {
	case EndpointInsights:
		return InsightsCacheTTL
	case EndpointCampaigns, EndpointAdSets, EndpointAds, EndpointAdAccounts:
		return StructuralCacheTTL
	default:
		return DefaultCacheTTL
	}
}

// CacheKeySeparator splits the class prefix from the params in a cache key
const CacheKeySeparator = "|"

// CacheKey derives the stable key for a class and parameter set.
// Keys and values are trimmed and empty values dropped; encoding/json
// writes map keys in sorted order, which makes the encoding stable.
func CacheKey(class EndpointClass, params map[string]string) string {
	normalized := make(map[string]string, len(params))
	for k, v := range params {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		normalized[k] = v
	}

	encoded, err := json.Marshal(normalized)
	if err != nil {
		// map[string]string always marshals
		encoded = []byte("{}")
	}
	return string(class) + CacheKeySeparator + string(encoded)
}

// CacheKeyPrefix is the prefix shared by every key of a class
func CacheKeyPrefix(class EndpointClass) string {
	return string(class) + CacheKeySeparator
}
