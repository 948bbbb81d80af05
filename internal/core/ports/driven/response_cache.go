package driven

import (
	"context"

	"github.com/custodia-labs/adsync-core/internal/core/domain"
)

// ResponseCache memoizes idempotent platform reads for their class TTL.
// Implementations treat entries older than class.TTL() as absent.
type ResponseCache interface {
	// Get returns the payload stored for the class and params, if fresh
	Get(ctx context.Context, class domain.EndpointClass, params map[string]string) ([]byte, bool)

	// Set stores a payload for the class and params
	Set(ctx context.Context, class domain.EndpointClass, params map[string]string, payload []byte) error

	// Clear removes entries. An empty class clears everything, nil params
	// clear the whole class, otherwise only the matching entry is removed.
	Clear(ctx context.Context, class domain.EndpointClass, params map[string]string) error
}
