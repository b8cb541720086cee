package sightline

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sightline-io/sightline-go/internal/constants"
)

// metadataCachedResponse is the request metadata key under which a cache hit
// is stashed for the transport to short-circuit on.
const metadataCachedResponse = "cached_response"

// CacheInterceptor returns the request and response interceptors that serve
// reads from the cache and store cacheable responses into it.
func CacheInterceptor(manager *CacheManager, policy *CachingPolicy) (RequestInterceptor, ResponseInterceptor) {
	if policy == nil {
		policy = DefaultCachingPolicy()
	}

	requestInterceptor := func(ctx context.Context, req *Request) error {
		if req.Method != http.MethodGet {
			return nil
		}

		key := manager.GetCacheKey(req.Method, req.Path, nil)

		entry, err := manager.GetEntry(ctx, key)
		if err != nil {
			// Miss, the request goes to the server.
			return nil
		}

		if req.Metadata == nil {
			req.Metadata = make(map[string]interface{})
		}

		req.Metadata[metadataCachedResponse] = entry

		return nil
	}

	responseInterceptor := func(ctx context.Context, req *Request, resp *Response) error {
		if !policy.ShouldCache(req.Method, req.Path, resp.StatusCode) {
			return nil
		}

		key := manager.GetCacheKey(req.Method, req.Path, nil)
		etag := resp.Headers.Get("ETag")

		return manager.SetWithETag(ctx, key, resp.Body, etag, manager.TTLFor(req.Path))
	}

	return requestInterceptor, responseInterceptor
}

// ConditionalRequestInterceptor turns cached validators into conditional
// requests by attaching If-None-Match.
func ConditionalRequestInterceptor(manager *CacheManager) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		if req.Method != http.MethodGet {
			return nil
		}

		key := manager.GetCacheKey(req.Method, req.Path, nil)

		entry, err := manager.GetEntry(ctx, key)
		if err != nil || entry.ETag == "" {
			return nil
		}

		if req.Headers == nil {
			req.Headers = make(http.Header)
		}

		req.Headers.Set("If-None-Match", entry.ETag)

		return nil
	}
}

// CacheInvalidationInterceptor drops cached reads made stale by a successful
// mutation: the resource itself and its collection listing.
func CacheInvalidationInterceptor(manager *CacheManager) ResponseInterceptor {
	return func(ctx context.Context, req *Request, resp *Response) error {
		switch req.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			return nil
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil
		}

		_ = manager.Delete(ctx, manager.GetCacheKey(http.MethodGet, req.Path, nil))

		if idx := strings.LastIndex(req.Path, "/"); idx > 0 {
			parent := req.Path[:idx]
			_ = manager.Delete(ctx, manager.GetCacheKey(http.MethodGet, parent, nil))
		}

		return nil
	}
}

// SmartCacheConfig tunes the combined caching interceptor stack.
type SmartCacheConfig struct {
	// EnableSmartInvalidation drops stale entries after mutations.
	EnableSmartInvalidation bool
	// EnableConditionalRequests revalidates cached entries with ETags.
	EnableConditionalRequests bool
	// EnableMetrics attaches the metrics interceptors.
	EnableMetrics bool
	// ResourceTTLs overrides TTLs per path prefix.
	ResourceTTLs map[string]time.Duration
}

// DefaultSmartCacheConfig enables every feature with TTLs matched to how
// quickly each resource goes stale.
func DefaultSmartCacheConfig() *SmartCacheConfig {
	return &SmartCacheConfig{
		EnableSmartInvalidation:   true,
		EnableConditionalRequests: true,
		EnableMetrics:             true,
		ResourceTTLs: map[string]time.Duration{
			"/data-sources":             constants.ObservationCacheTTL,
			"/observations/generic":     constants.ObservationCacheTTL,
			"/observable/entities":      constants.DefaultCacheTTL,
			"/observable/relationships": constants.ForecastCacheTTL,
		},
	}
}

// ConfigureSmartCache wires the caching interceptors into the chain.
func ConfigureSmartCache(chain *InterceptorChain, manager *CacheManager, config *SmartCacheConfig) {
	if config == nil {
		config = DefaultSmartCacheConfig()
	}

	requestInterceptor, responseInterceptor := CacheInterceptor(manager, DefaultCachingPolicy())
	chain.AddRequestInterceptor(requestInterceptor)
	chain.AddResponseInterceptor(responseInterceptor)

	if config.EnableConditionalRequests {
		chain.AddRequestInterceptor(ConditionalRequestInterceptor(manager))
	}

	if config.EnableSmartInvalidation {
		chain.AddResponseInterceptor(CacheInvalidationInterceptor(manager))
	}

	if config.EnableMetrics {
		collector := NewMetricsCollector()
		chain.AddRequestInterceptor(MetricsRequestInterceptor(collector))
		chain.AddResponseInterceptor(MetricsResponseInterceptor(collector))
	}
}

// CacheWarmer primes the cache with resources that rarely change.
type CacheWarmer struct {
	client  Client
	manager *CacheManager
}

// NewCacheWarmer creates a warmer over the client and cache manager.
func NewCacheWarmer(client Client, manager *CacheManager) *CacheWarmer {
	return &CacheWarmer{client: client, manager: manager}
}

// Warm fetches the data source registry so that attribution lookups during
// bulk registration hit the cache.
func (w *CacheWarmer) Warm(ctx context.Context) error {
	if w.client == nil {
		return nil
	}

	page, err := w.client.DataSources().List(ctx, NewListQuery().WithLimit(constants.MaxPageLimit))
	if err != nil {
		return err
	}

	for _, dataSource := range page.Items {
		path := "/data-sources/" + dataSource.UUID.String()
		key := w.manager.GetCacheKey(http.MethodGet, path, nil)

		data, err := dataSource.marshalForCache()
		if err != nil {
			continue
		}

		if err := w.manager.Set(ctx, key, data, w.manager.TTLFor(path)); err != nil {
			return err
		}
	}

	return nil
}
