package retry

import "time"

// Category identifies a class of failure.
type Category string

const (
	// CategoryNetwork covers connection resets, DNS failures and similar transport errors.
	CategoryNetwork Category = "network"
	// CategoryTimeout covers deadlines exceeded while talking to upstream.
	CategoryTimeout Category = "timeout"
	// CategoryRateLimit covers HTTP 429 responses.
	CategoryRateLimit Category = "rate_limit"
	// CategoryServer covers HTTP 5xx responses.
	CategoryServer Category = "server"
	// CategoryIntegrity covers corrupted payloads that are healed by a single re-fetch.
	CategoryIntegrity Category = "integrity"
	// CategoryStructure covers malformed text maps and decodes below the confidence threshold.
	CategoryStructure Category = "structure"
	// CategoryTemplate covers missing or unreadable canonical templates.
	CategoryTemplate Category = "template"
	// CategoryNotFound covers HTTP 404 responses and missing cache entries.
	CategoryNotFound Category = "not_found"
	// CategoryValidation covers malformed requests (other 4xx, bad arguments).
	CategoryValidation Category = "validation"
	// CategoryConfig covers invalid configuration and manifests.
	CategoryConfig Category = "config"
	// CategoryUnknown is used when nothing else applies.
	CategoryUnknown Category = "unknown"
)

// Classification is one row of the policy table.
type Classification struct {
	Category          Category      `json:"category"`
	Retryable         bool          `json:"retryable"`
	MaxRetries        int           `json:"max_retries"`
	RetryDelay        time.Duration `json:"retry_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`
}

// policy is the static classification table.
var policy = map[Category]Classification{
	CategoryNetwork:    {Category: CategoryNetwork, Retryable: true, MaxRetries: 3, RetryDelay: 500 * time.Millisecond, BackoffMultiplier: 2},
	CategoryTimeout:    {Category: CategoryTimeout, Retryable: true, MaxRetries: 3, RetryDelay: time.Second, BackoffMultiplier: 2},
	CategoryRateLimit:  {Category: CategoryRateLimit, Retryable: true, MaxRetries: 5, RetryDelay: 2 * time.Second, BackoffMultiplier: 2},
	CategoryServer:     {Category: CategoryServer, Retryable: true, MaxRetries: 3, RetryDelay: time.Second, BackoffMultiplier: 1.5},
	CategoryIntegrity:  {Category: CategoryIntegrity, Retryable: true, MaxRetries: 1, RetryDelay: 0, BackoffMultiplier: 1},
	CategoryStructure:  {Category: CategoryStructure, Retryable: false},
	CategoryTemplate:   {Category: CategoryTemplate, Retryable: false},
	CategoryNotFound:   {Category: CategoryNotFound, Retryable: false},
	CategoryValidation: {Category: CategoryValidation, Retryable: false},
	CategoryConfig:     {Category: CategoryConfig, Retryable: false},
	CategoryUnknown:    {Category: CategoryUnknown, Retryable: false},
}

// Lookup returns the classification row for a category.
// Unknown categories resolve to the CategoryUnknown row.
func Lookup(c Category) Classification {
	if row, ok := policy[c]; ok {
		return row
	}
	return policy[CategoryUnknown]
}

// Categories returns every category of the policy table in a stable order.
func Categories() []Category {
	return []Category{
		CategoryNetwork, CategoryTimeout, CategoryRateLimit, CategoryServer,
		CategoryIntegrity, CategoryStructure, CategoryTemplate, CategoryNotFound,
		CategoryValidation, CategoryConfig, CategoryUnknown,
	}
}

// Delay returns the wait before the given retry attempt (1-based).
func (c Classification) Delay(attempt int) time.Duration {
	if attempt < 1 || c.RetryDelay <= 0 {
		return 0
	}
	d := float64(c.RetryDelay)
	for i := 1; i < attempt; i++ {
		d *= c.BackoffMultiplier
	}
	return time.Duration(d)
}
