package config

import "time"

// CatalogConfig contains configuration for the remote content API that
// serves the software catalog consumed by the sitemap generator.
type CatalogConfig struct {
	// BaseURL is the content API root (e.g. "https://api.example.com/api").
	BaseURL string `env:"CATALOG_BASE_URL"`

	// APIKey is sent as X-API-Key on every request.
	APIKey string `env:"CATALOG_API_KEY"`

	// Timeout bounds each outbound request.
	Timeout time.Duration `env:"CATALOG_TIMEOUT" envDefault:"10s"`

	// ListExpr extracts the entry collection from the provider's JSON
	// envelope. JMESPath expression; the envelope shape is provider-owned
	// and has changed before, so it stays configurable.
	ListExpr string `env:"CATALOG_LIST_EXPR" envDefault:"data.items"`

	// SlugExpr extracts the URL slug from a single entry.
	SlugExpr string `env:"CATALOG_SLUG_EXPR" envDefault:"slug"`

	// UpdatedAtExpr extracts the last-modified timestamp from a single entry.
	UpdatedAtExpr string `env:"CATALOG_UPDATED_AT_EXPR" envDefault:"updated_at"`
}

// Configured reports whether the content API client can be constructed.
func (c CatalogConfig) Configured() bool {
	return c.BaseURL != ""
}

// Sanitize applies guardrails to catalog configuration values.
func (c *CatalogConfig) Sanitize() {
	if c.Timeout <= 0 || c.Timeout > time.Minute {
		c.Timeout = 10 * time.Second
	}
}
