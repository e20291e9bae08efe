// Package confluence provides a Go client for the Confluence wiki REST
// API: authenticated HTTP verbs with content-type aware response
// decoding, and an iterator over paginated CQL search results.
package confluence

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Environment variables consulted by ConfigFromEnv.
const (
	EnvBaseURL  = "CONFLUENCE_URL"
	EnvUsername = "CONFLUENCE_USER"
	EnvAPIToken = "CONFLUENCE_TOKEN"
)

// Default client settings.
const (
	DefaultTimeout = 30 * time.Second
)

// Config holds all configuration for the Confluence API client.
type Config struct {
	// BaseURL is the root of the Confluence instance, for example
	// "https://wiki.example.com" or "https://example.atlassian.net/wiki".
	BaseURL string

	// Username is the account name used for Basic authentication.
	Username string

	// APIToken is the API token (or password) paired with Username.
	APIToken string

	// Timeout is the HTTP client timeout for each request.
	Timeout time.Duration
}

// DefaultConfig returns a Config with default settings and no
// credentials.
func DefaultConfig() Config {
	return Config{
		Timeout: DefaultTimeout,
	}
}

// ConfigFromEnv builds a Config from the CONFLUENCE_URL,
// CONFLUENCE_USER and CONFLUENCE_TOKEN environment variables. Unset
// variables leave the corresponding field empty.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.BaseURL = strings.TrimSpace(os.Getenv(EnvBaseURL))
	cfg.Username = strings.TrimSpace(os.Getenv(EnvUsername))
	cfg.APIToken = strings.TrimSpace(os.Getenv(EnvAPIToken))
	return cfg
}

// WithBaseURL returns a copy of the config with the specified base URL.
func (c Config) WithBaseURL(baseURL string) Config {
	c.BaseURL = baseURL
	return c
}

// WithCredentials returns a copy of the config with the specified
// Basic-auth credentials.
func (c Config) WithCredentials(username, apiToken string) Config {
	c.Username = username
	c.APIToken = apiToken
	return c
}

// WithTimeout returns a copy of the config with the specified timeout.
func (c Config) WithTimeout(timeout time.Duration) Config {
	c.Timeout = timeout
	return c
}

// String renders the config with the API token redacted, so configs
// can be logged safely.
func (c Config) String() string {
	token := ""
	if c.APIToken != "" {
		token = "[redacted]"
	}
	return fmt.Sprintf("confluence.Config{BaseURL: %q, Username: %q, APIToken: %q, Timeout: %s}",
		c.BaseURL, c.Username, token, c.Timeout)
}
