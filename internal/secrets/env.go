// Package secrets handles the one credential this service holds — the
// market-data provider's API key — and provides a Redactor that can scrub
// it out of log text.
package secrets

import "os"

// APIKeyEnvVar is the environment variable that overrides provider.api_key
// from the YAML config, so the key never has to live on disk.
const APIKeyEnvVar = "STOCKCACHE_API_KEY"

// APIKeyFromEnv returns the API key override and whether it was set.
func APIKeyFromEnv() (string, bool) {
	v := os.Getenv(APIKeyEnvVar)
	return v, v != ""
}
