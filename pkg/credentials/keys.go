package credentials

import "fmt"

// Well-known credential keys used by the core engine.

// WalletSecretKey returns the credential key for a node's XRPL wallet seed.
func WalletSecretKey(nodeName string) string {
	return fmt.Sprintf("%s__v1xrpsecret", nodeName)
}

// RemembrancerSecretKey returns the credential key for the remembrancer's
// XRPL wallet seed, if one is configured.
func RemembrancerSecretKey(nodeName string) string {
	return fmt.Sprintf("%s_remembrancer__v1xrpsecret", nodeName)
}

// DatabaseURLKey returns the credential key for the Postgres connection string.
func DatabaseURLKey(nodeName string) string {
	return fmt.Sprintf("%s_postgresconnstring", nodeName)
}

// LLMAPIKeyKey is the credential key for the LLM provider API key.
const LLMAPIKeyKey = "openrouter"
