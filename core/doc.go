// Package core holds the smart-home bridge domain: token and device records,
// collaborator contracts, the error taxonomy, configuration and the token
// lifecycle manager. Adapters depend on core; core depends on no adapter.
package core
