// Package providers contains the OAuth2 token endpoint client used to exchange
// authorization codes and refresh tokens. Vendor defaults live in subpackages.
package providers
