// Package identity resolves the customer profile behind a delegated access
// token and derives token validation from it.
package identity
