// Package catalog provides the partner cloud device list and reachability
// check. StaticCatalog stands in for a live partner integration.
package catalog
