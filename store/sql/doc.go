// Package sqlstore persists token records and device ownership through
// go-repository-bun on Postgres or SQLite.
package sqlstore
