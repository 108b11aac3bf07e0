// Package testutil provides test helpers for packages built on the datastore:
// an in-memory store with repositories, and seeders for catalog rows and samples.
package testutil
