// Package repository provides the store interfaces consumed by the catalog
// synchronizer, the sampler and the crowd engine, together with their GORM
// implementations.
//
// All methods take a context and are safe for concurrent use. Large id sets
// are chunked to stay below SQL parameter limits.
package repository
