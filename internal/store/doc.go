// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic, allowing business rules to remain
// independent of specific database technologies or persistence details.
//
// Multi-step operations go through a Transactor so that label cleanup,
// claim removal and reward accounting either all happen or none do.
package store
