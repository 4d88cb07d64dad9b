// Package recency tracks the most recently used menu items and persists them
// through a ports.RecencyStore, optionally coordinating several composers that
// share one store through a ports.DistributedLocker.
package recency
