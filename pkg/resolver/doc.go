// Package resolver runs the interactive argument collection for parameterized
// menu items, including debounced, advisory suggestion lookups.
package resolver
