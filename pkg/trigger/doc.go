// Package trigger detects "/partial" tokens in a composer buffer, tracks the
// suggestion overlay they open, and renders the compact canonical tokens that
// stand in for parameterized items until they are resolved.
package trigger
