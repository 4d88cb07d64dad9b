// Package runtime holds the pure template rendering used for client-side prompts.
package runtime
