/*
Package ports defines the driven ports (interfaces) of the palette engine.

These interfaces decouple the core logic from external implementations, allowing
the engine to work with various item sources, prompt providers, transcripts and
storage backends.

# Key Interfaces

  - ItemSource: supplies menu items (local commands, template directories, remote prompts).
  - PromptTransport: lists, fetches and completes prompts on remote providers.
  - RemoteExecutor: runs commands that have no local implementation.
  - Transcript: receives streamed execution output.
  - RecencyStore: persists the most-recently-used list.
  - DistributedLocker: coordinates recency updates across composers sharing a store.
*/
package ports
