/*
Package domain contains the core models of the palette engine.

It defines the catalog entry (MenuItem) and its three variants, the argument
values collected for an item, the recency list and its codec, and the errors and
events shared by every other package. It is kept free of I/O so adapters and the
engine can depend on it without cycles.

# Key Entities

  - MenuItem: a slash-command entry. Origin picks the variant and Payload carries it.
  - ArgumentValues: the name to value map collected by a resolution session.
  - RecentUsage: one entry of the most-recently-used list.
  - LifecycleHooks: callbacks the execution pipeline fires for observability.
*/
package domain
