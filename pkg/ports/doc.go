/*
Package ports defines the driving port of the relay.

Adapters (MCP, HTTP, CLI) depend on these interfaces rather than on pkg/relay, so they
can be exercised with fakes and so alternative relays can be plugged in.

# Key Interfaces

  - ActionRelay: executes one action and returns a domain.Result.
  - Observer: receives the outcome of every invocation.
*/
package ports
