/*
Package domain contains the core types of the action relay.

It defines what a caller asks for (ActionRequest), what goes over the wire to the
webhook (Payload), and what comes back (Result). This package is kept pure and free
of I/O so that every adapter (MCP, HTTP, CLI) shares the same vocabulary.

# Key Entities

  - ActionRequest: the action name plus optional target and value.
  - Payload: the JSON body posted to the webhook.
  - Result: a closed sum of Success and Failure.
  - FailureKind: the failure taxonomy (configuration, connection, HTTP status).
*/
package domain
