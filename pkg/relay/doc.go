/*
Package relay forwards an action to a webhook and classifies the answer.

A Relay makes exactly one POST per Execute call and never returns an error: every
outcome, including a missing endpoint, a refused connection or a 500 from the webhook,
is folded into a domain.Result. Relays are safe for concurrent use; they hold only the
read-only Config they were built with.
*/
package relay
