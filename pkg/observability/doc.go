/*
Package observability provides metrics for the action relay.

Metrics implements ports.Observer and records one sample per invocation, labelled by
action and outcome, so the same collector serves every transport.
*/
package observability
