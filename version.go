package n8nbridge

import _ "embed"

// Version is the release of this module. It is reported to MCP clients and sent in the
// User-Agent of outbound webhook calls.
//
//go:embed VERSION
var Version string
