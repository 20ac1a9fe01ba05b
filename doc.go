/*
Package n8nbridge exposes an n8n webhook as a Model Context Protocol tool.

A caller (an AI agent speaking MCP over stdio, SSE or a websocket) invokes the tool
"ejecutar_accion_n8n" with an action name and optional target and value. The relay turns
that into a JSON POST against the configured webhook and hands back either the webhook's
answer or a typed failure. Nothing is persisted and every invocation is independent.

# Layout

  - pkg/domain: request, payload and result types.
  - pkg/relay: the single outbound call and its classification.
  - pkg/adapters/mcp: the MCP tool and its transports.
  - pkg/adapters/websocket: client transport for remote MCP hubs.
  - pkg/adapters/http: a plain JSON API with health and metrics.
  - pkg/observability: Prometheus metrics for relay outcomes.

# Usage

	cfg := relay.Config{EndpointURL: "https://n8n.example.com/webhook/action"}
	r := relay.New(cfg)

	res := r.Execute(ctx, domain.NewActionRequest("encender_luces", "salon"))
	switch v := res.(type) {
	case domain.Success:
		fmt.Println(v.StatusCode, v.String())
	case domain.Failure:
		fmt.Println(v.Kind, v.Message)
	}
*/
package n8nbridge
