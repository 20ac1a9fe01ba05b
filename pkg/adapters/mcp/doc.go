// Package mcp publishes the action relay as a Model Context Protocol tool.
package mcp
