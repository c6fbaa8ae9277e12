// Package common provides helpers shared by the MCP tool packages:
// identity resolution and the instrumentation wrapper.
package common
