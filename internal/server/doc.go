// Package server implements an MCP (Model Context Protocol) server that
// exposes number recognition and summing as tools.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Logs go to stderr so they never corrupt the response stream.
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - image_load: Load an image and report its dimensions and format
//   - snapsum_recognize: Recognize the numbers in an image or a region of it
//   - snapsum_sum_lines: Sum the numeric lines of a text
//   - snapsum_filter_tokens: Run raw OCR texts through the token filter
//   - snapsum_map_region: Map a rectangle from a scaled view to source pixels
//
// Regions are given either as "x1,y1,x2,y2" or as four integer arguments,
// together with the scale of the view they were drawn on. A recognized
// region is cropped to a temp file that the recognition worker deletes.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// # Usage
//
//	srv := server.New(cfg, worker, version)
//	if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil {
//	    log.Fatal(err)
//	}
package server
