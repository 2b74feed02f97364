// Package server implements the MCP (Model Context Protocol) server for the sheet grader.
//
// This package provides a JSON-RPC 2.0 server that exposes bubble sheet reading
// and grading through the MCP protocol, so an assistant can read a sheet, look
// at why a row was read the way it was, and grade a stack of sheets.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// Log output never goes to stdout, which carries the protocol.
//
// # Available Tools
//
// Sheet reading:
//   - omr_response_map: Answer of every question, optionally with per-row detail
//   - omr_detect_bubbles: Detected circles in reading order
//   - omr_annotate: Overlay of the grading decisions as base64 PNG, whole page or one row
//
// Grading:
//   - omr_grade: Score sheets against the answer key in service
//   - omr_answer_key: Describe the answer key in service
//   - omr_reload_key: Read a new answer key from a key sheet
//
// # Image Caching
//
// The sheet reading tools share an in-memory cache of decoded images keyed by
// path, so annotating a sheet right after reading it does not decode it twice.
// omr_grade and omr_reload_key always read from disk.
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
// The server is typically started by an MCP client through the serve command:
//
//	srv := server.New(pipeline, keys, log, version)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
