// Package socketserver implements the WebSocket JSON-RPC server that
// exposes the host workspace to one trusted local client.
//
// The WebSocket layer is implemented here byte for byte: the HTTP upgrade
// handshake, the RFC 6455 accept-key computation and the framing all live
// in this module and internal/wsframe, with no WebSocket library in the
// server path.
//
// # Architecture
//
//   - Server: binds loopback on an OS-assigned port, serializes upgrade
//     attempts through the auth and capacity gates, and owns the lifecycle
//   - Hub: the registry of established connections, with snapshot
//     broadcast and a periodic dead-connection sweep
//   - Client: one established connection; accumulates bytes into a bounded
//     receive buffer and dispatches every complete text frame in order
//   - Dispatcher: parses frame payloads as JSON-RPC 2.0 and routes
//     requests by method name
//
// # Message Protocol
//
// One JSON-RPC 2.0 message per text frame:
//
//	{"jsonrpc":"2.0","method":"files/read","id":1,"params":{"path":"main.go"}}
//
// Request methods: initialize, files/read, workspace/selection,
// resources/list. The initialized notification is acknowledged with a log
// entry only. Outbound traffic is limited to responses and the broadcast
// notifications at_mentioned and selection_changed; the server never
// issues requests of its own.
//
// # Authentication
//
// Every upgrade request must carry the per-instance credential in the
// x-claude-code-ide-authorization header. The credential is generated at
// server construction and published to the client through the discovery
// descriptor (internal/lockfile).
package socketserver
