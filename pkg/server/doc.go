// Package server provides the network side of a place canvas.
//
// A Server accepts WebSocket connections on /ws and serves the current canvas
// as an image. Each connection becomes a Session running four duties:
//
//   - readLoop: decodes 11-byte pixel writes and submits them to the Applier
//   - writeLoop: drains the session's bounded outbound queue to the socket
//   - relayLoop: forwards every hub broadcast into the outbound queue
//   - keepaliveLoop: queues a ping every HeartbeatInterval
//
// The duties share one context. Whichever fails first cancels it with a
// cause, and teardown closes the socket and releases the hub subscription.
// A protocol violation only ever closes the offending session.
//
// # Write path
//
// There is exactly one Applier per server. It applies writes to the
// canvas.Store in arrival order and publishes each applied write to the
// hub.Hub, so all clients observe the same order of mutations. Writes outside
// the canvas are dropped without a broadcast.
//
// # Backpressure
//
// Outbound queues are bounded by SessionConfig.MaxOutboundQueue and the hub
// buffers a fixed number of writes per subscriber. A client that falls behind
// either limit is disconnected; it can reconnect and fetch the image to
// resynchronize.
//
// # Endpoints
//
//	GET /ws          WebSocket upgrade
//	GET /place.png   current canvas (path and format follow the snapshot codec)
//	GET /canvas      alias for the image endpoint
//	GET /healthz     liveness
//	GET /metrics     Prometheus exposition, when metrics are enabled
package server
