// Package protocol implements the binary wire protocol for place.
//
// Every WebSocket binary message in either direction carries exactly one
// pixel write, encoded as a fixed 11-byte record:
//
//	┌───────────────┬───────────────┬─────┬─────┬─────┐
//	│ X (uint32 BE) │ Y (uint32 BE) │  R  │  G  │  B  │
//	└───────────────┴───────────────┴─────┴─────┴─────┘
//
// There is no framing, versioning, or padding. A message of any other length
// is a protocol violation and the server closes the offending connection.
//
// # Encoding
//
// Encoder and Decoder are small append/read helpers for fixed-width
// big-endian integers. EncodePoint and DecodePoint build on them:
//
//	data := protocol.EncodePoint(canvas.Pixel{X: 1, Y: 1, Color: canvas.Color{R: 255}})
//	p, err := protocol.DecodePoint(data)
package protocol
