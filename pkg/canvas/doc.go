// Package canvas holds the shared pixel grid that is the authoritative state
// of a place server.
//
// The grid is owned by a Store. Readers get a full copy via Snapshot and
// writers mutate one pixel at a time via Set; both hold the Store's mutex only
// for the duration of that copy or write. Writes outside the grid are dropped
// without error.
//
//	store := canvas.NewStore(1000, 1000)
//	if store.Set(canvas.Pixel{X: 1, Y: 1, Color: canvas.Color{R: 255}}) {
//	    hub.Publish(p)
//	}
//	img := store.Snapshot() // safe to encode without holding any lock
package canvas
