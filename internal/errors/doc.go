// Package errors provides coded, operator-facing errors for place.
//
// Fatal startup problems (bad configuration, an unusable snapshot path, a
// port that cannot be bound) are reported as a PlaceError carrying a stable
// code, a short message, and a hint:
//
//	err := errors.New(errors.CodeUnsupportedFormat).
//	    WithField("save_location").
//	    Wrap(cause)
//
//	errors.PrintError(err)
//	// ERROR E101: Unsupported snapshot file extension
//	//
//	//   Setting: save_location
//	//
//	//   Hint: Use a save location ending in .png, .bmp, .tif or .tiff.
//
// Codes are grouped by range: E1xx configuration, E2xx persistence,
// E3xx server.
package errors
