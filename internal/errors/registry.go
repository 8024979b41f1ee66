package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// Error codes.
const (
	// Configuration (E100-E199)
	CodeInvalidConfig      = "E100"
	CodeUnsupportedFormat  = "E101"
	CodeInvalidDimensions  = "E102"
	CodeInvalidSchedule    = "E103"
	CodeConfigFile         = "E104"
	CodeInvalidAddress     = "E105"
	CodeInvalidLogSettings = "E106"
	CodeInvalidLimit       = "E107"

	// Persistence (E200-E299)
	CodeNotRegularFile = "E200"
	CodeRestoreFailed  = "E201"
	CodeSaveFailed     = "E202"
	CodeMirrorSetup    = "E203"

	// Server (E300-E399)
	CodeListenFailed   = "E300"
	CodeShutdownFailed = "E301"
)

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (E100-E199)
	// ============================================

	CodeInvalidConfig: {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
	},
	CodeUnsupportedFormat: {
		Category:   CategoryConfig,
		Message:    "Unsupported snapshot file extension",
		Detail:     "The snapshot format is chosen from the save location's extension.",
		Suggestion: "Use a save location ending in .png, .bmp, .tif or .tiff.",
	},
	CodeInvalidDimensions: {
		Category:   CategoryConfig,
		Message:    "Invalid canvas dimensions",
		Detail:     "Width and height must each be between 1 and 65535, and the canvas must fit the pixel budget.",
		Suggestion: "Set --width and --height to smaller positive values.",
	},
	CodeInvalidSchedule: {
		Category:   CategoryConfig,
		Message:    "Invalid save schedule",
		Detail:     "Either the save interval must be positive or a valid cron expression must be given.",
		Suggestion: "Use --save-interval 120s or --save-cron \"@every 2m\".",
	},
	CodeConfigFile: {
		Category:   CategoryConfig,
		Message:    "Config file could not be read",
		Suggestion: "Check the path passed to --config and its syntax (YAML, JSON or TOML).",
	},
	CodeInvalidAddress: {
		Category:   CategoryConfig,
		Message:    "Invalid listen address",
		Suggestion: "Use host:port, e.g. 0.0.0.0:8080.",
	},
	CodeInvalidLogSettings: {
		Category:   CategoryConfig,
		Message:    "Invalid log settings",
		Suggestion: "Log level is one of debug, info, warn, error; format is text or json.",
	},
	CodeInvalidLimit: {
		Category: CategoryConfig,
		Message:  "Invalid limit",
		Detail:   "Queue sizes, message size and timeouts must be positive.",
	},

	// ============================================
	// Persistence Errors (E200-E299)
	// ============================================

	CodeNotRegularFile: {
		Category:   CategoryPersistence,
		Message:    "Snapshot path is not a regular file",
		Detail:     "The save location exists but is a directory or special file, so the canvas can neither be restored nor saved.",
		Suggestion: "Remove or rename whatever is at the save location, or choose another path.",
	},
	CodeRestoreFailed: {
		Category: CategoryPersistence,
		Message:  "Snapshot restore failed",
	},
	CodeSaveFailed: {
		Category:   CategoryPersistence,
		Message:    "Snapshot save failed",
		Suggestion: "Check that the directory of the save location exists and is writable.",
	},
	CodeMirrorSetup: {
		Category:   CategoryPersistence,
		Message:    "Snapshot mirror could not be configured",
		Suggestion: "Check the S3 bucket, region and credentials.",
	},

	// ============================================
	// Server Errors (E300-E399)
	// ============================================

	CodeListenFailed: {
		Category:   CategoryServer,
		Message:    "Could not listen on address",
		Suggestion: "Check that the port is free and that you may bind to it.",
	},
	CodeShutdownFailed: {
		Category: CategoryServer,
		Message:  "Server shutdown did not complete cleanly",
	},
}

// Lookup returns the template for a code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
