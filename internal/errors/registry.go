package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// Sentinels for errors.Is matching.
var (
	ErrTemplateCompile  = &Error{Code: "H100"}
	ErrPlaceholderName  = &Error{Code: "H101"}
	ErrConfigLoad       = &Error{Code: "H200"}
	ErrConfigValidation = &Error{Code: "H201"}
	ErrNotFound         = &Error{Code: "H300"}
	ErrStoreIO          = &Error{Code: "H301"}
	ErrProtocol         = &Error{Code: "H400"}
)

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// Templates and formats (H100-H199)
	"H100": {
		Category: CategoryConfig,
		Message:  "Template cannot be compiled",
	},
	"H101": {
		Category: CategoryConfig,
		Message:  "Invalid placeholder",
		Detail:   "Placeholder names may only contain letters, digits, '_', '-' and '.'.",
	},

	// Configuration (H200-H299)
	"H200": {
		Category: CategoryConfig,
		Message:  "Configuration cannot be loaded",
	},
	"H201": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
	},

	// Snapshot store (H300-H399)
	"H300": {
		Category: CategoryStore,
		Message:  "Snapshot not found",
	},
	"H301": {
		Category: CategoryStore,
		Message:  "Snapshot store failure",
	},

	// Websocket protocol (H400-H499)
	"H400": {
		Category: CategoryProtocol,
		Message:  "Malformed message",
	},
}

// Lookup returns the template for code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
