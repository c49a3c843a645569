package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (FR100-FR199)
	// ============================================

	"FR101": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "framer looks for framer.json or framer.toml in the working directory unless --config is given.",
	},
	"FR102": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "The configuration file could not be parsed.",
	},
	"FR103": {
		Category: CategoryConfig,
		Message:  "Unsupported codec settings",
		Detail:   "The length field must be 1, 2, 4 or varint; header offset, expiry and max frame length must not be negative.",
	},
	"FR104": {
		Category: CategoryConfig,
		Message:  "Invalid listen address",
		Detail:   "Addresses use the host:port form, e.g. \":7000\" or \"127.0.0.1:7000\".",
	},
	"FR105": {
		Category: CategoryConfig,
		Message:  "Configuration could not be written",
	},

	// ============================================
	// CLI Errors (FR200-FR299)
	// ============================================

	"FR201": {
		Category: CategoryCLI,
		Message:  "Invalid arguments",
	},
	"FR202": {
		Category: CategoryCLI,
		Message:  "Input could not be read",
	},
	"FR203": {
		Category: CategoryCLI,
		Message:  "Invalid hex input",
		Detail:   "Hex input may contain whitespace between bytes but no other separators.",
	},

	// ============================================
	// Transport Errors (FR300-FR399)
	// ============================================

	"FR301": {
		Category: CategoryTransport,
		Message:  "Listener failed",
		Detail:   "The server could not bind its address. Another process may already be using the port.",
	},
	"FR302": {
		Category: CategoryTransport,
		Message:  "Connection failed",
	},
	"FR303": {
		Category: CategoryTransport,
		Message:  "Request timed out",
		Detail:   "No response frame with a matching key arrived before the deadline.",
	},
	"FR304": {
		Category: CategoryProtocol,
		Message:  "Frame could not be encoded",
		Detail:   "The payload is larger than the configured length field can express.",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
