package statusapi

// Config configures the read-only introspection server.
type Config struct {
	Host string
	Port int

	// AuthenticationTokens, if non-empty, restricts requests to callers
	// presenting one of these tokens, mirroring http.Config's
	// AuthenticationTokens check.
	AuthenticationTokens []string
}
