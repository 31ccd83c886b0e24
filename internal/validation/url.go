package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateFetchURL validates the address inside a `<url>` tag before it is
// fetched. Only absolute http/https URLs with a host are accepted.
func ValidateFetchURL(rawURL string) error {
	if strings.ContainsAny(rawURL, " \t\r\n") {
		return fmt.Errorf("URL contains whitespace")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	// Only allow http/https schemes to prevent file:// and friends
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %q (only http/https allowed)", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}

	return nil
}
