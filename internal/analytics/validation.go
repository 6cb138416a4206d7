package analytics

import (
	"fmt"
	"net/netip"
	"unicode/utf8"

	"github.com/penshort/shortlytics/internal/model"
)

const (
	minAliasLength     = 3
	maxAliasLength     = 20
	maxUserAgentLength = 500
)

// ValidateClick checks a click event before it is written.
func ValidateClick(event *model.ClickEvent) error {
	if event == nil {
		return fmt.Errorf("click event is required")
	}
	if event.ID == "" {
		return fmt.Errorf("id is required")
	}
	if event.Alias == "" {
		return fmt.Errorf("alias is required")
	}
	if len(event.Alias) < minAliasLength || len(event.Alias) > maxAliasLength {
		return fmt.Errorf("alias length out of bounds")
	}
	if event.IPAddress == "" {
		return fmt.Errorf("ip_address is required")
	}
	if _, err := netip.ParseAddr(event.IPAddress); err != nil {
		return fmt.Errorf("ip_address is not a valid address")
	}
	if event.Timestamp.IsZero() {
		return fmt.Errorf("timestamp must be set")
	}
	if len(event.UserAgent) > maxUserAgentLength {
		return fmt.Errorf("user_agent too long")
	}
	return nil
}

// TruncateUserAgent cuts ua to the stored maximum on a rune boundary.
func TruncateUserAgent(ua string) string {
	if len(ua) <= maxUserAgentLength {
		return ua
	}
	cut := maxUserAgentLength
	for cut > 0 && !utf8.RuneStart(ua[cut]) {
		cut--
	}
	return ua[:cut]
}
