// Package useragent derives the OS and device class of a visitor from the
// User-Agent header.
package useragent

import (
	"strings"

	uaparser "github.com/mssola/useragent"
)

// Device classes stored in url_analytics.device_name.
const (
	DeviceDesktop = "Desktop"
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceBot     = "Bot"
)

// Parse returns the operating system name and device class for ua.
// Either value is nil when it cannot be derived.
func Parse(ua string) (osName, deviceName *string) {
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return nil, nil
	}

	parsed := uaparser.New(ua)

	if name := strings.TrimSpace(parsed.OSInfo().Name); name != "" {
		osName = &name
	}

	device := deviceClass(parsed, ua)
	if device == "" {
		return osName, nil
	}
	return osName, &device
}

func deviceClass(parsed *uaparser.UserAgent, raw string) string {
	switch {
	case parsed.Bot():
		return DeviceBot
	case isTablet(raw):
		return DeviceTablet
	case parsed.Mobile():
		return DeviceMobile
	case parsed.OS() != "" || parsed.Platform() != "":
		return DeviceDesktop
	default:
		return ""
	}
}

// Android tablets omit the "Mobile" token that phones carry.
func isTablet(raw string) bool {
	lower := strings.ToLower(raw)
	if strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet") {
		return true
	}
	return strings.Contains(lower, "android") && !strings.Contains(lower, "mobile")
}
