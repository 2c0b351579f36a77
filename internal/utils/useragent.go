package utils

import (
	"strings"

	ua "github.com/mssola/user_agent"
)

// ClientInfo holds the parts of a User-Agent worth logging next to a request
type ClientInfo struct {
	Name    string `json:"name"`    // Chrome, Stripe, curl, ...
	Version string `json:"version"` // Client version, if any
	OS      string `json:"os"`      // Windows 10, Linux, ...
	IsBot   bool   `json:"is_bot"`  // Crawlers and server-to-server callers
	Raw     string `json:"raw"`     // Original user agent string
}

// ParseUserAgent parses a User-Agent string.
// Server-to-server callers such as "Stripe/1.0 (+https://stripe.com/docs/webhooks)"
// parse as bots with the product token as their name.
func ParseUserAgent(userAgent string) ClientInfo {
	if userAgent == "" || userAgent == "Unknown" {
		return ClientInfo{Name: "Unknown", OS: "Unknown", Raw: userAgent}
	}

	parser := ua.New(userAgent)
	name, version := parser.Browser()
	if name == "" {
		name = "Unknown"
	}

	info := ClientInfo{
		Name:    name,
		Version: version,
		OS:      getOS(parser),
		IsBot:   parser.Bot(),
		Raw:     userAgent,
	}

	// user_agent names site-bearing bots after the site URL
	if strings.HasPrefix(strings.ToLower(userAgent), "stripe/") {
		info.Name = "Stripe"
	}

	return info
}

// IsStripeClient reports whether the caller identifies itself as Stripe
func IsStripeClient(userAgent string) bool {
	return ParseUserAgent(userAgent).Name == "Stripe"
}

func getOS(parser *ua.UserAgent) string {
	osInfo := parser.OSInfo()
	if osInfo.Name == "" {
		return "Unknown"
	}
	if osInfo.Version != "" {
		return osInfo.Name + " " + osInfo.Version
	}
	return osInfo.Name
}
