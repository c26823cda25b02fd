// Package device derives human-readable client labels from User-Agent strings
// for audit metadata.
package device

import (
	"fmt"

	"github.com/mssola/useragent"
)

// Label extracts a display name from a User-Agent string, in the form
// "Browser on OS" (e.g. "Chrome on macOS"). Returns "Unknown Device" when the
// string is empty or unparseable.
func Label(userAgentString string) string {
	if userAgentString == "" {
		return "Unknown Device"
	}

	ua := useragent.New(userAgentString)
	browser, _ := ua.Browser()
	os := ua.OSInfo().Name

	if browser == "" && os == "" {
		return "Unknown Device"
	}
	if browser == "" {
		return os
	}
	if os == "" {
		return browser
	}
	return fmt.Sprintf("%s on %s", browser, os)
}
