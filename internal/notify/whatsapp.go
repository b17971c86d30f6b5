package notify

import (
	"net/url"
	"strings"
)

// NormalizePhone reduces a customer phone number to the digits wa.me expects.
// A national number with a leading 0 gets countryCode in its place.
func NormalizePhone(phone, countryCode string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if strings.HasPrefix(digits, "0") && !strings.HasPrefix(strings.TrimSpace(phone), "+") {
		digits = countryCode + strings.TrimLeft(digits, "0")
	}
	return digits
}

// WhatsAppLink returns a click-to-chat URL that opens a chat with phone and
// text prefilled. Spaces are sent as %20; some clients show a literal "+".
func WhatsAppLink(phone, text string) string {
	return "https://wa.me/" + phone + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}
