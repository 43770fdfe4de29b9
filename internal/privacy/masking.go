package privacy

import "strings"

// MaskGroupJID masks a WhatsApp group JID, keeping the domain and the last
// four digits so log lines stay correlatable.
// Example: "120363041234567890@g.us" -> "**************7890@g.us"
func MaskGroupJID(jid string) string {
	if jid == "" {
		return ""
	}

	if at := strings.Index(jid, "@"); at >= 0 {
		local := jid[:at]
		domain := jid[at:]
		if len(local) <= 4 {
			return strings.Repeat("*", len(local)) + domain
		}
		return strings.Repeat("*", len(local)-4) + local[len(local)-4:] + domain
	}

	if len(jid) <= 4 {
		return strings.Repeat("*", len(jid))
	}
	return strings.Repeat("*", len(jid)-4) + jid[len(jid)-4:]
}

// MessagePreview returns a short, log-safe prefix of a message body.
func MessagePreview(text string) string {
	const previewLen = 32
	text = strings.ReplaceAll(text, "\n", " ")
	if len(text) <= previewLen {
		return text
	}
	return text[:previewLen] + "..."
}
