package privacy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskGroupJID(t *testing.T) {
	tests := []struct {
		name string
		jid  string
		want string
	}{
		{"typical group jid", "120363041234567890@g.us", "**************7890@g.us"},
		{"short local part", "1234@g.us", "****@g.us"},
		{"very short local part", "12@g.us", "**@g.us"},
		{"no domain", "123456789", "*****6789"},
		{"short no domain", "123", "***"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskGroupJID(tt.jid))
		})
	}
}

func TestMessagePreview(t *testing.T) {
	assert.Equal(t, "short message", MessagePreview("short message"))
	assert.Equal(t, "line one line two", MessagePreview("line one\nline two"))

	long := strings.Repeat("a", 100)
	preview := MessagePreview(long)
	assert.Equal(t, strings.Repeat("a", 32)+"...", preview)
	assert.Len(t, preview, 35)
}
