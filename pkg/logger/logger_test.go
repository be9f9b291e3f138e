package logger

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		l, err := New("debug", format)
		require.NoError(t, err, format)
		assert.NotNil(t, l)
	}

	_, err := New("loud", "json")
	assert.Error(t, err)
}

func TestSafeHeaders(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/messages/users", nil)
	r.Header.Set("Authorization", "Bearer abc.def.ghi")
	r.Header.Set("Token", "abc.def.ghi")
	r.Header.Set("Accept", "application/json")

	out := SafeHeaders(r)
	assert.Contains(t, out, "Authorization=<redacted>")
	assert.Contains(t, out, "Token=<redacted>")
	assert.Contains(t, out, "Accept=application/json")
	assert.NotContains(t, out, "abc.def.ghi")
}
