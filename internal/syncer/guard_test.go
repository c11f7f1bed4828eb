package syncer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateServerURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{name: "localhost http", url: "http://localhost:8765"},
		{name: "loopback ip http", url: "http://127.0.0.1:8765"},
		{name: "https remote", url: "https://example.com"},
		{name: "https remote with path", url: "https://classtop.example.com/api"},
		{name: "localhost without port", url: "http://localhost"},
		{name: "plaintext remote", url: "http://example.com", wantErr: ErrInsecureURL},
		{name: "plaintext remote ip", url: "http://10.0.0.5:8765", wantErr: ErrInsecureURL},
		{name: "empty", url: "", wantErr: ErrNotConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateServerURL(tt.url)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateServerURL_HostIsParsedNotSubstringMatched(t *testing.T) {
	// A remote host must not sneak past the guard by embedding
	// "localhost" elsewhere in the URL.
	assert.ErrorIs(t, ValidateServerURL("http://evil.example.com/?localhost"), ErrInsecureURL)
	assert.ErrorIs(t, ValidateServerURL("http://localhost.example.com"), ErrInsecureURL)
}
