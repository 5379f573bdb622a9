package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/auditflow/internal/pkg/xerrors"
)

func TestExtractBearerTokenFromHeader(t *testing.T) {
	tests := []struct {
		name          string
		authHeader    string
		expectedToken string
		expectedErr   string
	}{
		{
			name:          "valid bearer token",
			authHeader:    "Bearer eyJhbGciOiJIUzI1NiJ9.e30.sig",
			expectedToken: "eyJhbGciOiJIUzI1NiJ9.e30.sig",
		},
		{
			name:        "empty header",
			authHeader:  "",
			expectedErr: "Authorization header is required",
		},
		{
			name:        "missing Bearer prefix",
			authHeader:  "eyJhbGciOiJIUzI1NiJ9.e30.sig",
			expectedErr: "Authorization header must start with 'Bearer '",
		},
		{
			name:        "Bearer with lowercase",
			authHeader:  "bearer eyJhbGciOiJIUzI1NiJ9.e30.sig",
			expectedErr: "Authorization header must start with 'Bearer '",
		},
		{
			name:        "Bearer without space",
			authHeader:  "Bearereyj",
			expectedErr: "Authorization header must start with 'Bearer '",
		},
		{
			name:        "Bearer with empty token",
			authHeader:  "Bearer ",
			expectedErr: "token is required",
		},
		{
			name:        "Bearer with only spaces",
			authHeader:  "Bearer    ",
			expectedErr: "token is required",
		},
		{
			name:          "surrounding spaces are trimmed",
			authHeader:    "Bearer  abc ",
			expectedToken: "abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := ExtractBearerTokenFromHeader(tt.authHeader)
			if tt.expectedErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.expectedErr, err.Error())
				assert.True(t, xerrors.IsUnauthenticated(err))

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectedToken, token)
		})
	}
}
