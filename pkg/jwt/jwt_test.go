package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_Verify(t *testing.T) {
	manager := NewJWTManager("test-secret")

	valid, err := manager.Sign(42, "alice", time.Hour)
	require.NoError(t, err)
	expired, err := manager.Sign(42, "alice", -time.Minute)
	require.NoError(t, err)
	foreign, err := NewJWTManager("other-secret").Sign(42, "alice", time.Hour)
	require.NoError(t, err)
	noUser, err := manager.Sign(0, "ghost", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "valid", token: valid},
		{name: "expired", token: expired, wantErr: ErrExpiredToken},
		{name: "wrong secret", token: foreign, wantErr: ErrInvalidToken},
		{name: "garbage", token: "not-a-token", wantErr: ErrInvalidToken},
		{name: "missing user id", token: noUser, wantErr: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := manager.Verify(tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(42), claims.UserID)
			assert.Equal(t, "alice", claims.Nickname)
		})
	}
}
