package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virtualfit/internal/domain"
)

func TestDecodeClientFrame(t *testing.T) {
	f, ud, err := decodeClientFrame([]byte(`{"message_type":"text","text":"hi","user_data":{"name":"Sam","goals":["Lose weight"]}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.MessageTypeText, f.MessageType)
	assert.Equal(t, "hi", f.Text)
	assert.Equal(t, domain.AnonymousUserID, f.UserID)
	require.NotNil(t, ud)
	assert.Equal(t, []string{"Lose weight"}, ud.Goals)
}

func TestDecodeClientFrameToleratesBadUserData(t *testing.T) {
	f, ud, err := decodeClientFrame([]byte(`{"message_type":"text","text":"hi","user_id":"u1","user_data":{"age":"thirty"}}`))
	require.NoError(t, err)
	assert.Equal(t, "u1", f.UserID)
	assert.Nil(t, ud)

	_, ud, err = decodeClientFrame([]byte(`{"message_type":"text","text":"hi","user_data":null}`))
	require.NoError(t, err)
	assert.Nil(t, ud)
}

func TestDecodeClientFrameErrors(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{`, msgInvalidJSON},
		{``, msgInvalidJSON},
		{`"text"`, msgMissingType},
		{`{"message_type":""}`, msgMissingType},
		{`{"message_type":42}`, msgMissingType},
	}
	for _, tt := range tests {
		_, _, err := decodeClientFrame([]byte(tt.raw))
		require.Error(t, err, tt.raw)
		assert.Equal(t, tt.want, err.Error(), tt.raw)
	}
}
