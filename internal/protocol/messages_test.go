package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClient(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want ClientMessage
		err  error
	}{
		{
			name: "auth full",
			in:   `{"type":"auth","token":"tok","roomId":"r1","userId":"u1"}`,
			want: AuthRequest{Token: "tok", RoomID: "r1", UserID: "u1"},
		},
		{
			name: "auth token only",
			in:   `{"type":"auth","token":"tok"}`,
			want: AuthRequest{Token: "tok"},
		},
		{
			name: "typing",
			in:   `{"type":"typing","isTyping":true}`,
			want: Typing{IsTyping: true},
		},
		{
			name: "ping without t",
			in:   `{"type":"ping"}`,
			want: Ping{},
		},
		{name: "not json", in: `{{{`, err: ErrMalformed},
		{name: "missing tag", in: `{"token":"tok"}`, err: ErrMalformed},
		{name: "non-string tag", in: `{"type":7}`, err: ErrMalformed},
		{name: "unknown tag", in: `{"type":"subscribe"}`, err: ErrUnknownType},
		{name: "bad field type", in: `{"type":"typing","isTyping":"yes"}`, err: ErrMalformed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseClient([]byte(tc.in))
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseClientPingEchoValue(t *testing.T) {
	got, err := ParseClient([]byte(`{"type":"ping","t":1712345678901}`))
	require.NoError(t, err)
	p, ok := got.(Ping)
	require.True(t, ok)
	require.NotNil(t, p.T)
	assert.Equal(t, int64(1712345678901), *p.T)
}
