package ws

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thornboo/jincheng-campus-api/internal/model"
)

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		check   func(*require.Assertions, *Inbound)
	}{
		{
			name: "join_chat",
			raw:  `{"event":"join_chat","data":{"sessionId":"s1"}}`,
			check: func(req *require.Assertions, in *Inbound) {
				req.Equal("s1", in.Join.SessionID)
			},
		},
		{
			name: "send_message with default type",
			raw:  `{"event":"send_message","data":{"sessionId":"s1","content":"hi"}}`,
			check: func(req *require.Assertions, in *Inbound) {
				req.Equal("hi", in.Send.Content)
				req.Empty(in.Send.MessageType)
			},
		},
		{
			name: "send_message with explicit type",
			raw:  `{"event":"send_message","data":{"sessionId":"s1","content":"hi","messageType":"IMAGE"}}`,
			check: func(req *require.Assertions, in *Inbound) {
				req.Equal(model.MessageTypeImage, in.Send.MessageType)
			},
		},
		{
			name: "mark_read",
			raw:  `{"event":"mark_read","data":{"sessionId":"s1","messageIds":["m1","m2"]}}`,
			check: func(req *require.Assertions, in *Inbound) {
				req.Equal([]string{"m1", "m2"}, in.MarkRead.MessageIDs)
			},
		},
		{name: "unknown event", raw: `{"event":"self_destruct","data":{}}`, wantErr: true},
		{name: "not json", raw: `hello`, wantErr: true},
		{name: "missing payload", raw: `{"event":"join_chat"}`, wantErr: true},
		{name: "missing session id", raw: `{"event":"join_chat","data":{}}`, wantErr: true},
		{name: "unexpected field", raw: `{"event":"join_chat","data":{"sessionId":"s1","admin":true}}`, wantErr: true},
		{name: "empty message ids", raw: `{"event":"mark_read","data":{"sessionId":"s1","messageIds":[]}}`, wantErr: true},
		{name: "wrong payload shape", raw: `{"event":"send_message","data":{"sessionId":"s1","messageIds":["m1"]}}`, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			in, err := DecodeInbound([]byte(tc.raw))
			if tc.wantErr {
				req.Error(err)
				return
			}
			req.NoError(err)
			tc.check(req, in)
		})
	}
}

func TestDecodeInboundUnknownEventSentinel(t *testing.T) {
	_, err := DecodeInbound([]byte(`{"event":"nope","data":{}}`))
	require.ErrorIs(t, err, ErrUnknownEvent)
}
