package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGatewayEndToEnd(t *testing.T) {
	rep := &fakeReplier{fn: streamOf(replies("你好。")...)}
	gw := NewGateway(GatewayConfig{
		Providers: Providers{
			Recognizer:  &fakeRecognizer{},
			Synthesizer: &fakeSynthesizer{fn: instantSynth()},
			Replier:     rep,
		},
		Options:       defaultOptions(),
		MaxFrameBytes: 1 << 20,
	}, zap.NewNop())

	srv := httptest.NewServer(gw)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	readFrame := func() ServerFrame {
		t.Helper()
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var f ServerFrame
		require.NoError(t, json.Unmarshal(data, &f))
		return f
	}
	writeFrame := func(f ClientFrame) {
		t.Helper()
		data, err := json.Marshal(f)
		require.NoError(t, err)
		require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
	}

	assert.Equal(t, FrameReady, readFrame().Type)

	writeFrame(ClientFrame{
		Type:         FrameInit,
		SessionID:    "sess-1",
		VisitorBizID: "visitor-1",
		App:          "s",
		ReplyMode:    ReplyModeText,
	})
	assert.Equal(t, FrameInitOK, readFrame().Type)

	writeFrame(ClientFrame{Type: FrameText, Content: "打个招呼"})

	var got []ServerFrame
	for {
		f := readFrame()
		got = append(got, f)
		if f.Type == FrameBotDone {
			break
		}
	}
	require.GreaterOrEqual(t, len(got), 3)
	assert.Equal(t, FrameBotStart, got[0].Type)
	assert.Equal(t, FrameBotDelta, got[1].Type)
	assert.Equal(t, "你好。", got[1].Delta)

	reqs := rep.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "key-s", reqs[0].BotAppKey)
}

func TestGatewayRejectsPlainHTTP(t *testing.T) {
	gw := NewGateway(GatewayConfig{Options: defaultOptions()}, zap.NewNop())
	srv := httptest.NewServer(gw)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
}
