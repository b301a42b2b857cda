package rtc

import (
	"encoding/json"
	"testing"

	"github.com/dkeye/Huddle/internal/config"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

func TestWebRTCConfig(t *testing.T) {
	req := require.New(t)

	req.Equal(DefaultWebRTCConfig(), WebRTCConfig(nil))

	cfg := WebRTCConfig([]config.ICEServerConfig{
		{URLs: []string{"stun:stun.example.org:3478"}},
		{URLs: []string{"turn:turn.example.org:3478"}, Username: "u", Credential: "p"},
	})
	req.Len(cfg.ICEServers, 2)
	req.Nil(cfg.ICEServers[0].Credential)
	req.Equal("p", cfg.ICEServers[1].Credential)
	req.Equal(webrtc.ICECredentialTypePassword, cfg.ICEServers[1].CredentialType)
}

func TestClassifySignal(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"type":"offer","sdp":"v=0"}`, "offer"},
		{`{"type":"answer","sdp":"v=0"}`, "answer"},
		{`{"type":"offer"}`, SignalInvalid},
		{`{"type":"candidate","candidate":{"candidate":"candidate:1 1 UDP 1 10.0.0.1 5000 typ host","sdpMid":"0"}}`, SignalCandidate},
		{`{"candidate":"candidate:1 1 UDP 1 10.0.0.1 5000 typ host"}`, SignalCandidate},
		{`{"candidate":{}}`, SignalInvalid},
		{`{"renegotiate":true}`, SignalOther},
		{`not json`, SignalInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			require.Equal(t, tt.want, ClassifySignal(json.RawMessage(tt.raw)))
		})
	}
}
