package rtc

import (
	"encoding/json"

	"github.com/dkeye/Huddle/internal/config"
	"github.com/pion/webrtc/v4"
)

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// WebRTCConfig is what clients are told to build their peer connections with.
// The server itself never terminates media.
func WebRTCConfig(servers []config.ICEServerConfig) webrtc.Configuration {
	if len(servers) == 0 {
		return DefaultWebRTCConfig()
	}
	out := webrtc.Configuration{ICEServers: make([]webrtc.ICEServer, 0, len(servers))}
	for _, s := range servers {
		srv := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
			srv.CredentialType = webrtc.ICECredentialTypePassword
		}
		out.ICEServers = append(out.ICEServers, srv)
	}
	return out
}

const (
	SignalCandidate = "candidate"
	SignalOther     = "other"
	SignalInvalid   = "invalid"
)

// ClassifySignal labels an opaque client signal for metrics. The payload is
// relayed untouched whatever the result.
func ClassifySignal(raw json.RawMessage) string {
	var probe struct {
		Type      string          `json:"type"`
		SDP       string          `json:"sdp"`
		Candidate json.RawMessage `json:"candidate"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return SignalInvalid
	}

	if t := webrtc.NewSDPType(probe.Type); t != webrtc.SDPTypeUnknown {
		if t != webrtc.SDPTypeRollback && probe.SDP == "" {
			return SignalInvalid
		}
		return t.String()
	}

	if len(probe.Candidate) > 0 {
		// Either a bare candidate line or a nested RTCIceCandidateInit.
		var line string
		if json.Unmarshal(probe.Candidate, &line) == nil {
			return SignalCandidate
		}
		var init webrtc.ICECandidateInit
		if err := json.Unmarshal(probe.Candidate, &init); err == nil && init.Candidate != "" {
			return SignalCandidate
		}
		return SignalInvalid
	}
	return SignalOther
}
