// Package protocol defines the JSON frames exchanged on the companion
// websocket. Binary frames carry one recorded utterance each and have no
// envelope.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientAudio    MessageType = "client_audio"
	TypeClientControl  MessageType = "client_control"
	TypeCompanionReply MessageType = "companion_reply"
	TypeSystemEvent    MessageType = "system_event"
	TypeErrorEvent     MessageType = "error_event"
)

// Control actions accepted on client_control.
const (
	ActionReset   = "reset"
	ActionCleanup = "cleanup"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientAudio is the text-frame alternative to a binary utterance, for
// clients that cannot send binary frames.
type ClientAudio struct {
	Type        MessageType `json:"type"`
	Format      string      `json:"format,omitempty"`
	AudioBase64 string      `json:"audio_base64"`
}

// Decode returns the raw recording bytes.
func (m ClientAudio) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(m.AudioBase64)
}

type ClientControl struct {
	Type     MessageType `json:"type"`
	Action   string      `json:"action"`
	Filename string      `json:"filename,omitempty"`
}

// CompanionReply mirrors the process_audio HTTP response.
type CompanionReply struct {
	Type          MessageType `json:"type"`
	Transcript    string      `json:"transcript"`
	ResponseText  string      `json:"response_text"`
	AudioURL      string      `json:"audio_url"`
	AudioFilename string      `json:"audio_filename"`
	LoopVideoURL  string      `json:"loop_video_url"`
}

type SystemEvent struct {
	Type   MessageType `json:"type"`
	Code   string      `json:"code"`
	Detail string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type  MessageType `json:"type"`
	Code  string      `json:"code"`
	Error string      `json:"error"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientAudio:
		var msg ClientAudio
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.AudioBase64 == "" {
			return nil, errors.New("invalid client_audio")
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		msg.Action = strings.ToLower(strings.TrimSpace(msg.Action))
		switch msg.Action {
		case ActionReset:
		case ActionCleanup:
			if strings.TrimSpace(msg.Filename) == "" {
				return nil, errors.New("client_control cleanup requires filename")
			}
		default:
			return nil, errors.New("invalid client_control")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// TypeOf reports the message type of a known frame value.
func TypeOf(v any) (MessageType, bool) {
	switch m := v.(type) {
	case ClientAudio:
		return m.Type, true
	case ClientControl:
		return m.Type, true
	case CompanionReply:
		return m.Type, true
	case SystemEvent:
		return m.Type, true
	case ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
