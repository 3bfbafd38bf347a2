package chat

import (
	"encoding/json"

	"PrivChat/tools/errs"
)

// Inbound event names.
const (
	EventAuthenticate     = "authenticate"
	EventGetUsers         = "get_users"
	EventGetConversations = "get_conversations"
	EventJoinRoom         = "join_room"
	EventSendMessage      = "send_message"
	EventTyping           = "typing"
	EventMarkRead         = "mark_read"
)

// Outbound event names.
const (
	EventAuthSuccess         = "auth_success"
	EventAuthError           = "auth_error"
	EventUsersList           = "users_list"
	EventConversationsList   = "conversations_list"
	EventChatHistory         = "chat_history"
	EventNewMessage          = "new_message"
	EventMessageNotification = "message_notification"
	EventMessagesRead        = "messages_read"
	EventUserTyping          = "user_typing"
	EventUserStatus          = "user_status"
	EventError               = "error"
)

// Frame is one inbound wire frame: {"event": "...", "data": ...}. Data stays
// raw because some events carry a bare string and others an object.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func ParseFrame(raw []byte) (*Frame, error) {
	frame := &Frame{}
	if err := json.Unmarshal(raw, frame); err != nil {
		return nil, errs.WrapMsg(err, "unmarshal frame")
	}
	if frame.Event == "" {
		return nil, errs.New("frame missing event")
	}
	return frame, nil
}

// StringData accepts either a bare JSON string or an object holding the
// value under any of the given keys (clients have sent both shapes).
func (f *Frame) StringData(keys ...string) (string, error) {
	var s string
	if err := json.Unmarshal(f.Data, &s); err == nil {
		return s, nil
	}
	m, err := f.MapData()
	if err != nil {
		return "", err
	}
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v, nil
		}
	}
	return "", errs.New("frame data not a string", "event", f.Event)
}

func (f *Frame) MapData() (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(f.Data, &m); err != nil {
		return nil, errs.WrapMsg(err, "frame data not an object", "event", f.Event)
	}
	return m, nil
}

// BuildFrame encodes an outbound event. Marshal failures cannot happen for
// the payload types we emit, so the error is swallowed after logging upstream.
func BuildFrame(event string, data any) []byte {
	raw, err := json.Marshal(struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{Event: event, Data: data})
	if err != nil {
		return nil
	}
	return raw
}

// ErrorFrame is the generic failure notice; AuthErrorFrame is the dedicated
// authentication variant that invites a retry on the same connection.
func ErrorFrame(message string) []byte {
	return BuildFrame(EventError, map[string]string{"message": message})
}

func AuthErrorFrame(message string) []byte {
	return BuildFrame(EventAuthError, map[string]string{"message": message})
}
