package api

import (
	"context"
	"net/http"

	"hiredesk/internal/config"
	appLog "hiredesk/internal/log"
	"hiredesk/internal/model"
)

// cancelReason is the fixed reason attached to every client-initiated
// cancellation request.
const cancelReason = "Cancelled by the recruiter"

// LoginRequest carries credentials for Login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginPayload is the envelope data of a successful login.
type loginPayload struct {
	Token string         `json:"token"`
	User  model.Identity `json:"user"`
}

// Login authenticates against the backend and stores the resulting token
// and identity in the session store.
func (c *Client) Login(ctx context.Context, email, password string) (model.Identity, error) {
	var out loginPayload
	err := c.do(ctx, http.MethodPost, "/login", LoginRequest{Email: email, Password: password}, &out)
	if err != nil {
		return model.Identity{}, err
	}
	if err := c.store.SetCredentials(out.Token, out.User); err != nil {
		return model.Identity{}, err
	}
	appLog.Info("logged in", "user", out.User.UserID, "role", c.role)
	return out.User, nil
}

// ListSchedules fetches the interview schedule for the current recruiter.
func (c *Client) ListSchedules(ctx context.Context) ([]model.ScheduleEvent, error) {
	var out []model.ScheduleEvent
	if err := c.do(ctx, http.MethodGet, "/client/schedules", nil, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Normalize()
	}
	appLog.Debug("schedules fetched", "count", len(out))
	return out, nil
}

// cancelRequest is the wire shape of a cancellation.
type cancelRequest struct {
	MeetingID string `json:"meeting_id"`
	Message   string `json:"message"`
}

// CancelSchedule cancels one interview by its meeting identifier. The
// caller patches local state only after this returns nil.
func (c *Client) CancelSchedule(ctx context.Context, meetingID string) error {
	return c.do(ctx, http.MethodPost, "/client/cancelschedule", cancelRequest{
		MeetingID: meetingID,
		Message:   cancelReason,
	}, nil)
}

// messagesBase returns the path prefix of the messaging route family for
// this client's role.
func (c *Client) messagesBase() string {
	if c.role == config.RoleApplicant {
		return "/messages/applicant"
	}
	return "/messages"
}

// ListConversations fetches the conversation list for the current actor.
func (c *Client) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	var out []model.Conversation
	if err := c.do(ctx, http.MethodGet, c.messagesBase()+"/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMessages fetches the message history of one conversation.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var out []model.Message
	if err := c.do(ctx, http.MethodGet, c.messagesBase()+"/conversation/"+conversationID, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendMessageRequest is the wire shape of an outgoing message.
type SendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	ReceiverID     string `json:"receiver_id"`
	Message        string `json:"message"`
}

// SendMessage posts one message and returns the persisted copy as echoed
// by the backend.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (model.Message, error) {
	var out model.Message
	if err := c.do(ctx, http.MethodPost, c.messagesBase()+"/send", req, &out); err != nil {
		return model.Message{}, err
	}
	return out, nil
}
