// Package messaging is the view-model behind the conversation screen. It
// keeps the conversation list, the selected conversation's message history,
// and the send path; freshness comes from a poller bound to the lifetime
// of "a conversation is selected".
package messaging

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"hiredesk/internal/api"
	appLog "hiredesk/internal/log"
	"hiredesk/internal/model"
)

var (
	// ErrNoSelection is returned by Send when no conversation is open.
	ErrNoSelection = errors.New("messaging: no conversation selected")
	// ErrSendInFlight is returned when a send is already pending for this
	// view; concurrent sends from the same input are suppressed.
	ErrSendInFlight = errors.New("messaging: send already in flight")
)

// tempIDPrefix marks optimistic messages awaiting the backend echo.
const tempIDPrefix = "tmp-"

// Backend is the slice of the API client the view-model needs.
type Backend interface {
	ListConversations(ctx context.Context) ([]model.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	SendMessage(ctx context.Context, req api.SendMessageRequest) (model.Message, error)
}

// ViewModel holds one conversation screen's state. The same type serves
// both actor roles; the backend client decides which route family is hit.
//
// Invariants:
//   - at most one conversation is flagged Active
//   - at most one send is in flight
//   - at most one poller runs, and only while a conversation is selected
type ViewModel struct {
	backend Backend
	// self yields the actor's current user ID, used as sender_id. It is a
	// function because the desk starts logged out: the identity only
	// exists after a runtime login, so it must be read per send.
	self func() string

	// rootCtx bounds the poller's lifetime: when it is canceled the
	// poller stops even if the view is never explicitly closed.
	rootCtx context.Context

	mu            sync.Mutex
	conversations []model.Conversation
	selectedID    string
	messages      []model.Message
	gen           uint64
	sending       bool

	poller *poller
}

// New creates a view-model for the given actor. self is consulted on every
// send for the current user ID; ctx bounds all background polling started
// by this view.
func New(ctx context.Context, backend Backend, self func() string, pollEvery time.Duration) *ViewModel {
	if self == nil {
		self = func() string { return "" }
	}
	vm := &ViewModel{
		backend: backend,
		self:    self,
		rootCtx: ctx,
	}
	vm.poller = newPoller(vm, pollEvery)
	return vm
}

// LoadConversations fetches the conversation list. A failure is logged
// and leaves existing state intact; the screen stays usable.
func (vm *ViewModel) LoadConversations(ctx context.Context) error {
	convs, err := vm.backend.ListConversations(ctx)
	if err != nil {
		appLog.Error("conversation list fetch failed", err)
		return err
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	// Preserve the local selection flag across refreshes.
	for i := range convs {
		convs[i].Active = convs[i].ID == vm.selectedID
	}
	vm.conversations = convs
	return nil
}

// Conversations returns a copy of the current list.
func (vm *ViewModel) Conversations() []model.Conversation {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	out := make([]model.Conversation, len(vm.conversations))
	copy(out, vm.conversations)
	return out
}

// Messages returns a copy of the selected conversation's history.
func (vm *ViewModel) Messages() []model.Message {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	out := make([]model.Message, len(vm.messages))
	copy(out, vm.messages)
	return out
}

// Selected returns the selected conversation ID, or "".
func (vm *ViewModel) Selected() string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.selectedID
}

// Select marks the conversation active (deselecting all others) and
// fetches its history. Selection and fetch are not atomic: a fetch
// failure keeps the conversation selected with stale or empty messages
// and is logged rather than fatal. Selecting starts the poller; a slow
// response from a previously selected conversation is discarded by
// generation token.
func (vm *ViewModel) Select(ctx context.Context, conversationID string) error {
	vm.mu.Lock()
	vm.selectedID = conversationID
	for i := range vm.conversations {
		vm.conversations[i].Active = vm.conversations[i].ID == conversationID
		if vm.conversations[i].Active {
			vm.conversations[i].Unread = 0
		}
	}
	vm.messages = nil
	vm.gen++
	token := vm.gen
	vm.mu.Unlock()

	vm.poller.start(vm.rootCtx, conversationID)

	msgs, err := vm.backend.ListMessages(ctx, conversationID)
	if err != nil {
		appLog.Error("message history fetch failed", err, "conversation_id", conversationID)
		return err
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if token != vm.gen || vm.selectedID != conversationID {
		appLog.Debug("dropping superseded message history", "conversation_id", conversationID)
		return nil
	}
	vm.messages = msgs
	return nil
}

// Deselect clears the active conversation and tears the poller down.
func (vm *ViewModel) Deselect() {
	vm.poller.stop()

	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.selectedID = ""
	vm.messages = nil
	vm.gen++
	for i := range vm.conversations {
		vm.conversations[i].Active = false
	}
}

// Close releases the view's background work. Idempotent.
func (vm *ViewModel) Close() {
	vm.poller.stop()
}

// Send posts text to the selected conversation using the optimistic
// strategy on both actor roles: a locally synthesized message with a
// temporary ID is appended before the request resolves, reconciled with
// the backend echo on success, and rolled back on failure.
//
// Whitespace-only text is a no-op: no request, no local mutation.
func (vm *ViewModel) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	vm.mu.Lock()
	if vm.selectedID == "" {
		vm.mu.Unlock()
		return ErrNoSelection
	}
	if vm.sending {
		vm.mu.Unlock()
		return ErrSendInFlight
	}
	vm.sending = true
	convID := vm.selectedID

	receiver := ""
	for i := range vm.conversations {
		if vm.conversations[i].ID == convID {
			receiver = vm.conversations[i].CounterpartID
			break
		}
	}

	now := time.Now()
	temp := model.Message{
		ID:       tempIDPrefix + uuid.NewString(),
		Received: false,
		Segments: []model.Segment{{Text: text, At: now}},
		At:       now,
	}
	vm.messages = append(vm.messages, temp)
	vm.mu.Unlock()

	defer func() {
		vm.mu.Lock()
		vm.sending = false
		vm.mu.Unlock()
	}()

	echo, err := vm.backend.SendMessage(ctx, api.SendMessageRequest{
		ConversationID: convID,
		SenderID:       vm.self(),
		ReceiverID:     receiver,
		Message:        text,
	})

	vm.mu.Lock()
	defer vm.mu.Unlock()

	idx := -1
	for i := range vm.messages {
		if vm.messages[i].ID == temp.ID {
			idx = i
			break
		}
	}

	if err != nil {
		// Roll the optimistic entry back; the snapshot must not keep a
		// message the backend never saw.
		if idx >= 0 {
			vm.messages = append(vm.messages[:idx], vm.messages[idx+1:]...)
		}
		appLog.Error("message send failed", err, "conversation_id", convID)
		return err
	}

	if idx >= 0 {
		vm.messages[idx] = echo
	} else {
		// Selection changed while the send was in flight; the echo
		// belongs to a conversation that is no longer open.
		appLog.Debug("send resolved after deselect", "conversation_id", convID)
	}

	// Patch the owning conversation's preview locally; no re-fetch.
	for i := range vm.conversations {
		if vm.conversations[i].ID == convID {
			vm.conversations[i].Preview = text
			vm.conversations[i].PreviewAt = echo.At
		}
	}
	return nil
}

// refresh is the poller tick: re-fetch the selected conversation's
// history and adopt the server list only when it is strictly longer than
// the held one, then refresh the conversation preview. The Unread counter
// is left alone here: it is owned by the conversation-list fetch, and the
// open conversation counts as read.
func (vm *ViewModel) refresh(ctx context.Context, conversationID string) {
	vm.mu.Lock()
	if vm.selectedID != conversationID {
		vm.mu.Unlock()
		return
	}
	token := vm.gen
	vm.mu.Unlock()

	msgs, err := vm.backend.ListMessages(ctx, conversationID)
	if err != nil {
		appLog.Error("message poll failed", err, "conversation_id", conversationID)
		return
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if token != vm.gen || vm.selectedID != conversationID {
		return
	}
	if len(msgs) <= len(vm.messages) {
		return
	}
	vm.messages = msgs

	last := msgs[len(msgs)-1]
	for i := range vm.conversations {
		if vm.conversations[i].ID == conversationID {
			vm.conversations[i].Preview = last.Text()
			vm.conversations[i].PreviewAt = last.At
		}
	}
}
