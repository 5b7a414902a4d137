package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hiredesk/internal/api"
	"hiredesk/internal/model"
)

// fakeBackend is a scriptable Backend for view-model tests.
type fakeBackend struct {
	mu sync.Mutex

	conversations []model.Conversation
	messages      map[string][]model.Message

	listMsgCalls int
	sendCalls    int

	sendErr error
	// blockList, when non-nil, is keyed by conversation ID; ListMessages
	// waits on the channel before returning.
	blockList map[string]chan struct{}
	// blockSend, when non-nil, makes SendMessage wait before returning.
	blockSend chan struct{}
}

func (f *fakeBackend) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Conversation, len(f.conversations))
	copy(out, f.conversations)
	return out, nil
}

func (f *fakeBackend) ListMessages(ctx context.Context, id string) ([]model.Message, error) {
	f.mu.Lock()
	f.listMsgCalls++
	gate := f.blockList[id]
	msgs := make([]model.Message, len(f.messages[id]))
	copy(msgs, f.messages[id])
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return msgs, nil
}

func (f *fakeBackend) SendMessage(ctx context.Context, req api.SendMessageRequest) (model.Message, error) {
	f.mu.Lock()
	f.sendCalls++
	gate := f.blockSend
	err := f.sendErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return model.Message{}, err
	}
	return model.Message{
		ID:       "srv-1",
		Received: false,
		Segments: []model.Segment{{Text: req.Message}},
		At:       time.Now(),
	}, nil
}

func (f *fakeBackend) calls() (list, send int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listMsgCalls, f.sendCalls
}

func twoConversations() []model.Conversation {
	return []model.Conversation{
		{ID: "a", CounterpartID: "u-a", Counterpart: "Alice"},
		{ID: "b", CounterpartID: "u-b", Counterpart: "Bob"},
	}
}

func newTestVM(t *testing.T, fb *fakeBackend) *ViewModel {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	vm := New(ctx, fb, func() string { return "self" }, 10*time.Millisecond)
	t.Cleanup(vm.Close)
	return vm
}

func TestSelectIsExclusive(t *testing.T) {
	fb := &fakeBackend{conversations: twoConversations(), messages: map[string][]model.Message{}}
	vm := newTestVM(t, fb)

	if err := vm.LoadConversations(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := vm.Select(context.Background(), "a"); err != nil {
		t.Fatalf("select a: %v", err)
	}
	if err := vm.Select(context.Background(), "b"); err != nil {
		t.Fatalf("select b: %v", err)
	}

	active := 0
	for _, c := range vm.Conversations() {
		if c.Active {
			active++
			if c.ID != "b" {
				t.Fatalf("active conversation is %s, want b", c.ID)
			}
		}
	}
	if active != 1 {
		t.Fatalf("got %d active conversations, want 1", active)
	}
}

func TestSendEmptyTextIsNoOp(t *testing.T) {
	fb := &fakeBackend{conversations: twoConversations(), messages: map[string][]model.Message{}}
	vm := newTestVM(t, fb)
	_ = vm.LoadConversations(context.Background())
	_ = vm.Select(context.Background(), "a")

	before := len(vm.Messages())
	if err := vm.Send(context.Background(), "   \t "); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, send := fb.calls(); send != 0 {
		t.Fatalf("send request was issued for empty text")
	}
	if len(vm.Messages()) != before {
		t.Fatalf("message list mutated by empty send")
	}
}

func TestSendWithoutSelection(t *testing.T) {
	fb := &fakeBackend{conversations: twoConversations(), messages: map[string][]model.Message{}}
	vm := newTestVM(t, fb)

	if err := vm.Send(context.Background(), "hello"); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("got %v, want ErrNoSelection", err)
	}
}

func TestSendReconcilesOptimisticEntry(t *testing.T) {
	fb := &fakeBackend{conversations: twoConversations(), messages: map[string][]model.Message{}}
	vm := newTestVM(t, fb)
	_ = vm.LoadConversations(context.Background())
	_ = vm.Select(context.Background(), "a")

	if err := vm.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}

	msgs := vm.Messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].ID != "srv-1" {
		t.Fatalf("temporary message was not replaced by the echo: %q", msgs[0].ID)
	}

	for _, c := range vm.Conversations() {
		if c.ID == "a" && c.Preview != "hello" {
			t.Fatalf("conversation preview not patched, got %q", c.Preview)
		}
	}
}

func TestSendRollsBackOnFailure(t *testing.T) {
	fb := &fakeBackend{
		conversations: twoConversations(),
		messages:      map[string][]model.Message{"a": {{ID: "m1", Received: true}}},
		sendErr:       errors.New("backend down"),
	}
	vm := newTestVM(t, fb)
	_ = vm.LoadConversations(context.Background())
	_ = vm.Select(context.Background(), "a")

	if err := vm.Send(context.Background(), "hello"); err == nil {
		t.Fatal("expected send error")
	}

	msgs := vm.Messages()
	if len(msgs) != 1 || msgs[0].ID != "m1" {
		t.Fatalf("optimistic entry not rolled back: %+v", msgs)
	}
}

func TestSendSingleFlight(t *testing.T) {
	gate := make(chan struct{})
	fb := &fakeBackend{
		conversations: twoConversations(),
		messages:      map[string][]model.Message{},
		blockSend:     gate,
	}
	vm := newTestVM(t, fb)
	_ = vm.LoadConversations(context.Background())
	_ = vm.Select(context.Background(), "a")

	done := make(chan error, 1)
	go func() { done <- vm.Send(context.Background(), "first") }()

	// Wait for the first send to be in flight.
	deadline := time.After(time.Second)
	for {
		if _, send := fb.calls(); send == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first send never reached the backend")
		case <-time.After(time.Millisecond):
		}
	}

	if err := vm.Send(context.Background(), "second"); !errors.Is(err, ErrSendInFlight) {
		t.Fatalf("got %v, want ErrSendInFlight", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first send: %v", err)
	}
	if _, send := fb.calls(); send != 1 {
		t.Fatalf("backend saw %d sends, want 1", send)
	}
}

func TestStaleHistoryDiscarded(t *testing.T) {
	gate := make(chan struct{})
	fb := &fakeBackend{
		conversations: twoConversations(),
		messages: map[string][]model.Message{
			"a": {{ID: "old-a"}},
			"b": {{ID: "fresh-b"}},
		},
		blockList: map[string]chan struct{}{"a": gate},
	}
	vm := newTestVM(t, fb)
	_ = vm.LoadConversations(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = vm.Select(context.Background(), "a") // stalls on the gate
	}()
	// Give the first select time to issue its fetch, then switch.
	time.Sleep(20 * time.Millisecond)
	if err := vm.Select(context.Background(), "b"); err != nil {
		t.Fatalf("select b: %v", err)
	}

	close(gate)
	<-done

	msgs := vm.Messages()
	if len(msgs) != 1 || msgs[0].ID != "fresh-b" {
		t.Fatalf("stale history overwrote the newer selection: %+v", msgs)
	}
	if vm.Selected() != "b" {
		t.Fatalf("selected = %q, want b", vm.Selected())
	}
}

func TestRefreshAdoptsOnlyLongerLists(t *testing.T) {
	fb := &fakeBackend{
		conversations: twoConversations(),
		messages:      map[string][]model.Message{"a": {{ID: "m1"}, {ID: "m2"}}},
	}
	vm := newTestVM(t, fb)
	_ = vm.LoadConversations(context.Background())
	_ = vm.Select(context.Background(), "a")

	// Same length: keep the local list.
	vm.refresh(context.Background(), "a")
	if got := vm.Messages(); len(got) != 2 {
		t.Fatalf("same-length refresh changed the list: %d", len(got))
	}

	// Strictly longer: adopt and patch the preview.
	fb.mu.Lock()
	fb.messages["a"] = append(fb.messages["a"], model.Message{
		ID: "m3", Received: true,
		Segments: []model.Segment{{Text: "new reply"}},
		At:       time.Now(),
	})
	fb.mu.Unlock()

	vm.refresh(context.Background(), "a")
	if got := vm.Messages(); len(got) != 3 {
		t.Fatalf("longer refresh not adopted: %d", len(got))
	}
	for _, c := range vm.Conversations() {
		if c.ID == "a" && c.Preview != "new reply" {
			t.Fatalf("preview not refreshed, got %q", c.Preview)
		}
	}
}

func TestConcurrentSelectLeavesOnePoller(t *testing.T) {
	fb := &fakeBackend{
		conversations: twoConversations(),
		messages:      map[string][]model.Message{"a": {}, "b": {}},
	}
	vm := newTestVM(t, fb)
	_ = vm.LoadConversations(context.Background())

	// Hammer the selection from several goroutines; every displaced poll
	// loop must be torn down, not left ticking with no registered cancel.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		id := "a"
		if i%2 == 1 {
			id = "b"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = vm.Select(context.Background(), id)
		}()
	}
	wg.Wait()
	vm.Deselect()

	settled, _ := fb.calls()
	time.Sleep(60 * time.Millisecond)
	after, _ := fb.calls()
	if after != settled {
		t.Fatalf("poll ticks continued after deselect: %d -> %d", settled, after)
	}
}

func TestPollerStopsOnDeselect(t *testing.T) {
	fb := &fakeBackend{
		conversations: twoConversations(),
		messages:      map[string][]model.Message{"a": {}},
	}
	vm := newTestVM(t, fb)
	_ = vm.LoadConversations(context.Background())
	_ = vm.Select(context.Background(), "a")

	// Let at least one poll tick fire.
	time.Sleep(40 * time.Millisecond)
	vm.Deselect()

	settled, _ := fb.calls()
	time.Sleep(50 * time.Millisecond)
	after, _ := fb.calls()
	if after != settled {
		t.Fatalf("poller kept firing after deselect: %d -> %d", settled, after)
	}
}
