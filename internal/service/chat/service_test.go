package chat_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/penpal/backend/internal/crypto"
	"github.com/zhouzirui/penpal/backend/internal/events"
	"github.com/zhouzirui/penpal/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/penpal/backend/internal/service/chat"
	"github.com/zhouzirui/penpal/backend/internal/service/chat/mocks"
	"github.com/zhouzirui/penpal/backend/internal/store/memory"
	appErrors "github.com/zhouzirui/penpal/backend/pkg/errors"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc   *chatservice.Service
	store *memory.Store
	clock *fakeClock
}

func newFixture(t *testing.T, opts ...chatservice.Option) fixture {
	t.Helper()
	st := memory.New()
	cipher, err := crypto.New("test-secret", crypto.SchemeCryptoJS)
	require.NoError(t, err)

	clk := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]chatservice.Option{chatservice.WithClock(clk.Now)}, opts...)
	return fixture{svc: chatservice.NewService(st, cipher, opts...), store: st, clock: clk}
}

func (f fixture) createChat(t *testing.T, a, b string, typ chat.Type) chat.Chat {
	t.Helper()
	c, _, err := f.svc.CreateOrGetChat(context.Background(), []chat.Participant{{UID: a}, {UID: b}}, typ)
	require.NoError(t, err)
	return c
}

func (f fixture) send(t *testing.T, chatID, sender, text string) chat.Message {
	t.Helper()
	m, _, err := f.svc.SendMessage(context.Background(), chatID, sender, text)
	require.NoError(t, err)
	return m
}

func texts(msgs []chat.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Text)
	}
	return out
}

func TestCreateOrGetChatIsIdempotentAcrossArgumentOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, created, err := f.svc.CreateOrGetChat(ctx, []chat.Participant{{UID: "alice", DisplayName: "Alice"}, {UID: "bob"}}, "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, chat.TypePenpal, first.Type)
	assert.Nil(t, first.LastMessage)
	assert.Equal(t, []string{"alice", "bob"}, first.ParticipantUIDs)
	assert.Equal(t, "Alice", first.Participants[0].DisplayName)

	again, created, err := f.svc.CreateOrGetChat(ctx, []chat.Participant{{UID: "alice"}, {UID: "bob"}}, "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	swapped, created, err := f.svc.CreateOrGetChat(ctx, []chat.Participant{{UID: "bob"}, {UID: "alice"}}, chat.TypeOnetime)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, swapped.ID)
	assert.Equal(t, chat.TypePenpal, swapped.Type, "type of an existing chat never changes")
}

func TestDistinctPairsGetDistinctChats(t *testing.T) {
	f := newFixture(t)

	ab := f.createChat(t, "alice", "bob", "")
	ac := f.createChat(t, "alice", "carol", "")
	bc := f.createChat(t, "carol", "bob", "")

	assert.NotEqual(t, ab.ID, ac.ID)
	assert.NotEqual(t, ab.ID, bc.ID)
	assert.NotEqual(t, ac.ID, bc.ID)

	all, err := f.store.FindChatsByMember(context.Background(), "alice")
	require.NoError(t, err)
	seen := map[chat.PairKey]bool{}
	for _, c := range all {
		key, ok := chat.PairKeyOf(c.ParticipantUIDs)
		require.True(t, ok)
		assert.False(t, seen[key], "duplicate chat for %s", key)
		seen[key] = true
	}
}

func TestCreateOrGetChatValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string]struct {
		participants []chat.Participant
		typ          chat.Type
	}{
		"one participant":    {participants: []chat.Participant{{UID: "alice"}}},
		"three participants": {participants: []chat.Participant{{UID: "alice"}, {UID: "bob"}, {UID: "carol"}}},
		"missing uid":        {participants: []chat.Participant{{UID: "alice"}, {UID: " "}}},
		"same user twice":    {participants: []chat.Participant{{UID: "alice"}, {UID: "alice"}}},
		"unknown type":       {participants: []chat.Participant{{UID: "alice"}, {UID: "bob"}}, typ: "group"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := f.svc.CreateOrGetChat(ctx, tc.participants, tc.typ)
			assert.Equal(t, appErrors.CodeInvalidArgument, appErrors.CodeOf(err))
		})
	}
}

func TestOnetimeChatScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.createChat(t, "alice", "bob", chat.TypeOnetime)

	sent, typ, err := f.svc.SendMessage(ctx, c.ID, "alice", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", sent.Text)
	assert.Equal(t, chat.TypeOnetime, typ)

	_, _, err = f.svc.SendMessage(ctx, c.ID, "alice", "again")
	assert.ErrorIs(t, err, appErrors.ErrOnetimeChatUsed)
	assert.Equal(t, appErrors.CodePermissionDenied, appErrors.CodeOf(err))

	_, _, err = f.svc.SendMessage(ctx, c.ID, "bob", "reply")
	assert.ErrorIs(t, err, appErrors.ErrOnetimeChatUsed)

	got, err := f.svc.GetChat(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessage)
	assert.Equal(t, chat.StatusUnread, got.LastMessage.Status)
	assert.Equal(t, "hi", got.LastMessage.Text)

	f.clock.Advance(61 * time.Second)
	page, err := f.svc.FetchMessages(ctx, c.ID, "bob", 20, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"hi"}, texts(page.Messages))
	assert.Nil(t, page.NextPageToken)

	got, err = f.svc.GetChat(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, chat.StatusRead, got.LastMessage.Status)
}

func TestPenpalChatAcceptsManyMessages(t *testing.T) {
	f := newFixture(t)
	c := f.createChat(t, "alice", "bob", chat.TypePenpal)

	for i := 0; i < 3; i++ {
		f.send(t, c.ID, "alice", "hello")
		f.send(t, c.ID, "bob", "hey")
	}
	assert.Equal(t, 6, f.store.MessageCount(c.ID))
}

func TestSendMessageStoresCiphertextAndSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createChat(t, "alice", "bob", "")

	f.clock.Advance(time.Second)
	sent := f.send(t, c.ID, "alice", "secret words")

	stored, err := f.store.ListMessages(ctx, c.ID, 10, nil)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.NotEqual(t, "secret words", stored[0].Text)
	assert.Equal(t, sent.ID, stored[0].ID)

	raw, err := f.store.GetChat(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, raw.LastMessage)
	assert.Equal(t, stored[0].Text, raw.LastMessage.Text)
	assert.Equal(t, "alice", raw.LastMessage.SenderID)
	assert.Equal(t, f.clock.Now(), raw.LastUpdated)
	assert.True(t, raw.LastUpdated.After(c.LastUpdated))
}

func TestSendMessageErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createChat(t, "alice", "bob", "")

	_, _, err := f.svc.SendMessage(ctx, c.ID, "alice", "")
	assert.ErrorIs(t, err, appErrors.ErrTextRequired)

	_, _, err = f.svc.SendMessage(ctx, "missing", "alice", "hi")
	assert.ErrorIs(t, err, appErrors.ErrChatNotFound)
	assert.Equal(t, appErrors.CodeNotFound, appErrors.CodeOf(err))
}

func TestVisibilityDelay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createChat(t, "alice", "bob", "")
	f.send(t, c.ID, "alice", "hello bob")

	page, err := f.svc.FetchMessages(ctx, c.ID, "alice", 20, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello bob"}, texts(page.Messages), "sender sees own message immediately")

	f.clock.Advance(59 * time.Second)
	page, err = f.svc.FetchMessages(ctx, c.ID, "bob", 20, "")
	require.NoError(t, err)
	assert.Empty(t, page.Messages)

	f.clock.Advance(2 * time.Second)
	page, err = f.svc.FetchMessages(ctx, c.ID, "bob", 20, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello bob"}, texts(page.Messages))
}

func TestVisible(t *testing.T) {
	sent := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m := chat.Message{SenderID: "alice", Timestamp: sent}

	assert.True(t, chatservice.Visible(m, "alice", sent, time.Minute))
	assert.False(t, chatservice.Visible(m, "bob", sent.Add(59*time.Second), time.Minute))
	assert.True(t, chatservice.Visible(m, "bob", sent.Add(time.Minute), time.Minute))
}

func TestReadFlagTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createChat(t, "alice", "bob", "")
	f.send(t, c.ID, "alice", "ping")

	status := func() chat.Status {
		got, err := f.svc.GetChat(ctx, c.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastMessage)
		return got.LastMessage.Status
	}
	assert.Equal(t, chat.StatusUnread, status())

	_, err := f.svc.FetchMessages(ctx, c.ID, "alice", 20, "")
	require.NoError(t, err)
	assert.Equal(t, chat.StatusUnread, status(), "sender cannot mark their own message read")

	// The flag flips on fetch even while the message itself is still embargoed.
	_, err = f.svc.FetchMessages(ctx, c.ID, "bob", 20, "")
	require.NoError(t, err)
	assert.Equal(t, chat.StatusRead, status())

	_, err = f.svc.FetchMessages(ctx, c.ID, "alice", 20, "")
	require.NoError(t, err)
	assert.Equal(t, chat.StatusRead, status())

	f.send(t, c.ID, "bob", "pong")
	assert.Equal(t, chat.StatusUnread, status())
}

func TestMarkReadOnFetchCanBeDisabled(t *testing.T) {
	cfg := chatservice.DefaultConfig()
	cfg.MarkReadOnFetch = false
	f := newFixture(t, chatservice.WithConfig(cfg))
	ctx := context.Background()
	c := f.createChat(t, "alice", "bob", "")
	f.send(t, c.ID, "alice", "ping")

	_, err := f.svc.FetchMessages(ctx, c.ID, "bob", 20, "")
	require.NoError(t, err)

	got, err := f.svc.GetChat(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, chat.StatusUnread, got.LastMessage.Status)
}

type failingReadStore struct {
	*memory.Store
}

func (failingReadStore) MarkLastMessageRead(context.Context, string, time.Time) error {
	return errors.New("deadline exceeded")
}

func TestMarkReadFailureDoesNotFailFetch(t *testing.T) {
	st := failingReadStore{memory.New()}
	cipher, err := crypto.New("test-secret", crypto.SchemeXChaCha)
	require.NoError(t, err)
	clk := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := chatservice.NewService(st, cipher, chatservice.WithClock(clk.Now))
	ctx := context.Background()

	c, _, err := svc.CreateOrGetChat(ctx, []chat.Participant{{UID: "alice"}, {UID: "bob"}}, "")
	require.NoError(t, err)
	_, _, err = svc.SendMessage(ctx, c.ID, "alice", "ping")
	require.NoError(t, err)

	clk.Advance(time.Minute)
	page, err := svc.FetchMessages(ctx, c.ID, "bob", 20, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"ping"}, texts(page.Messages))

	got, err := svc.GetChat(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, chat.StatusUnread, got.LastMessage.Status)
}

func TestFetchMessagesForMissingChatIsEmpty(t *testing.T) {
	f := newFixture(t)

	page, err := f.svc.FetchMessages(context.Background(), "missing", "bob", 20, "")
	require.NoError(t, err)
	assert.NotNil(t, page.Messages)
	assert.Empty(t, page.Messages)
	assert.Nil(t, page.NextPageToken)
}

func TestFetchMessagesRejectsBadPageToken(t *testing.T) {
	f := newFixture(t)
	c := f.createChat(t, "alice", "bob", "")

	_, err := f.svc.FetchMessages(context.Background(), c.ID, "bob", 20, "yesterday")
	assert.ErrorIs(t, err, appErrors.ErrInvalidPageToken)

	_, err = f.svc.FetchLatestChats(context.Background(), "bob", 20, "-5")
	assert.ErrorIs(t, err, appErrors.ErrInvalidPageToken)

	_, err = f.svc.FetchMessages(context.Background(), c.ID, "bob", 20, "1740830400000.")
	assert.ErrorIs(t, err, appErrors.ErrInvalidPageToken)
}

func TestMessagePaginationKeepsSameMillisecondMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createChat(t, "alice", "bob", "")

	f.send(t, c.ID, "alice", "m0")
	f.send(t, c.ID, "alice", "m1")
	f.clock.Advance(time.Second)
	f.send(t, c.ID, "alice", "m2")
	f.clock.Advance(2 * time.Minute)

	var all []chat.Message
	token := ""
	for pages := 0; ; pages++ {
		require.Less(t, pages, 10, "pagination does not terminate")
		page, err := f.svc.FetchMessages(ctx, c.ID, "bob", 1, token)
		require.NoError(t, err)
		all = append(append([]chat.Message(nil), page.Messages...), all...)
		if page.NextPageToken == nil {
			break
		}
		token = *page.NextPageToken
	}

	got := texts(all)
	require.Len(t, got, 3)
	assert.ElementsMatch(t, []string{"m0", "m1"}, got[:2])
	assert.Equal(t, "m2", got[2])
}

func TestBareMillisecondPageTokenSkipsThatInstant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createChat(t, "alice", "bob", "")

	f.send(t, c.ID, "alice", "m0")
	f.clock.Advance(time.Second)
	m1 := f.send(t, c.ID, "alice", "m1")
	f.send(t, c.ID, "alice", "m2")
	f.clock.Advance(2 * time.Minute)

	token := strconv.FormatInt(m1.Timestamp.UnixMilli(), 10)
	page, err := f.svc.FetchMessages(ctx, c.ID, "bob", 20, token)
	require.NoError(t, err)
	assert.Equal(t, []string{"m0"}, texts(page.Messages))
	assert.Nil(t, page.NextPageToken)
}

func TestMessagePaginationIsExhaustive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createChat(t, "alice", "bob", "")

	want := []string{"m0", "m1", "m2", "m3", "m4", "m5", "m6"}
	for i, text := range want {
		sender := "alice"
		if i%2 == 1 {
			sender = "bob"
		}
		f.send(t, c.ID, sender, text)
		f.clock.Advance(time.Second)
	}
	f.clock.Advance(2 * time.Minute)

	for _, reader := range []string{"alice", "bob"} {
		var all []chat.Message
		token := ""
		pages := 0
		for {
			page, err := f.svc.FetchMessages(ctx, c.ID, reader, 3, token)
			require.NoError(t, err)
			require.LessOrEqual(t, len(page.Messages), 3)
			all = append(append([]chat.Message(nil), page.Messages...), all...)
			pages++
			if page.NextPageToken == nil {
				break
			}
			token = *page.NextPageToken
			require.Less(t, pages, 10, "pagination does not terminate")
		}
		assert.Equal(t, want, texts(all), reader)
		assert.Equal(t, 3, pages)
	}
}

func TestEmbargoedMessagesShrinkThePage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createChat(t, "alice", "bob", "")

	f.send(t, c.ID, "alice", "m0")
	f.clock.Advance(time.Second)
	f.send(t, c.ID, "alice", "m1")
	f.clock.Advance(2 * time.Minute)
	f.send(t, c.ID, "alice", "m2")
	f.clock.Advance(time.Second)

	page, err := f.svc.FetchMessages(ctx, c.ID, "bob", 2, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"m0", "m1"}, texts(page.Messages))
	assert.Nil(t, page.NextPageToken)

	f.clock.Advance(2 * time.Minute)
	page, err = f.svc.FetchMessages(ctx, c.ID, "bob", 2, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, texts(page.Messages))
	require.NotNil(t, page.NextPageToken)

	page, err = f.svc.FetchMessages(ctx, c.ID, "bob", 2, *page.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"m0"}, texts(page.Messages))
	assert.Nil(t, page.NextPageToken)
}

func TestFetchMessagesDefaultPageSize(t *testing.T) {
	f := newFixture(t)
	c := f.createChat(t, "alice", "bob", "")
	for i := 0; i < 25; i++ {
		f.send(t, c.ID, "alice", "x")
		f.clock.Advance(time.Millisecond)
	}

	page, err := f.svc.FetchMessages(context.Background(), c.ID, "alice", 0, "")
	require.NoError(t, err)
	assert.Len(t, page.Messages, 20)
	assert.NotNil(t, page.NextPageToken)
}

func TestFetchLatestChats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	withBob := f.createChat(t, "alice", "bob", "")
	f.clock.Advance(time.Second)
	withCarol := f.createChat(t, "carol", "alice", "")
	f.clock.Advance(time.Second)
	withDave := f.createChat(t, "alice", "dave", "")
	f.clock.Advance(time.Second)
	f.createChat(t, "bob", "carol", "")
	f.clock.Advance(time.Second)
	f.send(t, withBob.ID, "bob", "fresh news")

	page, err := f.svc.FetchLatestChats(ctx, "alice", 2, "")
	require.NoError(t, err)
	require.Len(t, page.Chats, 2)
	assert.Equal(t, withBob.ID, page.Chats[0].ID)
	assert.Equal(t, withDave.ID, page.Chats[1].ID)
	require.NotNil(t, page.Chats[0].LastMessage)
	assert.Equal(t, "fresh news", page.Chats[0].LastMessage.Text, "summary text skips the embargo")
	assert.Equal(t, chat.StatusUnread, page.Chats[0].LastMessage.Status)
	require.NotNil(t, page.NextPageToken)

	page, err = f.svc.FetchLatestChats(ctx, "alice", 2, *page.NextPageToken)
	require.NoError(t, err)
	require.Len(t, page.Chats, 1)
	assert.Equal(t, withCarol.ID, page.Chats[0].ID)
	assert.Nil(t, page.NextPageToken)
}

func TestFetchLatestChatsKeepsSameMillisecondChats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids := map[string]bool{
		f.createChat(t, "alice", "bob", "").ID:   true,
		f.createChat(t, "alice", "carol", "").ID: true,
		f.createChat(t, "dave", "alice", "").ID:  true,
	}

	seen := map[string]bool{}
	token := ""
	for pages := 0; ; pages++ {
		require.Less(t, pages, 10, "pagination does not terminate")
		page, err := f.svc.FetchLatestChats(ctx, "alice", 1, token)
		require.NoError(t, err)
		for _, c := range page.Chats {
			seen[c.ID] = true
		}
		if page.NextPageToken == nil {
			break
		}
		token = *page.NextPageToken
	}
	assert.Equal(t, ids, seen)
}

func TestGetChatNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetChat(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrChatNotFound)
}

func TestDeleteChatCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createChat(t, "alice", "bob", "")
	for i := 0; i < 5; i++ {
		f.send(t, c.ID, "alice", "bye")
	}

	require.NoError(t, f.svc.DeleteChat(ctx, c.ID))

	assert.Equal(t, -1, f.store.MessageCount(c.ID))
	_, err := f.svc.GetChat(ctx, c.ID)
	assert.ErrorIs(t, err, appErrors.ErrChatNotFound)
	assert.ErrorIs(t, f.svc.DeleteChat(ctx, c.ID), appErrors.ErrChatNotFound)

	page, err := f.svc.FetchMessages(ctx, c.ID, "alice", 20, "")
	require.NoError(t, err)
	assert.Empty(t, page.Messages)

	recreated := f.createChat(t, "bob", "alice", "")
	assert.NotEqual(t, c.ID, recreated.ID)
}

func TestUndisplayableTextIsEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	cipher := mocks.NewMockCipher(ctrl)
	cipher.EXPECT().Encrypt("hi").Return("sealed", nil)
	cipher.EXPECT().Decrypt("sealed").Return("", crypto.ErrWrongKey).AnyTimes()

	svc := chatservice.NewService(memory.New(), cipher)
	ctx := context.Background()

	c, _, err := svc.CreateOrGetChat(ctx, []chat.Participant{{UID: "alice"}, {UID: "bob"}}, "")
	require.NoError(t, err)
	sent, _, err := svc.SendMessage(ctx, c.ID, "alice", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", sent.Text)

	page, err := svc.FetchMessages(ctx, c.ID, "alice", 20, "")
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "", page.Messages[0].Text)

	got, err := svc.GetChat(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "", got.LastMessage.Text)
}

func TestEncryptFailureIsDependencyFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	cipher := mocks.NewMockCipher(ctrl)
	cipher.EXPECT().Encrypt(gomock.Any()).Return("", errors.New("entropy unavailable"))

	svc := chatservice.NewService(memory.New(), cipher)
	ctx := context.Background()
	c, _, err := svc.CreateOrGetChat(ctx, []chat.Participant{{UID: "alice"}, {UID: "bob"}}, "")
	require.NoError(t, err)

	_, _, err = svc.SendMessage(ctx, c.ID, "alice", "hi")
	assert.Equal(t, appErrors.CodeDependencyFailure, appErrors.CodeOf(err))
}

type recordingLocker struct {
	mu   sync.Mutex
	keys []string
}

func (l *recordingLocker) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	return func() {}, nil
}

func TestLockerGuardsPairAndOnetimeChecks(t *testing.T) {
	locker := &recordingLocker{}
	f := newFixture(t, chatservice.WithLocker(locker))

	c := f.createChat(t, "bob", "alice", chat.TypeOnetime)
	f.send(t, c.ID, "bob", "once")

	assert.Equal(t, []string{"chatpair:alice:bob", "chat:" + c.ID + ":onetime"}, locker.keys)
}

func TestEventsFollowMutations(t *testing.T) {
	hub := events.NewHub(nil)
	stream, cancel := hub.Subscribe("bob")
	defer cancel()

	f := newFixture(t, chatservice.WithPublisher(hub))
	ctx := context.Background()
	c := f.createChat(t, "alice", "bob", "")
	f.send(t, c.ID, "alice", "hi")
	_, err := f.svc.FetchMessages(ctx, c.ID, "bob", 20, "")
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteChat(ctx, c.ID))

	var got []events.Type
	for len(stream) > 0 {
		evt := <-stream
		assert.Equal(t, c.ID, evt.ChatID)
		got = append(got, evt.Type)
	}
	assert.Equal(t, []events.Type{events.ChatCreated, events.MessageSent, events.ChatRead, events.ChatDeleted}, got)
}
