package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	emaildomain "github.com/vynious/finOS/internal/email/domain"
	emailusecase "github.com/vynious/finOS/internal/email/usecase"
	userdomain "github.com/vynious/finOS/internal/user/domain"
	"github.com/vynious/finOS/pkg/ai"
	"github.com/vynious/finOS/pkg/relevance"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testIssuer = "alerts@bank.example"

type staticTokens struct {
	err error
}

func (s staticTokens) GetValidToken(_ context.Context, email, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "token-" + email, nil
}

type fakeMailbox struct {
	mu        sync.Mutex
	list      []emaildomain.CandidateMessage
	listErr   error
	messages  map[string]*emaildomain.RawMessage
	fetchErr  map[string]error
	fetchWait time.Duration

	clauses  []string
	fetched  []string
	inFlight int32
	peak     int32
}

func (f *fakeMailbox) ListAll(_ context.Context, _ string, clauses []string) ([]emaildomain.CandidateMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clauses = clauses
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

func (f *fakeMailbox) FetchRaw(ctx context.Context, _ string, id string) (*emaildomain.RawMessage, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, n) {
			break
		}
	}

	f.mu.Lock()
	f.fetched = append(f.fetched, id)
	err := f.fetchErr[id]
	msg, ok := f.messages[id]
	f.mu.Unlock()

	if f.fetchWait > 0 {
		select {
		case <-time.After(f.fetchWait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("message %s not found", id)
	}
	return msg, nil
}

func (f *fakeMailbox) fetchedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.fetched...)
}

type memoryTrackedStore struct {
	mu     sync.Mutex
	data   map[string][]string
	setErr error
	sets   int
}

func (m *memoryTrackedStore) Get(_ context.Context, owner string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.data[owner]...), nil
}

func (m *memoryTrackedStore) Set(_ context.Context, owner string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	if m.data == nil {
		m.data = map[string][]string{}
	}
	m.data[owner] = append([]string{}, ids...)
	return nil
}

func (m *memoryTrackedStore) tracked(owner string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.data[owner]...)
}

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) ExtractReceipts(ctx context.Context, issuer, text string) ([]ai.Transaction, error) {
	args := m.Called(ctx, issuer, text)
	txs, _ := args.Get(0).([]ai.Transaction)
	return txs, args.Error(1)
}

type extractorFunc func(ctx context.Context, issuer, text string) ([]ai.Transaction, error)

func (f extractorFunc) ExtractReceipts(ctx context.Context, issuer, text string) ([]ai.Transaction, error) {
	return f(ctx, issuer, text)
}

func rawMail(subject, body string) *emaildomain.RawMessage {
	raw := strings.Join([]string{
		"From: Bank Alerts <" + testIssuer + ">",
		"To: alice@example.com",
		"Subject: " + subject,
		"Date: Mon, 02 Jun 2025 10:00:00 +0000",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
		"",
	}, "\r\n")
	return &emaildomain.RawMessage{Raw: []byte(raw), InternalDate: 1748858400000}
}

func candidates(ids ...string) []emaildomain.CandidateMessage {
	out := make([]emaildomain.CandidateMessage, 0, len(ids))
	for _, id := range ids {
		out = append(out, emaildomain.CandidateMessage{ID: id, ThreadID: "t-" + id})
	}
	return out
}

func newTestWorker(t *testing.T, mailbox *fakeMailbox, store *memoryTrackedStore, extractor ai.ReceiptExtractor, workers int) *UserSyncWorker {
	t.Helper()
	filter, err := relevance.New(relevance.DefaultKeywords)
	require.NoError(t, err)
	return NewUserSyncWorker(
		staticTokens{},
		mailbox,
		emailusecase.NewDedupTracker(store),
		filter,
		extractor,
		workers,
		time.Second,
		nil,
	)
}

var alice = &userdomain.User{Email: "alice@example.com", Active: true}

func TestSyncOneExtractsRelevantMessages(t *testing.T) {
	mailbox := &fakeMailbox{
		list: candidates("m1", "m2"),
		messages: map[string]*emaildomain.RawMessage{
			"m1": rawMail("Payment confirmation", "You paid SGD 12.50 at Grab"),
			"m2": rawMail("Hello", "Lunch on Friday?"),
		},
	}
	store := &memoryTrackedStore{}
	extractor := &mockExtractor{}
	extractor.On("ExtractReceipts", mock.Anything, "Bank Alerts", "You paid SGD 12.50 at Grab").
		Return([]ai.Transaction{{Merchant: "Grab", Amount: decimal.RequireFromString("12.50"), Currency: "SGD"}}, nil).
		Once()

	w := newTestWorker(t, mailbox, store, extractor, 2)
	clauses := []string{"category:primary", "from:(" + testIssuer + ")", "newer_than:7d"}

	receipts, err := w.SyncOne(context.Background(), alice, clauses)
	require.NoError(t, err)
	require.Len(t, receipts, 1)

	r := receipts[0]
	assert.Equal(t, "m1", r.MessageID)
	assert.Equal(t, "alice@example.com", r.Owner)
	assert.Equal(t, "Bank Alerts", r.Issuer)
	assert.Equal(t, "Grab", r.Merchant)
	assert.True(t, decimal.RequireFromString("12.5").Equal(r.Amount))
	assert.Equal(t, "SGD", r.Currency)
	assert.Equal(t, int64(1748858400), r.Timestamp)
	assert.True(t, r.Complete())

	assert.Equal(t, clauses, mailbox.clauses)
	assert.Equal(t, []string{"m1", "m2"}, store.tracked(alice.Email))
	extractor.AssertExpectations(t)
}

func TestSyncOneOnlyProcessesUntracked(t *testing.T) {
	mailbox := &fakeMailbox{
		list: candidates("a", "b", "c"),
		messages: map[string]*emaildomain.RawMessage{
			"c": rawMail("Newsletter", "nothing to see"),
		},
	}
	store := &memoryTrackedStore{data: map[string][]string{alice.Email: {"a", "b"}}}
	extractor := &mockExtractor{}

	w := newTestWorker(t, mailbox, store, extractor, 4)

	receipts, err := w.SyncOne(context.Background(), alice, nil)
	require.NoError(t, err)
	assert.Empty(t, receipts)

	assert.Equal(t, []string{"c"}, mailbox.fetchedIDs())
	assert.Equal(t, []string{"a", "b", "c"}, store.tracked(alice.Email))
	extractor.AssertNotCalled(t, "ExtractReceipts", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncOneIsIdempotent(t *testing.T) {
	mailbox := &fakeMailbox{
		list: candidates("m1"),
		messages: map[string]*emaildomain.RawMessage{
			"m1": rawMail("Card transaction alert", "SGD 4.20 spent at Kopitiam"),
		},
	}
	store := &memoryTrackedStore{}
	extractor := &mockExtractor{}
	extractor.On("ExtractReceipts", mock.Anything, mock.Anything, mock.Anything).
		Return([]ai.Transaction{{Merchant: "Kopitiam", Amount: decimal.RequireFromString("4.20"), Currency: "SGD"}}, nil)

	w := newTestWorker(t, mailbox, store, extractor, 2)

	first, err := w.SyncOne(context.Background(), alice, nil)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := w.SyncOne(context.Background(), alice, nil)
	require.NoError(t, err)
	assert.Empty(t, second)

	extractor.AssertNumberOfCalls(t, "ExtractReceipts", 1)
	assert.Equal(t, []string{"m1"}, mailbox.fetchedIDs())
}

func TestSyncOneTracksFailedMessages(t *testing.T) {
	mailbox := &fakeMailbox{
		list: candidates("ok", "broken", "dud"),
		messages: map[string]*emaildomain.RawMessage{
			"ok":  rawMail("Payment received", "SGD 10 at Cold Storage"),
			"dud": rawMail("Payment received", "SGD 3 at 7-Eleven"),
		},
		fetchErr: map[string]error{"broken": errors.New("gateway timeout")},
	}
	store := &memoryTrackedStore{}
	extractor := extractorFunc(func(_ context.Context, _, text string) ([]ai.Transaction, error) {
		if strings.Contains(text, "7-Eleven") {
			return nil, ai.ErrSchemaMismatch
		}
		return []ai.Transaction{{Merchant: "Cold Storage", Amount: decimal.NewFromInt(10), Currency: "SGD"}}, nil
	})

	w := newTestWorker(t, mailbox, store, extractor, 3)

	receipts, err := w.SyncOne(context.Background(), alice, nil)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, "ok", receipts[0].MessageID)
	assert.Equal(t, []string{"broken", "dud", "ok"}, store.tracked(alice.Email))
}

func TestSyncOneFallsBackToInternalDate(t *testing.T) {
	raw := strings.Join([]string{
		"From: " + testIssuer,
		"Subject: Payment made",
		"Content-Type: text/plain",
		"",
		"SGD 1.10 at MRT",
		"",
	}, "\r\n")
	mailbox := &fakeMailbox{
		list: candidates("m1", "m2"),
		messages: map[string]*emaildomain.RawMessage{
			"m1": {Raw: []byte(raw), InternalDate: 1700000000123},
			"m2": {Raw: []byte(raw)},
		},
	}
	store := &memoryTrackedStore{}
	extractor := extractorFunc(func(context.Context, string, string) ([]ai.Transaction, error) {
		return []ai.Transaction{{Merchant: "MRT", Amount: decimal.RequireFromString("1.10"), Currency: "SGD"}}, nil
	})

	w := newTestWorker(t, mailbox, store, extractor, 1)

	receipts, err := w.SyncOne(context.Background(), alice, nil)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, "m1", receipts[0].MessageID)
	assert.Equal(t, int64(1700000000), receipts[0].Timestamp)
	assert.Equal(t, testIssuer, receipts[0].Issuer)
	assert.Equal(t, []string{"m1", "m2"}, store.tracked(alice.Email))
}

func TestSyncOneIgnoresEpochDate(t *testing.T) {
	raw := strings.Join([]string{
		"From: " + testIssuer,
		"Subject: Payment made",
		"Date: Thu, 01 Jan 1970 00:00:00 +0000",
		"Content-Type: text/plain",
		"",
		"SGD 2.40 at Bus",
		"",
	}, "\r\n")
	mailbox := &fakeMailbox{
		list: candidates("m1", "m2"),
		messages: map[string]*emaildomain.RawMessage{
			"m1": {Raw: []byte(raw), InternalDate: 1748858400000},
			"m2": {Raw: []byte(raw)},
		},
	}
	store := &memoryTrackedStore{}
	extractor := extractorFunc(func(context.Context, string, string) ([]ai.Transaction, error) {
		return []ai.Transaction{{Merchant: "Bus", Amount: decimal.RequireFromString("2.40"), Currency: "SGD"}}, nil
	})

	w := newTestWorker(t, mailbox, store, extractor, 1)

	receipts, err := w.SyncOne(context.Background(), alice, nil)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, "m1", receipts[0].MessageID)
	assert.Equal(t, int64(1748858400), receipts[0].Timestamp)
	assert.True(t, receipts[0].Complete())
	assert.Equal(t, []string{"m1", "m2"}, store.tracked(alice.Email))
}

func TestSentTime(t *testing.T) {
	ptr := func(v int64) *int64 { return &v }

	tests := []struct {
		name     string
		header   *int64
		internal int64
		want     int64
		wantErr  bool
	}{
		{name: "header", header: ptr(1748858400), internal: 1700000000000, want: 1748858400},
		{name: "no header", internal: 1700000000999, want: 1700000000},
		{name: "epoch header", header: ptr(0), internal: 1700000000000, want: 1700000000},
		{name: "negative header", header: ptr(-5), internal: 1700000000000, want: 1700000000},
		{name: "sub-second internal date", internal: 999, wantErr: true},
		{name: "neither", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sentTime(tt.header, tt.internal)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoSentDate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSyncOneListingErrorLeavesTrackedUntouched(t *testing.T) {
	mailbox := &fakeMailbox{listErr: errors.New("backend error")}
	store := &memoryTrackedStore{data: map[string][]string{alice.Email: {"a"}}}

	w := newTestWorker(t, mailbox, store, &mockExtractor{}, 2)

	receipts, err := w.SyncOne(context.Background(), alice, nil)
	require.Error(t, err)
	assert.Nil(t, receipts)
	assert.Equal(t, 0, store.sets)
	assert.Equal(t, []string{"a"}, store.tracked(alice.Email))
}

func TestSyncOneTokenError(t *testing.T) {
	mailbox := &fakeMailbox{list: candidates("a")}
	store := &memoryTrackedStore{}
	filter, err := relevance.New(relevance.DefaultKeywords)
	require.NoError(t, err)

	w := NewUserSyncWorker(staticTokens{err: errors.New("revoked")}, mailbox, emailusecase.NewDedupTracker(store), filter, &mockExtractor{}, 1, time.Second, nil)

	receipts, err := w.SyncOne(context.Background(), alice, nil)
	require.Error(t, err)
	assert.Nil(t, receipts)
	assert.Empty(t, mailbox.fetchedIDs())
}

func TestSyncOneCommitFailureReturnsNothing(t *testing.T) {
	mailbox := &fakeMailbox{
		list: candidates("m1"),
		messages: map[string]*emaildomain.RawMessage{
			"m1": rawMail("Payment confirmation", "SGD 8 at Toast Box"),
		},
	}
	store := &memoryTrackedStore{setErr: errors.New("disk full")}
	extractor := extractorFunc(func(context.Context, string, string) ([]ai.Transaction, error) {
		return []ai.Transaction{{Merchant: "Toast Box", Amount: decimal.NewFromInt(8), Currency: "SGD"}}, nil
	})

	w := newTestWorker(t, mailbox, store, extractor, 1)

	receipts, err := w.SyncOne(context.Background(), alice, nil)
	require.Error(t, err)
	assert.Nil(t, receipts)
}

func TestSyncOneBoundsConcurrentMessages(t *testing.T) {
	ids := []string{"m1", "m2", "m3", "m4", "m5", "m6", "m7", "m8"}
	msgs := make(map[string]*emaildomain.RawMessage, len(ids))
	for _, id := range ids {
		msgs[id] = rawMail("Hello", "hi")
	}
	mailbox := &fakeMailbox{list: candidates(ids...), messages: msgs, fetchWait: 20 * time.Millisecond}
	store := &memoryTrackedStore{}

	w := newTestWorker(t, mailbox, store, &mockExtractor{}, 3)

	_, err := w.SyncOne(context.Background(), alice, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&mailbox.peak), int32(3))
	assert.Len(t, store.tracked(alice.Email), len(ids))
}

func TestSyncOneDeadlineCommitsAttempted(t *testing.T) {
	mailbox := &fakeMailbox{
		list: candidates("fast", "slow", "never"),
		messages: map[string]*emaildomain.RawMessage{
			"fast":  rawMail("Payment confirmation", "SGD 2 at Fairprice"),
			"slow":  rawMail("Payment confirmation", "SGD 9 at Sheng Siong"),
			"never": rawMail("Payment confirmation", "SGD 1 at Popular"),
		},
	}
	store := &memoryTrackedStore{}
	extractor := extractorFunc(func(ctx context.Context, _, text string) ([]ai.Transaction, error) {
		if strings.Contains(text, "Sheng Siong") {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []ai.Transaction{{Merchant: "Fairprice", Amount: decimal.NewFromInt(2), Currency: "SGD"}}, nil
	})

	w := newTestWorker(t, mailbox, store, extractor, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	receipts, err := w.SyncOne(ctx, alice, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, receipts, 1)
	assert.Equal(t, "fast", receipts[0].MessageID)
	assert.Equal(t, []string{"fast"}, store.tracked(alice.Email))
}
