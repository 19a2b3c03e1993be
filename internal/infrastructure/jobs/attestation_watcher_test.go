package jobs

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"together.backend/internal/config"
	"together.backend/internal/domain/entities"
	domainerrors "together.backend/internal/domain/errors"
	"together.backend/internal/infrastructure/blockchain"
)

const (
	watcherAddrA = "0x2222222222222222222222222222222222222222"
	watcherAddrB = "0x3333333333333333333333333333333333333333"
)

type chainStub struct {
	head       uint64
	logs       []types.Log
	failFirstN int
	calls      []struct{ from, to uint64 }
}

func (s *chainStub) BlockNumber(_ context.Context) (uint64, error) {
	return s.head, nil
}

func (s *chainStub) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	if s.failFirstN > 0 {
		s.failFirstN--
		return nil, errors.New("query returned more than 10000 results")
	}
	from, to := q.FromBlock.Uint64(), q.ToBlock.Uint64()
	s.calls = append(s.calls, struct{ from, to uint64 }{from, to})

	var out []types.Log
	for _, l := range s.logs {
		if l.BlockNumber >= from && l.BlockNumber <= to {
			out = append(out, l)
		}
	}
	return out, nil
}

type cursorRepoStub struct {
	cursor *entities.WatcherCursor
	saves  int
}

func (s *cursorRepoStub) Get(_ context.Context, _ string) (*entities.WatcherCursor, error) {
	if s.cursor == nil {
		return nil, domainerrors.ErrCursorMissing
	}
	c := *s.cursor
	return &c, nil
}

func (s *cursorRepoStub) Save(_ context.Context, cursor *entities.WatcherCursor) error {
	c := *cursor
	s.cursor = &c
	s.saves++
	return nil
}

func (s *cursorRepoStub) Delete(_ context.Context, _ string) error {
	s.cursor = nil
	return nil
}

type attRepoStub struct {
	seen            map[string]*entities.Attestation
	failNextInserts int
}

func newAttRepoStub() *attRepoStub {
	return &attRepoStub{seen: make(map[string]*entities.Attestation)}
}

func (s *attRepoStub) Insert(_ context.Context, att *entities.Attestation) (bool, error) {
	if s.failNextInserts > 0 {
		s.failNextInserts--
		return false, errors.New("connection reset by peer")
	}
	key := fmt.Sprintf("%s/%d", att.TxHash, att.LogIndex)
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = att
	return true, nil
}

func (s *attRepoStub) Exists(_ context.Context, txHash string, logIndex uint) (bool, error) {
	_, ok := s.seen[fmt.Sprintf("%s/%d", txHash, logIndex)]
	return ok, nil
}

func (s *attRepoStub) ListByAddress(_ context.Context, _ string, _, _ int) ([]*entities.Attestation, int, error) {
	return nil, 0, nil
}

type strengthRepoStub struct {
	counts map[string]int64
}

func newStrengthRepoStub() *strengthRepoStub {
	return &strengthRepoStub{counts: make(map[string]int64)}
}

func (s *strengthRepoStub) IncrementBoth(_ context.Context, addressA, addressB string) error {
	s.counts[addressA+"/"+addressB]++
	s.counts[addressB+"/"+addressA]++
	return nil
}

func (s *strengthRepoStub) ListByAddress(_ context.Context, _ string) ([]*entities.PairStrength, error) {
	return nil, nil
}

func (s *strengthRepoStub) GetCount(_ context.Context, address, partner string) (int64, error) {
	return s.counts[address+"/"+partner], nil
}

type watcherOptimisticStub struct {
	confirmCalls []struct {
		a, b                   int64
		windowStart, windowEnd time.Time
		txHash                 string
	}
	confirmResult bool
}

func (s *watcherOptimisticStub) Create(_ context.Context, userA, userB int64) (*entities.OptimisticConnection, error) {
	return nil, errors.New("not used")
}

func (s *watcherOptimisticStub) CountUnconfirmedBetween(_ context.Context, _, _ int64) (int64, error) {
	return 0, nil
}

func (s *watcherOptimisticStub) CountUnconfirmed(_ context.Context) (int64, error) {
	return 0, nil
}

func (s *watcherOptimisticStub) ConfirmOldest(_ context.Context, userA, userB int64, windowStart, windowEnd time.Time, txHash string) (bool, error) {
	s.confirmCalls = append(s.confirmCalls, struct {
		a, b                   int64
		windowStart, windowEnd time.Time
		txHash                 string
	}{userA, userB, windowStart, windowEnd, txHash})
	return s.confirmResult, nil
}

func (s *watcherOptimisticStub) ListByUser(_ context.Context, _ int64) ([]*entities.OptimisticConnection, error) {
	return nil, nil
}

type userRepoStub struct {
	byAddr map[string]*entities.User
}

func (s *userRepoStub) Resolve(_ context.Context, walletAddress string) (*entities.User, error) {
	if u, ok := s.byAddr[walletAddress]; ok {
		return u, nil
	}
	return nil, domainerrors.ErrNotFound
}

func (s *userRepoStub) GetByID(_ context.Context, _ int64) (*entities.User, error) {
	return nil, domainerrors.ErrNotFound
}

func (s *userRepoStub) GetByWalletAddress(_ context.Context, walletAddress string) (*entities.User, error) {
	if u, ok := s.byAddr[walletAddress]; ok {
		return u, nil
	}
	return nil, domainerrors.ErrNotFound
}

type watcherFixture struct {
	job        *AttestationWatcherJob
	chain      *chainStub
	cursors    *cursorRepoStub
	atts       *attRepoStub
	strengths  *strengthRepoStub
	optimistic *watcherOptimisticStub
	contract   *blockchain.TogetherContract
}

func newWatcherFixture(t *testing.T, chain *chainStub, cursors *cursorRepoStub, cfg config.WatcherConfig) *watcherFixture {
	t.Helper()

	contract, err := blockchain.NewTogetherContract("0x1111111111111111111111111111111111111111")
	require.NoError(t, err)

	atts := newAttRepoStub()
	strengths := newStrengthRepoStub()
	optimistic := &watcherOptimisticStub{confirmResult: true}
	users := &userRepoStub{byAddr: map[string]*entities.User{
		watcherAddrA: {ID: 5, WalletAddress: watcherAddrA},
		watcherAddrB: {ID: 7, WalletAddress: watcherAddrB},
	}}

	job := NewAttestationWatcherJob(chain, contract, cursors, atts, strengths, optimistic, users, uowStub{}, cfg)
	return &watcherFixture{
		job: job, chain: chain, cursors: cursors,
		atts: atts, strengths: strengths, optimistic: optimistic,
		contract: contract,
	}
}

func watcherTestConfig() config.WatcherConfig {
	return config.WatcherConfig{
		WatcherID:     "attestation_watcher",
		Interval:      time.Millisecond,
		InitialChunk:  500,
		MinChunk:      125,
		MaxChunk:      4000,
		ConfirmWindow: 30 * time.Minute,
	}
}

func togetherLog(t *testing.T, contract *blockchain.TogetherContract, block uint64, txHash string, logIndex uint, eventTime time.Time) types.Log {
	t.Helper()
	data := make([]byte, 32)
	big.NewInt(eventTime.Unix()).FillBytes(data)
	return types.Log{
		Address: contract.Address(),
		Topics: []common.Hash{
			contract.EventTopic(),
			common.BytesToHash(common.HexToAddress(watcherAddrA).Bytes()),
			common.BytesToHash(common.HexToAddress(watcherAddrB).Bytes()),
		},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.HexToHash(txHash),
		Index:       logIndex,
	}
}

func TestLoadCursor_MissingWithoutStartBlockIsFatal(t *testing.T) {
	f := newWatcherFixture(t, &chainStub{}, &cursorRepoStub{}, watcherTestConfig())

	err := f.job.loadCursor(context.Background())
	assert.ErrorIs(t, err, domainerrors.ErrCursorMissing)
}

func TestLoadCursor_SeedsFromStartBlock(t *testing.T) {
	cfg := watcherTestConfig()
	cfg.StartBlock = 1000
	cursors := &cursorRepoStub{}
	f := newWatcherFixture(t, &chainStub{}, cursors, cfg)

	require.NoError(t, f.job.loadCursor(context.Background()))
	require.NotNil(t, cursors.cursor)
	assert.Equal(t, uint64(999), cursors.cursor.LastProcessedBlock)
	assert.Equal(t, uint64(500), cursors.cursor.ChunkSize)
}

func TestLoadCursor_ResumesAndClampsPersistedChunk(t *testing.T) {
	cursors := &cursorRepoStub{cursor: &entities.WatcherCursor{
		WatcherID:          "attestation_watcher",
		LastProcessedBlock: 42,
		ChunkSize:          1_000_000,
	}}
	f := newWatcherFixture(t, &chainStub{}, cursors, watcherTestConfig())

	require.NoError(t, f.job.loadCursor(context.Background()))
	assert.Equal(t, uint64(42), f.job.cursor)
	assert.Equal(t, uint64(4000), f.job.chunkSize)
}

func TestScanOnce_RecordsEventAndConfirmsConnection(t *testing.T) {
	eventTime := time.Now().UTC().Truncate(time.Second)
	cursors := &cursorRepoStub{cursor: &entities.WatcherCursor{
		LastProcessedBlock: 0,
		ChunkSize:          500,
	}}
	chain := &chainStub{head: 10}
	f := newWatcherFixture(t, chain, cursors, watcherTestConfig())
	chain.logs = []types.Log{togetherLog(t, f.contract, 5, "0xabc1", 0, eventTime)}

	require.NoError(t, f.job.loadCursor(context.Background()))
	f.job.scanOnce(context.Background())

	require.Len(t, f.atts.seen, 1)
	assert.Equal(t, int64(1), f.strengths.counts[watcherAddrA+"/"+watcherAddrB])
	assert.Equal(t, int64(1), f.strengths.counts[watcherAddrB+"/"+watcherAddrA])

	require.Len(t, f.optimistic.confirmCalls, 1)
	call := f.optimistic.confirmCalls[0]
	assert.Equal(t, int64(5), call.a)
	assert.Equal(t, int64(7), call.b)
	assert.True(t, call.windowStart.Equal(eventTime.Add(-30*time.Minute)))
	assert.True(t, call.windowEnd.Equal(eventTime.Add(30*time.Minute)))

	assert.Equal(t, uint64(10), cursors.cursor.LastProcessedBlock)
}

func TestScanOnce_RescanIsIdempotent(t *testing.T) {
	eventTime := time.Now().UTC().Truncate(time.Second)
	cursors := &cursorRepoStub{cursor: &entities.WatcherCursor{ChunkSize: 500}}
	chain := &chainStub{head: 10}
	f := newWatcherFixture(t, chain, cursors, watcherTestConfig())
	chain.logs = []types.Log{togetherLog(t, f.contract, 5, "0xabc1", 0, eventTime)}

	require.NoError(t, f.job.loadCursor(context.Background()))
	f.job.scanOnce(context.Background())

	// Crash before the cursor advanced; the same range is scanned again.
	f.job.cursor = 0
	f.job.scanOnce(context.Background())

	require.Len(t, f.atts.seen, 1)
	assert.Equal(t, int64(1), f.strengths.counts[watcherAddrA+"/"+watcherAddrB])
	require.Len(t, f.optimistic.confirmCalls, 1)
}

func TestScanOnce_RepeatMeetingsAreDistinctEvents(t *testing.T) {
	eventTime := time.Now().UTC().Truncate(time.Second)
	cursors := &cursorRepoStub{cursor: &entities.WatcherCursor{ChunkSize: 500}}
	chain := &chainStub{head: 10}
	f := newWatcherFixture(t, chain, cursors, watcherTestConfig())
	chain.logs = []types.Log{
		togetherLog(t, f.contract, 5, "0xabc1", 0, eventTime),
		togetherLog(t, f.contract, 6, "0xabc2", 1, eventTime.Add(time.Minute)),
	}

	require.NoError(t, f.job.loadCursor(context.Background()))
	f.job.scanOnce(context.Background())

	require.Len(t, f.atts.seen, 2)
	assert.Equal(t, int64(2), f.strengths.counts[watcherAddrA+"/"+watcherAddrB])
}

func TestScanOnce_WalksHeadInChunks(t *testing.T) {
	cfg := watcherTestConfig()
	cfg.MinChunk = 2
	cfg.MaxChunk = 4
	cursors := &cursorRepoStub{cursor: &entities.WatcherCursor{ChunkSize: 2}}
	chain := &chainStub{head: 10}
	f := newWatcherFixture(t, chain, cursors, cfg)

	require.NoError(t, f.job.loadCursor(context.Background()))
	f.job.scanOnce(context.Background())

	// 1-2 (chunk 2), 3-6 (doubled to 4), 7-10 (clamped at 4).
	require.Len(t, chain.calls, 3)
	assert.Equal(t, struct{ from, to uint64 }{1, 2}, chain.calls[0])
	assert.Equal(t, struct{ from, to uint64 }{3, 6}, chain.calls[1])
	assert.Equal(t, struct{ from, to uint64 }{7, 10}, chain.calls[2])
	assert.Equal(t, uint64(10), cursors.cursor.LastProcessedBlock)
}

func TestScanOnce_FetchFailureShrinksChunkAndHoldsCursor(t *testing.T) {
	cursors := &cursorRepoStub{cursor: &entities.WatcherCursor{
		LastProcessedBlock: 0,
		ChunkSize:          500,
	}}
	// Enough failures to exhaust the retry policy.
	chain := &chainStub{head: 10, failFirstN: filterRetryMax + 1}
	f := newWatcherFixture(t, chain, cursors, watcherTestConfig())

	require.NoError(t, f.job.loadCursor(context.Background()))
	f.job.scanOnce(context.Background())

	assert.Equal(t, uint64(250), f.job.chunkSize)
	assert.Equal(t, uint64(0), cursors.cursor.LastProcessedBlock)
	assert.Empty(t, f.atts.seen)
}

func TestScanOnce_InsertFailureHoldsCursorUntilRecorded(t *testing.T) {
	eventTime := time.Now().UTC().Truncate(time.Second)
	cursors := &cursorRepoStub{cursor: &entities.WatcherCursor{ChunkSize: 500}}
	chain := &chainStub{head: 10}
	f := newWatcherFixture(t, chain, cursors, watcherTestConfig())
	chain.logs = []types.Log{togetherLog(t, f.contract, 5, "0xabc1", 0, eventTime)}
	f.atts.failNextInserts = 1

	require.NoError(t, f.job.loadCursor(context.Background()))
	f.job.scanOnce(context.Background())

	// The failed event keeps the cursor where it was.
	assert.Empty(t, f.atts.seen)
	assert.Equal(t, uint64(0), cursors.cursor.LastProcessedBlock)

	// Next tick rescans the same range and records the event.
	f.job.scanOnce(context.Background())

	require.Len(t, f.atts.seen, 1)
	assert.Equal(t, int64(1), f.strengths.counts[watcherAddrA+"/"+watcherAddrB])
	assert.Equal(t, uint64(10), cursors.cursor.LastProcessedBlock)
}

func TestScanOnce_UnknownIdentityStillRecordsAttestation(t *testing.T) {
	eventTime := time.Now().UTC().Truncate(time.Second)
	cursors := &cursorRepoStub{cursor: &entities.WatcherCursor{ChunkSize: 500}}
	chain := &chainStub{head: 10}
	f := newWatcherFixture(t, chain, cursors, watcherTestConfig())
	chain.logs = []types.Log{togetherLog(t, f.contract, 5, "0xabc1", 0, eventTime)}

	// Wipe the identity registry.
	f.job.users = &userRepoStub{byAddr: map[string]*entities.User{}}

	require.NoError(t, f.job.loadCursor(context.Background()))
	f.job.scanOnce(context.Background())

	require.Len(t, f.atts.seen, 1)
	assert.Empty(t, f.optimistic.confirmCalls)
}
