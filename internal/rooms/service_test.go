package rooms

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/monkey-rooms-backend/internal/engine"
	"github.com/DoyleJ11/monkey-rooms-backend/internal/store"
)

// --- Store mock ---

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, key string) (store.Document, error) {
	args := m.Called(ctx, key)
	doc, _ := args.Get(0).(store.Document)
	return doc, args.Error(1)
}

func (m *MockStore) Put(ctx context.Context, key string, doc store.Document, expiresAt time.Time) error {
	return m.Called(ctx, key, doc, expiresAt).Error(0)
}

func (m *MockStore) PutIfAbsent(ctx context.Context, key string, doc store.Document, expiresAt time.Time) error {
	return m.Called(ctx, key, doc, expiresAt).Error(0)
}

func (m *MockStore) UpdatePartial(ctx context.Context, key string, patch store.Patch, conds ...store.Condition) error {
	return m.Called(ctx, key, patch, conds).Error(0)
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// --- helpers ---

var testNow = time.Unix(1_700_000_000, 0)

func fixedCodes(codes ...string) func() (string, error) {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
}

func newTestService(t *testing.T, opts ...Option) (*Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemoryWithClock(func() time.Time { return testNow })
	base := []Option{WithClock(func() time.Time { return testNow }), WithCodeGenerator(fixedCodes("ABCD"))}
	return NewService(mem, zap.NewNop(), append(base, opts...)...), mem
}

func intPtr(v int) *int { return &v }

// --- tests ---

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, 4)
		for _, c := range code {
			assert.True(t, c >= 'A' && c <= 'Z', "unexpected character %q in %s", c, code)
		}
	}
}

func TestCreateRoom_InitialState(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	created, err := svc.CreateRoom(ctx, "Alice", "jungle")
	require.NoError(t, err)
	assert.Equal(t, "ABCD", created.RoomCode)
	assert.Equal(t, engine.SlotOne, created.PlayerID)

	room, err := svc.GetRoom(ctx, "ABCD")
	require.NoError(t, err)
	require.NotNil(t, room.Player1)
	assert.Equal(t, "Alice", room.Player1.Name)
	assert.Nil(t, room.Player2)
	assert.Nil(t, room.MonkeyPlayerID)
	assert.Equal(t, engine.StateWaiting, room.GameState)
	assert.Equal(t, "jungle", room.MapType)
	assert.Equal(t, testNow.Unix()+3600, room.ExpiresAt)
}

func TestCreateRoom_Defaults(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.CreateRoom(ctx, "", "")
	require.NoError(t, err)

	room, err := svc.GetRoom(ctx, "ABCD")
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultHostName, room.Player1.Name)
	assert.Equal(t, engine.DefaultMapType, room.MapType)
}

func TestCreateRoom_CollisionDrawsNewCode(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, WithCodeGenerator(fixedCodes("ABCD", "ABCD", "WXYZ")))

	_, err := svc.CreateRoom(ctx, "Alice", "jungle")
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, "ABCD", "Bob")
	require.NoError(t, err)

	second, err := svc.CreateRoom(ctx, "Carol", "desert")
	require.NoError(t, err)
	assert.Equal(t, "WXYZ", second.RoomCode)

	live, err := svc.GetRoom(ctx, "ABCD")
	require.NoError(t, err)
	assert.Equal(t, "Alice", live.Player1.Name, "live room must not be overwritten")
	require.NotNil(t, live.Player2)
}

func TestCreateRoom_GivesUpAfterRepeatedCollisions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.CreateRoom(ctx, "Alice", "jungle")
	require.NoError(t, err)

	_, err = svc.CreateRoom(ctx, "Bob", "jungle")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestJoinRoom(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.CreateRoom(ctx, "Alice", "jungle")
	require.NoError(t, err)

	joined, err := svc.JoinRoom(ctx, "abcd", "Bob")
	require.NoError(t, err)
	assert.Equal(t, engine.SlotTwo, joined.PlayerID)
	assert.Equal(t, "jungle", joined.MapType)
	assert.Equal(t, "ABCD", joined.RoomCode)

	room, err := svc.GetRoom(ctx, "ABCD")
	require.NoError(t, err)
	require.NotNil(t, room.Player2)
	assert.Equal(t, "Bob", room.Player2.Name)
	assert.True(t, room.Player2.Connected)
}

func TestJoinRoom_FullRoomNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.CreateRoom(ctx, "Alice", "jungle")
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, "ABCD", "Bob")
	require.NoError(t, err)

	_, err = svc.JoinRoom(ctx, "ABCD", "Eve")
	assert.ErrorIs(t, err, ErrConflict)

	room, err := svc.GetRoom(ctx, "ABCD")
	require.NoError(t, err)
	assert.Equal(t, "Bob", room.Player2.Name)
}

func TestJoinRoom_Missing(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.JoinRoom(context.Background(), "NOPE", "Bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJoinRoom_ConcurrentJoinsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.CreateRoom(ctx, "Alice", "jungle")
	require.NoError(t, err)

	const joiners = 10
	var wg sync.WaitGroup
	errs := make(chan error, joiners)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.JoinRoom(ctx, "ABCD", "Guest")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrConflict)
	}
	assert.Equal(t, 1, wins)
}

func TestJoinRoom_LostRaceIsConflict(t *testing.T) {
	ctx := context.Background()
	st := &MockStore{}
	svc := NewService(st, zap.NewNop())

	doc, err := store.Encode(engine.NewRoom("ABCD", "jungle", "Alice", testNow, engine.RoomTTL))
	require.NoError(t, err)
	st.On("Get", mock.Anything, "ABCD").Return(doc, nil)
	st.On("UpdatePartial", mock.Anything, "ABCD", mock.Anything, []store.Condition{store.IfNull("player2")}).
		Return(store.ErrConditionFailed)

	_, err = svc.JoinRoom(ctx, "ABCD", "Bob")
	assert.ErrorIs(t, err, ErrConflict)
	st.AssertExpectations(t)
}

func TestStartAndRestart_PickOccupiedSlots(t *testing.T) {
	ctx := context.Background()

	for draw, want := range []engine.Slot{engine.SlotOne, engine.SlotTwo} {
		svc, _ := newTestService(t, WithPicker(func(n int) int {
			require.Equal(t, 2, n)
			return draw
		}))
		_, err := svc.CreateRoom(ctx, "Alice", "jungle")
		require.NoError(t, err)
		_, err = svc.JoinRoom(ctx, "ABCD", "Bob")
		require.NoError(t, err)

		monkey, err := svc.StartGame(ctx, "ABCD")
		require.NoError(t, err)
		assert.Equal(t, want, monkey)

		room, err := svc.GetRoom(ctx, "ABCD")
		require.NoError(t, err)
		assert.Equal(t, engine.StatePlaying, room.GameState)
		require.NotNil(t, room.MonkeyPlayerID)
		assert.Equal(t, want, *room.MonkeyPlayerID)

		monkey, err = svc.RestartGame(ctx, "ABCD")
		require.NoError(t, err)
		assert.Equal(t, want, monkey)
	}
}

func TestStartGame_RandomPickAlwaysOccupied(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.CreateRoom(ctx, "Alice", "jungle")
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		monkey, err := svc.StartGame(ctx, "ABCD")
		require.NoError(t, err)
		assert.Equal(t, engine.SlotOne, monkey, "only the host is seated")
	}

	_, err = svc.JoinRoom(ctx, "ABCD", "Bob")
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		monkey, err := svc.RestartGame(ctx, "ABCD")
		require.NoError(t, err)
		assert.Contains(t, []engine.Slot{engine.SlotOne, engine.SlotTwo}, monkey)
	}
}

func TestRestartGame_ResetsFields(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, WithPicker(func(int) int { return 0 }))
	_, err := svc.CreateRoom(ctx, "Alice", "jungle")
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, "ABCD", "Bob")
	require.NoError(t, err)
	_, err = svc.StartGame(ctx, "ABCD")
	require.NoError(t, err)

	_, err = svc.UpdateRoom(ctx, "ABCD", engine.SlotOne, engine.Update{
		Score: intPtr(42),
		Larry: &engine.Larry{Visible: true, Frozen: true, X: decimal.NewFromInt(5), Y: decimal.NewFromInt(6)},
	})
	require.NoError(t, err)

	_, err = svc.RestartGame(ctx, "ABCD")
	require.NoError(t, err)

	room, err := svc.GetRoom(ctx, "ABCD")
	require.NoError(t, err)
	assert.Equal(t, 0, room.Score)
	assert.False(t, room.Larry.Visible)
	assert.False(t, room.Larry.Frozen)
	assert.True(t, room.Larry.X.IsZero())
	assert.True(t, room.Monkey.X.Equal(decimal.NewFromInt(200)))
	assert.True(t, room.Monkey.Y.Equal(decimal.NewFromInt(400)))
	assert.Equal(t, engine.StatePlaying, room.GameState)
}

func TestStartGame_Missing(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.StartGame(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.RestartGame(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateRoom_NonHostScoreIsNeverPersisted(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.CreateRoom(ctx, "Alice", "jungle")
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, "ABCD", "Bob")
	require.NoError(t, err)

	_, err = svc.UpdateRoom(ctx, "ABCD", engine.SlotTwo, engine.Update{Score: intPtr(99)})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	pos := &engine.Position{X: decimal.NewFromInt(1), Y: decimal.NewFromInt(2)}
	room, err := svc.UpdateRoom(ctx, "ABCD", engine.SlotTwo, engine.Update{MyPosition: pos, Score: intPtr(99)})
	require.NoError(t, err)
	assert.Equal(t, 0, room.Score)
	assert.True(t, room.Player2.X.Equal(decimal.NewFromInt(1)))

	stored, err := svc.GetRoom(ctx, "ABCD")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Score)
}

func TestUpdateRoom_GuestPositionSurvivesInvalidHostFields(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.CreateRoom(ctx, "Alice", "jungle")
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, "ABCD", "Bob")
	require.NoError(t, err)

	bogus := engine.GameState("paused")
	pos := &engine.Position{X: decimal.NewFromInt(3), Y: decimal.NewFromInt(4)}
	room, err := svc.UpdateRoom(ctx, "ABCD", engine.SlotTwo, engine.Update{MyPosition: pos, Score: intPtr(-1), GameState: &bogus})
	require.NoError(t, err)
	assert.True(t, room.Player2.X.Equal(decimal.NewFromInt(3)))
	assert.True(t, room.Player2.Y.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, 0, room.Score)

	// The host is still held to the same checks.
	_, err = svc.UpdateRoom(ctx, "ABCD", engine.SlotOne, engine.Update{MyPosition: pos, Score: intPtr(-1)})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestUpdateRoom_PositionRoundTripIsExact(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.CreateRoom(ctx, "Alice", "jungle")
	require.NoError(t, err)

	pos := &engine.Position{X: decimal.NewFromFloat(12.5), Y: decimal.NewFromInt(7)}
	_, err = svc.UpdateRoom(ctx, "ABCD", engine.SlotOne, engine.Update{MyPosition: pos})
	require.NoError(t, err)

	room, err := svc.GetRoom(ctx, "ABCD")
	require.NoError(t, err)
	assert.Equal(t, "12.5", room.Player1.X.String())
	assert.Equal(t, "7", room.Player1.Y.String())
}

func TestUpdateRoom_MonkeyOnlyFromController(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, WithPicker(func(int) int { return 1 }))
	_, err := svc.CreateRoom(ctx, "Alice", "jungle")
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, "ABCD", "Bob")
	require.NoError(t, err)
	monkey, err := svc.StartGame(ctx, "ABCD")
	require.NoError(t, err)
	require.Equal(t, engine.SlotTwo, monkey)

	move := &engine.Position{X: decimal.NewFromInt(50), Y: decimal.NewFromInt(60)}
	_, err = svc.UpdateRoom(ctx, "ABCD", engine.SlotOne, engine.Update{Monkey: move})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	room, err := svc.UpdateRoom(ctx, "ABCD", engine.SlotTwo, engine.Update{Monkey: move})
	require.NoError(t, err)
	assert.True(t, room.Monkey.X.Equal(decimal.NewFromInt(50)))
}

func TestUpdateRoom_Missing(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.UpdateRoom(context.Background(), "NOPE", engine.SlotOne, engine.Update{Score: intPtr(1)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpiredRoomIsNotFoundEverywhere(t *testing.T) {
	ctx := context.Background()
	now := testNow
	clock := func() time.Time { return now }
	mem := store.NewMemoryWithClock(clock)
	svc := NewService(mem, zap.NewNop(), WithClock(clock), WithCodeGenerator(fixedCodes("ABCD")))

	_, err := svc.CreateRoom(ctx, "Alice", "jungle")
	require.NoError(t, err)

	now = now.Add(engine.RoomTTL)

	_, err = svc.GetRoom(ctx, "ABCD")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.JoinRoom(ctx, "ABCD", "Bob")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.StartGame(ctx, "ABCD")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.UpdateRoom(ctx, "ABCD", engine.SlotOne, engine.Update{Score: intPtr(1)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRoom_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.CreateRoom(ctx, "Alice", "jungle")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRoom(ctx, "ABCD"))
	require.NoError(t, svc.DeleteRoom(ctx, "ABCD"))
	require.NoError(t, svc.DeleteRoom(ctx, "NEVER"))

	_, err = svc.GetRoom(ctx, "ABCD")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreFailuresSurfaceAsUnavailable(t *testing.T) {
	ctx := context.Background()
	st := &MockStore{}
	svc := NewService(st, zap.NewNop())
	boom := errors.New("connection reset")

	st.On("Get", mock.Anything, "ABCD").Return(nil, boom)
	st.On("Delete", mock.Anything, "ABCD").Return(boom)

	_, err := svc.GetRoom(ctx, "ABCD")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, boom)

	assert.ErrorIs(t, svc.DeleteRoom(ctx, "ABCD"), ErrStoreUnavailable)
	st.AssertExpectations(t)
}

func TestContextErrorsPassThrough(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc, _ := newTestService(t)

	_, err := svc.GetRoom(ctx, "ABCD")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)
}

func TestScenario_CreateJoinStartScore(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	created, err := svc.CreateRoom(ctx, "Alice", "jungle")
	require.NoError(t, err)
	require.Equal(t, "ABCD", created.RoomCode)

	joined, err := svc.JoinRoom(ctx, "ABCD", "Bob")
	require.NoError(t, err)
	assert.Equal(t, engine.SlotTwo, joined.PlayerID)
	assert.Equal(t, "jungle", joined.MapType)

	monkey, err := svc.StartGame(ctx, "ABCD")
	require.NoError(t, err)
	assert.Contains(t, []engine.Slot{engine.SlotOne, engine.SlotTwo}, monkey)

	_, err = svc.UpdateRoom(ctx, "ABCD", engine.SlotTwo, engine.Update{Score: intPtr(5)})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	room, err := svc.UpdateRoom(ctx, "ABCD", engine.SlotOne, engine.Update{Score: intPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, 5, room.Score)
}
