package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Seednode/jeopardy/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"
)

const waitFor = time.Second

type fakeBuilder struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (f *fakeBuilder) BuildBoard(ctx context.Context) (*board.Board, error) {
	f.calls.Add(1)

	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if f.err != nil {
		return nil, f.err
	}
	return testBoard(6, 5), nil
}

func testBoard(categories, clues int) *board.Board {
	b := &board.Board{}
	for i := 0; i < categories; i++ {
		c := board.Category{Title: fmt.Sprintf("category %d", i)}
		for j := 0; j < clues; j++ {
			c.Clues = append(c.Clues, board.Clue{
				Question: fmt.Sprintf("question %d-%d", i, j),
				Answer:   fmt.Sprintf("answer %d-%d", i, j),
			})
		}
		b.Categories = append(b.Categories, c)
	}
	return b
}

func newTestConfig() *Config {
	return &Config{
		apiRetries:   1,
		apiTimeout:   time.Second,
		apiURL:       "http://localhost:1",
		batchSize:    100,
		buildTimeout: 5 * time.Second,
		categories:   6,
		maxBuilds:    2,
		maxOffset:    500,
		port:         8080,
		questions:    5,
	}
}

func startHub(t *testing.T, builder boardBuilder) *Hub {
	t.Helper()

	h := newHub(context.Background(), "TestGame", builder, semaphore.NewWeighted(2), 5*time.Second)
	go h.run(newTestConfig())
	t.Cleanup(h.cancel)

	return h
}

func connect(t *testing.T, h *Hub) *Client {
	t.Helper()

	c := &Client{send: make(chan any, 16)}
	require.True(t, submit(h.ctx, h.register, c))

	return c
}

func recv[T any](t *testing.T, c *Client) T {
	t.Helper()

	select {
	case msg, ok := <-c.send:
		require.True(t, ok, "client channel closed unexpectedly")
		typed, ok := msg.(T)
		require.True(t, ok, "unexpected message %T: %+v", msg, msg)
		return typed
	case <-time.After(waitFor):
		var zero T
		t.Fatalf("timed out waiting for %T", zero)
		return zero
	}
}

func recvNothing(t *testing.T, c *Client) {
	t.Helper()

	select {
	case msg := <-c.send:
		t.Fatalf("expected no message, got %T: %+v", msg, msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func selectCell(t *testing.T, h *Hub, c *Client, category, clue int) {
	t.Helper()

	require.True(t, submit(h.ctx, h.selects, selectRequest{client: c, category: category, clue: clue}))
}

// readyHub returns a hub with a built board and one connected client whose
// queue has been drained.
func readyHub(t *testing.T) (*Hub, *Client) {
	t.Helper()

	h := startHub(t, &fakeBuilder{})
	c := connect(t, h)
	recv[BoardMessage](t, c)

	require.True(t, submit(h.ctx, h.starts, c))
	recv[BoardMessage](t, c)

	ready := recv[BoardMessage](t, c)
	require.Equal(t, statusReady, ready.Status)

	return h, c
}

func TestHubStartBuildsBoard(t *testing.T) {
	builder := &fakeBuilder{release: make(chan struct{})}
	h := startHub(t, builder)
	c := connect(t, h)

	idle := recv[BoardMessage](t, c)
	assert.Equal(t, statusIdle, idle.Status)
	assert.Equal(t, "Start!", idle.Button)
	assert.False(t, idle.Busy)
	assert.Nil(t, idle.Grid)

	require.True(t, submit(h.ctx, h.starts, c))

	loading := recv[BoardMessage](t, c)
	assert.Equal(t, statusLoading, loading.Status)
	assert.Equal(t, "Loading...", loading.Button)
	assert.True(t, loading.Busy)

	close(builder.release)

	ready := recv[BoardMessage](t, c)
	assert.Equal(t, statusReady, ready.Status)
	assert.Equal(t, "Restart!", ready.Button)
	assert.False(t, ready.Busy)
	require.NotNil(t, ready.Grid)
	assert.Len(t, ready.Grid.Headers, 6)
	assert.Len(t, ready.Grid.Rows, 5)
	assert.Equal(t, "Category 0", ready.Grid.Headers[0].Title)
	assert.Equal(t, board.Placeholder, ready.Grid.Rows[0][0].Text)
}

func TestHubSelectRevealsInOrder(t *testing.T) {
	h, c := readyHub(t)

	selectCell(t, h, c, 2, 3)
	first := recv[RevealMessage](t, c)
	assert.Equal(t, "2-3", first.ID)
	assert.Equal(t, "question 2-3", first.Text)
	assert.Equal(t, board.Question, first.Showing)
	assert.False(t, first.Terminal)

	selectCell(t, h, c, 2, 3)
	second := recv[RevealMessage](t, c)
	assert.Equal(t, "answer 2-3", second.Text)
	assert.Equal(t, board.Answer, second.Showing)
	assert.True(t, second.Terminal)

	selectCell(t, h, c, 2, 3)
	recvNothing(t, c)

	snap, ok := h.snapshot(context.Background())
	require.True(t, ok)
	cell := snap.Grid.Rows[3][2]
	assert.Equal(t, "answer 2-3", cell.Text)
	assert.True(t, cell.Terminal)
}

func TestHubRestartRefusedWhileLoading(t *testing.T) {
	builder := &fakeBuilder{release: make(chan struct{})}
	h := startHub(t, builder)
	c := connect(t, h)
	recv[BoardMessage](t, c)

	require.True(t, submit(h.ctx, h.starts, c))
	recv[BoardMessage](t, c)

	require.True(t, submit(h.ctx, h.starts, c))
	busy := recv[SimpleMessage](t, c)
	assert.Equal(t, "busy", busy.Type)

	close(builder.release)
	ready := recv[BoardMessage](t, c)
	assert.Equal(t, statusReady, ready.Status)
	assert.EqualValues(t, 1, builder.calls.Load())
}

func TestHubRestartReplacesBoard(t *testing.T) {
	h, c := readyHub(t)

	selectCell(t, h, c, 0, 0)
	recv[RevealMessage](t, c)

	require.True(t, submit(h.ctx, h.starts, c))
	assert.Equal(t, statusLoading, recv[BoardMessage](t, c).Status)

	fresh := recv[BoardMessage](t, c)
	require.Equal(t, statusReady, fresh.Status)
	assert.Equal(t, board.Placeholder, fresh.Grid.Rows[0][0].Text)
}

func TestHubDropsStaleBuild(t *testing.T) {
	builder := &fakeBuilder{release: make(chan struct{})}
	h := startHub(t, builder)
	c := connect(t, h)
	recv[BoardMessage](t, c)

	// Nothing is loading, so any result is stale.
	require.True(t, submit(h.ctx, h.results, buildResult{token: "old", board: testBoard(1, 1)}))
	recvNothing(t, c)

	require.True(t, submit(h.ctx, h.starts, c))
	recv[BoardMessage](t, c)

	require.True(t, submit(h.ctx, h.results, buildResult{token: "old", board: testBoard(1, 1)}))
	recvNothing(t, c)

	snap, ok := h.snapshot(context.Background())
	require.True(t, ok)
	assert.Equal(t, statusLoading, snap.Status)

	close(builder.release)

	ready := recv[BoardMessage](t, c)
	require.Equal(t, statusReady, ready.Status)
	assert.Len(t, ready.Grid.Headers, 6)
}

func TestHubBuildFailure(t *testing.T) {
	builder := &fakeBuilder{err: errors.New("trivia source unavailable")}
	h := startHub(t, builder)
	c := connect(t, h)
	recv[BoardMessage](t, c)

	require.True(t, submit(h.ctx, h.starts, c))
	recv[BoardMessage](t, c)

	failure := recv[SimpleMessage](t, c)
	assert.Equal(t, "error", failure.Type)

	idle := recv[BoardMessage](t, c)
	assert.Equal(t, statusIdle, idle.Status)
	assert.Equal(t, "Start!", idle.Button)
	assert.False(t, idle.Busy)

	// Retry is allowed after a failure.
	require.True(t, submit(h.ctx, h.starts, c))
	assert.Equal(t, statusLoading, recv[BoardMessage](t, c).Status)
	assert.Eventually(t, func() bool { return builder.calls.Load() == 2 }, waitFor, 10*time.Millisecond)
}

func TestHubInvalidSelection(t *testing.T) {
	h, c := readyHub(t)
	other := connect(t, h)
	recv[BoardMessage](t, other)

	selectCell(t, h, c, 9, 9)

	msg := recv[SimpleMessage](t, c)
	assert.Equal(t, "error", msg.Type)
	recvNothing(t, other)

	snap, ok := h.snapshot(context.Background())
	require.True(t, ok)
	for _, row := range snap.Grid.Rows {
		for _, cell := range row {
			assert.Equal(t, board.Placeholder, cell.Text)
		}
	}
}

func TestHubSelectWithoutBoard(t *testing.T) {
	h := startHub(t, &fakeBuilder{})
	c := connect(t, h)
	recv[BoardMessage](t, c)

	selectCell(t, h, c, 0, 0)

	assert.Equal(t, "error", recv[SimpleMessage](t, c).Type)
}

func TestHubBroadcastsReveals(t *testing.T) {
	h, c := readyHub(t)
	viewer := connect(t, h)

	joined := recv[BoardMessage](t, viewer)
	assert.Equal(t, statusReady, joined.Status)

	selectCell(t, h, c, 1, 1)

	assert.Equal(t, "question 1-1", recv[RevealMessage](t, c).Text)
	assert.Equal(t, "question 1-1", recv[RevealMessage](t, viewer).Text)
}

func TestHubShutdownClosesClients(t *testing.T) {
	h := startHub(t, &fakeBuilder{})
	c := connect(t, h)
	recv[BoardMessage](t, c)

	h.cancel()

	select {
	case _, ok := <-c.send:
		assert.False(t, ok)
	case <-time.After(waitFor):
		t.Fatal("client channel was not closed")
	}

	assert.False(t, submit(h.ctx, h.starts, c))

	_, ok := h.snapshot(context.Background())
	assert.False(t, ok)
}

func TestGameManager(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := newTestConfig()
	gm := newGameManager(ctx, cfg, &fakeBuilder{})

	id := gm.newGameID()
	assert.Len(t, id, 8)
	assert.True(t, validGameID(id))

	h1 := gm.getHub(id)
	h2 := gm.getHub(id)
	assert.Same(t, h1, h2)
	assert.Equal(t, 1, gm.count())

	gm.reap(time.Now().Add(time.Minute))
	assert.Equal(t, 0, gm.count())

	select {
	case <-h1.ctx.Done():
	case <-time.After(waitFor):
		t.Fatal("reaped hub was not stopped")
	}
}

func TestGameManagerKeepsWatchedGames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gm := newGameManager(ctx, newTestConfig(), &fakeBuilder{})

	h := gm.getHub(gm.newGameID())
	c := connect(t, h)
	recv[BoardMessage](t, c)

	gm.reap(time.Now().Add(time.Minute))
	assert.Equal(t, 1, gm.count())
	assert.NoError(t, h.ctx.Err())

	require.True(t, submit(h.ctx, h.unreg, c))

	assert.Eventually(t, func() bool {
		gm.reap(time.Now().Add(time.Minute))
		return gm.count() == 0
	}, waitFor, 10*time.Millisecond)
}

func TestValidGameID(t *testing.T) {
	assert.True(t, validGameID("Ab3dE9xZ"))
	assert.False(t, validGameID(""))
	assert.False(t, validGameID("../etc"))
	assert.False(t, validGameID("has space"))
	assert.False(t, validGameID("abcdefghijklmnopqrstuvwxyz0123456789"))
}
