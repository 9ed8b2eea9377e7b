// Jeopardy board
//
// Each game ID owns one board. Pressing "Start!" asks the server to build a fresh
// board from the trivia API; clicking a cell walks that clue from hidden to
// question to answer. Every browser connected to the same game ID sees the same
// board, so a shared screen and the host's phone stay in sync.
//
// Features:
// - WebSockets per game ID: /path/:gameid and /path/:gameid/ws
// - All events for a game are applied in order by a single hub goroutine
// - Restart is refused while a board is loading
// - Build results carry a token; results from superseded builds are dropped
// - Boards are built off the hub goroutine, with a global cap on concurrent builds
// - Games auto-reaped after configurable idle timeout
// - Random 8-char game IDs via crypto/rand, with server-side collision check
// - JSON snapshot of the current board at /path/:gameid/board
// - In-browser QR button to share the current game, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/jeopardy/board"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"golang.org/x/sync/semaphore"
)

const (
	statusIdle    = "idle"
	statusLoading = "loading"
	statusReady   = "ready"

	maxMessageSize = 1024
	writeWait      = 10 * time.Second
)

// Messages coming from clients
type ClientMessage struct {
	Type     string `json:"type"`               // "start", "select"
	Category *int   `json:"category,omitempty"` // select
	Clue     *int   `json:"clue,omitempty"`     // select
}

// BoardMessage carries the whole board and the action button state.
type BoardMessage struct {
	Type   string      `json:"type"`   // "board"
	Status string      `json:"status"` // "idle", "loading" or "ready"
	Button string      `json:"button"` // action button label
	Busy   bool        `json:"busy"`   // action button disabled
	Grid   *board.Grid `json:"grid,omitempty"`
}

// RevealMessage updates a single cell after a selection.
type RevealMessage struct {
	Type     string            `json:"type"` // "reveal"
	ID       string            `json:"id"`
	Category int               `json:"category"`
	Clue     int               `json:"clue"`
	Text     string            `json:"text"`
	Showing  board.RevealState `json:"showing"`
	Terminal bool              `json:"terminal"`
}

// SimpleMessage is for generic notifications ("error", "busy").
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type boardBuilder interface {
	BuildBoard(ctx context.Context) (*board.Board, error)
}

type Client struct {
	conn *websocket.Conn
	send chan any
}

type selectRequest struct {
	client   *Client
	category int
	clue     int
}

type buildResult struct {
	token   string
	board   *board.Board
	err     error
	elapsed time.Duration
}

type Hub struct {
	id      string
	clients map[*Client]bool

	// Owned by run; never touched from other goroutines.
	board       *board.Board
	status      string
	token       string
	cancelBuild context.CancelFunc

	register  chan *Client
	unreg     chan *Client
	starts    chan *Client
	selects   chan selectRequest
	results   chan buildResult
	snapshots chan chan BoardMessage

	builder      boardBuilder
	limiter      *semaphore.Weighted
	buildTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.RWMutex
	createdAt  time.Time
	lastActive time.Time
	viewers    int
}

func newHub(parent context.Context, gameID string, builder boardBuilder, limiter *semaphore.Weighted, buildTimeout time.Duration) *Hub {
	ctx, cancel := context.WithCancel(parent)
	now := time.Now()

	return &Hub{
		id:           gameID,
		clients:      make(map[*Client]bool),
		status:       statusIdle,
		register:     make(chan *Client),
		unreg:        make(chan *Client),
		starts:       make(chan *Client),
		selects:      make(chan selectRequest),
		results:      make(chan buildResult),
		snapshots:    make(chan chan BoardMessage),
		builder:      builder,
		limiter:      limiter,
		buildTimeout: buildTimeout,
		ctx:          ctx,
		cancel:       cancel,
		createdAt:    now,
		lastActive:   now,
	}
}

// submit hands v to the hub loop, giving up once the hub has stopped.
func submit[T any](ctx context.Context, ch chan T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-ctx.Done():
		return false
	}
}

func (h *Hub) run(cfg *Config) {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case c := <-h.register:
			h.touch()
			h.clients[c] = true
			h.countViewers()
			h.sendTo(c, h.boardMessage())

		case c := <-h.unreg:
			h.touch()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.countViewers()
			}

		case c := <-h.starts:
			h.handleStart(cfg, c)

		case req := <-h.selects:
			h.handleSelect(cfg, req)

		case res := <-h.results:
			h.handleBuilt(cfg, res)

		case reply := <-h.snapshots:
			reply <- h.boardMessage()
		}
	}
}

func (h *Hub) touch() {
	h.mu.Lock()
	h.lastActive = time.Now()
	h.mu.Unlock()
}

// countViewers publishes the number of connected clients for the reaper.
func (h *Hub) countViewers() {
	h.mu.Lock()
	h.viewers = len(h.clients)
	h.mu.Unlock()
}

// idle reports whether nobody is connected and nothing has happened since cutoff.
func (h *Hub) idle(cutoff time.Time) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.viewers == 0 && h.lastActive.Before(cutoff)
}

func buttonLabel(status string) string {
	switch status {
	case statusLoading:
		return "Loading..."
	case statusReady:
		return "Restart!"
	default:
		return "Start!"
	}
}

func (h *Hub) boardMessage() BoardMessage {
	msg := BoardMessage{
		Type:   "board",
		Status: h.status,
		Button: buttonLabel(h.status),
		Busy:   h.status == statusLoading,
	}

	if h.status == statusReady {
		grid := board.Render(h.board)
		msg.Grid = &grid
	}

	return msg
}

// sendTo drops clients that are gone or too slow to keep up.
func (h *Hub) sendTo(c *Client, msg any) {
	if !h.clients[c] {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
		h.countViewers()
	}
}

func (h *Hub) broadcast(msg any) {
	for c := range h.clients {
		h.sendTo(c, msg)
	}
}

// handleStart discards the current board and begins building a new one,
// unless a build is already in flight.
func (h *Hub) handleStart(cfg *Config, c *Client) {
	h.touch()

	if h.status == statusLoading {
		h.sendTo(c, SimpleMessage{
			Type:    "busy",
			Message: "A board is already loading.",
		})
		return
	}

	if h.cancelBuild != nil {
		h.cancelBuild()
	}

	ctx, cancel := context.WithTimeout(h.ctx, h.buildTimeout)

	h.token = uuid.NewString()
	h.cancelBuild = cancel
	h.status = statusLoading
	h.board = nil

	logf(cfg, "GAMES: Building board %s for %s", h.token, h.id)

	h.broadcast(h.boardMessage())

	go h.build(ctx, h.token)
}

func (h *Hub) build(ctx context.Context, token string) {
	startTime := time.Now()
	res := buildResult{token: token}

	if err := h.limiter.Acquire(ctx, 1); err != nil {
		res.err = err
	} else {
		res.board, res.err = h.builder.BuildBoard(ctx)
		h.limiter.Release(1)
	}

	res.elapsed = time.Since(startTime)

	submit(h.ctx, h.results, res)
}

// handleBuilt installs a finished board. Results for any token other than
// the current one belong to a superseded build and are dropped.
func (h *Hub) handleBuilt(cfg *Config, res buildResult) {
	if res.token != h.token || h.status != statusLoading {
		logf(cfg, "GAMES: Discarding stale board %s for %s", res.token, h.id)
		return
	}

	h.touch()

	if h.cancelBuild != nil {
		h.cancelBuild()
		h.cancelBuild = nil
	}

	if res.err != nil {
		errorf(cfg, "GAMES: Board %s for %s failed after %s: %v",
			res.token,
			h.id,
			res.elapsed.Round(time.Millisecond),
			res.err,
		)

		h.status = statusIdle
		h.broadcast(SimpleMessage{
			Type:    "error",
			Message: "Unable to load a board right now. Please try again.",
		})
		h.broadcast(h.boardMessage())
		return
	}

	h.board = res.board
	h.status = statusReady

	logf(cfg, "GAMES: Built %dx%d board %s for %s in %s",
		h.board.Width(),
		h.board.Height(),
		res.token,
		h.id,
		res.elapsed.Round(time.Millisecond),
	)

	h.broadcast(h.boardMessage())
}

func (h *Hub) handleSelect(cfg *Config, req selectRequest) {
	h.touch()

	if h.status != statusReady {
		h.sendTo(req.client, SimpleMessage{
			Type:    "error",
			Message: "There is no board to play yet.",
		})
		return
	}

	rev, err := h.board.Select(req.category, req.clue)
	if err != nil {
		warnf(cfg, "GAMES: Ignoring selection in %s: %v", h.id, err)

		h.sendTo(req.client, SimpleMessage{
			Type:    "error",
			Message: "That cell is not on the board.",
		})
		return
	}

	// Answered clues stay as they are.
	if !rev.Changed {
		return
	}

	h.broadcast(RevealMessage{
		Type:     "reveal",
		ID:       board.CellID(rev.Category, rev.Clue),
		Category: rev.Category,
		Clue:     rev.Clue,
		Text:     rev.Text,
		Showing:  rev.Showing,
		Terminal: rev.Showing == board.Answer,
	})
}

// snapshot asks the hub loop for the current board.
func (h *Hub) snapshot(ctx context.Context) (BoardMessage, bool) {
	reply := make(chan BoardMessage, 1)

	select {
	case h.snapshots <- reply:
	case <-ctx.Done():
		return BoardMessage{}, false
	case <-h.ctx.Done():
		return BoardMessage{}, false
	}

	select {
	case msg := <-reply:
		return msg, true
	case <-ctx.Done():
		return BoardMessage{}, false
	}
}

// shutdown runs on the hub goroutine once the hub context is cancelled.
func (h *Hub) shutdown() {
	if h.cancelBuild != nil {
		h.cancelBuild()
		h.cancelBuild = nil
	}

	for c := range h.clients {
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
		delete(h.clients, c)
	}
	h.countViewers()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// GameManager holds a set of hubs keyed by game ID, so each $path/$gameid
// is its own isolated game.
type GameManager struct {
	cfg     *Config
	ctx     context.Context
	builder boardBuilder
	limiter *semaphore.Weighted

	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration
}

func newGameManager(ctx context.Context, cfg *Config, builder boardBuilder) *GameManager {
	gm := &GameManager{
		cfg:         cfg,
		ctx:         ctx,
		builder:     builder,
		limiter:     semaphore.NewWeighted(int64(max(cfg.maxBuilds, 1))),
		hubs:        make(map[string]*Hub),
		idleTimeout: cfg.sessionTimeout,
	}
	if gm.idleTimeout > 0 {
		go gm.reaperLoop()
	}
	return gm
}

func (gm *GameManager) getHub(gameID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub
	}

	hub := newHub(gm.ctx, gameID, gm.builder, gm.limiter, gm.cfg.buildTimeout)
	gm.hubs[gameID] = hub
	go hub.run(gm.cfg)
	return hub
}

// lookup returns the hub for an existing game without creating one.
func (gm *GameManager) lookup(gameID string) (*Hub, bool) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	hub, ok := gm.hubs[gameID]
	return hub, ok
}

func (gm *GameManager) count() int {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	return len(gm.hubs)
}

const gameIDLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with existing games.
func (gm *GameManager) newGameID() string {
	const limit = byte(255 - (256 % len(gameIDLetters)))

	for {
		out := make([]byte, 0, 8)
		buf := make([]byte, 16)

		for len(out) < 8 {
			if _, err := rand.Read(buf); err != nil {
				panic("crypto/rand failure: " + err.Error())
			}
			for _, b := range buf {
				if b <= limit && len(out) < 8 {
					out = append(out, gameIDLetters[int(b)%len(gameIDLetters)])
				}
			}
		}
		id := string(out)

		gm.mu.Lock()
		_, exists := gm.hubs[id]
		gm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

func validGameID(id string) bool {
	if id == "" || len(id) > 32 {
		return false
	}
	for _, r := range id {
		if !strings.ContainsRune(gameIDLetters, r) {
			return false
		}
	}
	return true
}

// reaperLoop periodically removes hubs that have been idle longer than idleTimeout.
func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(max(gm.idleTimeout/2, time.Second))
	defer ticker.Stop()

	for {
		select {
		case <-gm.ctx.Done():
			return
		case <-ticker.C:
			gm.reap(time.Now().Add(-gm.idleTimeout))
		}
	}
}

func (gm *GameManager) reap(cutoff time.Time) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	for id, hub := range gm.hubs {
		if hub.idle(cutoff) {
			delete(gm.hubs, id)
			hub.cancel()
			logf(gm.cfg, "GAMES: Reaped idle game %s", id)
		}
	}
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if !validGameID(gameID) {
			http.Error(w, "invalid game id", http.StatusBadRequest)
			return
		}

		hub := gm.getHub(gameID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			warnf(cfg, "SERVE: WebSocket upgrade for %s from %s failed: %v", gameID, realIP(r), err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 16),
		}

		if !submit(hub.ctx, hub.register, client) {
			_ = conn.Close()
			return
		}

		logf(cfg, "GAMES: %s connected to %s", realIP(r), gameID)

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		submit(h.ctx, h.unreg, c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "start":
			submit(h.ctx, h.starts, c)
		case "select":
			if msg.Category == nil || msg.Clue == nil {
				continue
			}
			submit(h.ctx, h.selects, selectRequest{
				client:   c,
				category: *msg.Category,
				clue:     *msg.Clue,
			})
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}

	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// serveBoardSnapshot returns the current board of a game as JSON.
func serveBoardSnapshot(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if !validGameID(gameID) {
			http.Error(w, "invalid game id", http.StatusBadRequest)
			return
		}

		hub, ok := gm.lookup(gameID)
		if !ok {
			http.NotFound(w, r)
			return
		}

		msg, ok := hub.snapshot(r.Context())
		if !ok {
			http.Error(w, "game unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		_ = json.NewEncoder(w).Encode(msg)
	}
}

// QR handler: generates a PNG QR code for the current game URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	gameID := ps.ByName("gameid")
	if !validGameID(gameID) {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:gameid/qr; strip trailing "/qr" to get the game URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// redirectNewGame handles GET /path by generating a new random game ID
// (with server-side collision detection) and redirecting to /path/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()
		logf(cfg, "GAMES: Created game %s/%s", path, gameID)
		http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// registerJeopardyGame sets up routes so that:
//   - $path                  → redirects to new random game (8-char ID)
//   - $path/:gameid          → HTML client
//   - $path/:gameid/ws       → WebSocket for that game
//   - $path/:gameid/board    → JSON snapshot of that game's board
//   - $path/:gameid/qr       → PNG QR code for that game URL
func registerJeopardyGame(cfg *Config, path string, mux *httprouter.Router, gm *GameManager, errs chan<- error) {
	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, gm))

	mux.GET(cfg.prefix+path+"/:gameid", serveGamePage(cfg, errs))

	mux.GET(cfg.prefix+"/assets/jeopardy/*filepath", serveAssets(cfg, errs))

	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWSForManager(cfg, gm))

	mux.GET(cfg.prefix+path+"/:gameid/board", serveBoardSnapshot(cfg, gm))

	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler)
}
