package stream

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ytcmd/internal/command"
	"ytcmd/internal/config"
	"ytcmd/internal/jobs"
	"ytcmd/internal/model"
	"ytcmd/internal/ytdlp"
)

const (
	writeWait      = 10 * time.Second
	outboxCapacity = 256
)

// Options configure a Handler.
type Options struct {
	// ExecutionAllowed gates spawning. Nil means always allowed.
	ExecutionAllowed func() bool
	// KillOnDisconnect terminates the tracked job when its client goes away.
	KillOnDisconnect  bool
	CommandOptions    command.Options
	DefaultOutputPath string
	// AllowedOrigins lists extra origins accepted besides same-origin requests.
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Handler upgrades HTTP requests to streaming sessions.
type Handler struct {
	opts     Options
	upgrader websocket.Upgrader
	log      *slog.Logger

	mu       sync.Mutex
	sessions map[*session]struct{}
}

func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		opts:     opts,
		log:      logger.With("component", "stream"),
		sessions: make(map[*session]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	s := newSession(h, conn)
	h.track(s, true)
	defer h.track(s, false)

	h.log.Info("client connected", "remote", r.RemoteAddr)
	s.run()
	h.log.Info("client disconnected", "remote", r.RemoteAddr)
}

// ActiveSessions returns the number of connected clients.
func (h *Handler) ActiveSessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close disconnects every client.
func (h *Handler) Close() {
	h.mu.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()
	for _, s := range sessions {
		_ = s.conn.Close()
	}
}

func (h *Handler) track(s *session, add bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if add {
		h.sessions[s] = struct{}{}
		return
	}
	delete(h.sessions, s)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.opts.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

func (h *Handler) executionAllowed() bool {
	if h.opts.ExecutionAllowed == nil {
		return true
	}
	return h.opts.ExecutionAllowed()
}

// session is one client connection. It tracks at most one job.
type session struct {
	h    *Handler
	conn *websocket.Conn
	log  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	outbox chan Message

	mu  sync.Mutex
	job *jobs.Job
}

func newSession(h *Handler, conn *websocket.Conn) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		h:      h,
		conn:   conn,
		log:    h.log.With("remote", conn.RemoteAddr().String()),
		ctx:    ctx,
		cancel: cancel,
		outbox: make(chan Message, outboxCapacity),
	}
}

func (s *session) run() {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeLoop()
	}()

	s.readLoop()

	s.cancel()
	if s.h.opts.KillOnDisconnect {
		if job := s.currentJob(); job != nil {
			_ = job.Cancel()
		}
	}
	_ = s.conn.Close()
	wg.Wait()
}

func (s *session) readLoop() {
	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("read failed", "err", err)
			}
			return
		}
		switch msg.Event {
		case EventStartDownload:
			s.handleStart(msg)
		case EventCancelDownload:
			if job := s.currentJob(); job != nil {
				if err := job.Cancel(); err != nil {
					s.log.Warn("cancel failed", "job", job.ID(), "err", err)
				}
			}
		default:
			s.sendLog("unknown event: " + msg.Event)
		}
	}
}

func (s *session) writeLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.outbox:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.log.Debug("write failed", "err", err)
				s.cancel()
				_ = s.conn.Close()
				return
			}
		}
	}
}

func (s *session) currentJob() *jobs.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job
}

func (s *session) handleStart(msg Message) {
	req, err := ParseStartRequest(msg.Data)
	if err != nil {
		s.reject(err.Error())
		return
	}
	if !s.h.executionAllowed() {
		s.reject(config.ErrExecutionDisabled.Error())
		return
	}
	spec, ok := s.specFor(req)
	if !ok {
		s.reject("unsupported or empty url: no command generated")
		return
	}

	// One job per connection: a new start replaces the running one. The old
	// job's complete event is delivered before anything from the new one.
	if prev := s.currentJob(); prev != nil && prev.Status() == model.StatusRunning {
		s.log.Info("replacing running job", "job", prev.ID())
		_ = prev.Cancel()
		select {
		case <-prev.Done():
		case <-s.ctx.Done():
			return
		}
	}

	job := jobs.New(spec)
	s.mu.Lock()
	s.job = job
	s.mu.Unlock()

	if started, err := NewMessage(EventDownloadStarted, Started{ID: job.ID(), Command: job.Command()}); err == nil {
		s.send(started)
	}
	jobCtx := context.Background()
	if s.h.opts.KillOnDisconnect {
		jobCtx = s.ctx
	}
	s.log.Info("job started", "job", job.ID())
	if err := job.Start(jobCtx, s.emit); err != nil {
		s.log.Warn("job failed to start", "job", job.ID(), "err", err)
	}
}

// specFor turns a start request into what gets spawned. Literal commands
// run through the shell; structured requests run as an argv.
func (s *session) specFor(req StartRequest) (ytdlp.Spec, bool) {
	if req.Request == nil {
		spec := ytdlp.ShellSpec(ytdlp.AugmentProgress(req.Command))
		spec.Display = req.Command
		return spec, true
	}
	r := *req.Request
	if r.OutputPath == "" {
		r.OutputPath = s.h.opts.DefaultOutputPath
	}
	inv, _, ok := command.GenerateFor(r, s.h.opts.CommandOptions)
	if !ok {
		return ytdlp.Spec{}, false
	}
	spec := ytdlp.ArgvSpec(ytdlp.AugmentArgv(inv.Argv()))
	spec.Display = inv.Display()
	return spec, true
}

func (s *session) emit(e jobs.Event) {
	var (
		msg Message
		err error
	)
	switch e.Kind {
	case jobs.EventLog:
		msg, err = NewMessage(EventDownloadLog, e.Log)
	case jobs.EventProgress:
		msg, err = NewMessage(EventDownloadProgress, e.Progress)
	case jobs.EventComplete:
		s.log.Info("job finished", "job", e.JobID, "success", e.Success)
		msg, err = NewMessage(EventDownloadComplete, e.Success)
	default:
		return
	}
	if err != nil {
		s.log.Warn("encode event", "err", err)
		return
	}
	s.send(msg)
}

// send queues msg for the writer. It blocks when the client is slow and
// gives up once the connection is gone.
func (s *session) send(msg Message) {
	select {
	case s.outbox <- msg:
	case <-s.ctx.Done():
	}
}

func (s *session) sendLog(text string) {
	if msg, err := NewMessage(EventDownloadLog, text); err == nil {
		s.send(msg)
	}
}

func (s *session) reject(reason string) {
	s.sendLog("error: " + reason)
	if msg, err := NewMessage(EventDownloadComplete, false); err == nil {
		s.send(msg)
	}
}
