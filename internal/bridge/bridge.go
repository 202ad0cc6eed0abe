package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/buzzle/internal/catalog"
	"github.com/p-n-ai/buzzle/internal/platform/observe"
	"github.com/p-n-ai/buzzle/internal/session"
)

const writeTimeout = 5 * time.Second

var errNotReady = errors.New("choose a character, a subject and a mode first")

// Config holds dependencies shared by every connection.
type Config struct {
	Catalog   *catalog.Catalog
	Generator session.Generator
	Reporter  session.Reporter
	Events    session.EventLogger
	Metrics   *observe.Metrics

	NarrationGap     time.Duration
	FeedbackFallback time.Duration
	FeedbackTimeout  time.Duration
	ToggleCooldown   time.Duration
	SuccessThreshold int

	// OriginPatterns lists extra hosts allowed to open the socket.
	OriginPatterns []string
}

// Handler serves GET /play?user=ID. Each connection gets its own controller.
type Handler struct {
	cfg Config
}

// New creates a play handler.
func New(cfg Config) *Handler {
	return &Handler{cfg: cfg}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "missing user"})
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.cfg.OriginPatterns,
	})
	if err != nil {
		slog.Warn("websocket accept failed", "user_id", userID, "error", err)
		return
	}
	defer conn.CloseNow()

	h.serve(r.Context(), conn, userID)
	conn.Close(websocket.StatusNormalClosure, "session closed")
}

func (h *Handler) serve(ctx context.Context, conn *websocket.Conn, userID string) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.cfg.Metrics.PlayerConnected(ctx, 1)
	defer h.cfg.Metrics.PlayerConnected(context.WithoutCancel(ctx), -1)

	send := func(ctx context.Context, msg ServerMessage) error {
		ctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		return wsjson.Write(ctx, conn, msg)
	}
	p := newPlayer(send)

	ctrl := session.New(session.Config{
		UserID:           userID,
		Generator:        h.cfg.Generator,
		Player:           p,
		Catalog:          h.cfg.Catalog,
		Reporter:         h.cfg.Reporter,
		Events:           h.cfg.Events,
		Metrics:          h.cfg.Metrics,
		NarrationGap:     h.cfg.NarrationGap,
		FeedbackFallback: h.cfg.FeedbackFallback,
		FeedbackTimeout:  h.cfg.FeedbackTimeout,
		ToggleCooldown:   h.cfg.ToggleCooldown,
		SuccessThreshold: h.cfg.SuccessThreshold,
		OnChange: func(s session.State) {
			if err := send(ctx, ServerMessage{Type: MsgState, State: View(s)}); err != nil {
				slog.Debug("state push failed", "user_id", userID, "error", err)
			}
		},
	})

	slog.Info("player connected", "user_id", userID)
	if err := send(ctx, ServerMessage{Type: MsgState, State: View(ctrl.State())}); err != nil {
		slog.Warn("initial state push failed", "user_id", userID, "error", err)
		return
	}

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				slog.Warn("player read failed", "user_id", userID, "error", err)
			}
			break
		}
		if err := h.dispatch(ctx, ctrl, p, msg); err != nil {
			if werr := send(ctx, ServerMessage{Type: MsgError, Message: err.Error()}); werr != nil {
				break
			}
		}
	}

	cancel()
	p.close()
	ctrl.Back()
	ctrl.Wait()
	slog.Info("player disconnected", "user_id", userID)
}

func (h *Handler) dispatch(ctx context.Context, ctrl *session.Controller, p *player, msg ClientMessage) error {
	switch msg.Type {
	case MsgSelectCharacter:
		return ctrl.SelectCharacter(msg.ID)
	case MsgSelectSubject:
		return ctrl.SelectSubject(msg.ID)
	case MsgSelectMode:
		return ctrl.SelectMode(msg.Mode)
	case MsgGenerate:
		if !ctrl.Generate(ctx) {
			return errNotReady
		}
	case MsgToggleListen:
		ctrl.ToggleListening()
	case MsgTranscript:
		return ctrl.SubmitTranscript(msg.Text)
	case MsgPlaybackEnded:
		p.finished(msg.ClipID, nil)
	case MsgPlaybackFailed:
		p.finished(msg.ClipID, errPlaybackFailed)
	case MsgBack:
		ctrl.Back()
	case MsgReset:
		ctrl.Reset()
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	return nil
}
