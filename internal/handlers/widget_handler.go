// File: internal/handlers/widget_handler.go
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/iyunix/go-livechat/internal/identity"
	"github.com/iyunix/go-livechat/internal/ratelimit"
	"github.com/iyunix/go-livechat/internal/realtime"
	"github.com/iyunix/go-livechat/internal/services"
	chatservice "github.com/iyunix/go-livechat/internal/services/chat"
)

const codeRateLimited = "RATE_LIMITED"

// WidgetHandler serves the visitor side of the chat. Visitors are anonymous;
// their identity lives in the visitor_id cookie.
type WidgetHandler struct {
	chat     *services.ChatService
	limiter  *ratelimit.SendLimiter
	cookies  identity.CookieOptions
	upgrader *websocket.Upgrader
	logger   Logger
}

func NewWidgetHandler(
	chat *services.ChatService,
	limiter *ratelimit.SendLimiter,
	cookies identity.CookieOptions,
	upgrader *websocket.Upgrader,
	logger Logger,
) *WidgetHandler {
	return &WidgetHandler{
		chat:     chat,
		limiter:  limiter,
		cookies:  cookies,
		upgrader: upgrader,
		logger:   logger,
	}
}

// fixedIdentity pins a session to the id resolved at connect time.
type fixedIdentity string

func (f fixedIdentity) GetOrCreateVisitorID() string { return string(f) }

func (h *WidgetHandler) visitorID(header http.Header, r *http.Request) string {
	store := identity.NewCookieStore(header, r, h.cookies)
	return identity.NewProvider(store, h.logger).GetOrCreateVisitorID()
}

func (h *WidgetHandler) allowSend(visitorID string) bool {
	return h.limiter == nil || h.limiter.Allow(visitorID)
}

// OpenConversation resolves (or starts) the visitor's conversation.
func (h *WidgetHandler) OpenConversation(w http.ResponseWriter, r *http.Request) {
	visitorID := h.visitorID(w.Header(), r)

	conv, history, err := h.chat.OpenConversation(r.Context(), visitorID)
	if err != nil {
		h.logger.Warn("widget open failed", "error", err)
		writeChatError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversation": conv,
		"messages":     history,
	})
}

// GetMessages lists the visitor's active conversation.
func (h *WidgetHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	visitorID := h.visitorID(w.Header(), r)

	conv, history, err := h.chat.VisitorMessages(r.Context(), visitorID)
	if err != nil {
		writeChatError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversation": conv,
		"messages":     history,
	})
}

// SendMessage appends a visitor message. Failed sends echo the content back
// as "restore".
func (h *WidgetHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	visitorID := h.visitorID(w.Header(), r)

	content, err := decodeContent(w, r)
	if err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if !h.allowSend(visitorID) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error":   "You are sending messages too quickly.",
			"code":    codeRateLimited,
			"restore": content,
		})
		return
	}

	msg, err := h.chat.SendVisitorMessage(r.Context(), visitorID, content)
	if err != nil {
		h.logger.Warn("widget send failed", "error", err)
		writeChatError(w, err, content)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// ServeWS upgrades to a WebSocket driving one VisitorSession.
func (h *WidgetHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	// Set-Cookie has to ride on the upgrade response.
	header := http.Header{}
	visitorID := h.visitorID(header, r)

	ws, err := h.upgrader.Upgrade(w, r, header)
	if err != nil {
		h.logger.Warn("widget websocket upgrade failed", "error", err)
		return
	}
	conn := realtime.NewConnection(visitorID, ws)
	conn.Start()
	defer conn.Close(websocket.CloseNormalClosure, "")

	session := h.chat.NewVisitorSession(fixedIdentity(visitorID), func(ev chatservice.Event) {
		if err := conn.SendJSON(realtime.FrameFromEvent(ev)); err != nil {
			h.logger.Debug("widget frame dropped", "connection_id", conn.ID, "error", err)
		}
	})
	defer session.Close()

	h.logger.Info("widget connected", "connection_id", conn.ID)
	for {
		var frame realtime.InboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if errors.Is(err, realtime.ErrBadFrame) {
				_ = conn.SendJSON(realtime.ErrorFrame(chatservice.NewValidationError("read_frame", "malformed frame"), ""))
				continue
			}
			if !realtime.IsClientGone(err) {
				h.logger.Debug("widget read failed", "connection_id", conn.ID, "error", err)
			}
			break
		}
		h.handleFrame(r.Context(), conn, session, visitorID, frame)
	}
	h.logger.Info("widget disconnected", "connection_id", conn.ID)
}

func (h *WidgetHandler) handleFrame(parent context.Context, conn *realtime.Connection, session *chatservice.VisitorSession, visitorID string, frame realtime.InboundFrame) {
	ctx, cancel := context.WithTimeout(parent, h.chat.Config().StoreTimeout)
	defer cancel()

	switch frame.Type {
	case realtime.FrameOpen:
		if _, err := session.Open(ctx); err != nil {
			_ = conn.SendJSON(realtime.ErrorFrame(err, ""))
		}
	case realtime.FrameSend:
		if !h.allowSend(visitorID) {
			_ = conn.SendJSON(realtime.OutboundFrame{
				Type:    string(chatservice.EventError),
				Code:    codeRateLimited,
				Error:   "You are sending messages too quickly.",
				Restore: frame.Content,
			})
			return
		}
		session.SetDraft(frame.Content)
		if _, err := session.Send(ctx, frame.Content); err != nil {
			_ = conn.SendJSON(realtime.ErrorFrame(err, session.Draft()))
		}
	case realtime.FrameClose:
		session.Close()
	default:
		_ = conn.SendJSON(realtime.ErrorFrame(chatservice.NewValidationError("read_frame", "unknown frame type "+frame.Type), ""))
	}
}
