// File: internal/handlers/console_handler.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/iyunix/go-livechat/internal/middleware"
	"github.com/iyunix/go-livechat/internal/realtime"
	"github.com/iyunix/go-livechat/internal/services"
	chatservice "github.com/iyunix/go-livechat/internal/services/chat"
)

// ConsoleHandler serves the operator dashboard. Every route sits behind the
// operator auth middleware.
type ConsoleHandler struct {
	chat     *services.ChatService
	upgrader *websocket.Upgrader
	logger   Logger
}

func NewConsoleHandler(chat *services.ChatService, upgrader *websocket.Upgrader, logger Logger) *ConsoleHandler {
	return &ConsoleHandler{chat: chat, upgrader: upgrader, logger: logger}
}

// GetConversations lists conversation summaries, most recently updated first.
func (h *ConsoleHandler) GetConversations(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.chat.Summaries(r.Context())
	if err != nil {
		h.logger.Error("console summaries failed", "error", err)
		writeChatError(w, err, "")
		return
	}
	if summaries == nil {
		summaries = []chatservice.ConversationSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

// GetMessages returns a conversation's history and marks it read.
func (h *ConsoleHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(r)
	if !ok {
		writeError(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	conv, history, err := h.chat.ViewConversation(r.Context(), id)
	if err != nil {
		writeChatError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversation": conv,
		"messages":     history,
	})
}

// SendMessage replies as the operator.
func (h *ConsoleHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(r)
	if !ok {
		writeError(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}
	content, err := decodeContent(w, r)
	if err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}

	msg, err := h.chat.SendOperatorMessage(r.Context(), id, content)
	if err != nil {
		h.logger.Warn("console send failed", "conversation_id", id, "error", err)
		writeChatError(w, err, content)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// CloseConversation marks a conversation closed.
func (h *ConsoleHandler) CloseConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(r)
	if !ok {
		writeError(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}
	if err := h.chat.CloseConversation(r.Context(), id); err != nil {
		writeChatError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// ServeWS upgrades to a WebSocket driving one OperatorConsole.
func (h *ConsoleHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	operatorID, _ := middleware.OperatorIDFromContext(r.Context())

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("console websocket upgrade failed", "error", err)
		return
	}
	conn := realtime.NewConnection(strconv.FormatUint(uint64(operatorID), 10), ws)
	conn.Start()
	defer conn.Close(websocket.CloseNormalClosure, "")

	console := h.chat.NewOperatorConsole(chatservice.AuthenticatorFunc(middleware.IsOperatorAuthenticated), func(ev chatservice.Event) {
		if err := conn.SendJSON(realtime.FrameFromEvent(ev)); err != nil {
			h.logger.Debug("console frame dropped", "connection_id", conn.ID, "error", err)
		}
	})
	defer console.Close()

	loadCtx, cancel := context.WithTimeout(r.Context(), h.chat.Config().StoreTimeout)
	_, err = console.Load(loadCtx)
	cancel()
	if err != nil {
		h.logger.Warn("console load failed", "operator_id", operatorID, "error", err)
		_ = conn.SendJSON(realtime.ErrorFrame(err, ""))
		return
	}

	h.logger.Info("console connected", "operator_id", operatorID, "connection_id", conn.ID)
	for {
		var frame realtime.InboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if errors.Is(err, realtime.ErrBadFrame) {
				_ = conn.SendJSON(realtime.ErrorFrame(chatservice.NewValidationError("read_frame", "malformed frame"), ""))
				continue
			}
			if !realtime.IsClientGone(err) {
				h.logger.Debug("console read failed", "connection_id", conn.ID, "error", err)
			}
			break
		}
		h.handleFrame(r.Context(), conn, console, frame)
	}
	h.logger.Info("console disconnected", "operator_id", operatorID, "connection_id", conn.ID)
}

func (h *ConsoleHandler) handleFrame(parent context.Context, conn *realtime.Connection, console *chatservice.OperatorConsole, frame realtime.InboundFrame) {
	ctx, cancel := context.WithTimeout(parent, h.chat.Config().StoreTimeout)
	defer cancel()

	var err error
	restore := ""
	switch frame.Type {
	case realtime.FrameSelect:
		_, err = console.Select(ctx, frame.ConversationID)
	case realtime.FrameDeselect:
		console.Deselect()
	case realtime.FrameSend:
		console.SetDraft(frame.Content)
		if _, err = console.Send(ctx, frame.Content); err != nil {
			restore = console.Draft()
		}
	case realtime.FrameCloseConversation:
		err = console.CloseConversation(ctx, frame.ConversationID)
	default:
		err = chatservice.NewValidationError("read_frame", "unknown frame type "+frame.Type)
	}
	if err != nil {
		_ = conn.SendJSON(realtime.ErrorFrame(err, restore))
	}
}
