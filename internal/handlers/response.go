// File: internal/handlers/response.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/iyunix/go-livechat/internal/realtime"
	chatservice "github.com/iyunix/go-livechat/internal/services/chat"
)

// Logger is the logging surface handlers write to.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// writeJSON is a helper for sending JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError is a helper for sending JSON error responses.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeChatError translates an engine error into a status code. restore is
// echoed back for failed sends so the client can refill its input.
func writeChatError(w http.ResponseWriter, err error, restore string) {
	body := map[string]string{
		"error": realtime.PublicMessage(err),
		"code":  realtime.ErrorCode(err),
	}
	if restore != "" {
		body["restore"] = restore
	}
	writeJSON(w, statusFor(err), body)
}

func statusFor(err error) int {
	var chatErr *chatservice.ChatError
	if !errors.As(err, &chatErr) {
		return http.StatusInternalServerError
	}
	switch chatErr.Type {
	case chatservice.ErrTypeValidation:
		return http.StatusBadRequest
	case chatservice.ErrTypeUnauthorized:
		return http.StatusUnauthorized
	case chatservice.ErrTypeNotFound:
		return http.StatusNotFound
	case chatservice.ErrTypeState:
		return http.StatusConflict
	case chatservice.ErrTypeStoreUnavailable, chatservice.ErrTypeSubscriptionLost:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// conversationID reads the {id} route variable.
func conversationID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

type contentRequest struct {
	Content string `json:"content"`
}

func decodeContent(w http.ResponseWriter, r *http.Request) (string, error) {
	var req contentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, realtime.MaxFrameSize)).Decode(&req); err != nil {
		return "", err
	}
	return req.Content, nil
}
