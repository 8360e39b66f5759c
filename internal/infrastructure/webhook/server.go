package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ReviewRelay/internal/usecase"
)

// Server receives chat-platform webhook callbacks and dispatches them to
// the approval stage. Handled requests always answer 200 so the platform
// does not re-deliver; per-event failures stay inside the stage.
type Server struct {
	secret     string
	approver   *usecase.Approver
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer wires the callback endpoint and a health probe.
func NewServer(addr, channelSecret string, approver *usecase.Approver, logger *slog.Logger) *Server {
	s := &Server{
		secret:   channelSecret,
		approver: approver,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /callback", s.handleCallback)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      withLogging(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for callbacks. It blocks until the server is shut
// down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting webhook server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// callbackPayload mirrors the chat platform's webhook envelope.
type callbackPayload struct {
	Events []struct {
		Type       string `json:"type"`
		ReplyToken string `json:"replyToken"`
		Source     struct {
			UserID string `json:"userId"`
		} `json:"source"`
		Postback struct {
			Data string `json:"data"`
		} `json:"postback"`
		Message struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"message"`
	} `json:"events"`
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	if !verifySignature(s.secret, body, r.Header.Get("X-Line-Signature")) {
		s.logger.Warn("webhook signature mismatch")
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "bad signature"})
		return
	}

	var payload callbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed payload"})
		return
	}

	for _, ev := range payload.Events {
		switch ev.Type {
		case "postback":
			action, reviewID, err := parsePostbackData(ev.Postback.Data)
			if err != nil {
				s.logger.Warn("unparsable postback", "data", ev.Postback.Data, "error", err)
				continue
			}
			cb := usecase.Callback{
				OperatorID: ev.Source.UserID,
				Action:     action,
				ReviewID:   reviewID,
				ReplyToken: ev.ReplyToken,
			}
			if err := s.approver.HandleCallback(r.Context(), cb); err != nil {
				s.logger.Error("callback handling failed",
					"action", action, "review", reviewID, "error", err)
			}

		case "message":
			if ev.Message.Type != "text" {
				continue
			}
			msg := usecase.IncomingMessage{
				OperatorID: ev.Source.UserID,
				Text:       ev.Message.Text,
				ReplyToken: ev.ReplyToken,
			}
			if err := s.approver.HandleMessage(r.Context(), msg); err != nil {
				s.logger.Error("message handling failed",
					"operator", ev.Source.UserID, "error", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parsePostbackData splits the "action:reviewID" correlation data embedded
// in the prompt buttons.
func parsePostbackData(data string) (usecase.Action, string, error) {
	raw, reviewID, found := strings.Cut(data, ":")
	if !found || reviewID == "" {
		return "", "", fmt.Errorf("postback data %q is not action:reviewID", data)
	}

	action := usecase.Action(raw)
	switch action {
	case usecase.ActionApprove, usecase.ActionEdit, usecase.ActionDismiss:
		return action, reviewID, nil
	default:
		return "", "", fmt.Errorf("unknown postback action %q", raw)
	}
}

func verifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("request handled",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
