package ingest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/slackrelay/slackrelay/pkg/config"
	"github.com/slackrelay/slackrelay/pkg/events"
	"github.com/slackrelay/slackrelay/pkg/logger"
	"github.com/slackrelay/slackrelay/pkg/queue"
	"github.com/slackrelay/slackrelay/pkg/verify"
)

const headerRetryNum = "X-Slack-Retry-Num"

// Server is the synchronous ingestion stage: authenticate, filter, enqueue.
// It holds no state beyond its collaborators; every request is independent.
type Server struct {
	cfg       *config.Config
	verifier  *verify.Verifier
	publisher queue.Publisher
	mux       *http.ServeMux
}

func NewServer(cfg *config.Config, verifier *verify.Verifier, publisher queue.Publisher) *Server {
	s := &Server{
		cfg:       cfg,
		verifier:  verifier,
		publisher: publisher,
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /slack/events", s.handleEvent)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	// The signature covers the exact bytes on the wire, so the body is read
	// raw before any parsing.
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
		return
	}

	if err := s.cfg.ValidateIngest(); err != nil {
		logger.ErrorCF("ingest", "Configuration check failed", map[string]interface{}{
			"error": err.Error(),
		})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	env, parseErr := events.Parse(body)
	if parseErr != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	// URL verification challenges are echoed before any signature check.
	if env.IsChallenge() {
		writeJSON(w, http.StatusOK, map[string]string{"challenge": env.Challenge})
		return
	}

	if err := s.verifier.Verify(r.Header, body); err != nil {
		if errors.Is(err, verify.ErrNotAuthentic) {
			writeJSON(w, http.StatusForbidden, map[string]string{"message": "Forbidden: Invalid signature"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "verification error"})
		return
	}

	// Slack's own retry mechanism is redundant with queue redelivery and
	// would double-publish; retried calls are accepted and dropped.
	if r.Header.Get(headerRetryNum) != "" {
		logger.DebugC("ingest", "Ignoring retried webhook delivery")
		writeJSON(w, http.StatusOK, map[string]string{"message": "Ignoring duplicate request"})
		return
	}

	if env.Event == nil {
		writeJSON(w, http.StatusOK, map[string]string{"message": "No event to process"})
		return
	}

	if env.Event.FromSelf(s.cfg.Slack.BotUserID) {
		logger.DebugCF("ingest", "Dropping self-originated event", map[string]interface{}{
			"channel": env.Event.Channel,
		})
		writeJSON(w, http.StatusOK, map[string]string{"message": "Rejected because it was a message sent by a bot."})
		return
	}

	deliveryID, err := s.publisher.Publish(r.Context(), body)
	if err != nil {
		logger.ErrorCF("ingest", "Queue publish failed", map[string]interface{}{
			"error": err.Error(),
		})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	logger.InfoCF("ingest", "Event queued", map[string]interface{}{
		"delivery_id": deliveryID,
		"channel":     env.Event.Channel,
	})

	// 202: accepted for asynchronous processing; the body echoes the
	// original payload.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
