package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"professor-rag/internal/config"
	"professor-rag/internal/helper"
	"professor-rag/internal/llmservice"
	"professor-rag/internal/models"
	"professor-rag/internal/rag"
)

// Answerer produces an answer for a conversation.
type Answerer interface {
	Query(ctx context.Context, conversation []models.Message, onChunk llmservice.ChunkFunc) (string, error)
}

type Server struct {
	answerer Answerer
	cfg      config.ServerConfig
	stream   bool
	router   *mux.Router
}

func NewServer(answerer Answerer, cfg *config.Config) *Server {
	s := &Server{
		answerer: answerer,
		cfg:      cfg.Server,
		stream:   cfg.LLM.Stream,
		router:   mux.NewRouter(),
	}
	s.router.Use(loggingMiddleware)
	s.router.HandleFunc("/api/chat", s.handleChat).Methods(http.MethodPost)
	s.router.HandleFunc("/health", handleHealth).Methods(http.MethodGet)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Bool("stream", s.stream).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var conversation []models.Message
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&conversation); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "request body must be a JSON array of {role, content} messages", http.StatusBadRequest)
		return
	}

	if !s.stream {
		answer, err := s.answerer.Query(ctx, conversation, nil)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		writeTextHeader(w)
		if _, err := w.Write([]byte(answer)); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to write answer")
		}
		return
	}

	flusher, _ := w.(http.Flusher)
	started := false
	onChunk := func(_ context.Context, chunk []byte) error {
		if !started {
			writeTextHeader(w)
			started = true
		}
		if _, err := w.Write(chunk); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	answer, err := s.answerer.Query(ctx, conversation, onChunk)
	if err != nil {
		if started {
			// headers are gone; breaking the connection is the only signal left
			zerolog.Ctx(ctx).Error().Err(err).Msg("Aborting streamed answer")
			panic(http.ErrAbortHandler)
		}
		writeError(ctx, w, err)
		return
	}
	if !started {
		writeTextHeader(w)
		if _, err := w.Write([]byte(answer)); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to write answer")
		}
	}
}

func writeTextHeader(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := zerolog.Ctx(ctx)
	var upstream *rag.UpstreamError
	switch {
	case errors.Is(err, rag.ErrEmptyConversation), errors.Is(err, rag.ErrEmptyQuery):
		logger.Debug().Err(err).Msg("Rejected request")
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.Canceled):
		logger.Info().Msg("Client went away")
	case errors.As(err, &upstream):
		logger.Error().Err(err).Str("stage", upstream.Stage).Msg("Upstream call failed")
		http.Error(w, "upstream service failed", http.StatusBadGateway)
	default:
		logger.Error().Err(err).Msg("Query failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := helper.NewRequestID()
		logger := log.With().Str("request_id", id).Logger()
		w.Header().Set("X-Request-Id", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Msg("Handled request")
		}()
		next.ServeHTTP(rec, r.WithContext(logger.WithContext(r.Context())))
	})
}
