package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"agentrelay/agent"
	"agentrelay/model"
	"agentrelay/storage"
	"agentrelay/stream"
	"agentrelay/tools"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req stream.ChatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, stream.CodeBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.Messages) == 0 && req.SessionID == "" {
		writeError(w, http.StatusBadRequest, stream.CodeBadRequest, "messages must not be empty")
		return
	}
	if !model.ValidToolChoice(req.ToolChoice) {
		writeError(w, http.StatusBadRequest, stream.CodeBadRequest,
			fmt.Sprintf("tool_choice must be auto, none or required, got %q", req.ToolChoice))
		return
	}

	ctx := r.Context()

	history, err := s.history(ctx, req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, stream.CodeInternal, err.Error())
		return
	}

	providerID, modelName := s.resolveModel(req.Model)
	p, err := s.newProvider(providerID, modelName)
	if err != nil {
		writeError(w, http.StatusBadRequest, stream.CodeBadRequest, err.Error())
		return
	}

	registry := tools.Build(ctx, s.local, s.servers, s.connector).Subset(req.Tools)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s.metrics.StreamStarted()
	defer s.metrics.StreamFinished()

	enc := stream.NewEncoder(w)
	emit := func(ev stream.Event) {
		if err := enc.Encode(ev); err != nil {
			logger().Debug().Err(err).Str("kind", string(ev.Kind())).Msg("failed to write event")
		}
	}

	maxIterations := s.cfg.Agent.MaxIterations
	if req.MaxIterations > 0 {
		maxIterations = req.MaxIterations
	}

	loop := agent.New(p, registry, agent.Options{
		MaxIterations: maxIterations,
		Stream:        req.Stream,
		SystemPrompt:  s.cfg.Agent.SystemPrompt,
		ChatOptions: model.ChatOptions{
			Temperature: req.Temperature,
			ToolChoice:  req.ToolChoice,
		},
		Emit:    emit,
		Metrics: s.metrics,
	})

	logger().Info().
		Str("provider", providerID).
		Str("model", p.GetModel()).
		Str("session", req.SessionID).
		Int("messages", len(history)).
		Int("tools", registry.Len()).
		Msg("chat run started")

	res, err := loop.Run(ctx, history)
	switch {
	case err == nil:
	case res == nil:
		// The loop never started, so no error frame was written for it.
		emit(stream.ErrorEvent{Code: stream.CodeInternal, Message: err.Error()})
	default:
		logger().Warn().Err(err).Msg("chat run failed")
	}

	if res != nil && req.SessionID != "" {
		s.persist(context.WithoutCancel(ctx), req.SessionID, p.GetModel(), res.CompleteMessages)
	}

	if err := enc.Done(); err != nil {
		logger().Debug().Err(err).Msg("failed to write done frame")
	}
}

// history is the stored conversation of the request's session followed by
// the request messages. Repeated messages are collapsed by the loop.
func (s *Server) history(ctx context.Context, req stream.ChatRequest) ([]model.Message, error) {
	if req.SessionID == "" || s.store == nil {
		return req.Messages, nil
	}
	stored, err := s.store.Get(ctx, req.SessionID)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return req.Messages, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", req.SessionID, err)
	}
	return append(stored, req.Messages...), nil
}

func (s *Server) persist(ctx context.Context, sessionID, modelName string, messages []model.Message) {
	if s.store == nil {
		return
	}
	if err := s.store.Replace(ctx, sessionID, messages, ""); err != nil {
		logger().Error().Err(err).Str("session", sessionID).Msg("failed to persist session")
		return
	}
	if err := s.store.SetModel(ctx, sessionID, modelName); err != nil {
		logger().Warn().Err(err).Str("session", sessionID).Msg("failed to record session model")
	}
}
