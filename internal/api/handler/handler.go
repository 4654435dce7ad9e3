package handler

import (
	"log/slog"

	"github.com/jobmatch/jobmatch-be/internal/orchestrator"
	"github.com/jobmatch/jobmatch-be/internal/parser"
	"github.com/jobmatch/jobmatch-be/internal/payment"
	"github.com/jobmatch/jobmatch-be/internal/store"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	Store        store.SessionStore
	Parser       parser.ResumeParser
	Gateway      payment.Gateway
	Orchestrator *orchestrator.Orchestrator
}

// SessionHandler handles the resume-to-jobs session endpoints
type SessionHandler struct {
	logger       *slog.Logger
	store        store.SessionStore
	parser       parser.ResumeParser
	gateway      payment.Gateway
	orchestrator *orchestrator.Orchestrator
}

// NewSessionHandler creates a new SessionHandler instance
func NewSessionHandler(deps *Dependencies) *SessionHandler {
	return &SessionHandler{
		logger:       deps.Logger,
		store:        deps.Store,
		parser:       deps.Parser,
		gateway:      deps.Gateway,
		orchestrator: deps.Orchestrator,
	}
}
