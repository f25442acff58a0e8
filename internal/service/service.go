// Package service orchestrates the resonance pipeline: embedding a
// submission, searching for similar stored messages, normalizing, ranking,
// and rewarding the authors whose messages resonate with it.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/choirlabs/resonance/internal/candidate"
	"github.com/choirlabs/resonance/internal/dedup"
	"github.com/choirlabs/resonance/internal/embedding"
	"github.com/choirlabs/resonance/internal/message"
	"github.com/choirlabs/resonance/internal/ranking"
	"github.com/choirlabs/resonance/internal/reward"
	"github.com/choirlabs/resonance/internal/tracing"
	"github.com/choirlabs/resonance/internal/vectorstore"
)

// Config carries the dependencies and tunables for a Service. Every handle
// is injected so tests can swap in in-memory implementations.
type Config struct {
	Embedder   embedding.Embedder
	Store      vectorstore.Store
	Messages   message.Repository
	Balances   reward.BalanceStore
	Normalizer *candidate.Normalizer
	Calculator reward.Calculator
	Tuning     *ranking.Tuning

	// Metrics is optional; when nil, reward commits are not observed.
	Metrics *reward.Metrics

	// SearchLimit caps candidates fetched per query. Zero means the store
	// default.
	SearchLimit int

	Logger *slog.Logger
}

// Service runs the ranking and reward pipeline over injected dependencies.
type Service struct {
	embedder    embedding.Embedder
	store       vectorstore.Store
	messages    message.Repository
	balances    reward.BalanceStore
	normalizer  *candidate.Normalizer
	calculator  reward.Calculator
	tuning      *ranking.Tuning
	metrics     *reward.Metrics
	searchLimit int
	logger      *slog.Logger

	// now is swappable for deterministic ranking tests.
	now func() time.Time
}

// New creates a Service from cfg.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		embedder:    cfg.Embedder,
		store:       cfg.Store,
		messages:    cfg.Messages,
		balances:    cfg.Balances,
		normalizer:  cfg.Normalizer,
		calculator:  cfg.Calculator,
		tuning:      cfg.Tuning,
		metrics:     cfg.Metrics,
		searchLimit: cfg.SearchLimit,
		logger:      logger,
		now:         time.Now,
	}
}

// NewMessageResult is the outcome of submitting a message: the voice credited
// to the submitter and the resonant messages found, ranked and exported.
type NewMessageResult struct {
	TokenCount int             `json:"token_count"`
	Messages   []SparseMessage `json:"messages"`
}

// DashboardResult is a user's voice balance plus their stored messages.
type DashboardResult struct {
	VoiceBalance float64         `json:"voice_balance"`
	Messages     []SparseMessage `json:"messages"`
}

// NewMessage stores a submission and runs the full pipeline against it:
// embed, search, normalize, dedup, rank, then reward the authors of the
// resonant messages in one atomic batch. The submitter is credited
// proportionally to the size of their submission.
//
// The new message itself is not among the ranked results; it is upserted
// after the similarity search runs.
func (s *Service) NewMessage(ctx context.Context, userID, text string) (result *NewMessageResult, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "new_message")
	defer func() { endSpan(err) }()

	ranked, vector, err := s.embedSearchRank(ctx, text)
	if err != nil {
		return nil, err
	}

	messageID := uuid.NewString()
	if err := s.store.Upsert(ctx, messageID, text, vector); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}
	if err := s.messages.Create(ctx, userID, messageID); err != nil {
		return nil, fmt.Errorf("failed to record message ownership: %w", err)
	}

	if err := s.rewardAuthors(ctx, ranked); err != nil {
		return nil, err
	}

	tokenCount := estimateTokens(text)
	if err := s.balances.Credit(ctx, userID, float64(tokenCount)); err != nil {
		return nil, fmt.Errorf("failed to credit submitter: %w", err)
	}

	s.logger.Info("message submitted",
		"message_id", messageID,
		"user_id", userID,
		"resonant", len(ranked),
		"token_count", tokenCount)

	return &NewMessageResult{
		TokenCount: tokenCount,
		Messages:   ExportAll(ranked, s.tuning),
	}, nil
}

// Search runs the read-only half of the pipeline: embed, search, normalize,
// dedup, rank. Nothing is stored and no rewards move.
func (s *Service) Search(ctx context.Context, text string) (ranked []candidate.Candidate, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "search")
	defer func() { endSpan(err) }()

	ranked, _, err = s.embedSearchRank(ctx, text)
	return ranked, err
}

// Dashboard returns a user's voice balance and their stored messages in
// export form. Dashboard messages skip the ranking pass; export defaults
// apply.
func (s *Service) Dashboard(ctx context.Context, userID string) (result *DashboardResult, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "dashboard")
	defer func() { endSpan(err) }()

	balance, messageIDs, err := s.messages.UserDashboard(ctx, userID)
	if err != nil {
		return nil, err
	}

	records, err := s.store.Retrieve(ctx, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve user messages: %w", err)
	}

	candidates, err := s.normalizer.FromRecords(records)
	if err != nil {
		return nil, err
	}

	return &DashboardResult{
		VoiceBalance: balance,
		Messages:     ExportAll(candidates, s.tuning),
	}, nil
}

// ExportMessages converts ranked candidates to their sparse form using the
// service's tuning.
func (s *Service) ExportMessages(ranked []candidate.Candidate) []SparseMessage {
	return ExportAll(ranked, s.tuning)
}

// embedSearchRank is the shared front half of NewMessage and Search.
func (s *Service) embedSearchRank(ctx context.Context, text string) ([]candidate.Candidate, []float64, error) {
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to embed text: %w", err)
	}

	points, err := s.store.Search(ctx, vector, s.searchLimit, false)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to search similar messages: %w", err)
	}
	tracing.SetAttributes(ctx, attribute.Int("candidates", len(points)))

	candidates, err := s.normalizer.FromScoredPoints(points)
	if err != nil {
		return nil, nil, err
	}

	ranked := ranking.Rank(dedup.Dedup(candidates), s.now(), s.tuning)
	return ranked, vector, nil
}

// rewardAuthors resolves the authors of the ranked batch, aggregates their
// rewards, and commits them atomically. Candidates without an ownership
// record forfeit their reward; a commit failure fails the whole batch.
func (s *Service) rewardAuthors(ctx context.Context, ranked []candidate.Candidate) error {
	if len(ranked) == 0 {
		return nil
	}

	ids := make([]string, len(ranked))
	for i, c := range ranked {
		ids[i] = c.ID
	}
	authors, err := s.messages.AuthorsFor(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to resolve message authors: %w", err)
	}

	ledger := s.calculator.Distribute(ranked, authors)
	if len(ledger) == 0 {
		return nil
	}

	if err := s.balances.BulkCredit(ctx, ledger); err != nil {
		if s.metrics != nil {
			s.metrics.IncCommitFailures()
		}
		return err
	}
	if s.metrics != nil {
		s.metrics.ObserveCommit(ledger)
	}

	s.logger.Info("rewarded resonant authors",
		"authors", len(ledger),
		"total", ledger.Total())
	return nil
}

// estimateTokens approximates the token count of a submission at roughly four
// characters per token. The credit only needs to scale with submission size;
// it does not have to match any particular tokenizer.
func estimateTokens(text string) int {
	n := utf8.RuneCountInString(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}
