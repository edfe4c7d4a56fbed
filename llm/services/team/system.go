// Package team wires the finance document expert, the CSV data analyst and
// the team leader into one queryable system.
package team

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nid-27/regnex/internal/config"
	"github.com/nid-27/regnex/internal/knowledge"
	"github.com/nid-27/regnex/internal/logging"
	"github.com/nid-27/regnex/internal/metrics"
	"github.com/nid-27/regnex/llm/agents"
	"github.com/nid-27/regnex/llm/agents/main/leader"
	"github.com/nid-27/regnex/llm/agents/sub-agents/csvdata"
	"github.com/nid-27/regnex/llm/agents/sub-agents/finance"
	"github.com/nid-27/regnex/llm/providers"
	"github.com/nid-27/regnex/llm/providers/shared"
	"github.com/nid-27/regnex/llm/services/cache"
	"github.com/nid-27/regnex/llm/services/conversations"
	"github.com/nid-27/regnex/pkg/interfaces"
)

var (
	// ErrMissingAPIKey is returned by NewSystem when no model credential is set
	ErrMissingAPIKey = errors.New("GOOGLE_API_KEY not found in environment variables. " +
		"Please create a .env file with: GOOGLE_API_KEY=your-api-key-here")
	// ErrNotInitialized is returned for queries before a successful Setup
	ErrNotInitialized = errors.New("agent system not initialized")
)

// Messages shown to users in place of errors
const (
	NotInitializedMessage = "Error: Agent system not initialized. Please run setup first."
	EmptyQueryMessage     = "Please enter a valid query."
)

// ExampleQueries are sample questions for the chat surfaces
var ExampleQueries = []string{
	"What are the key principles of financial risk management?",
	"Analyze the revenue trends in the CSV data",
	"Compare document insights with actual data patterns",
	"For 2005-03-11 data, can you tell if agreed, neutral or negative",
}

var tracer = otel.Tracer("github.com/nid-27/regnex/llm/services/team")

// Options supplies optional collaborators. A nil Provider is resolved by
// name from Providers, which builds it from the model configuration on
// first use.
type Options struct {
	Provider      shared.LLMProvider
	Providers     *providers.Registry
	Cache         *cache.AnswerCache
	Conversations *conversations.Service
	Logger        *zerolog.Logger
}

// SetupReport describes the last successful setup
type SetupReport struct {
	Finance     *interfaces.LoadStats `json:"finance"`
	CSV         *interfaces.LoadStats `json:"csv"`
	Agents      []string              `json:"agents"`
	CompletedAt time.Time             `json:"completed_at"`
}

// Summary renders the report for people
func (r *SetupReport) Summary() string {
	var b strings.Builder
	b.WriteString("Summary:\n")
	fmt.Fprintf(&b, "   - Finance Documents Loaded: %d\n", r.Finance.Loaded)
	fmt.Fprintf(&b, "   - CSV Files Loaded: %d\n", r.CSV.Loaded)
	fmt.Fprintf(&b, "   - Total Agents: %d (Finance Expert + CSV Analyst + Team Leader)\n", len(r.Agents))
	b.WriteString("\nYou can now start asking questions!")
	return b.String()
}

// Request is a single question for the team
type Request struct {
	Query string `json:"query"`
	// ConversationID continues an earlier conversation
	ConversationID string `json:"conversation_id,omitempty"`
	// StartConversation stores the exchange in a new conversation when no
	// ConversationID is given. The caller gets the new ID back and is the
	// only one able to continue it.
	StartConversation bool `json:"start_conversation,omitempty"`
}

// DataDirs picks the folders for one setup run. A blank field falls back to
// the configured folder.
type DataDirs struct {
	FinanceDir string `json:"finance_dir,omitempty"`
	CSVDir     string `json:"csv_dir,omitempty"`
}

// Response is the team's answer
type Response struct {
	Answer         string            `json:"answer"`
	ConversationID string            `json:"conversation_id,omitempty"`
	Cached         bool              `json:"cached"`
	Stats          agents.AgentStats `json:"stats"`
}

// Answer is delivered by Ask once the team finishes
type Answer struct {
	Content string
	Err     error
}

// Status is a snapshot of the system
type Status struct {
	Initialized      bool       `json:"initialized"`
	Model            string     `json:"model"`
	FinanceDir       string     `json:"finance_dir"`
	CSVDir           string     `json:"csv_dir"`
	FinanceDocuments int        `json:"finance_documents"`
	CSVFiles         int        `json:"csv_files"`
	Agents           []string   `json:"agents"`
	CacheEnabled     bool       `json:"cache_enabled"`
	LastSetup        *time.Time `json:"last_setup,omitempty"`
}

// System owns the knowledge bases and the agents built over them. It is
// safe for concurrent queries; Setup may be re-run at any time.
type System struct {
	cfg           *config.Config
	provider      shared.LLMProvider
	logger        *zerolog.Logger
	cache         *cache.AnswerCache
	conversations *conversations.Service

	documents *knowledge.DocumentStore
	tables    *knowledge.TableStore

	setupMu sync.Mutex

	mu      sync.RWMutex
	dirs    DataDirs
	agents  *agents.AgentRegistry
	leader  *agents.Agent
	runtime *agents.Runtime
	report  *SetupReport
}

// NewSystem validates the credential, creates the data folders and prepares
// empty knowledge bases. No agent exists until Setup.
func NewSystem(cfg *config.Config, opts Options) (*System, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if !cfg.HasAPIKey() {
		return nil, ErrMissingAPIKey
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	for _, dir := range []string{cfg.Data.FinanceDir, cfg.Data.CSVDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}

	provider := opts.Provider
	if provider == nil {
		registry := opts.Providers
		if registry == nil {
			registry = providers.NewRegistry()
		}
		p, err := registry.Resolve(cfg.Model, cfg.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to create model provider: %w", err)
		}
		provider = p
	}

	return &System{
		cfg:           cfg,
		dirs:          DataDirs{FinanceDir: cfg.Data.FinanceDir, CSVDir: cfg.Data.CSVDir},
		provider:      provider,
		logger:        logger,
		cache:         opts.Cache,
		conversations: opts.Conversations,
		documents: knowledge.NewDocumentStore(knowledge.DocumentOptions{
			ChunkSize:      cfg.Data.ChunkSize,
			ChunkOverlap:   cfg.Data.ChunkOverlap,
			MaxConcurrency: cfg.Data.MaxConcurrency,
			Logger:         logger,
		}),
		tables: knowledge.NewTableStore(logger),
	}, nil
}

// Setup loads both knowledge bases from the configured folders and builds
// the three agents. The summary is meant for people; on failure it starts
// with "Error during setup:".
func (s *System) Setup(ctx context.Context) (bool, string) {
	return s.SetupDirs(ctx, DataDirs{})
}

// SetupDirs is Setup over the given folders, creating them when missing
func (s *System) SetupDirs(ctx context.Context, dirs DataDirs) (bool, string) {
	report, err := s.setup(ctx, s.resolveDirs(dirs))
	if err != nil {
		s.logger.Error().Err(err).Msg("setup failed")
		return false, fmt.Sprintf("Error during setup: %v", err)
	}
	return true, report.Summary()
}

func (s *System) resolveDirs(dirs DataDirs) DataDirs {
	if strings.TrimSpace(dirs.FinanceDir) == "" {
		dirs.FinanceDir = s.cfg.Data.FinanceDir
	}
	if strings.TrimSpace(dirs.CSVDir) == "" {
		dirs.CSVDir = s.cfg.Data.CSVDir
	}
	return dirs
}

func (s *System) setup(ctx context.Context, dirs DataDirs) (*SetupReport, error) {
	s.setupMu.Lock()
	defer s.setupMu.Unlock()

	ctx, span := tracer.Start(ctx, "team.setup")
	defer span.End()

	s.logger.Info().
		Str("finance_dir", dirs.FinanceDir).
		Str("csv_dir", dirs.CSVDir).
		Msg("initializing knowledge bases")

	for _, dir := range []string{dirs.FinanceDir, dirs.CSVDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}

	financeStats, err := s.documents.Load(ctx, dirs.FinanceDir)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("loading finance documents: %w", err)
	}
	metrics.KnowledgeFiles.WithLabelValues("finance").Set(float64(financeStats.Loaded))

	csvStats, err := s.tables.Load(ctx, dirs.CSVDir)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("loading csv files: %w", err)
	}
	metrics.KnowledgeFiles.WithLabelValues("csv").Set(float64(csvStats.Loaded))

	settings := agents.Settings{
		Model:       s.cfg.Model.Name,
		Temperature: s.cfg.Model.Temperature,
		MaxTokens:   s.cfg.Model.MaxTokens,
		Markdown:    s.cfg.Agents.Markdown,
	}
	rt := &agents.Runtime{
		Provider: s.provider,
		Logger:   s.logger,
		MaxTurns: s.cfg.Agents.MaxTurns,
	}

	financeAgent, err := finance.New(s.documents, rt, settings, s.cfg.Agents.SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("creating finance agent: %w", err)
	}
	csvAgent, err := csvdata.New(s.tables, settings)
	if err != nil {
		return nil, fmt.Errorf("creating csv agent: %w", err)
	}
	lead, err := leader.New([]*agents.Agent{financeAgent, csvAgent}, rt, settings)
	if err != nil {
		return nil, fmt.Errorf("creating team leader: %w", err)
	}

	registry := agents.NewAgentRegistry()
	for _, a := range []*agents.Agent{financeAgent, csvAgent, lead} {
		registry.Register(a)
	}
	names := make([]string, 0, registry.Len())
	for _, a := range registry.List() {
		names = append(names, a.Name)
	}

	report := &SetupReport{
		Finance:     financeStats,
		CSV:         csvStats,
		Agents:      names,
		CompletedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.dirs = dirs
	s.agents = registry
	s.leader = lead
	s.runtime = rt
	s.report = report
	s.mu.Unlock()

	// answers from the previous knowledge bases no longer apply
	if s.cache != nil {
		if n, err := s.cache.Flush(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("failed to flush answer cache")
		} else if n > 0 {
			s.logger.Info().Int("entries", n).Msg("flushed answer cache")
		}
	}

	span.SetAttributes(
		attribute.Int("finance.loaded", financeStats.Loaded),
		attribute.Int("csv.loaded", csvStats.Loaded),
	)
	s.logger.Info().
		Int("finance_documents", financeStats.Loaded).
		Int("csv_files", csvStats.Loaded).
		Int("agents", len(names)).
		Msg("agent system ready")
	return report, nil
}

// Initialized reports whether Setup has completed
func (s *System) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.leader != nil
}

// Agent returns one of the team's agents by name
func (s *System) Agent(name string) (*agents.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.agents == nil {
		return nil, ErrNotInitialized
	}
	return s.agents.Get(name)
}

// AskSync sends query to the team leader and blocks until it answers
func (s *System) AskSync(ctx context.Context, query string) (string, error) {
	resp, err := s.query(ctx, Request{Query: query}, "sync")
	if err != nil {
		return "", err
	}
	return resp.Answer, nil
}

// Ask sends query to the team leader without blocking. Exactly one Answer
// is delivered on the returned channel, which is then closed.
func (s *System) Ask(ctx context.Context, query string) <-chan Answer {
	out := make(chan Answer, 1)
	go func() {
		defer close(out)
		resp, err := s.query(ctx, Request{Query: query}, "async")
		if err != nil {
			out <- Answer{Err: err}
			return
		}
		out <- Answer{Content: resp.Answer}
	}()
	return out
}

// Query answers req, continuing its conversation when one is configured
func (s *System) Query(ctx context.Context, req Request) (*Response, error) {
	return s.query(ctx, req, "request")
}

// ProcessQuery never fails; errors are turned into user-facing text.
func (s *System) ProcessQuery(ctx context.Context, query string) string {
	answer, err := s.AskSync(ctx, query)
	switch {
	case err == nil:
		return answer
	case errors.Is(err, ErrNotInitialized):
		return NotInitializedMessage
	case errors.Is(err, agents.ErrEmptyQuery):
		return EmptyQueryMessage
	default:
		return fmt.Sprintf("Error processing query: %v", err)
	}
}

func (s *System) query(ctx context.Context, req Request, mode string) (_ *Response, err error) {
	start := time.Now()
	status := "success"
	defer func() {
		metrics.QueriesTotal.WithLabelValues(status).Inc()
		metrics.QueryDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		status = "invalid"
		return nil, agents.ErrEmptyQuery
	}

	s.mu.RLock()
	lead, rt := s.leader, s.runtime
	s.mu.RUnlock()
	if lead == nil {
		status = "not_initialized"
		return nil, ErrNotInitialized
	}

	ctx, span := tracer.Start(ctx, "team.query")
	defer span.End()
	span.SetAttributes(attribute.String("query.mode", mode))

	resp := &Response{}
	var history []shared.Message
	if s.conversations != nil && (req.ConversationID != "" || req.StartConversation) {
		conv, err := s.conversations.Resolve(ctx, req.ConversationID)
		if err != nil {
			status = "error"
			return nil, err
		}
		resp.ConversationID = conv.ID
		if history, err = s.conversations.History(ctx, conv.ID); err != nil {
			status = "error"
			return nil, err
		}
	}

	// follow-up questions depend on their history and are never cached
	useCache := s.cache != nil && len(history) == 0
	if useCache {
		if answer, ok, err := s.cache.Get(ctx, query); err != nil {
			s.logger.Warn().Err(err).Msg("answer cache lookup failed")
		} else if ok {
			resp.Answer = answer
			resp.Cached = true
			status = "cached"
			s.record(ctx, resp.ConversationID, query, answer)
			return resp, nil
		}
	}

	result, err := lead.Run(ctx, &agents.AgentInput{
		Input:   query,
		History: history,
		Session: agents.SessionInfo{SessionID: resp.ConversationID},
	}, rt)
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error().Err(err).Str("mode", mode).Msg("team query failed")
		return nil, err
	}

	resp.Answer = result.Content
	resp.Stats = result.Stats

	if useCache {
		if err := s.cache.Set(ctx, query, result.Content); err != nil {
			s.logger.Warn().Err(err).Msg("failed to cache answer")
		}
	}
	s.record(ctx, resp.ConversationID, query, result.Content)

	s.logger.Info().
		Str("mode", mode).
		Dur("duration", time.Since(start)).
		Int("model_calls", result.Stats.CallsMade).
		Int("tool_calls", result.Stats.ToolCalls).
		Msg("team query answered")
	return resp, nil
}

// record appends the exchange to its conversation. Failures are logged only,
// the answer has already been produced.
func (s *System) record(ctx context.Context, convID, query, answer string) {
	if s.conversations == nil || convID == "" {
		return
	}
	for _, m := range []struct{ role, content string }{
		{string(shared.RoleUser), query},
		{string(shared.RoleAssistant), answer},
	} {
		if _, err := s.conversations.AddMessage(ctx, convID, m.role, m.content); err != nil {
			s.logger.Warn().Err(err).Str("conversation_id", convID).Msg("failed to record message")
			return
		}
	}
}

// Status returns a snapshot of the system
func (s *System) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Initialized:      s.leader != nil,
		Model:            s.cfg.Model.Name,
		FinanceDir:       s.dirs.FinanceDir,
		CSVDir:           s.dirs.CSVDir,
		FinanceDocuments: s.documents.Len(),
		CSVFiles:         s.tables.Len(),
		Agents:           []string{},
		CacheEnabled:     s.cache != nil,
	}
	if s.agents != nil {
		for _, a := range s.agents.List() {
			st.Agents = append(st.Agents, a.Name)
		}
	}
	if s.report != nil {
		t := s.report.CompletedAt
		st.LastSetup = &t
	}
	return st
}

// Report returns the last setup report, nil before Setup
func (s *System) Report() *SetupReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report
}

// Conversations returns the conversation service, nil when disabled
func (s *System) Conversations() *conversations.Service {
	return s.conversations
}

// Close releases the cache and conversation store
func (s *System) Close() error {
	var errs []error
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	if s.conversations != nil {
		errs = append(errs, s.conversations.Close())
	}
	return errors.Join(errs...)
}
