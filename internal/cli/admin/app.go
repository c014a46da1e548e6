package admin

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/cloo-solutions/draftgate/internal/anthropic"
	"github.com/cloo-solutions/draftgate/internal/api/handlers"
	"github.com/cloo-solutions/draftgate/internal/config"
	"github.com/cloo-solutions/draftgate/internal/domain"
	"github.com/cloo-solutions/draftgate/internal/jobs"
	"github.com/cloo-solutions/draftgate/internal/logging"
	"github.com/cloo-solutions/draftgate/internal/metrics"
	"github.com/cloo-solutions/draftgate/internal/openai"
	"github.com/cloo-solutions/draftgate/internal/prompts"
	"github.com/cloo-solutions/draftgate/internal/repository"
	"github.com/cloo-solutions/draftgate/internal/service"
)

// App is the fully wired gate: handlers for the HTTP API plus the
// background workers that drain the job tables.
type App struct {
	GateHandler     *handlers.GateHandler
	RevisionHandler *handlers.RevisionHandler
	Workers         []*jobs.Worker
}

// Deps are the external clients the gate is built around. Embedder is
// optional; without it memory selection and embedding are disabled.
type Deps struct {
	Pool       *pgxpool.Pool
	Completion service.CompletionClientInterface
	Embedder   service.EmbeddingClientInterface
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logCfg := logging.NewDefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.Format = cfg.LogFormat
	logCfg.Fields["environment"] = cfg.Environment
	return logging.New(logCfg)
}

func newCompletionClient(cfg *config.Config) (service.CompletionClientInterface, error) {
	if !cfg.HasLLM() {
		return nil, fmt.Errorf("no API key configured for LLM provider %q", cfg.LLMProvider)
	}
	if cfg.LLMProvider == "anthropic" {
		return anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL), nil
	}
	return newOpenAIClient(cfg), nil
}

func newOpenAIClient(cfg *config.Config) *openai.Client {
	return openai.NewClientWithConfig(openai.Config{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		EmbeddingModel: goopenai.EmbeddingModel(cfg.EmbeddingModel),
	})
}

func newPromptRunner(client service.CompletionClientInterface, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (*service.PromptRunner, error) {
	registry, err := prompts.NewDefaultRegistry()
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	return service.NewPromptRunner(client, registry, cfg.EvaluatorModel, m, logger), nil
}

func judgeConfig(cfg *config.Config) (service.JudgeConfig, error) {
	profile := domain.JudgeProfile(cfg.JudgeProfile)
	if !domain.IsValidJudgeProfile(profile) {
		return service.JudgeConfig{}, fmt.Errorf("invalid JUDGE_PROFILE %q", cfg.JudgeProfile)
	}
	band := domain.ScoreBand{Min: cfg.JudgeAdjudicationMin, Max: cfg.JudgeAdjudicationMax}
	if band.Min > band.Max {
		return service.JudgeConfig{}, fmt.Errorf("adjudication band min %.0f exceeds max %.0f", band.Min, band.Max)
	}
	return service.JudgeConfig{
		Model:               cfg.JudgeModel,
		Profile:             profile,
		AdjudicationEnabled: cfg.JudgeAdjudicationEnabled,
		AdjudicationBand:    band,
	}, nil
}

func revisionConfig(cfg *config.Config) service.RevisionConfig {
	rc := service.DefaultRevisionConfig()
	rc.Disabled = cfg.RevisionDisabled
	rc.Model = cfg.RevisionModel
	rc.Timeout = cfg.RevisionTimeout()
	rc.SelectorTimeout = cfg.RevisionSelectorTimeout()
	rc.ContextTimeout = cfg.RevisionContextTimeout()
	rc.MemoryPolicy = service.MemoryPolicy{
		AllowedCategories: cfg.MemoryAllowedCategories,
		MinConfidence:     cfg.MemoryMinConfidence,
		MinTTLDays:        cfg.MemoryMinTTLDays,
		MaxTTLDays:        cfg.MemoryMaxTTLDays,
	}
	return rc
}

// NewApp wires repositories, model clients and services.
func NewApp(cfg *config.Config, deps Deps) (*App, error) {
	logger := logging.OrNop(deps.Logger)
	m := deps.Metrics
	pool := deps.Pool

	runner, err := newPromptRunner(deps.Completion, cfg, m, logger)
	if err != nil {
		return nil, err
	}
	jc, err := judgeConfig(cfg)
	if err != nil {
		return nil, err
	}

	draftRepo := repository.NewDraftRepository(pool)
	artifactRepo := repository.NewArtifactRepository(pool)
	memoryRepo := repository.NewMemoryRepository(pool)
	knowledgeRepo := repository.NewKnowledgeRepository(pool)
	workspaceRepo := repository.NewWorkspaceRepository(pool)
	revisionJobRepo := repository.NewRevisionJobRepository(pool)
	embeddingJobRepo := repository.NewMemoryEmbeddingJobRepository(pool)

	judge := service.NewJudgeService(runner, jc, m, logger.Named("judge"))
	evaluator := service.NewAutoSendEvaluator(runner, knowledgeRepo, memoryRepo, workspaceRepo,
		service.AutoSendEvaluatorConfig{Model: cfg.EvaluatorModel}, logger.Named("evaluator"))
	leadContext := service.NewLeadContextService(knowledgeRepo, memoryRepo, workspaceRepo, m, logger.Named("lead_context"))

	a := &App{}

	var selector service.OptimizationContextSelector
	if deps.Embedder != nil {
		selector = service.NewMemorySelector(deps.Embedder, memoryRepo)
		embeddingWorker := jobs.NewEmbeddingWorker(embeddingJobRepo, memoryRepo, deps.Embedder, m, logger)
		a.Workers = append(a.Workers, jobs.NewWorker("memory_embedding", embeddingWorker, cfg.WorkerPollInterval, logger))
	} else {
		logger.Warn("no embedding client: memory selection and embedding worker disabled")
	}

	reviser := service.NewRevisionService(service.RevisionDeps{
		Runner:      runner,
		Drafts:      draftRepo,
		Artifacts:   artifactRepo,
		LeadContext: leadContext,
		Selector:    selector,
		Workspaces:  workspaceRepo,
		TxRunner:    repository.NewTxRunner(pool),
		Metrics:     m,
		Logger:      logger.Named("revision"),
	}, revisionConfig(cfg))
	revisions := service.NewRevisionRunner(reviser, evaluator, draftRepo, revisionJobRepo, logger.Named("revision_runner"))

	revisionWorker := jobs.NewRevisionWorker(revisionJobRepo, revisions, m, logger)
	a.Workers = append(a.Workers, jobs.NewWorker("revision", revisionWorker, cfg.WorkerPollInterval, logger))

	a.GateHandler = handlers.NewGateHandler(judge, evaluator)
	a.RevisionHandler = handlers.NewRevisionHandler(revisions, service.NewArtifactRecorder(artifactRepo, logger))
	return a, nil
}

// Start launches every worker on ctx.
func (a *App) Start(ctx context.Context) {
	for _, w := range a.Workers {
		go w.Start(ctx)
	}
}

// Stop stops the workers and waits for in-flight batches.
func (a *App) Stop() {
	for _, w := range a.Workers {
		w.Stop()
	}
}
