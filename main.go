package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	plannerx "github.com/warat-b/sitescope/agent/agents/planner"
	refinerx "github.com/warat-b/sitescope/agent/agents/refiner"
	researcherx "github.com/warat-b/sitescope/agent/agents/researcher"
	contractx "github.com/warat-b/sitescope/agent/contract"
	llmx "github.com/warat-b/sitescope/agent/llm"
	promptx "github.com/warat-b/sitescope/agent/prompt"
	reportx "github.com/warat-b/sitescope/agent/report"
	retrievalx "github.com/warat-b/sitescope/agent/retrieval"
	statex "github.com/warat-b/sitescope/agent/state"
	configx "github.com/warat-b/sitescope/pkg/config"
	logx "github.com/warat-b/sitescope/pkg/logger"
	openrouterx "github.com/warat-b/sitescope/pkg/openrouter"
	tavilyx "github.com/warat-b/sitescope/pkg/tavily"
)

type researchEnv struct {
	MaxSteps         int  `envconfig:"MAX_STEPS" split_words:"true" default:"20"`
	EvolutionCadence int  `envconfig:"EVOLUTION_CADENCE" split_words:"true" default:"3"`
	RetrievalTopK    int  `envconfig:"RETRIEVAL_TOP_K" split_words:"true" default:"2"`
	ScoreReport      bool `envconfig:"SCORE_REPORT" split_words:"true" default:"false"`
}

// webSearcher adapts the Tavily client to the researcher's contract.
type webSearcher struct {
	client *tavilyx.Client
}

func (w webSearcher) Search(ctx context.Context, query string) ([]contractx.WebResult, error) {
	results, err := w.client.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]contractx.WebResult, 0, len(results))
	for _, r := range results {
		out = append(out, contractx.WebResult{Title: r.Title, URL: r.URL, Content: r.Content})
	}
	return out, nil
}

func main() {
	address := flag.String("address", "", "property address to research (required)")
	brief := flag.String("brief", "", "developer brief")
	output := flag.String("output", "reports/feasibility.md", "report output path")
	modelOverride := flag.String("model", "", "override the configured model")
	maxSteps := flag.Int("max-steps", 0, "maximum research iterations (0 = configured default)")
	noEvolution := flag.Bool("no-evolution", false, "disable self-evolution")
	noDiffusion := flag.Bool("no-diffusion", false, "disable draft denoising")
	showRun := flag.Int64("show-run", 0, "print an archived run as JSON and exit")
	listRuns := flag.Int("list-runs", 0, "list the newest archived runs and exit")

	// The first MustNew call parses the flag set, so every flag above must
	// already be registered at this point.
	logx.Init(*configx.MustNew[logx.Config]("LOG"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *showRun > 0 || *listRuns > 0 {
		inspectArchive(ctx, *showRun, *listRuns)
		return
	}

	if strings.TrimSpace(*address) == "" {
		log.Fatal().Msg("-address is required")
	}

	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	if strings.TrimSpace(*modelOverride) != "" {
		llmCfg.Model = strings.TrimSpace(*modelOverride)
	}
	if err := llmCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid model configuration")
	}

	envCfg := configx.MustNew[researchEnv]("RESEARCH")
	runCfg := researcherx.Config{
		MaxSteps:         envCfg.MaxSteps,
		UseEvolution:     !*noEvolution,
		UseDiffusion:     !*noDiffusion,
		EvolutionCadence: envCfg.EvolutionCadence,
		RetrievalTopK:    envCfg.RetrievalTopK,
		ScoreReport:      envCfg.ScoreReport,
		Budgets:          contractx.DefaultBudgets(),
	}
	if *maxSteps > 0 {
		runCfg.MaxSteps = *maxSteps
	}

	deps, err := buildDeps(ctx, *llmCfg, runCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build research components")
	}

	agent, err := researcherx.New(deps, runCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize researcher")
	}

	st, err := agent.Run(ctx, *address, *brief)
	if err != nil {
		log.Fatal().Err(err).Msg("research run failed")
	}

	if err := reportx.WriteMarkdown(*output, st); err != nil {
		log.Fatal().Err(err).Msg("failed to write report")
	}
	statePath := reportx.StatePath(*output)
	if err := reportx.WriteState(statePath, st); err != nil {
		log.Fatal().Err(err).Msg("failed to write state dump")
	}
	log.Info().Str("report", *output).Str("state", statePath).Msg("run artifacts written")

	archiveRun(ctx, st)
}

func buildDeps(ctx context.Context, llmCfg llmx.Config, runCfg researcherx.Config) (researcherx.Deps, error) {
	var deps researcherx.Deps

	researcherCfg := llmCfg.OpenRouterFor(contractx.RoleResearcher)
	researcherModel, err := researcherCfg.New(ctx)
	if err != nil {
		return deps, err
	}
	plannerCfg := llmCfg.OpenRouterFor(contractx.RolePlanner)
	plannerModel, err := plannerCfg.New(ctx)
	if err != nil {
		return deps, err
	}
	evaluatorCfg := llmCfg.OpenRouterFor(contractx.RoleEvaluator)
	evaluatorModel, err := evaluatorCfg.New(ctx)
	if err != nil {
		return deps, err
	}
	writerCfg := llmCfg.OpenRouterFor(contractx.RoleWriter)
	writerModel, err := writerCfg.New(ctx)
	if err != nil {
		return deps, err
	}

	prompts := promptx.LoadPromptSet()

	deps.Planner, err = plannerx.New(ctx, plannerModel, prompts.Planner)
	if err != nil {
		return deps, err
	}

	evaluator, err := refinerx.NewEvaluator(ctx, evaluatorModel, prompts.JudgeAnswer, prompts.JudgeReport)
	if err != nil {
		return deps, err
	}
	deps.Evaluator = evaluator

	if runCfg.UseEvolution {
		evoCfg := configx.MustNew[refinerx.EvolutionConfig]("EVOLUTION")
		deps.Evolver, err = refinerx.NewEvolution(ctx, researcherModel, evaluator, prompts, *evoCfg)
		if err != nil {
			return deps, err
		}
	}

	deps.Searcher = webSearcher{client: tavilyx.MustNew(*configx.MustNew[tavilyx.Config]("TAVILY"))}
	deps.Retriever = buildRetriever(llmCfg)

	if runCfg.UseDiffusion {
		deps.Drafter, err = llmx.NewTextGenerator(ctx, researcherModel, prompts.InitialDraft, promptx.InitialDraftUser, "researcher.initial_draft")
		if err != nil {
			return deps, err
		}
		deps.Denoiser, err = llmx.NewTextGenerator(ctx, researcherModel, prompts.Denoise, promptx.DenoiseUser, "researcher.denoise")
		if err != nil {
			return deps, err
		}
	}

	deps.Questioner, err = llmx.NewTextGenerator(ctx, researcherModel, prompts.NextQuestion, promptx.NextQuestionUser, "researcher.next_question")
	if err != nil {
		return deps, err
	}
	deps.Synthesizer, err = llmx.NewTextGenerator(ctx, researcherModel, prompts.SynthesizeAnswer, promptx.SynthesizeAnswerUser, "researcher.synthesize_answer")
	if err != nil {
		return deps, err
	}
	deps.Writer, err = llmx.NewTextGenerator(ctx, writerModel, prompts.FinalReport, promptx.FinalReportUser, "researcher.final_report")
	if err != nil {
		return deps, err
	}

	return deps, nil
}

// buildRetriever wires the knowledge base when its manifest exists; a
// missing manifest only disables retrieval.
func buildRetriever(llmCfg llmx.Config) contractx.Retriever {
	cfg := configx.MustNew[retrievalx.Config]("RETRIEVAL")

	client := openrouterx.NewClient(llmCfg.OpenRouterFor(contractx.RoleResearcher))
	if client == nil {
		log.Warn().Msg("no embeddings client available, retrieval disabled")
		return nil
	}

	retriever, err := retrievalx.New(*cfg, client)
	if err != nil {
		if errors.Is(err, retrievalx.ErrManifestNotFound) {
			log.Warn().Str("manifest", cfg.ManifestPath).Msg("retrieval manifest not found, continuing without knowledge base")
			return nil
		}
		log.Fatal().Err(err).Msg("failed to load retrieval index")
	}

	summary := retriever.ManifestSummary()
	log.Info().Str("collection", summary.CollectionName).Str("embedding_model", summary.EmbeddingModel).Msg("knowledge base loaded")
	return retriever
}

// inspectArchive serves the -show-run and -list-runs flags: it reads the
// Postgres archive instead of starting a research run.
func inspectArchive(ctx context.Context, runID int64, limit int) {
	cfg := configx.MustNew[statex.ArchiveConfig]("ARCHIVE")
	if !cfg.Enabled() {
		log.Fatal().Msg("ARCHIVE_DSN is not configured")
	}

	archive, err := statex.NewArchive(*cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open run archive")
	}
	defer archive.Close()

	if runID > 0 {
		record, err := archive.LoadRun(ctx, runID)
		if errors.Is(err, statex.ErrRunNotFound) {
			log.Fatal().Int64("run_id", runID).Msg("no archived run with this id")
		}
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load archived run")
		}
		payload, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			log.Fatal().Err(err).Msg("failed to render archived run")
		}
		fmt.Println(string(payload))
		return
	}

	records, err := archive.RecentRuns(ctx, limit)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to list archived runs")
	}
	for _, r := range records {
		fmt.Printf("%d\t%s\t%s\t%d steps\n", r.ID, r.CreatedAt.Format(time.RFC3339), r.Query, len(r.SearchHistory))
	}
}

// archiveRun persists the finished run to Postgres when an archive DSN is
// configured. Archive failures are logged, never fatal.
func archiveRun(ctx context.Context, st *statex.AgentState) {
	cfg := configx.MustNew[statex.ArchiveConfig]("ARCHIVE")
	if !cfg.Enabled() {
		return
	}

	archive, err := statex.NewArchive(*cfg)
	if err != nil {
		log.Warn().Err(err).Msg("failed to open run archive")
		return
	}
	defer archive.Close()

	if err := archive.Init(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to prepare run archive")
		return
	}

	id, err := archive.SaveRun(ctx, st)
	if err != nil {
		log.Warn().Err(err).Msg("failed to archive run")
		return
	}
	log.Info().Int64("run_id", id).Msg("run archived")
}
