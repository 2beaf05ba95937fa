package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"wisefido-triage/internal/classifier"
	"wisefido-triage/internal/config"
	"wisefido-triage/internal/database"
	"wisefido-triage/internal/fusion"
	"wisefido-triage/internal/logger"
	"wisefido-triage/internal/models"
	"wisefido-triage/internal/modelstore"
	redisx "wisefido-triage/internal/redis"
	"wisefido-triage/internal/repository"
	"wisefido-triage/internal/service"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const usage = `usage: wisefido-triage <command> [flags]

commands:
  train                                      retrain the confidence model and persist it
  evaluate                                   cross-validate the current model on the training data
  assess -reading '<json>' [-risk R]         assess one sensor reading (R = LOW | MEDIUM | HIGH)
  demo                                       run the built-in field scenarios
  history [-limit N] [-min-level L]          list recent assessments (L = NONE | MODERATE | HIGH | CRITICAL)
  show -id <assessment_id>                   print one recorded assessment (requires AUDIT_ENABLED)

environment:
  DATASET_PATH    training CSV (default data/sensor_training_data.csv)
  MODEL_STORE     file | sqlite | postgres | redis
  AUDIT_ENABLED   record assessments in PostgreSQL
  STREAM_ENABLED  publish assessments to a Redis stream
`

var commands = map[string]bool{
	"train":    true,
	"evaluate": true,
	"assess":   true,
	"demo":     true,
	"history":  true,
	"show":     true,
}

// parseCommand 在连接任何后端之前校验子命令
func parseCommand(args []string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, errors.New("missing command")
	}
	if !commands[args[0]] {
		return "", nil, fmt.Errorf("unknown command %q", args[0])
	}
	return args[0], args[1:], nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	cmd, args, err := parseCommand(argv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\n%s", err, usage)
		return 2
	}

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.ServiceName)
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	ctx := context.Background()

	// 3. 创建应用（存储、模型句柄、服务）
	app, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize", zap.Error(err))
		return 1
	}
	defer app.Close()

	switch cmd {
	case "train":
		err = app.runTrain(ctx)
	case "evaluate":
		err = app.runEvaluate(ctx)
	case "assess":
		err = app.runAssess(ctx, args)
	case "demo":
		err = app.runDemo(ctx)
	case "history":
		err = app.runHistory(ctx, args)
	case "show":
		err = app.runShow(ctx, args)
	}

	if err != nil {
		var verr *fusion.ValidationError
		if errors.As(err, &verr) || errors.Is(err, service.ErrHistoryUnavailable) ||
			errors.Is(err, repository.ErrAssessmentNotFound) || errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		log.Error("Command failed", zap.String("command", cmd), zap.Error(err))
		return 1
	}
	return 0
}

type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *sql.DB
	rdb      *redis.Client
	store    modelstore.Store
	provider *classifier.ModelProvider
	triage   *service.TriageService
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: log}

	needDB := cfg.Audit.Enabled || cfg.Model.Store == config.StorePostgres
	needRedis := cfg.Stream.Enabled || cfg.Model.Store == config.StoreRedis

	if needDB {
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			return nil, err
		}
		a.db = db
	}
	if needRedis {
		rdb, err := redisx.Connect(ctx, &cfg.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.rdb = rdb
	}

	store, err := modelstore.Open(ctx, cfg, modelstore.Backends{DB: a.db, Redis: a.rdb}, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store

	forest := classifier.DefaultForestConfig()
	forest.Trees = cfg.Forest.Trees
	forest.MaxDepth = cfg.Forest.MaxDepth
	forest.Seed = cfg.Forest.Seed
	if err := forest.Validate(); err != nil {
		a.Close()
		return nil, err
	}

	a.provider = classifier.NewModelProvider(
		store,
		classifier.FileDataset{Path: cfg.Model.Dataset},
		forest,
		log.Named("classifier"),
	)

	opts := service.Options{Folds: cfg.Forest.Folds}
	if cfg.Audit.Enabled {
		repo := repository.NewAssessmentRepository(a.db, log.Named("repository"))
		if err := repo.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
		opts.Recorder = repo
		opts.History = repo
		opts.Lookup = repo
	}
	if cfg.Stream.Enabled {
		publisher := service.NewStreamPublisher(a.rdb, cfg.Stream.Name)
		opts.Publisher = publisher
		// 审计表优先，否则从 Stream 读取历史
		if opts.History == nil {
			opts.History = publisher
		}
	}
	a.triage = service.NewTriageService(a.provider, log, opts)

	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.rdb != nil {
		redisx.Close(a.rdb)
	}
	database.Close(a.db)
}

// initModel 启动时加载或训练模型
func (a *app) initModel(ctx context.Context) error {
	m, err := a.provider.Init(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("Model ready", zap.String("model_id", m.ID), zap.Int("trees", m.TreeCount()))
	return nil
}

func (a *app) runTrain(ctx context.Context) error {
	m, err := a.triage.Train(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Model %s trained on %d samples (%d trees)\n", m.ID, m.SampleCount, m.TreeCount())

	if lister, ok := a.store.(modelstore.VersionLister); ok {
		versions, err := lister.Versions(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Stored model versions: %d\n", len(versions))
		if n := len(versions); n > 0 {
			fmt.Printf("Latest stored model:   %s\n", versions[n-1])
		}
	}
	return nil
}

func (a *app) runEvaluate(ctx context.Context) error {
	if err := a.initModel(ctx); err != nil {
		return err
	}
	metrics, err := a.triage.Evaluate(ctx)
	if err != nil {
		return err
	}
	printMetrics(metrics)
	return nil
}

func (a *app) runAssess(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("assess", flag.ExitOnError)
	readingJSON := fs.String("reading", "", "sensor reading as a JSON object")
	riskFlag := fs.String("risk", "LOW", "environment risk: LOW, MEDIUM or HIGH")
	fs.Parse(args)

	if *readingJSON == "" {
		return fmt.Errorf("-reading is required")
	}
	raw, err := models.ParseRawReading([]byte(*readingJSON))
	if err != nil {
		return err
	}
	risk, err := models.ParseEnvironmentRisk(*riskFlag)
	if err != nil {
		return err
	}

	if err := a.initModel(ctx); err != nil {
		return err
	}
	assessment, err := a.triage.Assess(ctx, raw, risk)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(assessment, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

var errUsage = errors.New("invalid arguments")

// parseHistoryFlags 解析 history 子命令参数
func parseHistoryFlags(args []string) (int, models.UrgencyLevel, error) {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	limit := fs.Int("limit", 20, "maximum number of assessments")
	minLevelFlag := fs.String("min-level", "", "only show assessments at or above this urgency level")
	if err := fs.Parse(args); err != nil {
		return 0, "", fmt.Errorf("%w: %v", errUsage, err)
	}
	if *limit <= 0 {
		return 0, "", fmt.Errorf("%w: -limit must be positive, got %d", errUsage, *limit)
	}

	var minLevel models.UrgencyLevel
	if *minLevelFlag != "" {
		level, err := models.ParseUrgencyLevel(*minLevelFlag)
		if err != nil {
			return 0, "", fmt.Errorf("%w: %v", errUsage, err)
		}
		minLevel = level
	}
	return *limit, minLevel, nil
}

func (a *app) runHistory(ctx context.Context, args []string) error {
	limit, minLevel, err := parseHistoryFlags(args)
	if err != nil {
		return err
	}

	assessments, err := a.triage.History(ctx, limit, minLevel)
	if err != nil {
		return err
	}
	if len(assessments) == 0 {
		fmt.Println("No assessments found")
		return nil
	}
	for _, as := range assessments {
		fmt.Printf("%s  %-36s  %-8s  risk=%-6s  confidence=%s\n",
			as.CreatedAt.Format(time.RFC3339),
			as.AssessmentID,
			as.Urgency.UrgencyLevel,
			as.EnvironmentRisk,
			as.VictimState.ConfidenceLevel,
		)
	}
	return nil
}

func (a *app) runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	id := fs.String("id", "", "assessment id")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *id == "" {
		return fmt.Errorf("%w: -id is required", errUsage)
	}

	assessment, err := a.triage.Assessment(ctx, *id)
	if err != nil {
		return err
	}
	printAssessment(assessment)
	return nil
}

func (a *app) runDemo(ctx context.Context) error {
	if err := a.initModel(ctx); err != nil {
		return err
	}

	printSection("FIELD SCENARIOS")
	passed := 0
	scenarios := service.DemoScenarios()
	for _, sc := range scenarios {
		fmt.Printf("\nScenario: %s\n", sc.Name)
		fmt.Println(strings.Repeat("-", 60))

		assessment, err := a.triage.Assess(ctx, sc.Reading, sc.Risk)
		if err != nil {
			var verr *fusion.ValidationError
			if !errors.As(err, &verr) {
				return err
			}
			fmt.Printf("  VALIDATION ERROR: %s\n", verr.Message)
			if !sc.ExpectValid {
				passed++
			}
			continue
		}
		if sc.ExpectValid {
			passed++
		}
		printAssessment(assessment)
	}
	fmt.Printf("\nScenarios as expected: %d/%d\n", passed, len(scenarios))

	printSection("INPUT VALIDATION")
	cases := service.ValidationCases()
	passed = 0
	for _, vc := range cases {
		_, err := fusion.Validate(vc.Reading)
		ok := (err == nil) == vc.ExpectValid
		status := "FAIL"
		if ok {
			status = "PASS"
			passed++
		}
		fmt.Printf("  [%s] %s\n", status, vc.Name)
		if err != nil {
			fmt.Printf("         %v\n", err)
		}
	}
	fmt.Printf("\nValidation checks passed: %d/%d\n", passed, len(cases))

	printSection("MODEL EVALUATION")
	metrics, err := a.triage.Evaluate(ctx)
	if err != nil {
		return err
	}
	printMetrics(metrics)
	return nil
}

func printSection(title string) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf(" %s\n", title)
	fmt.Println(strings.Repeat("=", 60))
}

func printAssessment(a *models.Assessment) {
	keys := []string{
		models.FieldHumanDetected, models.FieldMotionLevel,
		models.FieldHeatPresence, models.FieldBreathingDetected,
	}
	fmt.Println("  Sensor Input:")
	for _, k := range keys {
		fmt.Printf("    %s: %v\n", k, a.Reading[k])
	}

	s := a.VictimState
	fmt.Println("\n  Victim Assessment:")
	fmt.Printf("    Presence Confirmed:  %t\n", s.PresenceConfirmed)
	fmt.Printf("    Responsiveness:      %s\n", s.Responsiveness)
	fmt.Printf("    Vital Signs:         %s\n", s.VitalSigns)
	fmt.Printf("    Confidence Level:    %s\n", s.ConfidenceLevel)

	fmt.Printf("\n  Urgency Decision (Environment Risk: %s):\n", a.EnvironmentRisk)
	fmt.Printf("    Urgency Level:       %s\n", a.Urgency.UrgencyLevel)
	fmt.Println("    Reasoning:")
	for _, r := range a.Urgency.Reason {
		fmt.Printf("      - %s\n", r)
	}
}

func printMetrics(m *classifier.Metrics) {
	fmt.Println("\nCross-Validation Results:")
	fmt.Printf("  Mean Accuracy:    %.4f\n", m.Accuracy)
	fmt.Printf("  Std Dev:          %.4f\n", m.CVStd)
	scores := make([]string, len(m.CVScores))
	for i, s := range m.CVScores {
		scores[i] = fmt.Sprintf("%.4f", s)
	}
	fmt.Printf("  Fold Scores:      [%s]\n", strings.Join(scores, ", "))

	fmt.Println("\nDetailed Metrics:")
	fmt.Printf("  Precision:        %.4f\n", m.Precision)
	fmt.Printf("  Recall:           %.4f\n", m.Recall)
	fmt.Printf("  F1-Score:         %.4f\n", m.F1Score)

	fmt.Println("\nConfusion Matrix (rows = true, cols = predicted; LOW, MEDIUM, HIGH):")
	for _, row := range m.ConfusionMatrix {
		fmt.Printf("  %v\n", row)
	}
}
