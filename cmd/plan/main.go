// Command plan generates a timetable from a request file without the API
// server and keeps the results in a local bbolt file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/config"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/llm"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/localstore"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/logger"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/model"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/timetable"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/validator"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.Load()

	var (
		in        string
		mode      string
		storePath string
		list      bool
		show      string
	)
	flag.StringVar(&in, "in", "", "Path to a generate request JSON file ('-' for stdin)")
	flag.StringVar(&mode, "mode", "", "Override the request mode (ai or deterministic)")
	flag.StringVar(&storePath, "store", cfg.PlanStorePath, "Path to the local plan store")
	flag.BoolVar(&list, "list", false, "List stored timetables")
	flag.StringVar(&show, "show", "", "Print a stored timetable by id")
	flag.Parse()

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	store, err := localstore.Open(storePath, localstore.TimetablesBucket)
	if err != nil {
		log.Fatal().Err(err).Str("path", storePath).Msg("Failed to open plan store")
	}
	defer store.Close()

	switch {
	case list:
		err = listPlans(store)
	case show != "":
		err = showPlan(store, show)
	case in != "":
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		err = generate(ctx, cfg, log, store, in, mode)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func generate(ctx context.Context, cfg *config.Config, log zerolog.Logger, store *localstore.Store, in, mode string) error {
	req, err := readRequest(in)
	if err != nil {
		return err
	}
	if mode != "" {
		req.Mode = model.GenerationMode(mode)
	}

	validator.Setup()
	if fields := validator.Struct(req); fields != nil {
		for field, msg := range fields {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", field, msg)
		}
		return fmt.Errorf("invalid request")
	}

	var client llm.Client
	if req.EffectiveMode() == model.ModeAI && cfg.LLM.APIKey != "" {
		base, err := llm.New(llm.Config{
			Provider: cfg.LLM.Provider,
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
			Model:    cfg.LLM.Model,
			Timeout:  cfg.LLM.Timeout,
		})
		if err != nil {
			return fmt.Errorf("create LLM client: %w", err)
		}
		client = llm.WithRetry(base, cfg.LLM.MaxRetries, 2*time.Second)
		if closer, ok := client.(interface{ Close() error }); ok {
			defer closer.Close()
		}
	}

	gen := timetable.NewGenerator(client, timetable.GeneratorConfig{
		Options: timetable.Options{
			BufferMinutes: cfg.EventBufferMinutes,
			MaxDays:       cfg.MaxPlanDays,
		},
		MatchThreshold: cfg.TopicMatchThreshold,
		Fallback:       cfg.LLM.Fallback,
		MaxTokens:      cfg.LLM.MaxTokens,
	}, log)

	res, err := gen.Generate(ctx, req, func(stage, message string) {
		log.Info().Str("stage", stage).Msg(message)
	})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	t := model.Timetable{
		ID:          uuid.New(),
		UserID:      "local",
		Name:        req.Name,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Source:      res.Source,
		Schedule:    res.Schedule,
		Subjects:    req.Subjects,
		Topics:      req.Topics,
		TestDates:   req.TestDates,
		Preferences: req.Preferences,
		Report:      res.Report,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Name == "" {
		t.Name = fmt.Sprintf("Study plan %s to %s", req.StartDate, req.EndDate)
	}

	if err := localstore.Save(store, localstore.TimetablesBucket, t.ID.String(), t); err != nil {
		return fmt.Errorf("save timetable: %w", err)
	}

	log.Info().
		Str("id", t.ID.String()).
		Str("source", string(t.Source)).
		Int("sessions", t.Schedule.SessionCount()).
		Int("warnings", len(t.Report.Warnings)).
		Msg("Timetable saved")

	return printSchedule(&t)
}

func readRequest(path string) (*model.GenerateTimetableRequest, error) {
	f := os.Stdin
	if path != "-" {
		var err error
		if f, err = os.Open(path); err != nil {
			return nil, err
		}
		defer f.Close()
	}

	var req model.GenerateTimetableRequest
	if err := json.NewDecoder(f).Decode(&req); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &req, nil
}

func listPlans(store *localstore.Store) error {
	plans, err := localstore.List[model.Timetable](store, localstore.TimetablesBucket)
	if err != nil {
		return err
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].CreatedAt.After(plans[j].CreatedAt) })

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tRANGE\tSOURCE\tSESSIONS")
	for _, p := range plans {
		fmt.Fprintf(w, "%s\t%s\t%s..%s\t%s\t%d\n",
			p.ID, p.Name, p.StartDate, p.EndDate, p.Source, p.Schedule.SessionCount())
	}
	return w.Flush()
}

func showPlan(store *localstore.Store, id string) error {
	t, err := localstore.Get[model.Timetable](store, localstore.TimetablesBucket, id)
	if err != nil {
		return fmt.Errorf("timetable %s: %w", id, err)
	}
	return printSchedule(t)
}

func printSchedule(t *model.Timetable) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s (%s)\n", t.Name, t.ID)
	for _, date := range t.Schedule.Dates() {
		fmt.Fprintf(w, "%s\n", date)
		for _, s := range t.Schedule[date] {
			fmt.Fprintf(w, "  %s\t%dm\t%s\t%s\t%s\n", s.Time, s.Duration, s.Type, s.Subject, s.Topic)
		}
	}
	for _, warning := range t.Report.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	return w.Flush()
}
