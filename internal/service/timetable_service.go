package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/config"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/logger"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/model"
	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/timetable"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrTimetableNotFound is returned when a timetable does not exist or belongs
// to another user.
var ErrTimetableNotFound = errors.New("timetable not found")

// TimetableStore persists generated timetables.
type TimetableStore interface {
	Create(ctx context.Context, t *model.Timetable) error
	GetByID(ctx context.Context, id uuid.UUID, userID string) (*model.Timetable, error)
	ListByUserPaginated(ctx context.Context, userID string, limit, offset int) ([]model.TimetableSummary, int, error)
	Delete(ctx context.Context, id uuid.UUID, userID string) error
}

// TimetableGenerator produces a schedule for a request.
type TimetableGenerator interface {
	Generate(ctx context.Context, req *model.GenerateTimetableRequest, progress timetable.ProgressFunc) (*timetable.Result, error)
}

// GenerateResult is a stored timetable and whether it came from the request cache.
type GenerateResult struct {
	Timetable *model.Timetable
	Cached    bool
}

// TimetableService generates, stores and serves timetables.
type TimetableService struct {
	store    TimetableStore
	gen      TimetableGenerator
	rdb      *redis.Client
	cacheTTL time.Duration
	log      zerolog.Logger
}

// NewTimetableService creates a new TimetableService. A nil rdb disables the
// duplicate-request cache.
func NewTimetableService(store TimetableStore, gen TimetableGenerator, rdb *redis.Client, cacheTTL time.Duration, log zerolog.Logger) *TimetableService {
	return &TimetableService{
		store:    store,
		gen:      gen,
		rdb:      rdb,
		cacheTTL: cacheTTL,
		log:      log.With().Str("component", "timetable_service").Logger(),
	}
}

// Fingerprint hashes the canonical JSON form of req.
func Fingerprint(req *model.GenerateTimetableRequest) (string, error) {
	canonical := *req
	canonical.Mode = req.EffectiveMode()
	b, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("fingerprint request: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Generate returns the timetable for req, reusing the stored one when the same
// user submitted an identical request within the cache TTL.
func (s *TimetableService) Generate(ctx context.Context, userID string, req *model.GenerateTimetableRequest, progress timetable.ProgressFunc) (*GenerateResult, error) {
	log := logger.FromContext(ctx, s.log).With().Str("user_id", userID).Logger()

	fp, err := Fingerprint(req)
	if err != nil {
		return nil, err
	}
	cacheKey := config.CacheKey.GenerationResultKey(userID, fp)

	if cached := s.cachedTimetable(ctx, cacheKey, userID); cached != nil {
		log.Info().Str("timetable_id", cached.ID.String()).Msg("Returning cached timetable")
		return &GenerateResult{Timetable: cached, Cached: true}, nil
	}

	res, err := s.gen.Generate(ctx, req, progress)
	if err != nil {
		return nil, err
	}

	t := &model.Timetable{
		UserID:      userID,
		Name:        timetableName(req),
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Source:      res.Source,
		Schedule:    res.Schedule,
		Subjects:    req.Subjects,
		Topics:      req.Topics,
		TestDates:   req.TestDates,
		Preferences: req.Preferences,
		Report:      res.Report,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("store timetable: %w", err)
	}

	if s.rdb != nil {
		if err := s.rdb.Set(ctx, cacheKey, t.ID.String(), s.cacheTTL).Err(); err != nil {
			log.Warn().Err(err).Msg("Failed to cache generation result")
		}
	}

	log.Info().
		Str("timetable_id", t.ID.String()).
		Str("mode", string(req.EffectiveMode())).
		Str("source", string(t.Source)).
		Int("prompt_tokens", t.Report.PromptTokens).
		Int("completion_tokens", t.Report.CompletionTokens).
		Int("accepted", t.Report.SessionsAccepted).
		Int("dropped_unknown_topic", t.Report.DroppedUnknownTopic).
		Int("dropped_conflict", t.Report.DroppedConflict).
		Int("dropped_outside_window", t.Report.DroppedOutsideWindow).
		Msg("Timetable stored")

	return &GenerateResult{Timetable: t}, nil
}

func (s *TimetableService) cachedTimetable(ctx context.Context, key, userID string) *model.Timetable {
	if s.rdb == nil {
		return nil
	}
	raw, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Msg("Result cache lookup failed")
		}
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	t, err := s.store.GetByID(ctx, id, userID)
	if err != nil {
		return nil
	}
	return t
}

// Get returns one of the user's timetables.
func (s *TimetableService) Get(ctx context.Context, id uuid.UUID, userID string) (*model.Timetable, error) {
	t, err := s.store.GetByID(ctx, id, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTimetableNotFound
		}
		return nil, err
	}
	return t, nil
}

// NormalizePage clamps paging parameters to sane defaults.
func NormalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}

// List returns a page of the user's timetables and the total count.
func (s *TimetableService) List(ctx context.Context, userID string, page, perPage int) ([]model.TimetableSummary, int, error) {
	page, perPage = NormalizePage(page, perPage)
	offset := (page - 1) * perPage
	return s.store.ListByUserPaginated(ctx, userID, perPage, offset)
}

// Delete removes one of the user's timetables.
func (s *TimetableService) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	if err := s.store.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTimetableNotFound
		}
		return err
	}
	return nil
}

func timetableName(req *model.GenerateTimetableRequest) string {
	if req.Name != "" {
		return req.Name
	}
	return fmt.Sprintf("Study plan %s to %s", req.StartDate, req.EndDate)
}
