package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/tubequiz/internal/model"
	"github.com/stemsi/tubequiz/internal/repository"
)

// DefaultQuestionCount is used when a generate action leaves count unset.
const DefaultQuestionCount = 5

// NoticeFeedbackThanks is shown after feedback is stored.
const NoticeFeedbackThanks = "Thanks for your feedback!"

// VideoLookup is the video search and transcript backend.
type VideoLookup interface {
	Search(ctx context.Context, query string, maxResults int) ([]model.VideoRef, error)
	GetInfo(ctx context.Context, videoID string) (*model.VideoRef, error)
	GetTranscript(ctx context.Context, videoID string) ([]model.TranscriptEntry, error)
}

// QuizMaker produces questions from transcript text.
type QuizMaker interface {
	Generate(ctx context.Context, transcript string, qt model.QuestionType, count int) ([]model.Question, error)
}

// StateStore persists workflow state and serializes actions per session.
type StateStore interface {
	Load(ctx context.Context, sessionID string) (*model.WorkflowState, error)
	Save(ctx context.Context, st *model.WorkflowState) error
	Lock(ctx context.Context, sessionID string, ttl time.Duration) (string, error)
	Unlock(ctx context.Context, sessionID, token string) error
}

// SessionLookup reports whether a session record still exists.
type SessionLookup interface {
	Get(ctx context.Context, id string) (*model.Session, error)
}

// ResultStore persists scored attempts idempotently on quiz id.
type ResultStore interface {
	Create(ctx context.Context, res *model.QuizResult) (bool, error)
}

// FeedbackSubmitter accepts feedback on behalf of a session.
type FeedbackSubmitter interface {
	Submit(ctx context.Context, sess *model.Session, t model.FeedbackType, text string) (*FeedbackReceipt, error)
}

// WorkflowOptions tunes the orchestrator.
type WorkflowOptions struct {
	LockTTL      time.Duration
	DebugEnabled bool
	DebugLines   int
	// DebugLog returns the most recent n log lines.
	DebugLog func(n int) []string
}

// WorkflowService is the per-session state machine that takes a user from a
// search to a scored quiz. Every action runs under the session's lock.
type WorkflowService struct {
	videos   VideoLookup
	quizzes  QuizMaker
	states   StateStore
	sessions SessionLookup
	results  ResultStore
	feedback FeedbackSubmitter
	opts     WorkflowOptions
	log      zerolog.Logger
	now      func() time.Time
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(videos VideoLookup, quizzes QuizMaker, states StateStore, sessions SessionLookup, results ResultStore, feedback FeedbackSubmitter, opts WorkflowOptions, log zerolog.Logger) *WorkflowService {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 2 * time.Minute
	}
	return &WorkflowService{
		videos:   videos,
		quizzes:  quizzes,
		states:   states,
		sessions: sessions,
		results:  results,
		feedback: feedback,
		opts:     opts,
		log:      log.With().Str("component", "workflow_service").Logger(),
		now:      time.Now,
	}
}

// View returns the current view of a session without changing it.
func (s *WorkflowService) View(ctx context.Context, sess *model.Session) (*model.View, error) {
	st, err := s.states.Load(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	return s.buildView(st), nil
}

// Dispatch runs one action against the session's state and returns the new view.
// On error the stored state is left as it was before the action. A session
// destroyed before or during the action yields ErrSessionNotFound and nothing
// further is written for it.
func (s *WorkflowService) Dispatch(ctx context.Context, sess *model.Session, action model.Action) (*model.View, error) {
	if err := s.ensureLive(ctx, sess.ID); err != nil {
		return nil, err
	}

	token, err := s.states.Lock(ctx, sess.ID, s.opts.LockTTL)
	if err != nil {
		if errors.Is(err, repository.ErrLockHeld) {
			return nil, ErrActionInFlight
		}
		return nil, err
	}
	defer func() {
		if err := s.states.Unlock(context.Background(), sess.ID, token); err != nil {
			s.log.Warn().Err(err).Str("session_id", sess.ID).Msg("Failed to release workflow lock")
		}
	}()

	st, err := s.states.Load(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	// With the lock held no other action runs, so an in-flight status is stale.
	st.Settle()
	from := st.Status

	var notice string
	switch a := action.(type) {
	case model.SearchAction:
		err = s.search(ctx, st, a)
	case model.SelectVideoAction:
		err = s.selectVideo(ctx, st, a)
	case model.GenerateQuizAction:
		err = s.generateQuiz(ctx, st, a)
	case model.SubmitQuizAction:
		err = s.submitQuiz(ctx, sess, st, a)
	case model.OpenFeedbackAction:
		st.FeedbackOpen = true
		err = s.save(ctx, st)
	case model.CloseFeedbackAction:
		st.FeedbackOpen = false
		err = s.save(ctx, st)
	case model.SubmitFeedbackAction:
		notice, err = s.submitFeedback(ctx, sess, st, a)
	case model.ToggleDebugAction:
		st.DebugVisible = !st.DebugVisible
		err = s.save(ctx, st)
	case model.ResetAction:
		debug := st.DebugVisible
		st = model.NewWorkflowState(sess.ID)
		st.DebugVisible = debug
		err = s.save(ctx, st)
	default:
		return nil, fmt.Errorf("unsupported action %T", action)
	}

	lvl := zerolog.InfoLevel
	if err != nil {
		lvl = zerolog.WarnLevel
	}
	s.log.WithLevel(lvl).Err(err).
		Str("session_id", sess.ID).
		Str("action", string(action.Kind())).
		Str("from", string(from)).
		Str("to", string(st.Status)).
		Msg("Workflow action")

	if err != nil {
		return nil, err
	}

	v := s.buildView(st)
	v.Notice = notice
	return v, nil
}

func (s *WorkflowService) search(ctx context.Context, st *model.WorkflowState, a model.SearchAction) error {
	prev := st.Clone()

	st.Status = model.StatusSearching
	if err := s.save(ctx, st); err != nil {
		return err
	}

	results, err := s.videos.Search(ctx, a.Query, a.MaxResults)
	if err != nil {
		*st = *prev
		if rerr := s.save(ctx, prev); rerr != nil && !errors.Is(rerr, ErrSessionNotFound) {
			s.log.Error().Err(rerr).Str("session_id", st.SessionID).Msg("Failed to restore state after search error")
		}
		return err
	}

	if prev.Attempt != nil && !prev.Attempt.Submitted() {
		s.log.Debug().Str("quiz_id", prev.Attempt.QuizID.String()).Msg("Dropping unsubmitted quiz on new search")
	}

	st.Status = model.StatusIdle
	st.Query = a.Query
	st.Results = results
	st.Video = nil
	st.Transcript = nil
	st.Attempt = nil
	return s.save(ctx, st)
}

func (s *WorkflowService) selectVideo(ctx context.Context, st *model.WorkflowState, a model.SelectVideoAction) error {
	id := ExtractVideoID(a.VideoID)
	if id == "" {
		return ErrVideoNotFound
	}

	info, err := s.videos.GetInfo(ctx, id)
	if err != nil {
		return err
	}
	entries, err := s.videos.GetTranscript(ctx, id)
	if err != nil {
		return err
	}

	st.Status = model.StatusVideoSelected
	st.Video = info
	st.Transcript = entries
	st.Attempt = nil
	return s.save(ctx, st)
}

func (s *WorkflowService) generateQuiz(ctx context.Context, st *model.WorkflowState, a model.GenerateQuizAction) error {
	count := a.Count
	if count == 0 {
		count = DefaultQuestionCount
	}
	if !a.QuestionType.Valid() {
		return ErrInvalidQuestionType
	}
	if count < model.MinQuestionCount || count > model.MaxQuestionCount {
		return ErrInvalidQuestionCount
	}

	switch st.Status {
	case model.StatusVideoSelected, model.StatusQuizGenerated, model.StatusQuizSubmitted:
	default:
		return ErrNoTranscript
	}
	if !st.HasTranscript() {
		return ErrNoTranscript
	}

	st.Status = model.StatusTranscriptReady
	st.Attempt = nil
	if err := s.save(ctx, st); err != nil {
		return err
	}

	questions, err := s.quizzes.Generate(ctx, model.JoinTranscript(st.Transcript), a.QuestionType, count)
	if err != nil {
		st.Status = model.StatusVideoSelected
		if rerr := s.save(ctx, st); rerr != nil && !errors.Is(rerr, ErrSessionNotFound) {
			s.log.Error().Err(rerr).Str("session_id", st.SessionID).Msg("Failed to reset state after generation error")
		}
		return err
	}

	st.Attempt = model.NewQuizAttempt(st.Video.ID, a.QuestionType, questions, s.now().UTC())
	st.Status = model.StatusQuizGenerated
	return s.save(ctx, st)
}

func (s *WorkflowService) submitQuiz(ctx context.Context, sess *model.Session, st *model.WorkflowState, a model.SubmitQuizAction) error {
	if st.Status != model.StatusQuizGenerated || st.Attempt == nil || st.Attempt.Submitted() {
		return ErrNoActiveAttempt
	}

	scored := st.Clone().Attempt
	if err := scored.Submit(a.Answers, s.now().UTC()); err != nil {
		if errors.Is(err, model.ErrAnswerOutOfRange) {
			return fmt.Errorf("%w: %v", ErrInvalidAnswers, err)
		}
		return err
	}

	if sess.Authenticated && sess.UserID != nil {
		if err := s.ensureLive(ctx, sess.ID); err != nil {
			return err
		}
		inserted, err := s.results.Create(ctx, &model.QuizResult{
			UserID:       *sess.UserID,
			QuizID:       scored.QuizID,
			VideoID:      scored.VideoID,
			QuestionType: scored.QuestionType,
			Questions:    scored.Questions,
			UserAnswers:  scored.UserAnswers,
			Score:        scored.Score,
			Total:        scored.Total,
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if !inserted {
			s.log.Debug().Str("quiz_id", scored.QuizID.String()).Msg("Quiz result already stored")
		}
	}

	st.Attempt = scored
	st.Status = model.StatusQuizSubmitted
	return s.save(ctx, st)
}

func (s *WorkflowService) submitFeedback(ctx context.Context, sess *model.Session, st *model.WorkflowState, a model.SubmitFeedbackAction) (string, error) {
	receipt, err := s.feedback.Submit(ctx, sess, a.Type, a.Text)
	if err != nil {
		return "", err
	}

	st.FeedbackOpen = false
	if err := s.save(ctx, st); err != nil {
		return "", err
	}
	if receipt.Warning != "" {
		return receipt.Warning, nil
	}
	return NoticeFeedbackThanks, nil
}

// ensureLive fails with ErrSessionNotFound once the session has been destroyed.
func (s *WorkflowService) ensureLive(ctx context.Context, sessionID string) error {
	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return err
	}
	return nil
}

// save writes st only while its session is alive, so a logout racing an
// in-flight action cannot bring the state back.
func (s *WorkflowService) save(ctx context.Context, st *model.WorkflowState) error {
	if err := s.ensureLive(ctx, st.SessionID); err != nil {
		return err
	}
	st.UpdatedAt = s.now().UTC()
	return s.states.Save(ctx, st)
}

func (s *WorkflowService) buildView(st *model.WorkflowState) *model.View {
	v := model.BuildView(st)
	if st.DebugVisible && s.opts.DebugEnabled && s.opts.DebugLog != nil {
		v.DebugLog = s.opts.DebugLog(s.opts.DebugLines)
	}
	return v
}
