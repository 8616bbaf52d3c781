package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/tubequiz/internal/model"
	"github.com/stemsi/tubequiz/internal/repository"
)

type fakeVideos struct {
	results       []model.VideoRef
	searchErr     error
	info          map[string]*model.VideoRef
	transcripts   map[string][]model.TranscriptEntry
	transcriptErr error
}

func (f *fakeVideos) Search(_ context.Context, query string, _ int) ([]model.VideoRef, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if query == "" {
		return nil, ErrEmptyQuery
	}
	return f.results, nil
}

func (f *fakeVideos) GetInfo(_ context.Context, id string) (*model.VideoRef, error) {
	v, ok := f.info[id]
	if !ok {
		return nil, ErrVideoNotFound
	}
	cp := *v
	return &cp, nil
}

func (f *fakeVideos) GetTranscript(_ context.Context, id string) ([]model.TranscriptEntry, error) {
	if f.transcriptErr != nil {
		return nil, f.transcriptErr
	}
	t, ok := f.transcripts[id]
	if !ok {
		return nil, ErrTranscriptUnavailable
	}
	return t, nil
}

type fakeResults struct {
	err     error
	stored  map[string]*model.QuizResult
	creates int
}

func (f *fakeResults) Create(_ context.Context, res *model.QuizResult) (bool, error) {
	f.creates++
	if f.err != nil {
		return false, f.err
	}
	if f.stored == nil {
		f.stored = map[string]*model.QuizResult{}
	}
	key := res.QuizID.String()
	if _, ok := f.stored[key]; ok {
		return false, nil
	}
	f.stored[key] = res
	return true, nil
}

type fakeFeedback struct {
	receipt *FeedbackReceipt
	err     error
	calls   int
}

func (f *fakeFeedback) Submit(_ context.Context, _ *model.Session, _ model.FeedbackType, _ string) (*FeedbackReceipt, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.receipt != nil {
		return f.receipt, nil
	}
	return &FeedbackReceipt{ID: 1}, nil
}

type workflowFixture struct {
	svc       *WorkflowService
	store     *repository.WorkflowStore
	sessions  *repository.SessionStore
	videos    *fakeVideos
	results   *fakeResults
	feedback  *fakeFeedback
	completer *fakeCompleter
	mr        *miniredis.Miniredis
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &workflowFixture{
		store:    repository.NewWorkflowStore(rdb, time.Hour),
		sessions: repository.NewSessionStore(rdb),
		videos: &fakeVideos{
			results: []model.VideoRef{{ID: "vid1", Title: "Quantum 101", Duration: "00:10:00"}},
			info:    map[string]*model.VideoRef{"vid1": {ID: "vid1", Title: "Quantum 101"}, "vid2": {ID: "vid2", Title: "Silent film"}},
			transcripts: map[string][]model.TranscriptEntry{
				"vid1": {{Text: "qubits are units", Start: 0, Duration: 2}, {Text: "of quantum information", Start: 2, Duration: 2}},
			},
		},
		results:   &fakeResults{},
		feedback:  &fakeFeedback{},
		completer: &fakeCompleter{reply: fiveMCQuestions},
		mr:        mr,
	}
	for _, sess := range []*model.Session{anonSession(), userSession()} {
		if err := f.sessions.Save(context.Background(), sess, time.Hour); err != nil {
			t.Fatal(err)
		}
	}
	gen := NewQuizGeneratorWithCompleter(f.completer, time.Second, zerolog.Nop())
	f.svc = NewWorkflowService(f.videos, gen, f.store, f.sessions, f.results, f.feedback, WorkflowOptions{
		LockTTL:      time.Minute,
		DebugEnabled: true,
		DebugLines:   3,
		DebugLog:     func(n int) []string { return []string{"line a", "line b"}[:min(n, 2)] },
	}, zerolog.Nop())
	return f
}

func anonSession() *model.Session {
	return &model.Session{ID: "anon", CreatedAt: time.Now()}
}

func userSession() *model.Session {
	uid := int64(7)
	return &model.Session{ID: "user", UserID: &uid, Username: "ada", Authenticated: true, CreatedAt: time.Now()}
}

func (f *workflowFixture) mustDispatch(t *testing.T, sess *model.Session, a model.Action) *model.View {
	t.Helper()
	v, err := f.svc.Dispatch(context.Background(), sess, a)
	if err != nil {
		t.Fatalf("dispatch %s: %v", a.Kind(), err)
	}
	return v
}

func (f *workflowFixture) state(t *testing.T, sess *model.Session) *model.WorkflowState {
	t.Helper()
	st, err := f.store.Load(context.Background(), sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestSearchThenSelect(t *testing.T) {
	f := newWorkflowFixture(t)
	sess := anonSession()

	v := f.mustDispatch(t, sess, model.SearchAction{Query: "quantum"})
	if v.State != model.StatusIdle || len(v.Results) != 1 || v.Query != "quantum" {
		t.Fatalf("after search: %+v", v)
	}

	v = f.mustDispatch(t, sess, model.SelectVideoAction{VideoID: "https://youtu.be/vid1"})
	if v.State != model.StatusVideoSelected {
		t.Fatalf("state = %s, want VIDEO_SELECTED", v.State)
	}
	if v.Transcript == nil || len(v.Transcript.Entries) == 0 || v.Transcript.WordCount != 6 {
		t.Errorf("transcript view = %+v", v.Transcript)
	}
	if v.Video == nil || v.Video.ID != "vid1" {
		t.Errorf("video = %+v", v.Video)
	}
}

func TestSelectTranscriptUnavailableLeavesState(t *testing.T) {
	f := newWorkflowFixture(t)
	sess := anonSession()

	_, err := f.svc.Dispatch(context.Background(), sess, model.SelectVideoAction{VideoID: "vid2"})
	if !errors.Is(err, ErrTranscriptUnavailable) {
		t.Fatalf("err = %v, want ErrTranscriptUnavailable", err)
	}
	if st := f.state(t, sess); st.Status != model.StatusIdle || st.Video != nil {
		t.Errorf("fresh session state = %s video=%v, want untouched Idle", st.Status, st.Video)
	}

	f.mustDispatch(t, sess, model.SelectVideoAction{VideoID: "vid1"})
	if _, err := f.svc.Dispatch(context.Background(), sess, model.SelectVideoAction{VideoID: "vid2"}); !errors.Is(err, ErrTranscriptUnavailable) {
		t.Fatalf("err = %v", err)
	}
	st := f.state(t, sess)
	if st.Status != model.StatusVideoSelected || st.Video.ID != "vid1" || len(st.Transcript) != 2 {
		t.Errorf("state after failed reselect = %s %v", st.Status, st.Video)
	}

	if _, err := f.svc.Dispatch(context.Background(), sess, model.SelectVideoAction{VideoID: "nope"}); !errors.Is(err, ErrVideoNotFound) {
		t.Errorf("unknown video err = %v", err)
	}
}

func TestSearchFailureRestoresState(t *testing.T) {
	f := newWorkflowFixture(t)
	sess := anonSession()
	f.mustDispatch(t, sess, model.SelectVideoAction{VideoID: "vid1"})

	f.videos.searchErr = errors.Join(ErrSearchFailed, errors.New("quota"))
	if _, err := f.svc.Dispatch(context.Background(), sess, model.SearchAction{Query: "x"}); !errors.Is(err, ErrSearchFailed) {
		t.Fatalf("err = %v", err)
	}
	st := f.state(t, sess)
	if st.Status != model.StatusVideoSelected || st.Video == nil {
		t.Errorf("state = %s, want restored VIDEO_SELECTED", st.Status)
	}
}

func TestGenerateMultipleChoiceFive(t *testing.T) {
	f := newWorkflowFixture(t)
	sess := anonSession()
	f.mustDispatch(t, sess, model.SelectVideoAction{VideoID: "vid1"})

	v := f.mustDispatch(t, sess, model.GenerateQuizAction{QuestionType: model.QuestionTypeMultipleChoice, Count: 5})
	if v.State != model.StatusQuizGenerated || v.Quiz == nil || len(v.Quiz.Questions) != 5 {
		t.Fatalf("view = %+v", v)
	}
	if v.Result != nil {
		t.Error("result shown before submission")
	}

	st := f.state(t, sess)
	for i, q := range st.Attempt.Questions {
		in := false
		for _, o := range q.Options {
			in = in || o == q.CorrectAnswer
		}
		if !in {
			t.Errorf("question %d answer %q not among options", i, q.CorrectAnswer)
		}
	}
	if st.Attempt.UserAnswers != nil || st.Attempt.Submitted() {
		t.Error("fresh attempt carries answers")
	}
}

func TestGenerateValidationAndState(t *testing.T) {
	f := newWorkflowFixture(t)
	sess := anonSession()

	tests := []struct {
		name    string
		action  model.GenerateQuizAction
		wantErr error
	}{
		{"no transcript", model.GenerateQuizAction{QuestionType: model.QuestionTypeTrueFalse, Count: 3}, ErrNoTranscript},
		{"bad type", model.GenerateQuizAction{QuestionType: "essay", Count: 3}, ErrInvalidQuestionType},
		{"too many", model.GenerateQuizAction{QuestionType: model.QuestionTypeTrueFalse, Count: 21}, ErrInvalidQuestionCount},
		{"negative", model.GenerateQuizAction{QuestionType: model.QuestionTypeTrueFalse, Count: -1}, ErrInvalidQuestionCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Dispatch(context.Background(), sess, tt.action)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if Kind(err) == KindInternal {
				t.Errorf("err %v classified as internal", err)
			}
		})
	}
}

func TestGenerateFailureKeepsTranscript(t *testing.T) {
	f := newWorkflowFixture(t)
	sess := anonSession()
	f.mustDispatch(t, sess, model.SelectVideoAction{VideoID: "vid1"})
	f.mustDispatch(t, sess, model.GenerateQuizAction{QuestionType: model.QuestionTypeMultipleChoice, Count: 2})

	f.completer.err = errors.New("model overloaded")
	_, err := f.svc.Dispatch(context.Background(), sess, model.GenerateQuizAction{QuestionType: model.QuestionTypeMultipleChoice, Count: 2})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("err = %v", err)
	}
	st := f.state(t, sess)
	if st.Status != model.StatusVideoSelected || !st.HasTranscript() || st.Attempt != nil {
		t.Errorf("state = %s transcript=%v attempt=%v", st.Status, st.HasTranscript(), st.Attempt)
	}
}

func TestSubmitScoresAndPersistsOnce(t *testing.T) {
	f := newWorkflowFixture(t)
	sess := userSession()
	f.mustDispatch(t, sess, model.SelectVideoAction{VideoID: "vid1"})
	f.mustDispatch(t, sess, model.GenerateQuizAction{QuestionType: model.QuestionTypeMultipleChoice, Count: 5})

	st := f.state(t, sess)
	answers := map[int]string{
		0: st.Attempt.Questions[0].CorrectAnswer,
		1: st.Attempt.Questions[1].CorrectAnswer,
		2: "definitely wrong",
	}

	v := f.mustDispatch(t, sess, model.SubmitQuizAction{Answers: answers})
	if v.State != model.StatusQuizSubmitted || v.Result == nil {
		t.Fatalf("view = %+v", v)
	}
	if v.Result.Score != 2 || v.Result.Total != 5 || v.Result.Passed {
		t.Errorf("result = %+v", v.Result)
	}
	if len(v.Result.Review) != 5 || v.Result.Review[3].YourAnswer != model.NoAnswer {
		t.Errorf("review = %+v", v.Result.Review)
	}

	_, err := f.svc.Dispatch(context.Background(), sess, model.SubmitQuizAction{Answers: answers})
	if !errors.Is(err, ErrNoActiveAttempt) {
		t.Fatalf("second submit err = %v, want ErrNoActiveAttempt", err)
	}
	if f.results.creates != 1 || len(f.results.stored) != 1 {
		t.Errorf("creates=%d stored=%d, want 1/1", f.results.creates, len(f.results.stored))
	}
	for _, r := range f.results.stored {
		if r.UserID != 7 || r.Score != 2 || r.Total != 5 {
			t.Errorf("stored = %+v", r)
		}
	}
}

func TestSubmitAnonymousDoesNotPersist(t *testing.T) {
	f := newWorkflowFixture(t)
	sess := anonSession()
	f.mustDispatch(t, sess, model.SelectVideoAction{VideoID: "vid1"})
	f.mustDispatch(t, sess, model.GenerateQuizAction{QuestionType: model.QuestionTypeMultipleChoice, Count: 3})
	f.mustDispatch(t, sess, model.SubmitQuizAction{})

	if f.results.creates != 0 {
		t.Errorf("anonymous submit persisted %d results", f.results.creates)
	}
}

func TestSubmitPersistenceFailureAllowsRetry(t *testing.T) {
	f := newWorkflowFixture(t)
	sess := userSession()
	f.mustDispatch(t, sess, model.SelectVideoAction{VideoID: "vid1"})
	f.mustDispatch(t, sess, model.GenerateQuizAction{QuestionType: model.QuestionTypeMultipleChoice, Count: 3})

	f.results.err = errors.New("connection refused")
	_, err := f.svc.Dispatch(context.Background(), sess, model.SubmitQuizAction{Answers: map[int]string{0: "x"}})
	if !errors.Is(err, ErrPersistence) || Kind(err) != KindPersistence {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	st := f.state(t, sess)
	if st.Status != model.StatusQuizGenerated || st.Attempt.Submitted() {
		t.Fatalf("state after failed persist = %s submitted=%v", st.Status, st.Attempt.Submitted())
	}

	f.results.err = nil
	f.mustDispatch(t, sess, model.SubmitQuizAction{Answers: map[int]string{0: "x"}})
	if len(f.results.stored) != 1 {
		t.Errorf("stored = %d after retry", len(f.results.stored))
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newWorkflowFixture(t)
	sess := anonSession()

	if _, err := f.svc.Dispatch(context.Background(), sess, model.SubmitQuizAction{}); !errors.Is(err, ErrNoActiveAttempt) {
		t.Errorf("submit from Idle err = %v", err)
	}

	f.mustDispatch(t, sess, model.SelectVideoAction{VideoID: "vid1"})
	f.mustDispatch(t, sess, model.GenerateQuizAction{QuestionType: model.QuestionTypeMultipleChoice, Count: 2})
	_, err := f.svc.Dispatch(context.Background(), sess, model.SubmitQuizAction{Answers: map[int]string{5: "a"}})
	if !errors.Is(err, ErrInvalidAnswers) || Kind(err) != KindValidation {
		t.Fatalf("err = %v, want ErrInvalidAnswers", err)
	}
	if st := f.state(t, sess); st.Status != model.StatusQuizGenerated {
		t.Errorf("state = %s", st.Status)
	}
}

func TestSearchDropsQuizArtifacts(t *testing.T) {
	f := newWorkflowFixture(t)
	sess := anonSession()
	f.mustDispatch(t, sess, model.SelectVideoAction{VideoID: "vid1"})
	f.mustDispatch(t, sess, model.GenerateQuizAction{QuestionType: model.QuestionTypeMultipleChoice, Count: 2})

	v := f.mustDispatch(t, sess, model.SearchAction{Query: "again"})
	if v.State != model.StatusIdle || v.Quiz != nil || v.Video != nil || v.Transcript != nil {
		t.Errorf("view after new search = %+v", v)
	}
}

func TestActionInFlight(t *testing.T) {
	f := newWorkflowFixture(t)
	sess := anonSession()

	if _, err := f.store.Lock(context.Background(), sess.ID, time.Minute); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.Dispatch(context.Background(), sess, model.SearchAction{Query: "q"})
	if !errors.Is(err, ErrActionInFlight) {
		t.Fatalf("err = %v, want ErrActionInFlight", err)
	}
	if !f.mr.Exists("workflow:anon:lock") {
		t.Error("rejected action released someone else's lock")
	}
}

func TestFeedbackAndDebugToggles(t *testing.T) {
	f := newWorkflowFixture(t)
	sess := anonSession()

	v := f.mustDispatch(t, sess, model.OpenFeedbackAction{})
	if !v.FeedbackOpen {
		t.Fatal("feedback not open")
	}
	v = f.mustDispatch(t, sess, model.SubmitFeedbackAction{Type: model.FeedbackTypeBug, Text: "broken"})
	if v.FeedbackOpen || v.Notice != NoticeFeedbackThanks {
		t.Errorf("after submit: open=%v notice=%q", v.FeedbackOpen, v.Notice)
	}

	f.feedback.receipt = &FeedbackReceipt{Warning: FeedbackWarning}
	f.mustDispatch(t, sess, model.OpenFeedbackAction{})
	v = f.mustDispatch(t, sess, model.SubmitFeedbackAction{Type: model.FeedbackTypeBug, Text: "again"})
	if v.Notice != FeedbackWarning {
		t.Errorf("notice = %q, want warning", v.Notice)
	}

	f.feedback.err = ErrEmptyFeedback
	f.mustDispatch(t, sess, model.OpenFeedbackAction{})
	if _, err := f.svc.Dispatch(context.Background(), sess, model.SubmitFeedbackAction{Type: model.FeedbackTypeBug}); !errors.Is(err, ErrEmptyFeedback) {
		t.Errorf("err = %v", err)
	}
	if !f.state(t, sess).FeedbackOpen {
		t.Error("rejected feedback closed the modal")
	}
	v = f.mustDispatch(t, sess, model.CloseFeedbackAction{})
	if v.FeedbackOpen {
		t.Error("close did not close")
	}

	v = f.mustDispatch(t, sess, model.ToggleDebugAction{})
	if !v.DebugVisible || len(v.DebugLog) != 2 {
		t.Errorf("debug view = %v %v", v.DebugVisible, v.DebugLog)
	}
	v = f.mustDispatch(t, sess, model.ToggleDebugAction{})
	if v.DebugVisible || v.DebugLog != nil {
		t.Errorf("debug still visible: %v", v.DebugLog)
	}
}

func TestResetReturnsToIdle(t *testing.T) {
	f := newWorkflowFixture(t)
	sess := anonSession()
	f.mustDispatch(t, sess, model.SelectVideoAction{VideoID: "vid1"})

	v := f.mustDispatch(t, sess, model.ResetAction{})
	if v.State != model.StatusIdle || v.Video != nil {
		t.Errorf("view after reset = %+v", v)
	}
}

func TestDispatchAfterLogoutIsRejected(t *testing.T) {
	f := newWorkflowFixture(t)
	sess := userSession()
	ctx := context.Background()
	f.mustDispatch(t, sess, model.SelectVideoAction{VideoID: "vid1"})
	f.mustDispatch(t, sess, model.GenerateQuizAction{QuestionType: model.QuestionTypeMultipleChoice, Count: 3})

	if err := f.sessions.Delete(ctx, sess.ID); err != nil {
		t.Fatal(err)
	}
	if err := f.store.Delete(ctx, sess.ID); err != nil {
		t.Fatal(err)
	}

	actions := []model.Action{
		model.SelectVideoAction{VideoID: "vid1"},
		model.GenerateQuizAction{QuestionType: model.QuestionTypeMultipleChoice, Count: 3},
		model.SubmitQuizAction{Answers: map[int]string{0: "x"}},
		model.ToggleDebugAction{},
	}
	for _, a := range actions {
		if _, err := f.svc.Dispatch(ctx, sess, a); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("%s: err = %v, want ErrSessionNotFound", a.Kind(), err)
		}
	}
	if f.mr.Exists("workflow:user") {
		t.Error("workflow state recreated after logout")
	}
	if f.results.creates != 0 {
		t.Errorf("results created after logout = %d", f.results.creates)
	}
}

func TestLogoutDuringGenerationDropsResult(t *testing.T) {
	f := newWorkflowFixture(t)
	sess := userSession()
	ctx := context.Background()
	f.mustDispatch(t, sess, model.SelectVideoAction{VideoID: "vid1"})

	f.completer.before = func() {
		_ = f.sessions.Delete(ctx, sess.ID)
		_ = f.store.Delete(ctx, sess.ID)
	}
	_, err := f.svc.Dispatch(ctx, sess, model.GenerateQuizAction{QuestionType: model.QuestionTypeMultipleChoice, Count: 5})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
	if f.mr.Exists("workflow:user") {
		t.Error("generated quiz saved for a destroyed session")
	}
	if f.mr.Exists("workflow:user:lock") {
		t.Error("lock not released")
	}
}

func TestGenerateRecoversFromStaleInFlightStatus(t *testing.T) {
	for _, status := range []model.WorkflowStatus{model.StatusTranscriptReady, model.StatusSearching} {
		t.Run(string(status), func(t *testing.T) {
			f := newWorkflowFixture(t)
			sess := anonSession()
			f.mustDispatch(t, sess, model.SelectVideoAction{VideoID: "vid1"})

			st := f.state(t, sess)
			st.Status = status
			if err := f.store.Save(context.Background(), st); err != nil {
				t.Fatal(err)
			}

			v := f.mustDispatch(t, sess, model.GenerateQuizAction{QuestionType: model.QuestionTypeMultipleChoice, Count: 5})
			if v.State != model.StatusQuizGenerated || v.Quiz == nil {
				t.Errorf("view = %s quiz=%v", v.State, v.Quiz)
			}
		})
	}
}
