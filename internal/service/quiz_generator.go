package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"github.com/stemsi/tubequiz/internal/config"
	"github.com/stemsi/tubequiz/internal/model"
	"google.golang.org/api/option"
)

// maxTranscriptChars caps the transcript text placed in one prompt.
const maxTranscriptChars = 60000

// Completer sends a prompt to a language model and returns its text reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type geminiCompleter struct {
	model *genai.GenerativeModel
}

func (g *geminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini returned no content")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("gemini returned no text content")
	}
	return sb.String(), nil
}

// QuizGenerator turns transcript text into a fixed number of questions.
type QuizGenerator struct {
	completer Completer
	client    *genai.Client
	timeout   time.Duration
	log       zerolog.Logger
}

// NewQuizGenerator wires the generator to Gemini. Without an API key the
// generator still exists but every call fails with ErrGeneratorUnavailable.
func NewQuizGenerator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*QuizGenerator, error) {
	g := &QuizGenerator{
		timeout: cfg.GenerationTimeout,
		log:     log.With().Str("component", "quiz_generator").Logger(),
	}
	if cfg.GeminiAPIKey == "" {
		g.log.Warn().Msg("GEMINI_API_KEY is not set. Quiz generation will be unavailable.")
		return g, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	m := client.GenerativeModel(cfg.GeminiModel)
	m.ResponseMIMEType = "application/json"
	m.SetTemperature(0.7)

	g.client = client
	g.completer = &geminiCompleter{model: m}
	return g, nil
}

// NewQuizGeneratorWithCompleter builds a generator around any Completer.
func NewQuizGeneratorWithCompleter(c Completer, timeout time.Duration, log zerolog.Logger) *QuizGenerator {
	return &QuizGenerator{
		completer: c,
		timeout:   timeout,
		log:       log.With().Str("component", "quiz_generator").Logger(),
	}
}

// Close releases the Gemini client, if any.
func (g *QuizGenerator) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// Generate returns exactly count questions of the given type.
func (g *QuizGenerator) Generate(ctx context.Context, transcript string, qt model.QuestionType, count int) ([]model.Question, error) {
	if !qt.Valid() {
		return nil, ErrInvalidQuestionType
	}
	if count < model.MinQuestionCount || count > model.MaxQuestionCount {
		return nil, ErrInvalidQuestionCount
	}
	if g.completer == nil {
		return nil, ErrGeneratorUnavailable
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := g.completer.Complete(ctx, buildQuizPrompt(transcript, qt, count))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	parsed, err := parseQuestions(raw)
	if err != nil {
		g.log.Warn().Err(err).Int("raw_len", len(raw)).Msg("Unparseable model output")
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	questions := normalizeQuestions(parsed, qt)
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no usable questions in model output", ErrGenerationFailed)
	}
	if len(questions) < count {
		g.log.Warn().
			Int("usable", len(questions)).
			Int("requested", count).
			Msg("Model returned too few questions, padding by repetition")
	}

	g.log.Debug().
		Str("question_type", string(qt)).
		Int("count", count).
		Dur("took", time.Since(start)).
		Msg("Quiz generated")
	return fitCount(questions, count), nil
}

func buildQuizPrompt(transcript string, qt model.QuestionType, count int) string {
	transcript = truncateUTF8(transcript, maxTranscriptChars)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate exactly %d %s questions based on the following video transcript.\n", count, strings.ReplaceAll(string(qt), "_", " "))
	sb.WriteString("The questions should test understanding of key concepts in the transcript, ranging from easy to moderate.\n\n")

	switch qt {
	case model.QuestionTypeMultipleChoice:
		sb.WriteString("Each question has exactly 4 options. correct_answer must be copied verbatim from options.\n")
	case model.QuestionTypeTrueFalse:
		sb.WriteString(`Each question is a statement. options must be ["True", "False"] and correct_answer is "True" or "False".` + "\n")
	case model.QuestionTypeShortAnswer:
		sb.WriteString("options must be an empty array. correct_answer is a short phrase of at most five words.\n")
	}

	sb.WriteString(`Reply with JSON only, in this shape:
{"questions": [{"question": "...", "options": ["..."], "correct_answer": "...", "explanation": "one or two sentences"}]}

Transcript:
`)
	sb.WriteString(transcript)
	return sb.String()
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

type rawQuestion struct {
	Question      string   `json:"question"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Answer        string   `json:"answer"`
	Explanation   string   `json:"explanation"`
}

// parseQuestions accepts {"questions": [...]} or a bare array, optionally inside a code fence.
func parseQuestions(raw string) ([]rawQuestion, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	if strings.HasPrefix(text, "[") {
		var list []rawQuestion
		if err := json.Unmarshal([]byte(text), &list); err != nil {
			return nil, fmt.Errorf("decode question array: %w", err)
		}
		return list, nil
	}

	var wrapped struct {
		Questions []rawQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(text), &wrapped); err != nil {
		return nil, fmt.Errorf("decode question object: %w", err)
	}
	return wrapped.Questions, nil
}

func normalizeQuestions(raw []rawQuestion, qt model.QuestionType) []model.Question {
	out := make([]model.Question, 0, len(raw))
	for _, r := range raw {
		prompt := firstNonEmpty(r.Question, r.Prompt)
		answer := firstNonEmpty(r.CorrectAnswer, r.Answer)
		if prompt == "" || answer == "" {
			continue
		}

		q := model.Question{Prompt: prompt, Explanation: strings.TrimSpace(r.Explanation)}

		switch qt {
		case model.QuestionTypeTrueFalse:
			canon, ok := canonicalBool(answer)
			if !ok {
				continue
			}
			q.Options = []string{"True", "False"}
			q.CorrectAnswer = canon

		case model.QuestionTypeMultipleChoice:
			opts := trimAll(r.Options)
			if len(opts) < 2 {
				continue
			}
			matched, ok := matchOption(opts, answer)
			if !ok {
				continue
			}
			q.Options = opts
			q.CorrectAnswer = matched

		case model.QuestionTypeShortAnswer:
			q.Options = []string{}
			q.CorrectAnswer = answer
		}

		out = append(out, q)
	}
	return out
}

// fitCount truncates or pads by cycling earlier questions until len == count.
func fitCount(questions []model.Question, count int) []model.Question {
	if len(questions) >= count {
		return questions[:count]
	}
	out := make([]model.Question, 0, count)
	out = append(out, questions...)
	for i := 0; len(out) < count; i++ {
		q := questions[i%len(questions)]
		q.Options = slices.Clone(q.Options)
		out = append(out, q)
	}
	return out
}

// matchOption resolves an answer to one of opts: exact, then case-insensitive,
// then by letter ("B", "b)", "B.").
func matchOption(opts []string, answer string) (string, bool) {
	for _, o := range opts {
		if o == answer {
			return o, true
		}
	}
	for _, o := range opts {
		if strings.EqualFold(o, answer) {
			return o, true
		}
	}

	letter := strings.TrimRight(strings.TrimSpace(answer), ").:")
	if len(letter) == 1 {
		idx := int(strings.ToUpper(letter)[0]) - 'A'
		if idx >= 0 && idx < len(opts) {
			return opts[idx], true
		}
	}
	return "", false
}

func canonicalBool(s string) (string, bool) {
	switch strings.ToLower(strings.TrimRight(strings.TrimSpace(s), ".")) {
	case "true", "t", "yes":
		return "True", true
	case "false", "f", "no":
		return "False", true
	}
	return "", false
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
