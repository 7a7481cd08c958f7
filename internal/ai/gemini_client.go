package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// maxToolRounds caps the function-calling loop so a model that keeps
// requesting tools cannot spin forever.
const maxToolRounds = 6

var ErrEmptyResponse = errors.New("model returned no content")

// ToolSpec declares a callable function for the model. Params map
// argument names to plain-English descriptions; all declared string
// arguments are required.
type ToolSpec struct {
	Name        string
	Description string
	Params      map[string]string
	Required    []string
}

// ToolExecutor runs a tool requested by the model and returns its
// result payload. Execution errors must come back as an error so the
// caller can decide what the model sees.
type ToolExecutor func(ctx context.Context, name string, args map[string]any) (map[string]any, error)

type GeminiClient struct {
	breaker      *gobreaker.CircuitBreaker
	rateLimiter  *rate.Limiter
	tokenCounter *TokenCounter
	client       *genai.Client
	model        string
	tier         string
}

type TokenCounter struct {
	mu              sync.Mutex
	limits          RateLimits
	minuteTokens    int
	dailyTokens     int
	minuteRequests  int
	dailyRequests   int
	lastMinuteReset time.Time
	lastDayReset    time.Time
}

type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

func NewGeminiClient(apiKey, model, tier string) (*GeminiClient, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	limits := getRateLimits(tier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	// RPM limit with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), maxInt(limits.RPM/10, 1))

	return &GeminiClient{
		breaker:      breaker,
		rateLimiter:  rateLimiter,
		tokenCounter: &TokenCounter{limits: limits},
		client:       client,
		model:        model,
		tier:         tier,
	}, nil
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "free":
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

// StreamAnswer generates a completion for prompt and feeds each text
// fragment to emit as it arrives. An error from emit aborts the stream,
// which also covers client disconnects.
func (gc *GeminiClient) StreamAnswer(ctx context.Context, prompt string, emit func(string) error) error {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.stream_answer")
	defer span.End()

	estimated := estimateTokens(prompt)
	span.SetAttributes(
		attribute.Int("gemini.estimated_tokens", estimated),
		attribute.String("gemini.model", gc.model),
	)

	if !gc.tokenCounter.CanConsume(estimated, 1) {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return errors.New("rate limit exceeded: wait before retry")
	}
	if err := gc.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return err
	}
	if !gc.breakerAllows() {
		span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
		return gobreaker.ErrOpenState
	}

	model := gc.client.GenerativeModel(gc.model)
	model.SetTemperature(0.7)
	model.SetMaxOutputTokens(2048)

	iter := model.GenerateContentStream(ctx, genai.Text(prompt))
	streamed := 0
	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			gc.recordOutcome(err)
			span.SetAttributes(attribute.Bool("gemini.error", true))
			return fmt.Errorf("stream failed: %w", err)
		}
		for _, text := range textParts(resp) {
			streamed += len(text)
			if err := emit(text); err != nil {
				return err
			}
		}
	}

	gc.recordOutcome(nil)
	gc.tokenCounter.RecordUsage(estimated+streamed/4, 1)
	span.SetAttributes(attribute.Bool("gemini.success", true))
	return nil
}

// RunToolSession drives a chat turn in which the model may call the
// declared tools. Tool results are fed back until the model answers in
// plain text, which is returned. A tool execution failure is reported
// to the model as an error result rather than aborting the session.
func (gc *GeminiClient) RunToolSession(ctx context.Context, message string, tools []ToolSpec, exec ToolExecutor) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.tool_session")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", gc.model),
		attribute.Int("gemini.tools", len(tools)),
	)

	estimated := estimateTokens(message)
	if !gc.tokenCounter.CanConsume(estimated, 1) {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", errors.New("rate limit exceeded: wait before retry")
	}
	if err := gc.rateLimiter.Wait(ctx); err != nil {
		return "", err
	}
	if !gc.breakerAllows() {
		span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
		return "", gobreaker.ErrOpenState
	}

	model := gc.client.GenerativeModel(gc.model)
	model.SetTemperature(0.7)
	model.Tools = buildTools(tools)

	session := model.StartChat()
	resp, err := session.SendMessage(ctx, genai.Text(message))
	if err != nil {
		gc.recordOutcome(err)
		return "", fmt.Errorf("chat send failed: %w", err)
	}

	rounds := 0
	for {
		calls := functionCalls(resp)
		if len(calls) == 0 {
			break
		}
		rounds++
		if rounds > maxToolRounds {
			span.SetAttributes(attribute.Bool("gemini.tool_loop_capped", true))
			return "", fmt.Errorf("tool loop exceeded %d rounds", maxToolRounds)
		}

		replies := make([]genai.Part, 0, len(calls))
		for _, call := range calls {
			result, execErr := exec(ctx, call.Name, call.Args)
			if execErr != nil {
				result = map[string]any{"error": execErr.Error()}
			}
			replies = append(replies, genai.FunctionResponse{
				Name:     call.Name,
				Response: result,
			})
		}

		resp, err = session.SendMessage(ctx, replies...)
		if err != nil {
			gc.recordOutcome(err)
			return "", fmt.Errorf("tool reply failed: %w", err)
		}
	}

	answer := joinText(resp)
	if answer == "" {
		gc.recordOutcome(ErrEmptyResponse)
		return "", ErrEmptyResponse
	}

	gc.recordOutcome(nil)
	gc.tokenCounter.RecordUsage(extractTokenUsage(resp), 1)
	span.SetAttributes(
		attribute.Bool("gemini.success", true),
		attribute.Int("gemini.tool_rounds", rounds),
	)
	return answer, nil
}

// breakerAllows routes a probe through the breaker without holding it
// open for the duration of a stream.
func (gc *GeminiClient) breakerAllows() bool {
	return gc.breaker.State() != gobreaker.StateOpen
}

// recordOutcome feeds a request result into the breaker statistics.
func (gc *GeminiClient) recordOutcome(callErr error) {
	gc.breaker.Execute(func() (interface{}, error) {
		return nil, callErr
	})
}

func buildTools(specs []ToolSpec) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		props := make(map[string]*genai.Schema, len(spec.Params))
		for name, desc := range spec.Params {
			props[name] = &genai.Schema{Type: genai.TypeString, Description: desc}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   spec.Required,
			},
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func functionCalls(resp *genai.GenerateContentResponse) []genai.FunctionCall {
	var calls []genai.FunctionCall
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if call, ok := part.(genai.FunctionCall); ok {
				calls = append(calls, call)
			}
		}
	}
	return calls
}

func textParts(resp *genai.GenerateContentResponse) []string {
	var parts []string
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok && len(text) > 0 {
				parts = append(parts, string(text))
			}
		}
	}
	return parts
}

func joinText(resp *genai.GenerateContentResponse) string {
	out := ""
	for _, piece := range textParts(resp) {
		out += piece
	}
	return out
}

func (tc *TokenCounter) CanConsume(tokens, requests int) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	now := time.Now()
	if now.Sub(tc.lastMinuteReset) >= time.Minute {
		tc.minuteTokens = 0
		tc.minuteRequests = 0
		tc.lastMinuteReset = now
	}
	if now.Sub(tc.lastDayReset) >= 24*time.Hour {
		tc.dailyTokens = 0
		tc.dailyRequests = 0
		tc.lastDayReset = now
	}

	if tc.minuteRequests+requests > tc.limits.RPM {
		return false
	}
	if tc.minuteTokens+tokens > tc.limits.TPM {
		return false
	}
	if tc.dailyRequests+requests > tc.limits.RPD {
		return false
	}
	return true
}

func (tc *TokenCounter) RecordUsage(tokens, requests int) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.minuteTokens += tokens
	tc.minuteRequests += requests
	tc.dailyTokens += tokens
	tc.dailyRequests += requests
}

// Rough estimation: 1 token is about 4 characters.
func estimateTokens(prompt string) int {
	return len(prompt) / 4
}

func extractTokenUsage(resp *genai.GenerateContentResponse) int {
	if resp.UsageMetadata != nil {
		return int(resp.UsageMetadata.TotalTokenCount)
	}
	estimated := len(joinText(resp)) / 4
	if estimated < 1 {
		estimated = 1
	}
	return estimated
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
