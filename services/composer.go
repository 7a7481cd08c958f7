package services

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"docqa-platform/internal/ai"
	"docqa-platform/internal/telemetry"
	"docqa-platform/models"
)

// StreamEvent is one unit of a chat response stream. Kind is one of
// content, citations, error or done; done is always the final event
// and is emitted exactly once.
type StreamEvent struct {
	Kind      string
	Content   string
	Citations []models.Citation
}

const (
	EventContent   = "content"
	EventCitations = "citations"
	EventError     = "error"
	EventDone      = "done"
)

// AnswerModel is the language model surface the composer needs.
type AnswerModel interface {
	StreamAnswer(ctx context.Context, prompt string, emit func(string) error) error
	RunToolSession(ctx context.Context, message string, tools []ai.ToolSpec, exec ai.ToolExecutor) (string, error)
}

// Composer turns a chat request into a stream of answer events,
// grounding the model on retrieved document chunks.
type Composer struct {
	retriever *Retriever
	toolset   *Toolset
	model     AnswerModel
	metrics   *telemetry.Metrics
}

func NewComposer(retriever *Retriever, toolset *Toolset, model AnswerModel, metrics *telemetry.Metrics) *Composer {
	return &Composer{retriever: retriever, toolset: toolset, model: model, metrics: metrics}
}

// Stream produces the event sequence for one chat turn. An error from
// emit stops the stream immediately; any other failure surfaces as an
// error event before the closing done event.
func (c *Composer) Stream(ctx context.Context, ownerEmail string, req models.ChatRequest, emit func(StreamEvent) error) error {
	tracer := otel.Tracer("composer")
	ctx, span := tracer.Start(ctx, "chat.stream")
	defer span.End()
	span.SetAttributes(attribute.Bool("chat.use_tools", req.UseTools))

	if strings.TrimSpace(req.Message) == "" {
		return emit(StreamEvent{Kind: EventDone})
	}

	var err error
	if req.UseTools {
		err = c.streamWithTools(ctx, ownerEmail, req, emit)
	} else {
		err = c.streamDirect(ctx, ownerEmail, req, emit)
	}
	if err != nil {
		span.SetAttributes(attribute.Bool("chat.error", true))
		if emitErr := emit(StreamEvent{Kind: EventError, Content: err.Error()}); emitErr != nil {
			return emitErr
		}
	}
	return emit(StreamEvent{Kind: EventDone})
}

func (c *Composer) streamDirect(ctx context.Context, ownerEmail string, req models.ChatRequest, emit func(StreamEvent) error) error {
	filter := &RetrievalFilter{
		DocumentID: req.DocumentID,
		Sources:    req.SelectedDocs,
	}
	texts, metas, err := c.retriever.Retrieve(ctx, ownerEmail, req.Message, DefaultTopK, filter)
	if err != nil {
		return err
	}

	citations := citationsFrom(metas)

	prompt := buildAnswerPrompt(req.Message, texts)
	streamErr := c.model.StreamAnswer(ctx, prompt, func(token string) error {
		if c.metrics != nil {
			c.metrics.TokensStreamed.Add(ctx, 1)
		}
		return emit(StreamEvent{Kind: EventContent, Content: token})
	})
	if streamErr != nil {
		return streamErr
	}

	return emit(StreamEvent{Kind: EventCitations, Citations: citations})
}

func (c *Composer) streamWithTools(ctx context.Context, ownerEmail string, req models.ChatRequest, emit func(StreamEvent) error) error {
	// Provenance accumulates across tool calls so the stream can cite
	// every chunk the model consulted, in call order.
	citations := []models.Citation{}
	exec := func(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
		result, cites, err := c.toolset.Execute(ctx, ownerEmail, name, args)
		if err != nil {
			return nil, err
		}
		citations = append(citations, cites...)
		return result, nil
	}

	answer, err := c.model.RunToolSession(ctx, req.Message, c.toolset.Specs(), exec)
	if err != nil {
		return err
	}

	for _, token := range splitTokens(answer) {
		if c.metrics != nil {
			c.metrics.TokensStreamed.Add(ctx, 1)
		}
		if err := emit(StreamEvent{Kind: EventContent, Content: token}); err != nil {
			return err
		}
	}
	return emit(StreamEvent{Kind: EventCitations, Citations: citations})
}

// buildAnswerPrompt numbers the retrieved chunks so the model can cite
// them as [1], [2] and instructs it to stay inside that context.
func buildAnswerPrompt(question string, chunks []string) string {
	contextText := "No relevant documents found."
	if len(chunks) > 0 {
		parts := make([]string, len(chunks))
		for i, chunk := range chunks {
			parts[i] = fmt.Sprintf("[%d] %s", i+1, chunk)
		}
		contextText = strings.Join(parts, "\n\n")
	}

	return fmt.Sprintf(`You are a helpful AI assistant. Answer using ONLY this context:

%s

Question: %s

Rules:
- If question is vague, ask for clarification
- If no relevant info exists, say so clearly


Answer naturally. Cite sources with [1], [2] if used.
If no info, say: "I don't have information about that in your documents."
`, contextText, question)
}

// splitTokens cuts text into word-sized pieces whose concatenation is
// exactly the input, so a buffered answer streams like a live one.
func splitTokens(text string) []string {
	if text == "" {
		return nil
	}

	var tokens []string
	start := 0
	inSpace := false
	for i, r := range text {
		isSpace := r == ' ' || r == '\n' || r == '\t'
		if inSpace && !isSpace {
			tokens = append(tokens, text[start:i])
			start = i
		}
		inSpace = isSpace
	}
	tokens = append(tokens, text[start:])
	return tokens
}
