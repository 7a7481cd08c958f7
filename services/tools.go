package services

import (
	"context"
	"fmt"
	"strings"

	"docqa-platform/internal/ai"
	"docqa-platform/models"
)

// summaryLimit bounds the text handed back by the summarize tool.
const summaryLimit = 2000

// extractLimit caps how many matching chunks the extract tool returns.
const extractLimit = 20

// Toolset exposes document operations the model can call during a
// tool-driven chat turn. Every call is scoped to one owner and may be
// narrowed further to a single document via document_id.
type Toolset struct {
	retriever *Retriever
}

func NewToolset(retriever *Retriever) *Toolset {
	return &Toolset{retriever: retriever}
}

// Specs declares the callable tools for the model.
func (t *Toolset) Specs() []ai.ToolSpec {
	return []ai.ToolSpec{
		{
			Name:        "search_documents",
			Description: "Search the user's uploaded documents for passages relevant to a query.",
			Params: map[string]string{
				"query":       "The search query to match against document content.",
				"document_id": "Optional document ID to restrict the search to one document.",
			},
			Required: []string{"query"},
		},
		{
			Name:        "summarize_document",
			Description: "Return the leading content of a document so it can be summarized. Identify the document by filename or by document ID.",
			Params: map[string]string{
				"filename":    "The filename of the document to summarize.",
				"document_id": "The document ID of the document to summarize.",
			},
		},
		{
			Name:        "extract_information",
			Description: "Find document passages containing a specific keyword or field, such as an email address or a name.",
			Params: map[string]string{
				"field":       "The keyword or field to look for.",
				"document_id": "Optional document ID to restrict the lookup to one document.",
			},
			Required: []string{"field"},
		},
	}
}

// Execute dispatches a model-requested tool call and reports the
// provenance of every chunk it surfaced, so the chat stream can cite
// tool results the same way it cites direct retrieval. Unknown tools
// and missing arguments are reported as errors for the model to
// recover from.
func (t *Toolset) Execute(ctx context.Context, ownerEmail, name string, args map[string]any) (map[string]any, []models.Citation, error) {
	docID, _ := stringArg(args, "document_id")
	switch name {
	case "search_documents":
		query, ok := stringArg(args, "query")
		if !ok {
			return nil, nil, fmt.Errorf("search_documents requires a query argument")
		}
		return t.search(ctx, ownerEmail, query, docID)
	case "summarize_document":
		filename, _ := stringArg(args, "filename")
		if filename == "" && docID == "" {
			return nil, nil, fmt.Errorf("summarize_document requires a filename or document_id argument")
		}
		return t.summarize(ctx, ownerEmail, filename, docID)
	case "extract_information":
		field, ok := stringArg(args, "field")
		if !ok {
			return nil, nil, fmt.Errorf("extract_information requires a field argument")
		}
		return t.extract(ctx, ownerEmail, field, docID)
	default:
		return nil, nil, fmt.Errorf("unknown tool %q", name)
	}
}

func (t *Toolset) search(ctx context.Context, ownerEmail, query, docID string) (map[string]any, []models.Citation, error) {
	texts, metas, err := t.retriever.Retrieve(ctx, ownerEmail, query, ToolTopK, scopeFilter(docID))
	if err != nil {
		return nil, nil, err
	}

	results := make([]map[string]any, 0, len(texts))
	for i := range texts {
		results = append(results, map[string]any{
			"text":   texts[i],
			"source": metas[i].Source,
			"page":   metas[i].Page,
		})
	}
	return map[string]any{"results": results}, citationsFrom(metas), nil
}

func (t *Toolset) summarize(ctx context.Context, ownerEmail, filename, docID string) (map[string]any, []models.Citation, error) {
	filter := &RetrievalFilter{DocumentID: docID}
	if filename != "" {
		filter.Sources = []string{filename}
	}
	query := filename
	if query == "" {
		query = docID
	}

	texts, metas, err := t.retriever.Retrieve(ctx, ownerEmail, query, ToolTopK, filter)
	if err != nil {
		return nil, nil, err
	}
	if len(texts) == 0 {
		return map[string]any{"content": "No content to summarize."}, nil, nil
	}

	joined := strings.Join(texts, " ")
	if len(joined) > summaryLimit {
		joined = joined[:summaryLimit] + "..."
	}
	result := map[string]any{"content": joined}
	if filename != "" {
		result["source"] = filename
	}
	return result, citationsFrom(metas), nil
}

func (t *Toolset) extract(ctx context.Context, ownerEmail, field, docID string) (map[string]any, []models.Citation, error) {
	texts, metas, err := t.retriever.Retrieve(ctx, ownerEmail, field, ToolTopK, scopeFilter(docID))
	if err != nil {
		return nil, nil, err
	}

	matches, citations := filterByKeyword(texts, metas, field)
	return map[string]any{"matches": matches, "field": field}, citations, nil
}

// filterByKeyword keeps chunks containing field as a case-insensitive
// substring, up to extractLimit entries, with one citation per kept
// chunk.
func filterByKeyword(texts []string, metas []models.ChunkMetadata, field string) ([]map[string]any, []models.Citation) {
	keyword := strings.ToLower(field)
	matches := []map[string]any{}
	var citations []models.Citation
	for i, text := range texts {
		if !strings.Contains(strings.ToLower(text), keyword) {
			continue
		}
		matches = append(matches, map[string]any{
			"text":   text,
			"source": metas[i].Source,
			"page":   metas[i].Page,
		})
		citations = append(citations, models.Citation{Source: metas[i].Source, Page: metas[i].Page})
		if len(matches) >= extractLimit {
			break
		}
	}
	return matches, citations
}

// scopeFilter narrows retrieval to one document when the model passed
// a document_id.
func scopeFilter(docID string) *RetrievalFilter {
	if docID == "" {
		return nil
	}
	return &RetrievalFilter{DocumentID: docID}
}

func citationsFrom(metas []models.ChunkMetadata) []models.Citation {
	citations := make([]models.Citation, 0, len(metas))
	for _, meta := range metas {
		citations = append(citations, models.Citation{Source: meta.Source, Page: meta.Page})
	}
	return citations
}

func stringArg(args map[string]any, key string) (string, bool) {
	raw, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
