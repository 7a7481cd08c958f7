package models

// ChatRequest is the query endpoint body. SelectedDocs and DocumentID
// optionally narrow retrieval to specific uploads; UseTools switches the
// composer into the tool-calling mode.
type ChatRequest struct {
	Message      string   `json:"message"`
	SelectedDocs []string `json:"selected_docs,omitempty"`
	DocumentID   string   `json:"document_id,omitempty"`
	UseTools     bool     `json:"use_tools,omitempty"`
}

// Citation maps one numbered context chunk to its origin.
type Citation struct {
	Source string `json:"source"`
	Page   int    `json:"page"`
}
