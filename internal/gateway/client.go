package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/tomehq/tome/internal/config"
	"github.com/tomehq/tome/internal/metrics"
)

// Operation names as recorded in ModelCall rows.
const (
	opOverview     = "overview"
	opSummary      = "summary"
	opNotes        = "notes"
	opBookAnalysis = "book_analysis"
	opFolderNames  = "folder_names"
	opFolderAssign = "folder_assign"
	opLinkExplain  = "link_explain"
	opEmbedding    = "embedding"
)

// Client implements Gateway against any OpenAI-compatible API. Chat goes
// through a hand-rolled HTTP layer so overview streaming stays under our
// control; embeddings go through the official SDK.
type Client struct {
	baseURL   string
	apiKey    string
	chatModel string

	embeddingModel string
	embeddingDim   int

	http       *http.Client
	sdk        openai.Client
	limiter    *RateLimiter
	maxRetries int
	retryDelay time.Duration

	recorder Recorder
	logger   *slog.Logger
}

var _ Gateway = (*Client)(nil)

// NewClient creates the production gateway. recorder may be nil to disable
// model-call records.
func NewClient(cfg config.GatewayConfig, recorder Recorder, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.EmbeddingDim <= 0 {
		cfg.EmbeddingDim = 1536
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 300
	}

	// Keys are usually stored as ${ENV_VAR} references in the config file.
	apiKey := config.ResolveEnvVars(cfg.APIKey)
	baseURL := config.ResolveEnvVars(cfg.BaseURL)

	httpClient := &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	sdk := openai.NewClient(opts...)

	return &Client{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		apiKey:         apiKey,
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		embeddingDim:   cfg.EmbeddingDim,
		http:           httpClient,
		sdk:            sdk,
		limiter:        NewRateLimiter(cfg.RateLimit),
		maxRetries:     cfg.MaxRetries,
		retryDelay:     500 * time.Millisecond,
		recorder:       recorder,
		logger:         logger,
	}
}

// GenerateOverview produces the chapter overview, streaming when the
// request carries an OnToken callback.
func (c *Client) GenerateOverview(ctx context.Context, req OverviewRequest) (string, error) {
	creq := chatRequest{
		Model:       c.chatModel,
		Messages:    overviewMessages(req),
		Temperature: 0.7,
	}

	started := time.Now()
	var res *chatResult
	var err error
	if req.OnToken != nil {
		var cumulative strings.Builder
		res, err = c.doChatStream(ctx, creq, func(delta string) {
			cumulative.WriteString(delta)
			req.OnToken(cumulative.String())
		})
	} else {
		res, err = c.doChat(ctx, creq)
	}
	c.record(req.Meta, opOverview, c.chatModel, res, time.Since(started), err)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.content), nil
}

// GenerateStructuredSummary produces the structured chapter fields.
func (c *Client) GenerateStructuredSummary(ctx context.Context, req SummaryRequest) (*SummaryFields, error) {
	creq := chatRequest{
		Model:          c.chatModel,
		Messages:       summaryMessages(req),
		Temperature:    0.3,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	started := time.Now()
	res, err := c.doChat(ctx, creq)
	if err != nil {
		c.record(req.Meta, opSummary, c.chatModel, res, time.Since(started), err)
		return nil, err
	}

	var fields SummaryFields
	err = decodeStructured(res.content, summarySchema, &fields)
	c.record(req.Meta, opSummary, c.chatModel, res, time.Since(started), err)
	if err != nil {
		return nil, err
	}
	return &fields, nil
}

// GenerateAtomicNotes extracts atomic notes from a chapter summary.
func (c *Client) GenerateAtomicNotes(ctx context.Context, req NotesRequest) ([]NoteDraft, error) {
	creq := chatRequest{
		Model:          c.chatModel,
		Messages:       notesMessages(req),
		Temperature:    0.5,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	started := time.Now()
	res, err := c.doChat(ctx, creq)
	if err != nil {
		c.record(req.Meta, opNotes, c.chatModel, res, time.Since(started), err)
		return nil, err
	}

	var payload struct {
		Notes []NoteDraft `json:"notes"`
	}
	err = decodeStructured(res.content, notesSchema, &payload)
	c.record(req.Meta, opNotes, c.chatModel, res, time.Since(started), err)
	if err != nil {
		return nil, err
	}
	return payload.Notes, nil
}

// GenerateOverallAnalysis synthesizes the work-level analysis.
func (c *Client) GenerateOverallAnalysis(ctx context.Context, req AnalysisRequest) (*AnalysisFields, error) {
	creq := chatRequest{
		Model:          c.chatModel,
		Messages:       analysisMessages(req),
		Temperature:    0.5,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	started := time.Now()
	res, err := c.doChat(ctx, creq)
	if err != nil {
		c.record(req.Meta, opBookAnalysis, c.chatModel, res, time.Since(started), err)
		return nil, err
	}

	var fields AnalysisFields
	err = decodeStructured(res.content, analysisSchema, &fields)
	c.record(req.Meta, opBookAnalysis, c.chatModel, res, time.Since(started), err)
	if err != nil {
		return nil, err
	}
	return &fields, nil
}

// ProposeFolderNames asks for a folder taxonomy covering the sampled
// titles. Folder organization is global, so no Meta attribution.
func (c *Client) ProposeFolderNames(ctx context.Context, titles []string) ([]string, error) {
	creq := chatRequest{
		Model:          c.chatModel,
		Messages:       folderNamesMessages(titles),
		Temperature:    0.4,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	started := time.Now()
	res, err := c.doChat(ctx, creq)
	if err != nil {
		c.record(Meta{}, opFolderNames, c.chatModel, res, time.Since(started), err)
		return nil, err
	}

	var payload struct {
		Folders []string `json:"folders"`
	}
	err = decodeStructured(res.content, foldersSchema, &payload)
	c.record(Meta{}, opFolderNames, c.chatModel, res, time.Since(started), err)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(payload.Folders))
	for _, name := range payload.Folders {
		name = strings.TrimSpace(name)
		if name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, ErrMalformedOutput
	}
	return names, nil
}

// AssignFolders maps each note in the batch to a taxonomy name. The result
// reflects the model verbatim; callers validate taxonomy membership.
func (c *Client) AssignFolders(ctx context.Context, req AssignRequest) (map[string]string, error) {
	creq := chatRequest{
		Model:          c.chatModel,
		Messages:       assignMessages(req),
		Temperature:    0.2,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	started := time.Now()
	res, err := c.doChat(ctx, creq)
	if err != nil {
		c.record(req.Meta, opFolderAssign, c.chatModel, res, time.Since(started), err)
		return nil, err
	}

	var payload struct {
		Assignments []struct {
			NoteID string `json:"noteId"`
			Folder string `json:"folder"`
		} `json:"assignments"`
	}
	err = decodeStructured(res.content, assignmentsSchema, &payload)
	c.record(req.Meta, opFolderAssign, c.chatModel, res, time.Since(started), err)
	if err != nil {
		return nil, err
	}

	assigned := make(map[string]string, len(payload.Assignments))
	for _, a := range payload.Assignments {
		if a.NoteID != "" && a.Folder != "" {
			assigned[a.NoteID] = a.Folder
		}
	}
	return assigned, nil
}

// ExplainLink judges whether two notes are conceptually related.
func (c *Client) ExplainLink(ctx context.Context, req LinkRequest) (*LinkVerdict, error) {
	creq := chatRequest{
		Model:          c.chatModel,
		Messages:       linkMessages(req),
		Temperature:    0.2,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	started := time.Now()
	res, err := c.doChat(ctx, creq)
	if err != nil {
		c.record(req.Meta, opLinkExplain, c.chatModel, res, time.Since(started), err)
		return nil, err
	}

	var verdict LinkVerdict
	err = decodeStructured(res.content, linkSchema, &verdict)
	c.record(req.Meta, opLinkExplain, c.chatModel, res, time.Since(started), err)
	if err != nil {
		return nil, err
	}
	return &verdict, nil
}

// Dimensions is the configured embedding vector length.
func (c *Client) Dimensions() int {
	return c.embeddingDim
}

// record emits one ModelCall row. Safe with a nil recorder and nil result.
func (c *Client) record(meta Meta, operation, model string, res *chatResult, latency time.Duration, err error) {
	if c.recorder == nil {
		return
	}
	call := metrics.ModelCall{
		WorkID:    meta.WorkID,
		ChapterID: meta.ChapterID,
		Stage:     meta.Stage,
		Operation: operation,
		Model:     model,
		LatencyMS: latency.Milliseconds(),
		Success:   err == nil,
	}
	if res != nil {
		if res.model != "" {
			call.Model = res.model
		}
		call.PromptTokens = res.promptTokens
		call.CompletionTokens = res.completionTokens
		call.TotalTokens = res.totalTokens
	}
	if err != nil {
		call.ErrorType = errorKind(err, "model_error")
	}
	c.recorder.Record(call)
}

// errorKind buckets a call failure for the error_type column.
func errorKind(err error, fallback string) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrMalformedOutput):
		return "malformed_output"
	default:
		return fallback
	}
}
