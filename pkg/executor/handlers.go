package executor

import (
	"context"
	"fmt"
)

// AdsWriter applies changes to the advertising platform. It is the only
// path through which the executor can mutate external state, which keeps
// the no-real-write guarantee checkable at a single seam.
type AdsWriter interface {
	PauseKeyword(ctx context.Context, scope, keywordID string) error
	AddNegativeKeyword(ctx context.Context, scope, term string) error
	SetBid(ctx context.Context, scope, keywordID string, bid float64) error
}

func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("missing or invalid param %q", key)
	}
	return v, nil
}

func floatParam(params map[string]any, key string) (float64, error) {
	switch v := params[key].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("missing or invalid param %q", key)
	}
}

// PauseKeywordHandler pauses a single keyword.
type PauseKeywordHandler struct {
	writer AdsWriter
}

func NewPauseKeywordHandler(writer AdsWriter) *PauseKeywordHandler {
	return &PauseKeywordHandler{writer: writer}
}

func (h *PauseKeywordHandler) ID() string { return "pause_keyword" }

func (h *PauseKeywordHandler) Execute(ctx context.Context, req HandlerRequest) (*HandlerResult, error) {
	keywordID, err := stringParam(req.Proposal.Params, "keyword_id")
	if err != nil {
		return nil, err
	}

	result := &HandlerResult{
		Changed: map[string]any{
			"keyword_id":     keywordID,
			"previous_state": "enabled",
			"new_state":      "paused",
		},
		RollbackMethod: "enable_keyword",
		Message:        fmt.Sprintf("paused keyword %s in scope %s", keywordID, req.Proposal.Scope),
	}
	if req.DryRun {
		result.Message = "dry run: " + result.Message
		return result, nil
	}

	if err := h.writer.PauseKeyword(ctx, req.Proposal.Scope, keywordID); err != nil {
		return nil, fmt.Errorf("pause keyword %s: %w", keywordID, err)
	}
	return result, nil
}

// NegativeKeywordHandler adds a negative keyword to the scope.
type NegativeKeywordHandler struct {
	writer AdsWriter
}

func NewNegativeKeywordHandler(writer AdsWriter) *NegativeKeywordHandler {
	return &NegativeKeywordHandler{writer: writer}
}

func (h *NegativeKeywordHandler) ID() string { return "add_negative_keyword" }

func (h *NegativeKeywordHandler) Execute(ctx context.Context, req HandlerRequest) (*HandlerResult, error) {
	term, err := stringParam(req.Proposal.Params, "term")
	if err != nil {
		return nil, err
	}

	result := &HandlerResult{
		Changed: map[string]any{
			"term":       term,
			"match_type": "negative_exact",
		},
		RollbackMethod: "remove_negative_keyword",
		Message:        fmt.Sprintf("added negative keyword %q to scope %s", term, req.Proposal.Scope),
	}
	if req.DryRun {
		result.Message = "dry run: " + result.Message
		return result, nil
	}

	if err := h.writer.AddNegativeKeyword(ctx, req.Proposal.Scope, term); err != nil {
		return nil, fmt.Errorf("add negative keyword %q: %w", term, err)
	}
	return result, nil
}

// LowerBidHandler reduces a keyword bid to the proposed value.
type LowerBidHandler struct {
	writer AdsWriter
}

func NewLowerBidHandler(writer AdsWriter) *LowerBidHandler {
	return &LowerBidHandler{writer: writer}
}

func (h *LowerBidHandler) ID() string { return "lower_bid" }

func (h *LowerBidHandler) Execute(ctx context.Context, req HandlerRequest) (*HandlerResult, error) {
	keywordID, err := stringParam(req.Proposal.Params, "keyword_id")
	if err != nil {
		return nil, err
	}
	currentBid, err := floatParam(req.Proposal.Params, "current_bid")
	if err != nil {
		return nil, err
	}
	newBid, err := floatParam(req.Proposal.Params, "new_bid")
	if err != nil {
		return nil, err
	}
	if newBid >= currentBid {
		return nil, fmt.Errorf("new bid %.2f does not lower current bid %.2f", newBid, currentBid)
	}

	result := &HandlerResult{
		Changed: map[string]any{
			"keyword_id":   keywordID,
			"previous_bid": currentBid,
			"new_bid":      newBid,
		},
		RollbackMethod: "restore_bid",
		Message:        fmt.Sprintf("lowered bid on keyword %s from %.2f to %.2f", keywordID, currentBid, newBid),
	}
	if req.DryRun {
		result.Message = "dry run: " + result.Message
		return result, nil
	}

	if err := h.writer.SetBid(ctx, req.Proposal.Scope, keywordID, newBid); err != nil {
		return nil, fmt.Errorf("set bid on keyword %s: %w", keywordID, err)
	}
	return result, nil
}
