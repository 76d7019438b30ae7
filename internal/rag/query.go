package rag

import (
	"context"
	"fmt"
	"iter"

	"github.com/hyperjump/bayan/internal/models"
	"github.com/hyperjump/bayan/internal/retrieval"
	"github.com/hyperjump/bayan/pkg/utils"
	"go.uber.org/zap"
)

// RetrieveAndFormat returns the formatted context for question, or
// retrieval.NoContext when nothing relevant is indexed.
func (p *Pipeline) RetrieveAndFormat(ctx context.Context, question string) (string, []models.QueryResult, error) {
	if p.State() != StateIndexed {
		return retrieval.NoContext, nil, nil
	}
	return p.engine.RetrieveAndFormat(ctx, question)
}

// Query answers req. Without relevant context the answer is
// InsufficientInfoAnswer and the model is not called. Generation errors are
// returned as is; rendering them for users is up to the caller.
func (p *Pipeline) Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	p.logger.Info("processing query", zap.String("question", utils.Truncate(req.Question, 50)))

	retrieved, results, err := p.RetrieveAndFormat(ctx, req.Question)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	resp := &models.QueryResponse{
		Question:       req.Question,
		IncludeContext: req.ReturnContext,
	}
	if retrieved == retrieval.NoContext {
		resp.Answer = InsufficientInfoAnswer
	} else {
		if p.answerer == nil {
			return nil, errNoAnswerer
		}
		answer, err := p.answerer.AnswerQuestion(ctx, req.Question, retrieved, p.cfg.PromptTemplate)
		if err != nil {
			return nil, fmt.Errorf("generate answer: %w", err)
		}
		resp.Answer = answer
	}
	if req.ReturnContext {
		resp.Context = retrieved
		resp.Sources = make([]models.Source, len(results))
		for i := range results {
			resp.Sources[i] = results[i].Source()
		}
	}
	return resp, nil
}

// StreamQuery validates question and retrieves context, then returns the
// answer as a fragment sequence. Without relevant context the sequence holds
// only InsufficientInfoAnswer. Errors from the model are yielded, not
// swallowed.
func (p *Pipeline) StreamQuery(ctx context.Context, question string) (iter.Seq2[string, error], error) {
	req := models.QueryRequest{Question: question}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	p.logger.Info("processing streaming query", zap.String("question", utils.Truncate(req.Question, 50)))

	retrieved, _, err := p.RetrieveAndFormat(ctx, req.Question)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	if retrieved == retrieval.NoContext {
		return func(yield func(string, error) bool) {
			yield(InsufficientInfoAnswer, nil)
		}, nil
	}
	if p.answerer == nil {
		return nil, errNoAnswerer
	}
	return p.answerer.StreamAnswerQuestion(ctx, req.Question, retrieved, p.cfg.PromptTemplate), nil
}

// BatchQuery answers questions in order. A failed question gets ErrorMessage
// as its answer and does not stop the batch.
func (p *Pipeline) BatchQuery(ctx context.Context, questions []string) []*models.QueryResponse {
	p.logger.Info("processing batch", zap.Int("questions", len(questions)))
	out := make([]*models.QueryResponse, len(questions))
	for i, q := range questions {
		resp, err := p.Query(ctx, models.QueryRequest{Question: q})
		if err != nil {
			p.logger.Error("batch question failed",
				zap.Int("index", i),
				zap.String("question", utils.Truncate(q, 50)),
				zap.Error(err))
			resp = &models.QueryResponse{Question: q, Answer: ErrorMessage}
		}
		out[i] = resp
	}
	return out
}
