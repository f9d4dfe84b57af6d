// Package rewrite fills the rewritten_text slot of a transfer artifact using
// the Anthropic API, as an alternative to hand-editing the exported JSON.
package rewrite

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tablescout/review-pipeline/internal/model"
	"github.com/tablescout/review-pipeline/pkg/anthropic"
)

const (
	DefaultModel       = "claude-sonnet-4-5-20250929"
	DefaultMaxTokens   = 1024
	DefaultConcurrency = 4
)

const systemPrompt = `あなたはレストランレビューの編集者です。渡されたレビューを、意味と評価のトーンを保ったまま自然な日本語で書き直してください。元の文をそのまま引用せず、長さはおおむね同程度に保ち、店名や事実は変えないでください。書き直した本文だけを出力してください。`

// Options tunes the rewriter. Zero values fall back to package defaults.
type Options struct {
	Model       string
	MaxTokens   int64
	Concurrency int
	Temperature *float64
}

// Rewriter rewrites review texts through an Anthropic model.
type Rewriter struct {
	client anthropic.Client
	opts   Options
}

func New(client anthropic.Client, opts Options) *Rewriter {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Rewriter{client: client, opts: opts}
}

// Rewrite fills RewrittenText for every record that still has an empty slot.
// Records already carrying a rewrite are left untouched, so a partially
// hand-edited artifact can be completed by the model. The input slice is
// modified in place; the first API error cancels outstanding requests.
func (r *Rewriter) Rewrite(ctx context.Context, records []model.RewriteRecord) (int, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	var usage anthropic.TokenUsage
	rewritten := 0
	// index slots are written by exactly one goroutine each; the counters are
	// merged in the collect loop below
	results := make([]anthropic.TokenUsage, len(records))
	done := make([]bool, len(records))

	for i := range records {
		if records[i].RewrittenText != "" || records[i].OriginalText == "" {
			continue
		}
		i := i
		g.Go(func() error {
			resp, err := r.client.CreateMessage(ctx, anthropic.MessageRequest{
				Model:       r.opts.Model,
				MaxTokens:   r.opts.MaxTokens,
				System:      systemPrompt,
				Temperature: r.opts.Temperature,
				Messages: []anthropic.Message{
					{Role: "user", Content: records[i].OriginalText},
				},
			})
			if err != nil {
				return eris.Wrapf(err, "rewrite: record %d", records[i].Index)
			}
			text := strings.TrimSpace(resp.Text)
			if text == "" {
				zap.L().Warn("model returned empty rewrite",
					zap.Int("index", records[i].Index),
					zap.String("review_id", records[i].ReviewID),
				)
				return nil
			}
			records[i].RewrittenText = text
			results[i] = resp.Usage
			done[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	for i := range records {
		if done[i] {
			rewritten++
			usage.InputTokens += results[i].InputTokens
			usage.OutputTokens += results[i].OutputTokens
		}
	}
	usage.LogCost(r.opts.Model, "rewrite")
	return rewritten, nil
}
