package rewrite

import (
	"context"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablescout/review-pipeline/internal/model"
	"github.com/tablescout/review-pipeline/pkg/anthropic"
)

type fakeClient struct {
	mu    sync.Mutex
	calls int
	reply func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
}

func (f *fakeClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.reply(req)
}

func echoClient(prefix string) *fakeClient {
	return &fakeClient{reply: func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		return &anthropic.MessageResponse{
			Text:  prefix + req.Messages[0].Content,
			Usage: anthropic.TokenUsage{InputTokens: 10, OutputTokens: 20},
		}, nil
	}}
}

func TestRewrite_FillsEmptySlots(t *testing.T) {
	client := echoClient("書き直し: ")
	rw := New(client, Options{Concurrency: 2})

	records := []model.RewriteRecord{
		{Index: 1, ReviewID: "rev-1", OriginalText: "素敵な雰囲気でデートに最適"},
		{Index: 2, ReviewID: "rev-2", OriginalText: "コスパ最高のランチでした"},
	}

	n, err := rw.Rewrite(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "書き直し: 素敵な雰囲気でデートに最適", records[0].RewrittenText)
	assert.Equal(t, "書き直し: コスパ最高のランチでした", records[1].RewrittenText)
	assert.Equal(t, 2, client.calls)
}

func TestRewrite_SkipsAlreadyRewritten(t *testing.T) {
	client := echoClient("新: ")
	rw := New(client, Options{})

	records := []model.RewriteRecord{
		{Index: 1, ReviewID: "rev-1", OriginalText: "原文", RewrittenText: "手で書き直した本文"},
		{Index: 2, ReviewID: "rev-2", OriginalText: "まだの原文"},
		{Index: 3, ReviewID: "rev-3"}, // no original: nothing to rewrite
	}

	n, err := rw.Rewrite(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "手で書き直した本文", records[0].RewrittenText, "hand edits survive")
	assert.Equal(t, "新: まだの原文", records[1].RewrittenText)
	assert.Empty(t, records[2].RewrittenText)
	assert.Equal(t, 1, client.calls)
}

func TestRewrite_EmptyModelOutputLeavesSlotEmpty(t *testing.T) {
	client := &fakeClient{reply: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		return &anthropic.MessageResponse{Text: "   \n"}, nil
	}}
	rw := New(client, Options{})

	records := []model.RewriteRecord{{Index: 1, ReviewID: "rev-1", OriginalText: "原文"}}
	n, err := rw.Rewrite(context.Background(), records)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, records[0].RewrittenText)
}

func TestRewrite_APIErrorFailsBatch(t *testing.T) {
	client := &fakeClient{reply: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		return nil, eris.New("overloaded")
	}}
	rw := New(client, Options{})

	records := []model.RewriteRecord{{Index: 1, ReviewID: "rev-1", OriginalText: "原文"}}
	_, err := rw.Rewrite(context.Background(), records)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rewrite: record 1")
}
