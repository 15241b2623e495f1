package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/tachyon/internal/common"
	"github.com/Veraticus/tachyon/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOracle(client Client, cfg Config) *Oracle {
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Millisecond
	}
	return NewOracle(client, cfg, common.DiscardLogger(), nil)
}

func TestOracle_RetriesTransientFailures(t *testing.T) {
	var attempts atomic.Int32
	mock := &MockClient{Handler: func(_ context.Context, _ Request) (Response, error) {
		if attempts.Add(1) < 3 {
			return Response{}, errors.New("connection reset")
		}
		return Response{Text: "ok"}, nil
	}}

	text, err := testOracle(mock, Config{MaxRetries: 3}).GenerateText(context.Background(), "", "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestOracle_StopsOnPermanentError(t *testing.T) {
	var attempts atomic.Int32
	mock := &MockClient{Handler: func(_ context.Context, _ Request) (Response, error) {
		attempts.Add(1)
		return Response{}, statusError("gemini", 400, []byte("bad request"))
	}}

	_, err := testOracle(mock, Config{MaxRetries: 5}).Generate(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestOracle_GivesUpAfterMaxRetries(t *testing.T) {
	mock := &MockClient{Handler: func(_ context.Context, _ Request) (Response, error) {
		return Response{}, statusError("gemini", 503, []byte("overloaded"))
	}}

	_, err := testOracle(mock, Config{MaxRetries: 2}).Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, common.ErrMaxRetries)
	assert.Len(t, mock.Calls(), 2)
}

func TestOracle_PerCallTimeout(t *testing.T) {
	mock := &MockClient{Handler: func(ctx context.Context, _ Request) (Response, error) {
		<-ctx.Done()
		return Response{}, ctx.Err()
	}}

	start := time.Now()
	_, err := testOracle(mock, Config{MaxRetries: 1, Timeout: 20 * time.Millisecond}).Generate(context.Background(), Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestOracle_GenerateJSON(t *testing.T) {
	mock := NewMockClient("```json\n{\"verdict\":\"yes\",\"rationale\":\"frequent visits\"}\n```", "not json")
	oracle := testOracle(mock, Config{})

	var decision struct {
		Verdict   string `json:"verdict"`
		Rationale string `json:"rationale"`
	}
	require.NoError(t, oracle.GenerateJSON(context.Background(), Request{Messages: []Message{UserText("decide")}}, &decision))
	assert.Equal(t, "yes", decision.Verdict)
	assert.True(t, mock.Calls()[0].JSON)

	err := oracle.GenerateJSON(context.Background(), Request{Messages: []Message{UserText("again")}}, &decision)
	assert.ErrorIs(t, err, common.ErrOracleResponse)
}

func TestOracle_Cache(t *testing.T) {
	mock := NewMockClient("first", "second")
	oracle := testOracle(mock, Config{CacheTTL: time.Minute})

	req := Request{Messages: []Message{UserText("summarise")}}
	a, err := oracle.Generate(context.Background(), req)
	require.NoError(t, err)
	b, err := oracle.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "first", a.Text)
	assert.Equal(t, "first", b.Text)
	assert.Len(t, mock.Calls(), 1)

	withTools := Request{Messages: req.Messages, Tools: []ToolDefinition{{Name: "lookup"}}}
	c, err := oracle.Generate(context.Background(), withTools)
	require.NoError(t, err)
	assert.Equal(t, "second", c.Text)
}

func TestOracle_RecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	oracle := NewOracle(NewMockClient("ok"), Config{}, common.DiscardLogger(), m)

	_, err := oracle.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.InDelta(t, 1, testutil.ToFloat64(m.OracleCalls.WithLabelValues("ok")), 0)
}

func TestOracle_EmptyText(t *testing.T) {
	_, err := testOracle(NewMockClient(""), Config{}).GenerateText(context.Background(), "", "hi")
	assert.ErrorIs(t, err, common.ErrOracleEmpty)

	_, err = testOracle(NewMockClient(" \n\t"), Config{}).GenerateText(context.Background(), "", "hi")
	assert.ErrorIs(t, err, common.ErrOracleEmpty)

	text, err := testOracle(NewMockClient("  Hindi\n"), Config{}).GenerateText(context.Background(), "", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hindi", text)
}
