package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClient struct {
	name  string
	reply string
	err   error
	calls int
}

func (f *fakeClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Completion{Provider: f.name, Content: f.reply}, nil
}

func (f *fakeClient) Name() string { return f.name }

func TestRouterFirstProviderWins(t *testing.T) {
	primary := &fakeClient{name: "primary", reply: "hello"}
	backup := &fakeClient{name: "backup", reply: "unused"}
	r := NewRouter([]Client{primary, backup}, zap.NewNop())

	resp, err := r.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	require.Equal(t, "primary", resp.Provider)
	require.Equal(t, "hello", resp.Content)
	require.Equal(t, 1, primary.calls)
	require.Equal(t, 0, backup.calls, "backup must not be called when primary succeeds")
}

func TestRouterAdvancesOnFailure(t *testing.T) {
	primary := &fakeClient{name: "primary", err: errors.New("rate limited")}
	secondary := &fakeClient{name: "secondary", err: errors.New("timeout")}
	local := &fakeClient{name: "local", reply: "from local"}
	r := NewRouter([]Client{primary, secondary, local}, zap.NewNop())

	resp, err := r.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	require.Equal(t, "local", resp.Provider)
	require.Equal(t, 1, primary.calls)
	require.Equal(t, 1, secondary.calls)
	require.Equal(t, 1, local.calls)
}

func TestRouterAllFail(t *testing.T) {
	cause := errors.New("connection refused")
	r := NewRouter([]Client{
		&fakeClient{name: "primary", err: errors.New("rate limited")},
		&fakeClient{name: "local", err: cause},
	}, zap.NewNop())

	_, err := r.Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "local")
}

func TestRouterEmptyChain(t *testing.T) {
	r := NewRouter(nil, zap.NewNop())

	_, err := r.Complete(context.Background(), CompletionRequest{})
	require.ErrorIs(t, err, ErrNoProviders)
}
