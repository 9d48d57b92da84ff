package poll

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linguavox/linguavox/internal/client"
)

const testInterval = 10 * time.Millisecond

// statusServer serves canned status bodies in order, repeating the last one.
func statusServer(t *testing.T, bodies ...string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		idx := int(n) - 1
		if idx >= len(bodies) {
			idx = len(bodies) - 1
		}
		body := bodies[idx]
		if body == "" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func newTestPoller(t *testing.T, serverURL string, onTerminal func(*client.StatusResponse)) *Poller {
	t.Helper()
	apiClient, err := client.New(client.Options{BaseURL: serverURL})
	require.NoError(t, err)

	poller, err := New(Options{Client: apiClient, Interval: testInterval, OnTerminal: onTerminal})
	require.NoError(t, err)
	return poller
}

func waitDone(t *testing.T, poller *Poller) {
	t.Helper()
	select {
	case <-poller.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not finish in time")
	}
}

func TestPoller_TracksUntilCompleted(t *testing.T) {
	server, _ := statusServer(t,
		`{"id":"u-1","status":"processing"}`,
		`{"id":"u-1","status":"processing"}`,
		`{"id":"u-1","status":"completed","result":{"language":"es","transcript":"hola que tal"}}`,
	)

	var terminal *client.StatusResponse
	poller := newTestPoller(t, server.URL, func(resp *client.StatusResponse) { terminal = resp })

	require.NoError(t, poller.Track(context.Background(), "u-1"))
	assert.Equal(t, StateAwaiting, poller.State())

	waitDone(t, poller)
	assert.Equal(t, StateDone, poller.State())
	require.NotNil(t, terminal)
	assert.Equal(t, "completed", terminal.Status)
	require.NotNil(t, terminal.Result)
	assert.Equal(t, "es", terminal.Result.Language)
}

func TestPoller_FailedStatusIsTerminal(t *testing.T) {
	server, _ := statusServer(t,
		`{"id":"u-2","status":"failed","error":{"code":"inference_timeout","message":"inference timed out"}}`,
	)

	poller := newTestPoller(t, server.URL, nil)
	require.NoError(t, poller.Track(context.Background(), "u-2"))

	waitDone(t, poller)
	result := poller.Result()
	require.NotNil(t, result)
	require.NotNil(t, result.Error)
	assert.Equal(t, "inference_timeout", result.Error.Code)
}

func TestPoller_CancelStopsWithoutTerminal(t *testing.T) {
	server, _ := statusServer(t, `{"id":"u-3","status":"processing"}`)

	called := false
	poller := newTestPoller(t, server.URL, func(*client.StatusResponse) { called = true })

	require.NoError(t, poller.Track(context.Background(), "u-3"))
	time.Sleep(3 * testInterval)
	poller.Cancel()

	assert.Equal(t, StateIdle, poller.State())
	assert.False(t, called)
	assert.Nil(t, poller.Result())
}

func TestPoller_ResumeRendersImmediateTerminal(t *testing.T) {
	server, calls := statusServer(t,
		`{"id":"u-4","status":"completed","result":{"language":"fr"}}`,
	)

	poller := newTestPoller(t, server.URL, nil)
	// A long interval proves the immediate query, not the ticker, resolved it.
	poller.interval = time.Minute

	require.NoError(t, poller.Resume(context.Background(), "u-4"))
	waitDone(t, poller)

	assert.Equal(t, StateDone, poller.State())
	assert.EqualValues(t, 1, calls.Load())
}

func TestPoller_ResumeKeepsPollingWhenProcessing(t *testing.T) {
	server, _ := statusServer(t,
		`{"id":"u-5","status":"processing"}`,
		`{"id":"u-5","status":"completed","result":{"language":"de"}}`,
	)

	poller := newTestPoller(t, server.URL, nil)
	require.NoError(t, poller.Resume(context.Background(), "u-5"))

	waitDone(t, poller)
	result := poller.Result()
	require.NotNil(t, result)
	require.NotNil(t, result.Result)
	assert.Equal(t, "de", result.Result.Language)
}

func TestPoller_TransientErrorsKeepAwaiting(t *testing.T) {
	server, _ := statusServer(t,
		"", // 500 on the first query
		`{"id":"u-6","status":"completed","result":{"language":"en"}}`,
	)

	poller := newTestPoller(t, server.URL, nil)
	require.NoError(t, poller.Track(context.Background(), "u-6"))

	waitDone(t, poller)
	assert.Equal(t, StateDone, poller.State())
}

func TestPoller_TrackWhileAwaitingFails(t *testing.T) {
	server, _ := statusServer(t, `{"id":"u-7","status":"processing"}`)

	poller := newTestPoller(t, server.URL, nil)
	require.NoError(t, poller.Track(context.Background(), "u-7"))
	require.Error(t, poller.Track(context.Background(), "u-7"))

	poller.Cancel()
}
