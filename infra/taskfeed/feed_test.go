package taskfeed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/agvfleet/auth"
	"github.com/kilianp07/agvfleet/core/snapshot"
)

type recorder struct {
	batches [][]snapshot.TaskRecord
	fail    error
}

func (r *recorder) SubmitTasks(recs []snapshot.TaskRecord) error {
	if r.fail != nil {
		return r.fail
	}
	r.batches = append(r.batches, recs)
	return nil
}

const feedBody = `[
  {"id":"t1","steps":[{"kind":"move_to_station","station":"D"}]},
  {"id":"t2","steps":[{"kind":"move_to_station","station":"C"}]}
]`

func TestPollSkipsSeenTasks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedBody)
	}))
	defer srv.Close()

	rec := &recorder{}
	p := NewPoller(Config{URL: srv.URL}, rec)
	n, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = p.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	require.Len(t, rec.batches, 1)
	assert.Equal(t, "t2", rec.batches[0][1].ID)
}

func TestPollRetriesRejectedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedBody)
	}))
	defer srv.Close()

	rec := &recorder{fail: fmt.Errorf("boom")}
	p := NewPoller(Config{URL: srv.URL}, rec)
	_, err := p.Poll(context.Background())
	require.Error(t, err)

	rec.fail = nil
	n, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPollRefreshesTokenOnUnauthorized(t *testing.T) {
	var issued atomic.Int32
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := issued.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok%d","token_type":"bearer","expires_in":3600}`, n)
	}))
	defer tokens.Close()
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, feedBody)
	}))
	defer feed.Close()

	rec := &recorder{}
	p := NewPoller(Config{URL: feed.URL, Auth: auth.Conf{ClientID: "id", ClientSecret: "s", AuthURL: tokens.URL}}, rec)
	n, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.EqualValues(t, 2, issued.Load())
}

func TestPollErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			fmt.Fprint(w, "{")
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewPoller(Config{URL: srv.URL + "/down"}, &recorder{}).Poll(context.Background())
	assert.ErrorContains(t, err, "status 502")
	_, err = NewPoller(Config{URL: srv.URL + "/bad"}, &recorder{}).Poll(context.Background())
	assert.ErrorContains(t, err, "decode")
}

func TestStartStopsOnCancel(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "[]")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewPoller(Config{URL: srv.URL, PollIntervalSeconds: 1}, &recorder{}).Start(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return hits.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}
