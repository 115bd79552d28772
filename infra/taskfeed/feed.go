// Package taskfeed polls a warehouse system for transport tasks and submits
// the ones the fleet has not seen yet.
package taskfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/agvfleet/auth"
	corelogger "github.com/kilianp07/agvfleet/core/logger"
	"github.com/kilianp07/agvfleet/core/snapshot"
	"github.com/kilianp07/agvfleet/infra/logger"
)

// Config defines the task feed. An empty URL disables it.
type Config struct {
	URL                 string    `json:"url"`
	PollIntervalSeconds int       `json:"poll_interval_s"`
	TimeoutSeconds      int       `json:"timeout_s"`
	Auth                auth.Conf `json:"auth"`
}

func (c *Config) SetDefaults() {
	if c.PollIntervalSeconds <= 0 {
		c.PollIntervalSeconds = 30
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
}

// Submitter receives new task records.
type Submitter interface {
	SubmitTasks(recs []snapshot.TaskRecord) error
}

// Poller fetches a JSON array of task records from Config.URL. The ids it
// submitted are kept in memory only, so after a restart the feed is expected
// to list open tasks alone.
type Poller struct {
	url      string
	interval time.Duration
	client   *http.Client
	creds    *auth.ClientCred
	sub      Submitter
	log      corelogger.Logger

	seen map[string]struct{}
}

func NewPoller(cfg Config, sub Submitter) *Poller {
	cfg.SetDefaults()
	p := &Poller{
		url:      cfg.URL,
		interval: time.Duration(cfg.PollIntervalSeconds) * time.Second,
		client:   &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		sub:      sub,
		log:      logger.New("taskfeed"),
		seen:     make(map[string]struct{}),
	}
	if cfg.Auth.Enabled() {
		p.creds = auth.NewClientCred(cfg.Auth)
	}
	return p
}

// Start polls once immediately, then on every interval until ctx is done.
// Poll errors are logged and never stop the loop.
func (p *Poller) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		if n, err := p.Poll(ctx); err != nil {
			p.log.Errorf("poll error: %v", err)
		} else if n > 0 {
			p.log.Infof("submitted %d tasks from %s", n, p.url)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll fetches the feed once and returns the number of submitted tasks.
// Records already submitted by this poller are skipped. A rejected batch is
// retried on the next poll.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	recs, err := p.fetch(ctx, false)
	if err != nil {
		return 0, err
	}
	fresh := make([]snapshot.TaskRecord, 0, len(recs))
	for _, r := range recs {
		if _, ok := p.seen[r.ID]; !ok {
			fresh = append(fresh, r)
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}
	if err := p.sub.SubmitTasks(fresh); err != nil {
		return 0, err
	}
	for _, r := range fresh {
		p.seen[r.ID] = struct{}{}
	}
	return len(fresh), nil
}

func (p *Poller) fetch(ctx context.Context, retried bool) ([]snapshot.TaskRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if p.creds != nil {
		if err := p.creds.SetAuthHeader(req); err != nil {
			return nil, err
		}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && p.creds != nil && !retried {
		if _, err := p.creds.ForceRefresh(ctx); err != nil {
			return nil, err
		}
		return p.fetch(ctx, true)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("task feed %s: status %d", p.url, resp.StatusCode)
	}
	var recs []snapshot.TaskRecord
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		return nil, fmt.Errorf("decode task feed: %w", err)
	}
	return recs, nil
}
