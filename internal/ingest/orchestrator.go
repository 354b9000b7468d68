// Package ingest drives mailbox ingestion for every user.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newdok/mailingest/internal/brand"
	"github.com/newdok/mailingest/internal/extract"
	"github.com/newdok/mailingest/internal/mailbox"
	"github.com/newdok/mailingest/internal/message"
	"github.com/newdok/mailingest/internal/metrics"
	"github.com/newdok/mailingest/internal/model"
	"github.com/newdok/mailingest/internal/store"
	"github.com/newdok/mailingest/internal/subscription"
)

// JobState is the lifecycle state of the ingestion job.
type JobState int

const (
	JobIdle JobState = iota
	JobRunning
)

func (s JobState) String() string {
	switch s {
	case JobRunning:
		return "running"
	default:
		return "idle"
	}
}

// MarshalText renders the state by name.
func (s JobState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// RunStatus distinguishes a completed run from a rejected trigger.
type RunStatus string

const (
	RunCompleted      RunStatus = "completed"
	RunAlreadyRunning RunStatus = "already_running"

	// RunFailed means the run could not start processing users at all.
	// Per-user failures still yield RunCompleted.
	RunFailed RunStatus = "failed"
)

// UserResult is the outcome of one user's mailbox session.
type UserResult struct {
	UserID  string `json:"userId"`
	Mailbox string `json:"mailbox"`

	// Ingested counts stored articles, hidden ones included.
	Ingested int `json:"ingested"`
	Hidden   int `json:"hidden"`

	// Skipped counts messages passed over (unknown sender, parse failure).
	Skipped int `json:"skipped"`

	Err       error  `json:"-"`
	ErrorKind string `json:"errorKind,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (r *UserResult) fail(err error) {
	r.Err = err
	r.ErrorKind = ErrorKind(err)
	r.Error = err.Error()
}

// RunSummary describes one trigger of the ingestion job.
type RunSummary struct {
	RunID      string       `json:"runId,omitempty"`
	Status     RunStatus    `json:"status"`
	StartedAt  time.Time    `json:"startedAt,omitzero"`
	FinishedAt time.Time    `json:"finishedAt,omitzero"`
	Users      []UserResult `json:"users,omitempty"`

	// Error is set when the user list itself could not be loaded.
	Error string `json:"error,omitempty"`
}

// Ingested returns the number of articles stored across all users.
func (s RunSummary) Ingested() int {
	n := 0
	for _, u := range s.Users {
		n += u.Ingested
	}
	return n
}

// Failed returns the number of users whose session failed.
func (s RunSummary) Failed() int {
	n := 0
	for _, u := range s.Users {
		if u.Err != nil || u.Error != "" {
			n++
		}
	}
	return n
}

// JobStatus is the queryable state of the ingestion job.
type JobStatus struct {
	State   JobState    `json:"state"`
	LastRun *RunSummary `json:"lastRun,omitempty"`
}

// CredentialSource yields the password to log in to a user's mailbox.
type CredentialSource interface {
	Password(u model.User) (string, error)
}

// MailboxDefaults fills connection fields a user record does not carry.
type MailboxDefaults struct {
	Host          string
	Port          int
	TLS           bool
	TLSSkipVerify bool
}

// Options tunes an Orchestrator.
type Options struct {
	// Concurrency is the batch width. Defaults to 3.
	Concurrency int

	// SessionTimeout bounds one user's whole mailbox session.
	SessionTimeout time.Duration

	// FetchTimeout bounds a single message retrieval.
	FetchTimeout time.Duration

	// Location is the zone publish dates are computed in. Defaults to UTC+9.
	Location *time.Location

	Mailbox MailboxDefaults

	// Now is used when a message has no Date header. Defaults to time.Now.
	Now func() time.Time
}

const (
	defaultConcurrency    = 3
	defaultSessionTimeout = 5 * time.Minute
	defaultFetchTimeout   = time.Minute
)

// Orchestrator runs ingestion over all users in fixed-width batches.
// At most one run is active at a time.
type Orchestrator struct {
	store    store.Store
	dialer   mailbox.Dialer
	creds    CredentialSource
	resolver *brand.Resolver
	opts     Options
	log      *zap.Logger

	mu      sync.Mutex
	state   JobState
	lastRun *RunSummary
}

// New creates an Orchestrator.
func New(st store.Store, d mailbox.Dialer, creds CredentialSource, opts Options, log *zap.Logger) *Orchestrator {
	if opts.Concurrency < 1 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.SessionTimeout <= 0 {
		opts.SessionTimeout = defaultSessionTimeout
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.Location == nil {
		opts.Location = time.FixedZone("KST", 9*60*60)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		store:    st,
		dialer:   d,
		creds:    creds,
		resolver: brand.NewResolver(st),
		opts:     opts,
		log:      log,
	}
}

// Status returns the current job state and the last completed run.
func (o *Orchestrator) Status() JobStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := JobStatus{State: o.state}
	if o.lastRun != nil {
		last := *o.lastRun
		st.LastRun = &last
	}
	return st
}

// acquire moves the job from idle to running. It reports false when a run
// is already active.
func (o *Orchestrator) acquire() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == JobRunning {
		return false
	}
	o.state = JobRunning
	return true
}

func (o *Orchestrator) release(summary RunSummary) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.state = JobIdle
	o.lastRun = &summary
}

// Run performs one ingestion pass over every user. A trigger while another
// pass is active returns immediately with RunAlreadyRunning.
func (o *Orchestrator) Run(ctx context.Context) (summary RunSummary) {
	if !o.acquire() {
		o.log.Info("ingestion already running, trigger ignored")
		metrics.RecordRun(string(RunAlreadyRunning), 0)
		return RunSummary{Status: RunAlreadyRunning}
	}

	summary = RunSummary{
		RunID:     uuid.New().String(),
		Status:    RunCompleted,
		StartedAt: time.Now().UTC(),
	}
	defer func() {
		summary.FinishedAt = time.Now().UTC()
		o.release(summary)
	}()

	log := o.log.With(zap.String("run_id", summary.RunID))
	log.Info("ingestion run started")

	users, err := o.store.ListUsers(ctx)
	if err != nil {
		log.Error("listing users", zap.Error(err))
		summary.Status = RunFailed
		summary.Error = (&PersistenceError{Op: "listing users", Err: err}).Error()
		metrics.RecordRun(string(RunFailed), time.Since(summary.StartedAt))
		return summary
	}

	width := o.opts.Concurrency
	for start := 0; start < len(users); start += width {
		batch := users[start:min(start+width, len(users))]
		summary.Users = append(summary.Users, o.runBatch(ctx, log, batch)...)
	}

	elapsed := time.Since(summary.StartedAt)
	metrics.RecordRun(string(RunCompleted), elapsed)
	log.Info("ingestion run finished",
		zap.Int("users", len(summary.Users)),
		zap.Int("ingested", summary.Ingested()),
		zap.Int("failed", summary.Failed()),
		zap.Duration("elapsed", elapsed),
	)
	return summary
}

// runBatch processes users concurrently and waits for all of them. A
// failing user never cancels its siblings.
func (o *Orchestrator) runBatch(ctx context.Context, log *zap.Logger, batch []model.User) []UserResult {
	results := make([]UserResult, len(batch))

	var wg sync.WaitGroup
	for i, u := range batch {
		i, u := i, u
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = UserResult{UserID: u.ID, Mailbox: u.MailboxAddress}
					results[i].fail(fmt.Errorf("panic: %v", r))
					log.Error("user ingestion panicked", zap.String("user_id", u.ID), zap.Any("panic", r))
				}
			}()
			results[i] = o.processUser(ctx, log, u)
		}()
	}
	wg.Wait()

	for _, r := range results {
		if r.Err != nil {
			log.Error("user ingestion failed",
				zap.String("user_id", r.UserID),
				zap.String("mailbox", r.Mailbox),
				zap.String("kind", r.ErrorKind),
				zap.Error(r.Err),
			)
			metrics.RecordUserFailure(r.ErrorKind)
		}
	}
	return results
}

func (o *Orchestrator) credentialsFor(u model.User, password string) mailbox.Credentials {
	host := u.MailboxHost
	if host == "" {
		host = o.opts.Mailbox.Host
	}
	return mailbox.Credentials{
		Address:       u.MailboxAddress,
		Password:      password,
		Host:          host,
		Port:          o.opts.Mailbox.Port,
		TLS:           o.opts.Mailbox.TLS,
		TLSSkipVerify: o.opts.Mailbox.TLSSkipVerify,
	}
}

// processUser ingests every message past the user's cursor, in order.
func (o *Orchestrator) processUser(ctx context.Context, runLog *zap.Logger, u model.User) (res UserResult) {
	res = UserResult{UserID: u.ID, Mailbox: u.MailboxAddress}
	log := runLog.With(zap.String("user_id", u.ID), zap.String("mailbox", u.MailboxAddress))

	ctx, cancel := context.WithTimeout(ctx, o.opts.SessionTimeout)
	defer cancel()

	password, err := o.creds.Password(u)
	if err != nil {
		log.Debug("resolving mailbox password", zap.Error(err))
		res.fail(err)
		return res
	}

	sess, err := o.dialer.Dial(ctx, o.credentialsFor(u, password))
	if err != nil {
		log.Debug("opening mailbox session", zap.Error(err))
		res.fail(err)
		return res
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Debug("closing mailbox session", zap.Error(err))
		}
	}()

	ids, err := sess.List(ctx)
	if err != nil {
		log.Debug("listing messages", zap.Error(err))
		res.fail(err)
		return res
	}

	cursor := u.Cursor()
	for _, id := range ids {
		if id.Position <= cursor {
			continue
		}
		msgLog := log.With(zap.Int("position", id.Position))

		fetchCtx, cancelFetch := context.WithTimeout(ctx, o.opts.FetchTimeout)
		raw, err := sess.Fetch(fetchCtx, id.Position)
		cancelFetch()
		if err != nil {
			msgLog.Debug("fetching message", zap.Error(err))
			res.fail(err)
			return res
		}

		outcome, err := o.ingestMessage(ctx, msgLog, u, id.Position, raw)
		if err != nil {
			msgLog.Debug("storing message", zap.Error(err))
			res.fail(err)
			return res
		}
		metrics.RecordMessage(outcome)

		switch outcome {
		case metrics.OutcomeIngested:
			res.Ingested++
		case metrics.OutcomeHidden:
			res.Ingested++
			res.Hidden++
		default:
			res.Skipped++
		}
	}

	if res.Ingested > 0 || res.Skipped > 0 {
		log.Info("mailbox ingested",
			zap.Int("ingested", res.Ingested),
			zap.Int("hidden", res.Hidden),
			zap.Int("skipped", res.Skipped),
		)
	}
	return res
}

// ingestMessage turns one raw message into an article and applies the
// subscription transition in a single transaction. Messages that cannot be
// attributed to a brand are recorded as skipped so the cursor moves past them.
func (o *Orchestrator) ingestMessage(ctx context.Context, log *zap.Logger, u model.User, position int, raw []byte) (string, error) {
	parsed, err := message.Parse(raw)
	if err != nil {
		log.Warn("skipping unparseable message", zap.Error(err))
		return metrics.OutcomeParseError, o.recordSkip(ctx, u.ID, position, model.SkipParseError, "")
	}

	n, err := o.resolver.Resolve(ctx, parsed.From)
	if err != nil {
		if brand.IsUnknownSender(err) {
			log.Warn("skipping message from unknown sender", zap.String("sender", parsed.From))
			return metrics.OutcomeUnknownSender, o.recordSkip(ctx, u.ID, position, model.SkipUnknownSender, parsed.From)
		}
		return "", &PersistenceError{Op: "resolving brand", Err: err}
	}

	date := parsed.Date
	if !parsed.HasDate {
		date = o.opts.Now().UTC()
	}
	body := parsed.Body()
	article := &model.Article{
		UserID:          u.ID,
		NewsletterID:    n.ID,
		Title:           parsed.Title(),
		Body:            body,
		PlainBody:       extract.PlainBody(body),
		Preview:         extract.Preview(body),
		Date:            date,
		MailboxPosition: position,
		Status:          model.ArticleUnread,
	}
	article.SetPublishDate(o.opts.Location)

	var decision subscription.Decision
	err = o.store.WithTx(ctx, func(tx store.Tx) error {
		current, err := tx.GetSubscription(ctx, u.ID, n.ID)
		if errors.Is(err, store.ErrNotFound) {
			current = nil
		} else if err != nil {
			return err
		}

		decision = subscription.Decide(current, n.DoubleCheck)
		article.IsVisible = decision.Visible
		if err := tx.CreateArticle(ctx, article); err != nil {
			return err
		}

		switch {
		case decision.Create:
			return tx.CreateSubscription(ctx, &model.Subscription{
				UserID:       u.ID,
				NewsletterID: n.ID,
				Status:       decision.Status,
			})
		case decision.Update:
			return tx.UpdateSubscriptionStatus(ctx, u.ID, n.ID, decision.Status)
		}
		return nil
	})
	if err != nil {
		return "", &PersistenceError{Op: "storing article", Err: err}
	}

	log.Debug("article stored",
		zap.String("newsletter_id", n.ID),
		zap.String("sender", parsed.From),
		zap.String("subscription", string(decision.Status)),
		zap.Bool("visible", decision.Visible),
	)
	if !decision.Visible {
		return metrics.OutcomeHidden, nil
	}
	return metrics.OutcomeIngested, nil
}

func (o *Orchestrator) recordSkip(ctx context.Context, userID string, position int, reason, sender string) error {
	err := o.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.RecordSkip(ctx, model.SkippedMessage{
			UserID:   userID,
			Position: position,
			Reason:   reason,
			Sender:   sender,
		})
	})
	if err != nil {
		return &PersistenceError{Op: "recording skipped message", Err: err}
	}
	return nil
}
