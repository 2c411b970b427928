package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contactgate/internal/antispam"
	"contactgate/internal/delivery"
	"contactgate/internal/domain"
	"contactgate/internal/store"
	apperrors "contactgate/pkg/errors"
)

type fakeStore struct {
	mu         sync.Mutex
	nextID     uint
	records    map[uint]*domain.ContactRecord
	createFunc func(rec *domain.ContactRecord) error
	markFunc   func(id uint) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[uint]*domain.ContactRecord{}}
}

func (f *fakeStore) Create(_ context.Context, rec *domain.ContactRecord) error {
	if f.createFunc != nil {
		if err := f.createFunc(rec); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	rec.ID = f.nextID
	rec.Status = domain.StatusPending
	rec.CreatedAt = time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	cp := *rec
	f.records[rec.ID] = &cp
	return nil
}

func (f *fakeStore) MarkSent(ctx context.Context, id uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.markFunc != nil {
		if err := f.markFunc(id); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return errors.New("not found")
	}
	rec.Status = domain.StatusSent
	return nil
}

func (f *fakeStore) ListRecent(_ context.Context, limit int) ([]domain.ContactRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ContactRecord, 0, len(f.records))
	for id := f.nextID; id > 0 && len(out) < limit; id-- {
		if rec, ok := f.records[id]; ok {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeStore) status(id uint) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[id]; ok {
		return rec.Status
	}
	return ""
}

type sentEmail struct {
	email delivery.Email
	opts  delivery.Options
}

type fakeMailer struct {
	mu       sync.Mutex
	sent     []sentEmail
	sendFunc func(email delivery.Email, opts delivery.Options) error
}

func (f *fakeMailer) Send(ctx context.Context, email delivery.Email, opts delivery.Options) (*delivery.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeTransportUnavailable, "send cancelled", err)
	}
	f.mu.Lock()
	f.sent = append(f.sent, sentEmail{email: email, opts: opts})
	f.mu.Unlock()
	if f.sendFunc != nil {
		if err := f.sendFunc(email, opts); err != nil {
			return nil, err
		}
	}
	return &delivery.Result{MessageID: "id@example.com", Accepted: []string{email.To}}, nil
}

func (f *fakeMailer) calls() []sentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEmail(nil), f.sent...)
}

const (
	ownerAddr = "dono@example.com"
	visitorIP = "203.0.113.9"
)

var testNow = time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

type fixture struct {
	svc        *ContactService
	store      *fakeStore
	mailer     *fakeMailer
	reputation *antispam.Reputation
}

func newFixture() *fixture {
	clock := func() time.Time { return testNow }
	st := newFakeStore()
	m := &fakeMailer{}
	rep := antispam.NewReputation(store.NewMemoryStore(store.WithClock(clock)), antispam.WithReputationClock(clock))
	svc := NewContactService(
		ContactConfig{OwnerEmail: ownerAddr, SenderName: "Lucas Pinheiro"},
		st, m,
		antispam.NewGuard(antispam.WithGuardClock(clock)),
		rep,
		zerolog.Nop(),
	)
	return &fixture{svc: svc, store: st, mailer: m, reputation: rep}
}

func renderedAgo(d time.Duration) *float64 {
	ms := float64(testNow.Add(-d).UnixMilli())
	return &ms
}

func validInput() SubmitInput {
	company := "Acme Ltda"
	return SubmitInput{
		Submission: domain.Submission{
			Name:      "Maria Silva",
			Email:     "Maria@Example.com ",
			Company:   &company,
			Message:   "Gostaria de saber mais sobre seus serviços de consultoria.",
			Timestamp: renderedAgo(45 * time.Second),
		},
		IP:        visitorIP,
		UserAgent: "Mozilla/5.0",
	}
}

func TestSubmitSuccess(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Submit(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, uint(1), res.ContactID)
	assert.Equal(t, MsgSuccess, res.Message)
	assert.Empty(t, res.Warning)
	assert.Equal(t, domain.StatusSent, f.store.status(res.ContactID))

	calls := f.mailer.calls()
	require.Len(t, calls, 2)

	owner := calls[0]
	assert.Equal(t, ownerAddr, owner.email.To)
	assert.Equal(t, "maria@example.com", owner.opts.ReplyTo)
	assert.Equal(t, visitorIP, owner.opts.SourceIP)
	assert.Equal(t, "contact-1", owner.opts.ReferenceID)
	assert.False(t, owner.opts.SkipSpamCheck)
	assert.Contains(t, owner.email.Subject, "Maria Silva")
	assert.Contains(t, owner.email.Text, "Acme Ltda")

	confirmation := calls[1]
	assert.Equal(t, "maria@example.com", confirmation.email.To)
	assert.True(t, confirmation.opts.SkipSpamCheck)
	assert.Empty(t, confirmation.opts.SourceIP)
	assert.Contains(t, confirmation.email.Text, "Maria")
}

func TestSubmitHoneypotRejected(t *testing.T) {
	f := newFixture()
	in := validInput()
	in.Submission.Honeypot = "http://spam.example"

	_, err := f.svc.Submit(context.Background(), in)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	appErr, _ := apperrors.As(err)
	assert.Equal(t, antispam.MsgGuardFailed, appErr.Message)
	assert.Empty(t, f.mailer.calls())
	assert.Empty(t, f.store.records)
}

func TestSubmitTooFast(t *testing.T) {
	f := newFixture()
	in := validInput()
	in.Submission.Timestamp = renderedAgo(time.Second)

	_, err := f.svc.Submit(context.Background(), in)
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, f.store.records)
}

func TestSubmitTimestampFarInThePast(t *testing.T) {
	f := newFixture()
	in := validInput()
	ts := float64(testNow.UnixMilli() - 18_446_744_078_710)
	in.Submission.Timestamp = &ts

	_, err := f.svc.Submit(context.Background(), in)
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, f.store.records)
}

func TestSubmitCompletesAfterCallerCancels(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.store.createFunc = func(*domain.ContactRecord) error {
		cancel()
		return nil
	}

	res, err := f.svc.Submit(ctx, validInput())
	require.NoError(t, err)
	assert.Equal(t, MsgSuccess, res.Message)
	assert.Empty(t, res.Warning)
	assert.Len(t, f.mailer.calls(), 2)
	assert.Equal(t, domain.StatusSent, f.store.status(res.ContactID))
}

func TestSubmitSpamContentRejected(t *testing.T) {
	f := newFixture()
	in := validInput()
	in.Submission.Message = "BUY VIAGRA NOW!!! http://a.co http://b.co http://c.co http://d.co $$$"

	_, err := f.svc.Submit(context.Background(), in)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	appErr, _ := apperrors.As(err)
	assert.Equal(t, MsgContentRejected, appErr.Message)
	assert.NotEmpty(t, appErr.Details)
	assert.Empty(t, f.mailer.calls())
}

func TestSubmitFieldValidation(t *testing.T) {
	f := newFixture()
	in := validInput()
	in.Submission.Email = "not-an-email"

	_, err := f.svc.Submit(context.Background(), in)
	require.Error(t, err)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, MsgInvalidData, appErr.Message)
	assert.Contains(t, appErr.Details, "email: invalid address")
}

func TestRepeatedFailuresFlagIP(t *testing.T) {
	f := newFixture()
	in := validInput()
	in.Submission.Honeypot = "x"
	ctx := context.Background()

	for i := 0; i < antispam.AttemptThreshold; i++ {
		_, err := f.svc.Submit(ctx, in)
		require.Error(t, err)
	}

	flagged, err := f.reputation.IsSuspicious(ctx, visitorIP)
	require.NoError(t, err)
	assert.True(t, flagged)
}

func TestSubmitOwnerRateLimited(t *testing.T) {
	f := newFixture()
	f.mailer.sendFunc = func(email delivery.Email, _ delivery.Options) error {
		if email.To == ownerAddr {
			return apperrors.RateLimited("delivery limit reached for source", 15*time.Minute)
		}
		return nil
	}

	_, err := f.svc.Submit(context.Background(), validInput())
	require.Error(t, err)
	assert.True(t, apperrors.IsRateLimited(err))

	appErr, _ := apperrors.As(err)
	assert.Equal(t, 15*time.Minute, appErr.RetryAfter)
	assert.Equal(t, MsgTooManyAttempts, appErr.Message)

	assert.Len(t, f.mailer.calls(), 1)
	assert.Equal(t, domain.StatusPending, f.store.status(1))
}

func TestSubmitOwnerContentRejectedFlagsIP(t *testing.T) {
	f := newFixture()
	f.mailer.sendFunc = func(email delivery.Email, _ delivery.Options) error {
		if email.To == ownerAddr {
			e := apperrors.New(apperrors.ErrCodeContentRejected, "content rejected by delivery check")
			e.Details = []string{"gambling"}
			return e
		}
		return nil
	}
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, validInput())
	require.Error(t, err)
	assert.True(t, apperrors.IsContentRejected(err))

	appErr, _ := apperrors.As(err)
	assert.Equal(t, []string{"gambling"}, appErr.Details)

	flagged, err := f.reputation.IsSuspicious(ctx, visitorIP)
	require.NoError(t, err)
	assert.True(t, flagged)
}

func TestSubmitRecipientRejectedKeepsPending(t *testing.T) {
	f := newFixture()
	f.mailer.sendFunc = func(email delivery.Email, _ delivery.Options) error {
		if email.To == ownerAddr {
			return apperrors.New(apperrors.ErrCodeRecipientRejected, "550 mailbox unavailable")
		}
		return nil
	}

	_, err := f.svc.Submit(context.Background(), validInput())
	require.Error(t, err)
	assert.True(t, apperrors.IsRecipientRejected(err))
	assert.Equal(t, domain.StatusPending, f.store.status(1))
	assert.Len(t, f.mailer.calls(), 1)
}

func TestSubmitOwnerTransportFailureContinues(t *testing.T) {
	f := newFixture()
	f.mailer.sendFunc = func(email delivery.Email, _ delivery.Options) error {
		if email.To == ownerAddr {
			return apperrors.New(apperrors.ErrCodeTransportUnavailable, "dial failed")
		}
		return nil
	}

	res, err := f.svc.Submit(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, uint(1), res.ContactID)
	assert.Len(t, f.mailer.calls(), 2)
	assert.Equal(t, domain.StatusSent, f.store.status(1))
}

func TestSubmitConfirmationFailureWarns(t *testing.T) {
	f := newFixture()
	f.mailer.sendFunc = func(email delivery.Email, _ delivery.Options) error {
		if email.To != ownerAddr {
			return apperrors.New(apperrors.ErrCodeTransportUnavailable, "connection reset")
		}
		return nil
	}

	res, err := f.svc.Submit(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, MsgReceived, res.Message)
	assert.Equal(t, MsgConfirmationFailed, res.Warning)
	assert.Equal(t, domain.StatusSent, f.store.status(res.ContactID))
}

func TestSubmitMarkSentFailureWarns(t *testing.T) {
	f := newFixture()
	f.store.markFunc = func(uint) error { return errors.New("database is locked") }

	res, err := f.svc.Submit(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, MsgReceived, res.Message)
	assert.Equal(t, MsgFollowUp, res.Warning)
}

func TestSubmitPanicAfterPersistence(t *testing.T) {
	f := newFixture()
	f.mailer.sendFunc = func(delivery.Email, delivery.Options) error {
		panic("template exploded")
	}

	res, err := f.svc.Submit(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, uint(1), res.ContactID)
	assert.Equal(t, MsgReceived, res.Message)
	assert.NotEmpty(t, res.Warning)
}

func TestSubmitCreateFailure(t *testing.T) {
	f := newFixture()
	f.store.createFunc = func(*domain.ContactRecord) error { return errors.New("disk full") }

	_, err := f.svc.Submit(context.Background(), validInput())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInternalError, apperrors.CodeOf(err))
	assert.Empty(t, f.mailer.calls())
}

func TestListRecent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.svc.Submit(ctx, validInput())
		require.NoError(t, err)
	}

	records, err := f.svc.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint(3), records[0].ID)
	assert.Equal(t, uint(2), records[1].ID)
}
