package session_test

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WorkniceHR/slack/pkg/credentials"
	apperrors "github.com/WorkniceHR/slack/pkg/errors"
	"github.com/WorkniceHR/slack/pkg/events"
	"github.com/WorkniceHR/slack/pkg/events/eventstest"
	"github.com/WorkniceHR/slack/pkg/lifecycle"
	"github.com/WorkniceHR/slack/pkg/session"
	"github.com/WorkniceHR/slack/pkg/slack"
	"github.com/WorkniceHR/slack/pkg/store"
	"github.com/WorkniceHR/slack/pkg/worknice"
)

const consentURL = "https://slack.test/oauth/v2/authorize?client_id=cid"

type cookieJar struct {
	values map[string]string
	maxAge map[string]time.Duration
}

func newJar() *cookieJar {
	return &cookieJar{values: map[string]string{}, maxAge: map[string]time.Duration{}}
}

func (j *cookieJar) Get(name string) (string, bool) {
	v, ok := j.values[name]
	return v, ok
}

func (j *cookieJar) Set(name, value string, maxAge time.Duration) {
	j.values[name] = value
	j.maxAge[name] = maxAge
}

func (j *cookieJar) Clear(name string) {
	delete(j.values, name)
}

type fakeSlack struct {
	access *slack.OAuthAccess
	err    error
	codes  []string
}

func (s *fakeSlack) AuthorizationURL() string { return consentURL }

func (s *fakeSlack) ExchangeCode(_ context.Context, code string) (*slack.OAuthAccess, error) {
	s.codes = append(s.codes, code)
	if s.err != nil {
		return nil, s.err
	}
	return s.access, nil
}

type fakeHost struct {
	mu        sync.Mutex
	archived  map[string]bool
	activated map[string]string
}

func (h *fakeHost) GetIntegration(_ context.Context, _ string, id string) (*worknice.Integration, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return &worknice.Integration{ID: id, Archived: h.archived[id]}, nil
}

func (h *fakeHost) ActivateIntegration(_ context.Context, apiKey, id, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.activated[id] = apiKey + "|" + name
	return nil
}

type fixture struct {
	now      time.Time
	store    *store.MemoryStore
	repo     *credentials.Repository
	slack    *fakeSlack
	host     *fakeHost
	recorder *eventstest.Recorder
	exchange *session.Exchange
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	f := &fixture{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	f.store = store.NewMemoryStoreWithClock(func() time.Time { return f.now })
	f.repo = credentials.NewRepository(f.store, logger)
	f.slack = &fakeSlack{access: &slack.OAuthAccess{
		OK:          true,
		AccessToken: "xoxb-1",
		BotUserID:   "U1",
		Team:        &slack.Team{ID: "T1", Name: "Acme"},
	}}
	f.host = &fakeHost{archived: map[string]bool{}, activated: map[string]string{}}
	f.recorder = &eventstest.Recorder{}
	lc := lifecycle.New(f.repo, f.host, f.recorder, logger)
	f.exchange = session.NewExchange("https://bridge.test/", f.repo, f.slack, lc, f.host, f.recorder, logger)
	return f
}

func codeFrom(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	code := u.Query().Get(session.CodeParam)
	require.NotEmpty(t, code)
	return code
}

func TestAuthorizationURL(t *testing.T) {
	f := newFixture(t)

	raw, err := f.exchange.AuthorizationURL(t.Context(), "int_1")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "bridge.test", u.Host)
	assert.Equal(t, "/auth-request", u.Path)

	code := u.Query().Get("code")
	assert.Len(t, code, 32)
	id, err := f.store.GetString(t.Context(), credentials.SessionCodeKey(code))
	require.NoError(t, err)
	assert.Equal(t, "int_1", id)
}

func TestAuthorizationURL_RequiresIntegrationID(t *testing.T) {
	f := newFixture(t)

	_, err := f.exchange.AuthorizationURL(t.Context(), "")
	assert.True(t, apperrors.IsValidation(err))
}

func TestFullAuthorization(t *testing.T) {
	ctx := t.Context()
	f := newFixture(t)
	require.NoError(t, f.repo.SetWorkniceAPIKey(ctx, "int_1", "key-1"))

	raw, err := f.exchange.AuthorizationURL(ctx, "int_1")
	require.NoError(t, err)
	code := codeFrom(t, raw)

	jar := newJar()
	redirect, err := f.exchange.BeginAuthorization(ctx, code, jar)
	require.NoError(t, err)
	assert.Equal(t, consentURL, redirect)
	assert.Equal(t, code, jar.values[session.SessionCodeCookie])
	assert.Equal(t, session.SessionCodeTTL, jar.maxAge[session.SessionCodeCookie])

	// the code survives the non-destructive read
	_, err = f.store.GetString(ctx, credentials.SessionCodeKey(code))
	require.NoError(t, err)

	id, err := f.exchange.CompleteAuthorization(ctx, "sc_1", jar)
	require.NoError(t, err)
	assert.Equal(t, "int_1", id)
	assert.Equal(t, []string{"sc_1"}, f.slack.codes)
	_, ok := jar.Get(session.SessionCodeCookie)
	assert.False(t, ok)
	resolved, err := f.exchange.ResolveSession(ctx, jar)
	require.NoError(t, err)
	assert.Equal(t, "int_1", resolved)

	token, err := f.repo.GetSlackAccessToken(ctx, "int_1")
	require.NoError(t, err)
	assert.Equal(t, "xoxb-1", token)
	byTeam, err := f.repo.GetIntegrationIDByTeam(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, "int_1", byTeam)
	assert.Equal(t, "key-1|Acme", f.host.activated["int_1"])
	require.Len(t, f.recorder.OfType(events.TypeIntegrationActivated), 1)

	_, err = f.store.GetString(ctx, credentials.SessionCodeKey(code))
	assert.True(t, apperrors.IsNotFound(err))
}

func TestBeginAuthorization_UnknownCode(t *testing.T) {
	f := newFixture(t)
	jar := newJar()

	_, err := f.exchange.BeginAuthorization(t.Context(), "nope", jar)
	assert.True(t, apperrors.IsAuthentication(err))
	assert.Empty(t, jar.values)

	_, err = f.exchange.BeginAuthorization(t.Context(), "", jar)
	assert.True(t, apperrors.IsAuthentication(err))
}

func TestCompleteAuthorization_ConsumedCodeWritesNothing(t *testing.T) {
	ctx := t.Context()
	f := newFixture(t)
	require.NoError(t, f.repo.SetWorkniceAPIKey(ctx, "int_1", "key-1"))

	raw, err := f.exchange.AuthorizationURL(ctx, "int_1")
	require.NoError(t, err)
	code := codeFrom(t, raw)
	_, err = f.store.GetAndDeleteString(ctx, credentials.SessionCodeKey(code))
	require.NoError(t, err)

	jar := newJar()
	jar.Set(session.SessionCodeCookie, code, session.SessionCodeTTL)
	_, err = f.exchange.CompleteAuthorization(ctx, "sc_1", jar)
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthentication(err))

	_, err = f.repo.GetSlackAccessToken(ctx, "int_1")
	assert.True(t, apperrors.IsNotFound(err))
	_, err = f.repo.GetIntegrationIDByTeam(ctx, "T1")
	assert.True(t, apperrors.IsNotFound(err))
	assert.Empty(t, f.host.activated)
	_, ok := jar.Get(session.SessionTokenCookie)
	assert.False(t, ok)
}

func TestCompleteAuthorization_ExpiredCode(t *testing.T) {
	ctx := t.Context()
	f := newFixture(t)
	require.NoError(t, f.repo.SetWorkniceAPIKey(ctx, "int_1", "key-1"))

	raw, err := f.exchange.AuthorizationURL(ctx, "int_1")
	require.NoError(t, err)
	jar := newJar()
	_, err = f.exchange.BeginAuthorization(ctx, codeFrom(t, raw), jar)
	require.NoError(t, err)

	f.now = f.now.Add(session.SessionCodeTTL)

	_, err = f.exchange.CompleteAuthorization(ctx, "sc_1", jar)
	assert.True(t, apperrors.IsAuthentication(err))
	_, err = f.repo.GetSlackAccessToken(ctx, "int_1")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCompleteAuthorization_MissingCookie(t *testing.T) {
	f := newFixture(t)

	_, err := f.exchange.CompleteAuthorization(t.Context(), "sc_1", newJar())
	assert.True(t, apperrors.IsAuthentication(err))
	assert.Empty(t, f.slack.codes)
}

func TestCompleteAuthorization_SlackFailureKeepsCode(t *testing.T) {
	ctx := t.Context()
	f := newFixture(t)
	f.slack.err = apperrors.NewUpstreamError("slack oauth.v2.access returned \"invalid_code\"", nil)

	raw, err := f.exchange.AuthorizationURL(ctx, "int_1")
	require.NoError(t, err)
	code := codeFrom(t, raw)
	jar := newJar()
	_, err = f.exchange.BeginAuthorization(ctx, code, jar)
	require.NoError(t, err)

	_, err = f.exchange.CompleteAuthorization(ctx, "bad", jar)
	assert.True(t, apperrors.IsUpstream(err))

	_, err = f.repo.GetSlackAccessToken(ctx, "int_1")
	assert.True(t, apperrors.IsNotFound(err))
	// the session code was not consumed
	_, err = f.store.GetString(ctx, credentials.SessionCodeKey(code))
	assert.NoError(t, err)
}

func TestCompleteAuthorization_ArchivedIntegration(t *testing.T) {
	ctx := t.Context()
	f := newFixture(t)
	require.NoError(t, f.repo.SetWorkniceAPIKey(ctx, "int_2", "key-2"))
	f.host.archived["int_2"] = true

	raw, err := f.exchange.AuthorizationURL(ctx, "int_2")
	require.NoError(t, err)
	jar := newJar()
	_, err = f.exchange.BeginAuthorization(ctx, codeFrom(t, raw), jar)
	require.NoError(t, err)

	_, err = f.exchange.CompleteAuthorization(ctx, "sc_1", jar)
	assert.True(t, apperrors.IsArchived(err))

	_, err = f.repo.GetWorkniceAPIKey(ctx, "int_2")
	assert.True(t, apperrors.IsNotFound(err))
	_, err = f.repo.GetSlackAccessToken(ctx, "int_2")
	assert.True(t, apperrors.IsNotFound(err))
	assert.Empty(t, f.host.activated)
}

func TestReconfiguration(t *testing.T) {
	ctx := t.Context()
	f := newFixture(t)

	raw, err := f.exchange.ReconfigurationURL(ctx, "int_1")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/reconfig-request", u.Path)
	code := u.Query().Get("code")

	jar := newJar()
	id, err := f.exchange.BeginReconfiguration(ctx, code, jar)
	require.NoError(t, err)
	assert.Equal(t, "int_1", id)

	token := jar.values[session.SessionTokenCookie]
	assert.Len(t, token, 128)
	assert.Equal(t, session.SessionTokenTTL, jar.maxAge[session.SessionTokenCookie])

	// the session token is reusable
	for range 3 {
		resolved, err := f.exchange.ResolveSession(ctx, jar)
		require.NoError(t, err)
		assert.Equal(t, "int_1", resolved)
	}

	// the session code is not
	_, err = f.exchange.BeginReconfiguration(ctx, code, newJar())
	assert.True(t, apperrors.IsAuthentication(err))
}

func TestResolveSession_Failures(t *testing.T) {
	ctx := t.Context()
	f := newFixture(t)

	_, err := f.exchange.ResolveSession(ctx, newJar())
	assert.True(t, apperrors.IsAuthentication(err))

	jar := newJar()
	jar.Set(session.SessionTokenCookie, "unknown", time.Hour)
	_, err = f.exchange.ResolveSession(ctx, jar)
	assert.True(t, apperrors.IsAuthentication(err))
}

func TestResolveSession_Expires(t *testing.T) {
	ctx := t.Context()
	f := newFixture(t)

	raw, err := f.exchange.ReconfigurationURL(ctx, "int_1")
	require.NoError(t, err)
	jar := newJar()
	_, err = f.exchange.BeginReconfiguration(ctx, codeFrom(t, raw), jar)
	require.NoError(t, err)

	f.now = f.now.Add(session.SessionTokenTTL - time.Second)
	_, err = f.exchange.ResolveSession(ctx, jar)
	require.NoError(t, err)

	f.now = f.now.Add(time.Second)
	_, err = f.exchange.ResolveSession(ctx, jar)
	assert.True(t, apperrors.IsAuthentication(err))
}

func TestConcurrentReconfigurationCodes(t *testing.T) {
	ctx := t.Context()
	f := newFixture(t)

	urls := make([]string, 2)
	var wg sync.WaitGroup
	for i := range urls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, err := f.exchange.ReconfigurationURL(ctx, "int_1")
			assert.NoError(t, err)
			urls[i] = raw
		}()
	}
	wg.Wait()

	first, second := codeFrom(t, urls[0]), codeFrom(t, urls[1])
	assert.NotEqual(t, first, second)

	jarA, jarB := newJar(), newJar()
	for _, c := range []struct {
		code string
		jar  *cookieJar
	}{{first, jarA}, {second, jarB}} {
		id, err := f.exchange.BeginReconfiguration(ctx, c.code, c.jar)
		require.NoError(t, err)
		assert.Equal(t, "int_1", id)

		_, err = f.exchange.BeginReconfiguration(ctx, c.code, newJar())
		assert.True(t, apperrors.IsAuthentication(err))
	}

	for _, jar := range []*cookieJar{jarA, jarB} {
		id, err := f.exchange.ResolveSession(ctx, jar)
		require.NoError(t, err)
		assert.Equal(t, "int_1", id)
	}
}

func TestConcurrentConsumeOnlyOneWins(t *testing.T) {
	ctx := t.Context()
	f := newFixture(t)

	raw, err := f.exchange.ReconfigurationURL(ctx, "int_1")
	require.NoError(t, err)
	code := codeFrom(t, raw)

	const callers = 16
	results := make(chan error, callers)
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.exchange.BeginReconfiguration(ctx, code, newJar())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperrors.IsAuthentication(err))
	}
	assert.Equal(t, 1, succeeded)
}
