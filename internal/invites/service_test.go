package invites

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/eventmarket/backend/internal/apperr"
	"github.com/eventmarket/backend/internal/membership"
	"github.com/eventmarket/backend/internal/memstore"
	"github.com/eventmarket/backend/internal/models"
	"github.com/eventmarket/backend/internal/notify"
)

var t0 = time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC)

type sentMail struct {
	kind   notify.Kind
	to     string
	params map[string]string
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []sentMail
}

func (d *recordingDispatcher) Send(_ context.Context, kind notify.Kind, to string, params map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentMail{kind: kind, to: to, params: params})
	return nil
}

func (d *recordingDispatcher) last(t *testing.T) sentMail {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.sent)
	return d.sent[len(d.sent)-1]
}

type fixture struct {
	svc     *Service
	store   *memstore.Store
	mail    *recordingDispatcher
	clock   time.Time
	orgID   uuid.UUID
	adminID membership.Identity
}

func newFixture(t *testing.T, orgType models.OrgType) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	logger := zaptest.NewLogger(t)
	f := &fixture{store: store, mail: &recordingDispatcher{}, clock: t0}
	f.svc = NewService(membership.NewGuard(store, logger), store, store, store, f.mail,
		Config{AppURL: "https://app.example.com/"}, logger)
	f.svc.now = func() time.Time { return f.clock }

	f.adminID = membership.Identity{UserID: "admin", Email: "admin@example.com", FirstName: "Avery", LastName: "Stone"}
	require.NoError(t, store.CreateProfile(ctx, &models.Profile{
		UserID: "admin", Email: "admin@example.com", FirstName: "Avery", LastName: "Stone", Role: models.RoleUser,
	}))
	f.orgID = uuid.New()
	require.NoError(t, store.CreateWithAdmin(ctx, &models.Organization{
		ID: f.orgID, Type: orgType, Name: "Harbour Catering", Email: "org@example.com", CreatedAt: t0,
	}, "admin"))
	return f
}

func tokenFrom(t *testing.T, m sentMail) string {
	t.Helper()
	u, err := url.Parse(m.params["accept_url"])
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}

func TestSendStoresOnlyHash(t *testing.T) {
	f := newFixture(t, models.OrgTypeSupplier)
	inv, err := f.svc.Send(context.Background(), f.adminID, models.OrgTypeSupplier, f.orgID,
		SendInput{Email: "New.Hire@Example.com", Role: models.RoleSupplierMember})
	require.NoError(t, err)
	assert.Equal(t, "new.hire@example.com", inv.Email)
	assert.Equal(t, t0.Add(DefaultTTL), inv.ExpiresAt)

	m := f.mail.last(t)
	assert.Equal(t, notify.KindTeamInvite, m.kind)
	assert.Equal(t, "new.hire@example.com", m.to)
	assert.Equal(t, "Avery Stone", m.params["inviter_name"])
	assert.Equal(t, "Harbour Catering", m.params["org_name"])
	assert.Contains(t, m.params["accept_url"], "https://app.example.com/invite/accept?token=")

	token := tokenFrom(t, m)
	assert.Len(t, token, 64)
	assert.NotEqual(t, token, inv.TokenHash)
	assert.Equal(t, HashToken(token), inv.TokenHash)
}

func TestSendChecks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, models.OrgTypeAgency)

	_, err := f.svc.Send(ctx, f.adminID, models.OrgTypeAgency, f.orgID, SendInput{Email: "x@example.com", Role: models.RoleSupplierMember})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput), "role of the other organization type")

	_, err = f.svc.Send(ctx, f.adminID, models.OrgTypeAgency, f.orgID, SendInput{Email: "nope", Role: models.RoleAgencyMember})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	_, err = f.svc.Send(ctx, f.adminID, models.OrgTypeAgency, f.orgID, SendInput{Email: "admin@example.com", Role: models.RoleAgencyMember})
	require.True(t, apperr.Is(err, apperr.KindEmailAlreadyRegistered))
	assert.Equal(t, "User with this email already exists", apperr.Message(err, ""))

	_, err = f.svc.Send(ctx, f.adminID, models.OrgTypeAgency, uuid.New(), SendInput{Email: "x@example.com", Role: models.RoleAgencyMember})
	assert.True(t, apperr.Is(err, apperr.KindForbidden), "admin of a different agency")

	require.NoError(t, f.store.CreateProfile(ctx, &models.Profile{UserID: "outsider", Email: "out@example.com", Role: models.RoleUser}))
	_, err = f.svc.Send(ctx, membership.Identity{UserID: "outsider"}, models.OrgTypeAgency, f.orgID,
		SendInput{Email: "x@example.com", Role: models.RoleAgencyMember})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestAcceptEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, models.OrgTypeAgency)
	_, err := f.svc.Send(ctx, f.adminID, models.OrgTypeAgency, f.orgID, SendInput{Email: "joiner@example.com", Role: models.RoleAgencyMember})
	require.NoError(t, err)
	token := tokenFrom(t, f.mail.last(t))

	joiner := membership.Identity{UserID: "joiner", Email: "joiner@example.com"}
	res, err := f.svc.Accept(ctx, joiner, token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAgencyMember, res.Profile.Role)
	require.NotNil(t, res.Profile.AgencyID)
	assert.Equal(t, f.orgID, *res.Profile.AgencyID)
	require.NotNil(t, res.Invite.AcceptedAt)

	stored, err := f.store.GetProfile(ctx, "joiner")
	require.NoError(t, err)
	assert.Equal(t, f.orgID, *stored.AgencyID)

	_, err = f.svc.Accept(ctx, joiner, token)
	assert.True(t, apperr.Is(err, apperr.KindAlreadyAccepted))

	list, err := f.svc.List(ctx, f.adminID, models.OrgTypeAgency, f.orgID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotNil(t, list[0].AcceptedAt)
}

func TestAcceptInvalidToken(t *testing.T) {
	f := newFixture(t, models.OrgTypeAgency)
	id := membership.Identity{UserID: "someone", Email: "someone@example.com"}

	_, err := f.svc.Accept(context.Background(), id, "deadbeef")
	assert.True(t, apperr.Is(err, apperr.KindInvalidToken))
	_, err = f.svc.Accept(context.Background(), id, "  ")
	assert.True(t, apperr.Is(err, apperr.KindInvalidToken))
	_, err = f.svc.Accept(context.Background(), membership.Identity{}, "deadbeef")
	assert.True(t, apperr.Is(err, apperr.KindNotAuthenticated))
}

func TestAcceptExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, models.OrgTypeSupplier)
	_, err := f.svc.Send(ctx, f.adminID, models.OrgTypeSupplier, f.orgID, SendInput{Email: "late@example.com", Role: models.RoleSupplierMember})
	require.NoError(t, err)
	token := tokenFrom(t, f.mail.last(t))
	late := membership.Identity{UserID: "late", Email: "late@example.com"}

	f.clock = t0.Add(7*24*time.Hour + time.Second)
	_, err = f.svc.Accept(ctx, late, token)
	require.True(t, apperr.Is(err, apperr.KindExpired))
	assert.Equal(t, "Invitation has expired", apperr.Message(err, ""))

	f.clock = t0.Add(7 * 24 * time.Hour)
	_, err = f.svc.Accept(ctx, late, token)
	assert.NoError(t, err, "the expiry instant itself is still valid")
}

func TestAcceptRequiresNoOrganization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, models.OrgTypeAgency)
	_, err := f.svc.Send(ctx, f.adminID, models.OrgTypeAgency, f.orgID, SendInput{Email: "x@example.com", Role: models.RoleAgencyMember})
	require.NoError(t, err)
	token := tokenFrom(t, f.mail.last(t))

	// The inviting admin already belongs to an agency.
	_, err = f.svc.Accept(ctx, f.adminID, token)
	assert.True(t, apperr.Is(err, apperr.KindAlreadyMember))

	inv, err := f.store.GetOrgInviteByHash(ctx, HashToken(token))
	require.NoError(t, err)
	assert.Nil(t, inv.AcceptedAt)
}

func TestConcurrentAcceptExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, models.OrgTypeAgency)
	_, err := f.svc.Send(ctx, f.adminID, models.OrgTypeAgency, f.orgID, SendInput{Email: "shared@example.com", Role: models.RoleAgencyMember})
	require.NoError(t, err)
	token := tokenFrom(t, f.mail.last(t))

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := membership.Identity{UserID: uuid.NewString(), Email: uuid.NewString() + "@example.com"}
			_, errs[i] = f.svc.Accept(ctx, id, token)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, apperr.Is(err, apperr.KindAlreadyAccepted), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok)
}

func TestNewTokenDeterministicReader(t *testing.T) {
	raw, hash, err := NewToken(zeroReader{})
	require.NoError(t, err)
	assert.Equal(t, "0000000000000000000000000000000000000000000000000000000000000000", raw)
	assert.Equal(t, HashToken(raw), hash)
	assert.Len(t, hash, 64)
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}
