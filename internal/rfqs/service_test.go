package rfqs

import (
	"context"
	"errors"
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
	"github.com/eventmarket/backend/pkg/database"
	"github.com/eventmarket/backend/pkg/storage"
)

var t0 = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

type recordingDispatcher struct {
	mu   sync.Mutex
	fail bool
	to   []string
}

func (d *recordingDispatcher) Send(_ context.Context, kind notify.Kind, to string, params map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return errors.New("redis: connection refused")
	}
	if kind == notify.KindRfqInvite && params["rfq_url"] == "" {
		return errors.New("missing rfq_url")
	}
	d.to = append(d.to, to)
	return nil
}

func (d *recordingDispatcher) recipients() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.to...)
}

type fakePresigner struct{}

func (fakePresigner) PresignUpload(_ context.Context, key, contentType string, size int64) (*storage.Upload, error) {
	return &storage.Upload{Key: key, UploadURL: "https://uploads.example.com/" + key, ContentType: contentType}, nil
}

// failingStore fails invite creation for one supplier.
type failingStore struct {
	*memstore.Store
	failFor uuid.UUID
}

func (s *failingStore) CreateRfqInvite(ctx context.Context, inv *models.RfqInvite) error {
	if inv.SupplierID == s.failFor {
		return errors.New("connection reset")
	}
	return s.Store.CreateRfqInvite(ctx, inv)
}

// racingStore deletes the draft just before the send flips it, as a
// concurrent Delete would.
type racingStore struct {
	*memstore.Store
}

func (s *racingStore) TransitionRfq(ctx context.Context, id uuid.UUID, from, to models.RfqStatus, now time.Time) error {
	if err := s.Store.DeleteDraftRfq(ctx, id); err != nil {
		return err
	}
	return s.Store.TransitionRfq(ctx, id, from, to, now)
}

type fixture struct {
	t         *testing.T
	store     *memstore.Store
	mail      *recordingDispatcher
	agencyID  uuid.UUID
	otherID   uuid.UUID
	suppliers []uuid.UUID
	agent     membership.Identity
	colleague membership.Identity
	rival     membership.Identity
	vendor    membership.Identity
	vendor2   membership.Identity
}

func (f *fixture) org(t models.OrgType, userID, name string) uuid.UUID {
	f.t.Helper()
	ctx := context.Background()
	require.NoError(f.t, f.store.CreateProfile(ctx, &models.Profile{UserID: userID, Email: userID + "@example.com", Role: models.RoleUser}))
	id := uuid.New()
	require.NoError(f.t, f.store.CreateWithAdmin(ctx, &models.Organization{
		ID: id, Type: t, Name: name, Email: userID + "-org@example.com", CreatedAt: t0,
	}, userID))
	return id
}

func (f *fixture) member(userID string, m models.Membership) membership.Identity {
	f.t.Helper()
	p := &models.Profile{UserID: userID, Email: userID + "@example.com"}
	m.Apply(p)
	require.NoError(f.t, f.store.CreateProfile(context.Background(), p))
	return membership.Identity{UserID: userID, Email: p.Email}
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{t: t, store: memstore.New(), mail: &recordingDispatcher{}}
	f.agencyID = f.org(models.OrgTypeAgency, "agent", "Bright Events")
	f.agent = membership.Identity{UserID: "agent", Email: "agent@example.com"}
	f.colleague = f.member("colleague", models.Membership{OrgType: models.OrgTypeAgency, OrgID: f.agencyID, Role: models.RoleAgencyMember})
	f.otherID = f.org(models.OrgTypeAgency, "rival", "Rival Events")
	f.rival = membership.Identity{UserID: "rival"}
	for i, name := range []string{"sup1", "sup2", "sup3"} {
		f.suppliers = append(f.suppliers, f.org(models.OrgTypeSupplier, name, "Supplier "+string(rune('A'+i))))
	}
	f.vendor = membership.Identity{UserID: "sup1"}
	f.vendor2 = membership.Identity{UserID: "sup2"}
	return f
}

func (f *fixture) service(store Store, scope SupplierScope, files Presigner) *Service {
	logger := zaptest.NewLogger(f.t)
	svc := NewService(membership.NewGuard(f.store, logger), store, f.store, f.mail, files,
		Config{AppURL: "https://app.example.com", SupplierScope: scope}, logger)
	svc.now = func() time.Time { return t0 }
	return svc
}

func (f *fixture) draft(svc *Service) *models.Rfq {
	f.t.Helper()
	r, err := svc.Create(context.Background(), f.agent, CreateInput{
		Title:            "Annual gala",
		ClientName:       "Contoso",
		EventDates:       &models.DateRange{Start: t0.AddDate(0, 2, 0), End: t0.AddDate(0, 2, 1)},
		Venue:            "Harbour Hall",
		Scope:            "Catering for 300 guests",
		Attachments:      []string{"https://files.example.com/brief.pdf", " "},
		ResponseDeadline: t0.AddDate(0, 0, 14),
	})
	require.NoError(f.t, err)
	return r
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	svc := f.service(f.store, ScopeAny, nil)
	r := f.draft(svc)
	assert.Equal(t, f.agencyID, r.AgencyID)
	assert.Equal(t, "agent", r.CreatedByUserID)
	assert.Equal(t, models.RfqStatusDraft, r.Status)
	assert.Equal(t, []string{"https://files.example.com/brief.pdf"}, r.Attachments)

	_, err := svc.Create(context.Background(), f.vendor, CreateInput{Title: "x", ClientName: "y", Scope: "z", ResponseDeadline: t0})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = svc.Create(context.Background(), f.agent, CreateInput{Title: "x", ClientName: "y", Scope: "z"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	_, err = svc.Create(context.Background(), f.agent, CreateInput{
		Title: "x", ClientName: "y", Scope: "z", ResponseDeadline: t0,
		EventDates: &models.DateRange{Start: t0, End: t0.Add(-time.Hour)},
	})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	list, err := svc.List(context.Background(), f.colleague)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSendEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service(f.store, ScopeAny, nil)
	r := f.draft(svc)

	unknown := uuid.New()
	report, err := svc.Send(ctx, f.colleague, r.ID, []uuid.UUID{f.suppliers[0], f.suppliers[1], unknown})
	require.NoError(t, err)
	assert.Equal(t, 3, report.InvitesCreated)
	assert.Equal(t, 2, report.NotificationsQueued)
	assert.Equal(t, 0, report.NotificationsFailed)
	assert.Equal(t, 1, report.SuppliersMissing)
	assert.Equal(t, models.RfqStatusSent, report.Rfq.Status)
	assert.ElementsMatch(t, []string{"sup1-org@example.com", "sup2-org@example.com"}, f.mail.recipients())

	stored, err := f.store.GetRfq(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RfqStatusSent, stored.Status)

	invites, err := svc.InvitesForRfq(ctx, f.agent, r.ID)
	require.NoError(t, err)
	require.Len(t, invites, 3)
	for _, inv := range invites {
		assert.Equal(t, models.InviteStatusInvited, inv.Status)
	}

	_, err = svc.Send(ctx, f.agent, r.ID, []uuid.UUID{f.suppliers[2]})
	require.True(t, apperr.Is(err, apperr.KindInvalidState))
	assert.Equal(t, "Only draft RFQs can be sent", apperr.Message(err, ""))
	invites, err = svc.InvitesForRfq(ctx, f.agent, r.ID)
	require.NoError(t, err)
	assert.Len(t, invites, 3)

	err = svc.Delete(ctx, f.agent, r.ID)
	require.True(t, apperr.Is(err, apperr.KindInvalidState))
	assert.Equal(t, "Only draft RFQs can be deleted", apperr.Message(err, ""))
}

func TestSendValidatesSupplierList(t *testing.T) {
	f := newFixture(t)
	svc := f.service(f.store, ScopeAny, nil)
	r := f.draft(svc)

	_, err := svc.Send(context.Background(), f.agent, r.ID, nil)
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
	_, err = svc.Send(context.Background(), f.agent, r.ID, []uuid.UUID{f.suppliers[0], f.suppliers[0]})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
	_, err = svc.Send(context.Background(), f.agent, uuid.New(), []uuid.UUID{f.suppliers[0]})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSendNotificationFailureIsBestEffort(t *testing.T) {
	f := newFixture(t)
	f.mail.fail = true
	svc := f.service(f.store, ScopeAny, nil)
	r := f.draft(svc)

	report, err := svc.Send(context.Background(), f.agent, r.ID, f.suppliers)
	require.NoError(t, err)
	assert.Equal(t, 3, report.InvitesCreated)
	assert.Equal(t, 0, report.NotificationsQueued)
	assert.Equal(t, 3, report.NotificationsFailed)
	assert.Equal(t, models.RfqStatusSent, report.Rfq.Status)
}

func TestSendCompensatesFailedInvites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	store := &failingStore{Store: f.store, failFor: f.suppliers[1]}
	svc := f.service(store, ScopeAny, nil)
	r := f.draft(svc)

	_, err := svc.Send(ctx, f.agent, r.ID, f.suppliers)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInternal))

	stored, err := f.store.GetRfq(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RfqStatusDraft, stored.Status)
	invites, err := f.store.ListRfqInvites(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, invites)
	assert.Empty(t, f.mail.recipients())
}

func TestConcurrentSendsSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service(f.store, ScopeAny, nil)
	r := f.draft(svc)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			list := []uuid.UUID{f.suppliers[i%3], f.suppliers[(i+1)%3]}
			_, errs[i] = svc.Send(ctx, f.agent, r.ID, list)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, apperr.Is(err, apperr.KindInvalidState), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok)

	invites, err := f.store.ListRfqInvites(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, invites, 2)
}

func TestCrossAgencyForbidden(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service(f.store, ScopeAny, fakePresigner{})
	r := f.draft(svc)
	title := "Stolen"

	_, err := svc.Update(ctx, f.rival, r.ID, models.RfqUpdate{Title: &title})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = svc.Send(ctx, f.rival, r.ID, f.suppliers)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.True(t, apperr.Is(svc.Delete(ctx, f.rival, r.ID), apperr.KindForbidden))
	_, err = svc.UpdateAttachments(ctx, f.rival, r.ID, nil)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = svc.AttachmentUploadURL(ctx, f.rival, r.ID, "plan.pdf", 1024)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = svc.InvitesForRfq(ctx, f.rival, r.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	// Suppliers can read but never manage RFQs.
	_, err = svc.Send(ctx, f.vendor, r.ID, f.suppliers)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	stored, err := f.store.GetRfq(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Annual gala", stored.Title)
	assert.Equal(t, models.RfqStatusDraft, stored.Status)
}

func TestUpdateStatusMachine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service(f.store, ScopeAny, nil)
	r := f.draft(svc)

	sent := models.RfqStatusSent
	_, err := svc.Update(ctx, f.agent, r.ID, models.RfqUpdate{Status: &sent})
	assert.True(t, apperr.Is(err, apperr.KindInvalidState), "drafts are sent through Send only")

	closed := models.RfqStatusClosed
	_, err = svc.Update(ctx, f.agent, r.ID, models.RfqUpdate{Status: &closed})
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	venue := "Riverside Pavilion"
	updated, err := svc.Update(ctx, f.agent, r.ID, models.RfqUpdate{Venue: &venue})
	require.NoError(t, err)
	assert.Equal(t, "Riverside Pavilion", updated.Venue)
	assert.Equal(t, models.RfqStatusDraft, updated.Status)

	_, err = svc.Send(ctx, f.agent, r.ID, f.suppliers[:1])
	require.NoError(t, err)

	awarded := models.RfqStatusAwarded
	updated, err = svc.Update(ctx, f.colleague, r.ID, models.RfqUpdate{Status: &awarded})
	require.NoError(t, err)
	assert.Equal(t, models.RfqStatusAwarded, updated.Status)

	_, err = svc.Update(ctx, f.agent, r.ID, models.RfqUpdate{Status: &closed})
	assert.True(t, apperr.Is(err, apperr.KindInvalidState), "awarded is terminal")

	bogus := models.RfqStatus("archived")
	_, err = svc.Update(ctx, f.agent, r.ID, models.RfqUpdate{Status: &bogus})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	stored, err := f.store.GetRfq(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RfqStatusAwarded, stored.Status)
	assert.Equal(t, "Riverside Pavilion", stored.Venue)
}

func TestDeleteDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service(f.store, ScopeAny, nil)
	r := f.draft(svc)

	require.NoError(t, svc.Delete(ctx, f.colleague, r.ID))
	_, err := svc.Get(ctx, f.agent, r.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.True(t, apperr.Is(svc.Delete(ctx, f.agent, r.ID), apperr.KindNotFound))
}

func TestSupplierScope(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	anySvc := f.service(f.store, ScopeAny, nil)
	ownSvc := f.service(f.store, ScopeOwn, nil)
	r := f.draft(anySvc)
	_, err := anySvc.Send(ctx, f.agent, r.ID, f.suppliers[:1])
	require.NoError(t, err)

	list, err := anySvc.InvitesForRfq(ctx, f.vendor2, r.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1, "any supplier member may read with the default scope")
	_, err = anySvc.Get(ctx, f.vendor2, r.ID)
	assert.NoError(t, err)

	list, err = ownSvc.InvitesForRfq(ctx, f.vendor, r.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, f.suppliers[0], list[0].SupplierID)

	_, err = ownSvc.InvitesForRfq(ctx, f.vendor2, r.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = ownSvc.Get(ctx, f.vendor2, r.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestSupplierInvitesAndStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service(f.store, ScopeAny, nil)
	r := f.draft(svc)
	_, err := svc.Send(ctx, f.agent, r.ID, f.suppliers[:2])
	require.NoError(t, err)

	mine, err := svc.InvitesForSupplier(ctx, f.vendor)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, r.ID, mine[0].Rfq.ID)
	inviteID := mine[0].Invite.ID

	_, err = svc.InvitesForSupplier(ctx, f.agent)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	opened, err := svc.UpdateInviteStatus(ctx, f.vendor, inviteID, models.InviteStatusOpened)
	require.NoError(t, err)
	assert.Equal(t, models.InviteStatusOpened, opened.Status)

	_, err = svc.UpdateInviteStatus(ctx, f.vendor2, inviteID, models.InviteStatusClosed)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = svc.UpdateInviteStatus(ctx, f.vendor, inviteID, models.InviteStatusInvited)
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	closed, err := svc.UpdateInviteStatus(ctx, f.agent, inviteID, models.InviteStatusClosed)
	require.NoError(t, err)
	assert.Equal(t, models.InviteStatusClosed, closed.Status)
}

func TestAttachments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	disabled := f.service(f.store, ScopeAny, nil)
	r := f.draft(disabled)

	_, err := disabled.AttachmentUploadURL(ctx, f.agent, r.ID, "plan.pdf", 1024)
	assert.ErrorIs(t, err, storage.ErrDisabled)

	svc := f.service(f.store, ScopeAny, fakePresigner{})
	up, err := svc.AttachmentUploadURL(ctx, f.agent, r.ID, "Floor Plan.PNG", 2048)
	require.NoError(t, err)
	assert.Equal(t, "image/png", up.ContentType)
	assert.Contains(t, up.Key, "rfq-attachments/"+r.ID.String()+"/")

	_, err = svc.AttachmentUploadURL(ctx, f.agent, r.ID, "run.exe", 2048)
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
	_, err = svc.AttachmentUploadURL(ctx, f.agent, r.ID, "big.pdf", storage.MaxAttachmentSize+1)
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	updated, err := svc.UpdateAttachments(ctx, f.colleague, r.ID, []string{"https://cdn.example.com/plan.png"})
	require.NoError(t, err)
	assert.Len(t, updated.Attachments, 1)

	_, err = svc.UpdateAttachments(ctx, f.agent, r.ID, []string{"ftp://files.example.com/x"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
}

func TestSendAfterConcurrentDeleteIsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service(&racingStore{Store: f.store}, ScopeAny, nil)
	r := f.draft(svc)

	_, err := svc.Send(ctx, f.agent, r.ID, f.suppliers)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Empty(t, f.mail.recipients())

	_, err = f.store.GetRfq(ctx, r.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestUpdateRejectsStatusWithFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.service(f.store, ScopeAny, nil)
	r := f.draft(svc)
	_, err := svc.Send(ctx, f.agent, r.ID, f.suppliers[:1])
	require.NoError(t, err)

	closed := models.RfqStatusClosed
	venue := "Pier 21"
	_, err = svc.Update(ctx, f.agent, r.ID, models.RfqUpdate{Status: &closed, Venue: &venue})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	stored, err := f.store.GetRfq(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RfqStatusSent, stored.Status)
	assert.NotEqual(t, venue, stored.Venue)

	sent := models.RfqStatusSent
	updated, err := svc.Update(ctx, f.agent, r.ID, models.RfqUpdate{Status: &sent, Venue: &venue})
	require.NoError(t, err, "unchanged status is not a status change")
	assert.Equal(t, venue, updated.Venue)
}
