package organizations

import (
	"context"
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
)

func newTestService(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	logger := zaptest.NewLogger(t)
	svc := NewService(membership.NewGuard(store, logger), store, logger)
	svc.now = func() time.Time { return time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC) }
	return svc, store
}

func agencyInput(email string) CreateInput {
	return CreateInput{
		Name:        "Northwind Events",
		ContactName: "Dana Fox",
		Email:       email,
		Location:    models.Location{City: "Toronto", Country: "CA"},
		Categories:  []string{"catering", " catering ", "", "av"},
		About:       "Corporate events",
	}
}

func identity(n string) membership.Identity {
	return membership.Identity{UserID: "user-" + n, Email: n + "@example.com", FirstName: "User", LastName: n}
}

func TestCreateMakesCallerAdmin(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	org, err := svc.Create(ctx, identity("a"), models.OrgTypeAgency, agencyInput(" Hello@Northwind.example "))
	require.NoError(t, err)
	assert.Equal(t, "hello@northwind.example", org.Email)
	assert.Equal(t, []string{"catering", "av"}, org.Categories)
	assert.True(t, org.IsPublished)
	assert.Equal(t, models.OrgStatusActive, org.Status)

	p, err := store.GetProfile(ctx, "user-a")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAgencyAdmin, p.Role)
	require.NotNil(t, p.AgencyID)
	assert.Equal(t, org.ID, *p.AgencyID)
	assert.Nil(t, p.SupplierID)
}

func TestCreateRejectsExistingMember(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Create(ctx, identity("a"), models.OrgTypeAgency, agencyInput("one@example.com"))
	require.NoError(t, err)

	_, err = svc.Create(ctx, identity("a"), models.OrgTypeSupplier, agencyInput("two@example.com"))
	assert.True(t, apperr.Is(err, apperr.KindAlreadyMember))
}

func TestCreateDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Create(ctx, identity("a"), models.OrgTypeSupplier, agencyInput("same@example.com"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, identity("b"), models.OrgTypeSupplier, agencyInput("SAME@example.com"))
	require.True(t, apperr.Is(err, apperr.KindDuplicateEmail))
	assert.Equal(t, "A supplier with email same@example.com already exists", apperr.Message(err, ""))

	// Agencies and suppliers have separate email namespaces.
	_, err = svc.Create(ctx, identity("c"), models.OrgTypeAgency, agencyInput("same@example.com"))
	assert.NoError(t, err)
}

func TestCreateValidates(t *testing.T) {
	svc, _ := newTestService(t)
	in := agencyInput("not-an-email")
	_, err := svc.Create(context.Background(), identity("a"), models.OrgTypeAgency, in)
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	in = agencyInput("ok@example.com")
	in.Name = "  "
	_, err = svc.Create(context.Background(), identity("a"), models.OrgTypeAgency, in)
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
}

func TestConcurrentOnboardingSingleMembership(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	id := identity("racer")

	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			t := models.OrgTypeAgency
			if i%2 == 1 {
				t = models.OrgTypeSupplier
			}
			_, errs[i] = svc.Create(ctx, id, t, agencyInput(uuid.NewString()+"@example.com"))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, apperr.Is(err, apperr.KindAlreadyMember), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok)

	p, err := store.GetProfile(ctx, id.UserID)
	require.NoError(t, err)
	assert.True(t, (p.AgencyID == nil) != (p.SupplierID == nil))
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	org, err := svc.Create(ctx, identity("a"), models.OrgTypeAgency, agencyInput("one@example.com"))
	require.NoError(t, err)

	name := "Northwind Live"
	email := "NEW@example.com"
	cats := []string{"venues"}
	updated, err := svc.Update(ctx, identity("a"), models.OrgTypeAgency, org.ID,
		models.AgencyUpdate{Name: &name, Email: &email, InterestCategories: &cats})
	require.NoError(t, err)
	assert.Equal(t, "Northwind Live", updated.Name)
	assert.Equal(t, "new@example.com", updated.Email)
	assert.Equal(t, []string{"venues"}, updated.Categories)
	assert.Equal(t, "Dana Fox", updated.ContactName)

	text := "AV rigs"
	_, err = svc.Update(ctx, identity("a"), models.OrgTypeAgency, org.ID, models.SupplierUpdate{ServicesText: &text})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	_, err = svc.Create(ctx, identity("b"), models.OrgTypeSupplier, agencyInput("two@example.com"))
	require.NoError(t, err)
	_, err = svc.Update(ctx, identity("b"), models.OrgTypeAgency, org.ID, models.AgencyUpdate{Name: &name})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestSetPublishedAndDirectory(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	org, err := svc.Create(ctx, identity("a"), models.OrgTypeSupplier, agencyInput("one@example.com"))
	require.NoError(t, err)

	list, err := svc.ListPublished(ctx, identity("x"), models.OrgTypeSupplier, DirectoryQuery{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.SetPublished(ctx, identity("x"), models.OrgTypeSupplier, org.ID, false)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "caller without a profile")

	_, err = svc.SetPublished(ctx, identity("a"), models.OrgTypeSupplier, org.ID, false)
	require.NoError(t, err)
	list, err = svc.ListPublished(ctx, identity("x"), models.OrgTypeSupplier, DirectoryQuery{})
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, store.CreateProfile(ctx, &models.Profile{UserID: "root", Email: "root@example.com", Role: models.RoleAdmin}))
	all, err := svc.ListAll(ctx, membership.Identity{UserID: "root"}, models.OrgTypeSupplier)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	_, err = svc.ListAll(ctx, identity("a"), models.OrgTypeSupplier)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	got, err := svc.SetPublished(ctx, membership.Identity{UserID: "root"}, models.OrgTypeSupplier, org.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsPublished)

	_, err = svc.Get(ctx, identity("x"), models.OrgTypeAgency, org.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = svc.Get(ctx, membership.Identity{}, models.OrgTypeSupplier, org.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotAuthenticated))
}

func TestDirectoryFilters(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Create(ctx, identity("a"), models.OrgTypeSupplier, CreateInput{
		Name: "Bright Lights AV", ContactName: "Ana", Email: "av@example.com",
		Location:   models.Location{City: "Toronto", Province: "Ontario", Country: "Canada"},
		Categories: []string{"av", "staging"},
		About:      "Lighting and sound rigs",
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, identity("b"), models.OrgTypeSupplier, CreateInput{
		Name: "Harbour Catering", ContactName: "Ben", Email: "food@example.com",
		Location:   models.Location{City: "Halifax", Province: "Nova Scotia", Country: "Canada"},
		Categories: []string{"catering"},
		About:      "Seafood buffets",
	})
	require.NoError(t, err)

	names := func(q DirectoryQuery) []string {
		t.Helper()
		list, err := svc.ListPublished(ctx, identity("x"), models.OrgTypeSupplier, q)
		require.NoError(t, err)
		out := []string{}
		for _, o := range list {
			out = append(out, o.Name)
		}
		return out
	}

	assert.Equal(t, []string{"Bright Lights AV", "Harbour Catering"}, names(DirectoryQuery{}))
	assert.Equal(t, []string{"Harbour Catering"}, names(DirectoryQuery{Category: "catering"}))
	assert.Empty(t, names(DirectoryQuery{Category: "florals"}))
	assert.Equal(t, []string{"Bright Lights AV"}, names(DirectoryQuery{Location: "ontario"}))
	assert.Equal(t, []string{"Harbour Catering"}, names(DirectoryQuery{Location: "HALI"}))
	assert.Empty(t, names(DirectoryQuery{Location: "Vancouver"}))
	assert.Equal(t, []string{"Bright Lights AV"}, names(DirectoryQuery{Query: "sound"}))
	assert.Equal(t, []string{"Harbour Catering"}, names(DirectoryQuery{Query: "harbour"}))
	assert.Empty(t, names(DirectoryQuery{Query: "tents"}))
	assert.Empty(t, names(DirectoryQuery{Category: "av", Location: "Halifax"}))
}

func TestListMembers(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	org, err := svc.Create(ctx, identity("a"), models.OrgTypeAgency, agencyInput("one@example.com"))
	require.NoError(t, err)

	orgID := org.ID
	require.NoError(t, store.CreateProfile(ctx, &models.Profile{
		UserID: "user-m", Email: "m@example.com", Role: models.RoleAgencyMember, AgencyID: &orgID,
		CreatedAt: time.Now().Add(time.Hour),
	}))
	_, err = svc.Create(ctx, identity("b"), models.OrgTypeAgency, agencyInput("two@example.com"))
	require.NoError(t, err)

	members, err := svc.ListMembers(ctx, identity("m"), models.OrgTypeAgency, org.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "user-a", members[0].UserID)
	assert.Equal(t, models.RoleAgencyAdmin, members[0].Role)
	assert.Equal(t, "user-m", members[1].UserID)

	_, err = svc.ListMembers(ctx, identity("b"), models.OrgTypeAgency, org.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = svc.ListMembers(ctx, identity("a"), models.OrgTypeSupplier, org.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}
