package identity

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct{}

func (brokenStore) GetLocalValue(string) (string, error) { return "", errors.New("storage disabled") }
func (brokenStore) SetLocalValue(string, string) error   { return errors.New("storage disabled") }

func TestProviderPersistsFirstID(t *testing.T) {
	store := NewMemoryStore()
	provider := NewProvider(store, nil)

	first := provider.GetOrCreateVisitorID()
	assert.True(t, ValidVisitorID(first))
	assert.Equal(t, first, provider.GetOrCreateVisitorID())

	stored, err := store.GetLocalValue(VisitorIDKey)
	require.NoError(t, err)
	assert.Equal(t, first, stored)

	// A new provider over the same storage is the same browser coming back.
	assert.Equal(t, first, NewProvider(store, nil).GetOrCreateVisitorID())
}

func TestProviderReplacesGarbage(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.SetLocalValue(VisitorIDKey, "'; drop table"))

	id := NewProvider(store, nil).GetOrCreateVisitorID()
	assert.NotEqual(t, "'; drop table", id)
	assert.True(t, ValidVisitorID(id))
}

func TestProviderDegradesToFreshIDs(t *testing.T) {
	provider := NewProvider(brokenStore{}, nil)

	first := provider.GetOrCreateVisitorID()
	second := provider.GetOrCreateVisitorID()
	assert.True(t, ValidVisitorID(first))
	assert.NotEqual(t, first, second)
}

func TestCookieStoreRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	id := NewProvider(NewCookieStore(rec.Header(), req, CookieOptions{Secure: true}), nil).GetOrCreateVisitorID()
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, VisitorIDKey, cookies[0].Name)
	assert.Equal(t, id, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(cookies[0])
	nextRec := httptest.NewRecorder()
	assert.Equal(t, id, NewProvider(NewCookieStore(nextRec.Header(), next, CookieOptions{Secure: true}), nil).GetOrCreateVisitorID())
	assert.Empty(t, nextRec.Result().Cookies(), "existing id is not rewritten")
}

func TestCookieStoreSameSite(t *testing.T) {
	issue := func(opts CookieOptions) *http.Cookie {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		NewProvider(NewCookieStore(rec.Header(), req, opts), nil).GetOrCreateVisitorID()
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		return cookies[0]
	}

	firstParty := issue(CookieOptions{})
	assert.Equal(t, http.SameSiteLaxMode, firstParty.SameSite)
	assert.False(t, firstParty.Secure)

	// Embedded on another site the cookie must survive cross-site fetches.
	embedded := issue(CookieOptions{CrossSite: true})
	assert.Equal(t, http.SameSiteNoneMode, embedded.SameSite)
	assert.True(t, embedded.Secure)
}

func TestValidVisitorID(t *testing.T) {
	assert.True(t, ValidVisitorID(uuid.NewString()))
	assert.False(t, ValidVisitorID(""))
	assert.False(t, ValidVisitorID("visitor"))
}
