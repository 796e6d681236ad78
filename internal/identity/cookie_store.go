package identity

import (
	"errors"
	"net/http"
	"time"
)

// CookieMaxAge keeps the visitor id for the lifetime of the browser profile
// in practice.
const CookieMaxAge = 365 * 24 * time.Hour

// CookieStore keeps values in first-party cookies of one request/response
// pair. Set-Cookie lines go to header, which is either the ResponseWriter's
// header or the one handed to a WebSocket upgrade. A value set during the
// request is visible to later reads of the same request.
type CookieStore struct {
	header http.Header
	r      *http.Request
	opts   CookieOptions
	set    map[string]string
}

// CookieOptions sets the attributes of cookies written by a CookieStore.
type CookieOptions struct {
	Secure bool
	// CrossSite issues SameSite=None cookies so a widget embedded on another
	// site keeps its visitor id. Browsers require Secure with it.
	CrossSite bool
}

func NewCookieStore(header http.Header, r *http.Request, opts CookieOptions) *CookieStore {
	return &CookieStore{header: header, r: r, opts: opts, set: make(map[string]string)}
}

func (c *CookieStore) GetLocalValue(key string) (string, error) {
	if v, ok := c.set[key]; ok {
		return v, nil
	}
	cookie, err := c.r.Cookie(key)
	if errors.Is(err, http.ErrNoCookie) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

func (c *CookieStore) SetLocalValue(key, value string) error {
	c.set[key] = value
	cookie := &http.Cookie{
		Name:     key,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(CookieMaxAge),
		MaxAge:   int(CookieMaxAge / time.Second),
		HttpOnly: true,
		Secure:   c.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if c.opts.CrossSite {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteNoneMode
	}
	if v := cookie.String(); v != "" {
		c.header.Add("Set-Cookie", v)
	}
	return nil
}
