// ABOUTME: Cookie-jar credential medium mirroring browser token cookies
// ABOUTME: Tokens live as SameSite=Strict cookies scoped to the auth service origin

package credentials

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"
)

// CookieMedium stores tokens as cookies in an http.CookieJar. Sharing the
// jar with a transport sends the cookies along with credentialed requests.
// Expiry is enforced by the jar.
type CookieMedium struct {
	jar    http.CookieJar
	origin *url.URL
}

// NewCookieMedium scopes tokens to origin. A nil jar creates a fresh one.
func NewCookieMedium(jar http.CookieJar, origin string) (*CookieMedium, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid cookie origin %q: %w", origin, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid cookie origin %q: missing host", origin)
	}
	if jar == nil {
		jar, err = cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
	}
	return &CookieMedium{
		jar:    jar,
		origin: &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"},
	}, nil
}

// Jar returns the cookie jar holding the tokens.
func (c *CookieMedium) Jar() http.CookieJar {
	return c.jar
}

func (c *CookieMedium) Get(_ context.Context, name string) (string, bool, error) {
	for _, ck := range c.jar.Cookies(c.origin) {
		if ck.Name != name {
			continue
		}
		value, err := url.QueryUnescape(ck.Value)
		if err != nil {
			return "", false, fmt.Errorf("failed to decode cookie %s: %w", name, err)
		}
		return value, true, nil
	}
	return "", false, nil
}

func (c *CookieMedium) Set(_ context.Context, name, value string, ttl time.Duration) error {
	seconds := int(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	c.jar.SetCookies(c.origin, []*http.Cookie{c.cookie(name, url.QueryEscape(value), seconds)})
	return nil
}

func (c *CookieMedium) Delete(_ context.Context, name string) error {
	c.jar.SetCookies(c.origin, []*http.Cookie{c.cookie(name, "", -1)})
	return nil
}

func (c *CookieMedium) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   c.origin.Scheme == "https",
		SameSite: http.SameSiteStrictMode,
	}
}
