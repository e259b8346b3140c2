package steam

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidAssertion is returned when Steam does not confirm an OpenID login.
var ErrInvalidAssertion = errors.New("steam: invalid openid assertion")

const openIDNamespace = "http://specs.openid.net/auth/2.0"

var claimedIDPattern = regexp.MustCompile(`^https?://steamcommunity\.com/openid/id/(\d+)$`)

// LoginURL builds the Steam OpenID 2.0 redirect.
func (c *Client) LoginURL(returnTo, realm string) string {
	params := url.Values{}
	params.Set("openid.ns", openIDNamespace)
	params.Set("openid.mode", "checkid_setup")
	params.Set("openid.return_to", returnTo)
	params.Set("openid.realm", realm)
	params.Set("openid.identity", openIDNamespace+"/identifier_select")
	params.Set("openid.claimed_id", openIDNamespace+"/identifier_select")
	return c.openIDURL + "?" + params.Encode()
}

// VerifyAssertion replays the callback parameters to Steam with
// check_authentication and returns the 64-bit Steam id on success.
// callbackURL is the return_to this API issued, without its query.
func (c *Client) VerifyAssertion(ctx context.Context, query url.Values, callbackURL string) (string, error) {
	if query.Get("openid.mode") != "id_res" {
		return "", fmt.Errorf("%w: mode %q", ErrInvalidAssertion, query.Get("openid.mode"))
	}

	if err := checkReturnTo(query, callbackURL); err != nil {
		return "", err
	}

	m := claimedIDPattern.FindStringSubmatch(query.Get("openid.claimed_id"))
	if m == nil {
		return "", fmt.Errorf("%w: unexpected claimed_id", ErrInvalidAssertion)
	}

	form := url.Values{}
	for k, v := range query {
		if strings.HasPrefix(k, "openid.") {
			form[k] = v
		}
	}
	form.Set("openid.mode", "check_authentication")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.openIDURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: openid returned HTTP %d", ErrUpstream, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	if !strings.Contains(string(body), "is_valid:true") {
		return "", ErrInvalidAssertion
	}

	return m[1], nil
}

// checkReturnTo requires openid.return_to to point at callbackURL and every
// query parameter it carries to appear unchanged on the callback itself.
func checkReturnTo(query url.Values, callbackURL string) error {
	want, err := url.Parse(callbackURL)
	if err != nil {
		return fmt.Errorf("%w: bad callback url: %v", ErrInvalidAssertion, err)
	}
	got, err := url.Parse(query.Get("openid.return_to"))
	if err != nil {
		return fmt.Errorf("%w: bad return_to: %v", ErrInvalidAssertion, err)
	}

	if !strings.EqualFold(got.Scheme, want.Scheme) ||
		!strings.EqualFold(got.Host, want.Host) ||
		got.Path != want.Path {
		return fmt.Errorf("%w: return_to %q does not match callback", ErrInvalidAssertion, got.Scheme+"://"+got.Host+got.Path)
	}

	for k, v := range got.Query() {
		if query.Get(k) != v[0] {
			return fmt.Errorf("%w: return_to parameter %q differs from callback", ErrInvalidAssertion, k)
		}
	}
	return nil
}
