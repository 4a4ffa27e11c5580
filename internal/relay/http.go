package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Admin drives the development relay's HTTP endpoints.
type Admin struct {
	Base string
	HTTP *http.Client
}

// NewAdmin returns an admin client for the relay at base.
func NewAdmin(base string, client *http.Client) *Admin {
	if client == nil {
		client = http.DefaultClient
	}
	return &Admin{Base: strings.TrimSuffix(base, "/"), HTTP: client}
}

// Pair approves a pairing ref, or the ref inside a full challenge payload,
// and returns the new account id.
func (c *Admin) Pair(ctx context.Context, refOrPayload string) (string, error) {
	var out struct {
		Account string `json:"account"`
	}
	ref := ChallengeRef(refOrPayload)
	if err := c.post(ctx, "/pair/"+url.PathEscape(ref), &out); err != nil {
		return "", err
	}
	return out.Account, nil
}

// Logout unlinks account.
func (c *Admin) Logout(ctx context.Context, account string) error {
	return c.post(ctx, "/logout/"+url.PathEscape(account), nil)
}

// Replace kicks the live session of account with a conflict.
func (c *Admin) Replace(ctx context.Context, account string) error {
	return c.post(ctx, "/replace/"+url.PathEscape(account), nil)
}

// Accounts lists paired accounts.
func (c *Admin) Accounts(ctx context.Context) ([]AccountInfo, error) {
	var out []AccountInfo
	if err := c.getJSON(ctx, "/accounts", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Admin) post(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, bytes.NewReader(nil))
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("relay post %s: %s", path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Admin) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("relay get %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
