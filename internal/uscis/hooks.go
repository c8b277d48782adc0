package uscis

import "time"

// ProbeHooks lets the self-test harness force response classes the live API
// would not produce on demand. Nothing outside the harness should use it.
type ProbeHooks interface {
	// SnapshotToken returns the cached token, if any.
	SnapshotToken() (AccessToken, bool)
	// RestoreToken puts back a token taken with SnapshotToken. ok=false
	// restores the "no token" state.
	RestoreToken(tok AccessToken, ok bool)
	// InvalidateToken replaces the cached token with one the server will
	// reject, so the next request is answered with 401.
	InvalidateToken()
	// InjectFault makes the next case-status request fail with status
	// without reaching the network. The fault is consumed by that request
	// even when it fails earlier, e.g. on the token exchange.
	InjectFault(status int)
	// ClearFault disarms a fault that no request consumed.
	ClearFault()
}

var _ ProbeHooks = (*Client)(nil)

const invalidTokenValue = "casetrack-invalidated-token"

func (c *Client) SnapshotToken() (AccessToken, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil {
		return AccessToken{}, false
	}
	return *c.token, true
}

func (c *Client) RestoreToken(tok AccessToken, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok {
		c.token = nil
		return
	}
	c.token = &tok
}

func (c *Client) InvalidateToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = &AccessToken{Token: invalidTokenValue, ExpiresAt: c.now().Add(time.Hour)}
}

func (c *Client) InjectFault(status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fault = status
}

func (c *Client) ClearFault() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fault = 0
}
