package domain_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devlink/internal/domain"
)

func TestDisconnectReasonTerminal(t *testing.T) {
	cases := []struct {
		kind     domain.DisconnectKind
		terminal bool
	}{
		{domain.DisconnectLoggedOut, true},
		{domain.DisconnectProtocolConflict, true},
		{domain.DisconnectTransientNetwork, false},
		{domain.DisconnectUnknown, false},
	}
	for _, tc := range cases {
		r := domain.DisconnectReason{Kind: tc.kind}
		assert.Equal(t, tc.terminal, r.Terminal(), tc.kind.String())
		assert.Equal(t, !tc.terminal, r.Retryable(), tc.kind.String())
	}
}

func TestCredentialDeltaChanges(t *testing.T) {
	creds := domain.Credentials{
		Version:   1,
		Fragments: map[domain.FragmentName][]byte{"a": []byte("1")},
	}
	assert.False(t, domain.CredentialDelta{Set: map[domain.FragmentName][]byte{"a": []byte("1")}}.Changes(creds))
	assert.True(t, domain.CredentialDelta{Set: map[domain.FragmentName][]byte{"a": []byte("2")}}.Changes(creds))
	assert.True(t, domain.CredentialDelta{Delete: []domain.FragmentName{"a"}}.Changes(creds))
	assert.False(t, domain.CredentialDelta{Delete: []domain.FragmentName{"b"}}.Changes(creds))
}

func TestHint(t *testing.T) {
	assert.Empty(t, domain.Hint(nil))
	assert.Empty(t, domain.Hint(errors.New("boom")))

	wrapped := fmt.Errorf("auth: %w", domain.ErrPairingTimeout)
	assert.Contains(t, domain.Hint(wrapped), "new pairing challenge")

	var err error = &domain.TerminalSessionError{Reason: domain.DisconnectReason{Kind: domain.DisconnectLoggedOut, Code: 401}}
	assert.Contains(t, domain.Hint(err), "unlinked")

	err = &domain.PersistenceError{Op: "apply", Err: errors.New("disk full")}
	var pe *domain.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, domain.Hint(err), "permissions")

	err = &domain.PersistenceError{Op: "apply update", Err: fmt.Errorf("%w: fragment registered", domain.ErrStoreUnreadable)}
	assert.Contains(t, domain.Hint(err), "devlink reset --yes")

	assert.Contains(t, domain.Hint(fmt.Errorf("auth: %w", context.Canceled)), "devlink auth")
}

func TestPairingChallengeValid(t *testing.T) {
	ch := domain.PairingChallenge{Payload: "ref", TTL: 0}
	assert.True(t, ch.Valid(ch.IssuedAt.Add(1<<40)))
	assert.False(t, domain.PairingChallenge{}.Valid(ch.IssuedAt))
}
