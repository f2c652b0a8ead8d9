package authgate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/viewdeck/viewdeck/internal/identity"
	"github.com/viewdeck/viewdeck/internal/invites"
	"github.com/viewdeck/viewdeck/internal/otp"
)

// The fakes below mirror the conditional-update semantics of the real
// pgx-backed services so the state machine can be exercised without a
// database. A shared event log records mutation order.

type fakeInvites struct {
	byToken map[string]*invites.Invite
	events  *[]string
}

func (f *fakeInvites) GetByToken(_ context.Context, token string) (*invites.Invite, error) {
	invite, ok := f.byToken[token]
	if !ok {
		return nil, invites.ErrNotRedeemable
	}
	copied := *invite
	return &copied, nil
}

func (f *fakeInvites) Accept(_ context.Context, inviteID uuid.UUID) error {
	for _, invite := range f.byToken {
		if invite.ID != inviteID {
			continue
		}
		if invite.Status != invites.StatusPending || !invite.ExpiresAt.After(time.Now()) {
			return invites.ErrNotRedeemable
		}
		invite.Status = invites.StatusAccepted
		now := time.Now()
		invite.AcceptedAt = &now
		*f.events = append(*f.events, "accept:"+invite.Email)
		return nil
	}
	return invites.ErrNotRedeemable
}

type issuedCode struct {
	code     string
	consumed bool
	expired  bool
}

type fakeCodes struct {
	byEmail map[string][]*issuedCode
	next    int
	events  *[]string
}

func (f *fakeCodes) RequestCode(_ context.Context, email string) (*otp.Verification, error) {
	f.next++
	code := fmt.Sprintf("%06d", f.next*111111)
	f.byEmail[email] = append(f.byEmail[email], &issuedCode{code: code})
	*f.events = append(*f.events, "code:"+email)
	return &otp.Verification{ID: uuid.New(), Email: email, Code: code}, nil
}

func (f *fakeCodes) VerifyCode(_ context.Context, email, code string) error {
	outstanding := f.byEmail[email]
	for i := len(outstanding) - 1; i >= 0; i-- {
		c := outstanding[i]
		if c.code == code && !c.consumed && !c.expired {
			c.consumed = true
			return nil
		}
	}
	return otp.ErrInvalidOrExpired
}

type fakeUsers struct {
	byEmail   map[string]*identity.User
	passwords map[string]string
	events    *[]string
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*identity.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUsers) SignIn(_ context.Context, email, password string) (*identity.User, identity.Role, error) {
	user, ok := f.byEmail[email]
	if !ok || f.passwords[email] != password {
		return nil, "", identity.ErrInvalidCredentials
	}
	return user, f.DeriveRoleFor(user), nil
}

func (f *fakeUsers) UpsertFromInvite(_ context.Context, email, name string, role identity.Role) (*identity.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		user = &identity.User{ID: uuid.New(), Email: email, Metadata: map[string]interface{}{}}
		f.byEmail[email] = user
	}
	if name != "" {
		user.Name = name
	}
	user.Metadata["role"] = string(role)
	*f.events = append(*f.events, "role:"+email)
	return user, nil
}

func (f *fakeUsers) DeriveRoleFor(user *identity.User) identity.Role {
	return identity.DeriveRole(user.Metadata, user.Email, identity.RoleConfig{})
}

type fixture struct {
	gate    *Gate
	invites *fakeInvites
	codes   *fakeCodes
	users   *fakeUsers
	events  []string
}

func newFixture() *fixture {
	f := &fixture{}
	f.invites = &fakeInvites{byToken: map[string]*invites.Invite{}, events: &f.events}
	f.codes = &fakeCodes{byEmail: map[string][]*issuedCode{}, events: &f.events}
	f.users = &fakeUsers{byEmail: map[string]*identity.User{}, passwords: map[string]string{}, events: &f.events}
	f.gate = NewGate(f.invites, f.codes, f.users)
	return f
}

func (f *fixture) addInvite(token, email string, role identity.Role) *invites.Invite {
	invite := &invites.Invite{
		ID:         uuid.New(),
		Email:      email,
		InviteType: role,
		Status:     invites.StatusPending,
		CreatedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(7 * 24 * time.Hour),
	}
	f.invites.byToken[token] = invite
	return invite
}

func TestCheck_UnknownTokenIsInvalid(t *testing.T) {
	f := newFixture()

	outcome, err := f.gate.Check(context.Background(), "vdi_bogus", nil)
	require.NoError(t, err)
	require.Equal(t, StateInvalid, outcome.State)
	require.Nil(t, outcome.Invite)
}

func TestCheck_ExpiredAndConsumedCollapseToInvalid(t *testing.T) {
	f := newFixture()

	expired := f.addInvite("tok-expired", "late@example.com", identity.RoleViewer)
	expired.ExpiresAt = time.Now().Add(-time.Minute)

	consumed := f.addInvite("tok-consumed", "done@example.com", identity.RoleViewer)
	consumed.Status = invites.StatusAccepted

	revoked := f.addInvite("tok-revoked", "gone@example.com", identity.RoleViewer)
	revoked.Status = invites.StatusRevoked

	for _, token := range []string{"tok-expired", "tok-consumed", "tok-revoked"} {
		outcome, err := f.gate.Check(context.Background(), token, nil)
		require.NoError(t, err)
		require.Equal(t, StateInvalid, outcome.State, "token %s", token)
	}
}

func TestCheck_BranchesOnExistingAccount(t *testing.T) {
	f := newFixture()
	f.addInvite("tok-new", "new@example.com", identity.RoleViewer)
	f.addInvite("tok-known", "known@example.com", identity.RoleViewer)
	f.users.byEmail["known@example.com"] = &identity.User{ID: uuid.New(), Email: "known@example.com"}

	outcome, err := f.gate.Check(context.Background(), "tok-new", nil)
	require.NoError(t, err)
	require.Equal(t, StateSignup, outcome.State)

	outcome, err = f.gate.Check(context.Background(), "tok-known", nil)
	require.NoError(t, err)
	require.Equal(t, StateLogin, outcome.State)
}

func TestCheck_AuthenticatedCallerGoesToBinding(t *testing.T) {
	f := newFixture()
	f.addInvite("tok", "invited@example.com", identity.RoleViewer)

	// Session for the invited address: skip straight to the bind step.
	ident := &identity.Identity{UserID: uuid.New(), Email: "Invited@Example.com"}
	outcome, err := f.gate.Check(context.Background(), "tok", ident)
	require.NoError(t, err)
	require.Equal(t, StateBinding, outcome.State)
	require.NotNil(t, outcome.Invite)

	// A session for some other address gets the unauthenticated branches;
	// only the invited email can redeem.
	other := &identity.Identity{UserID: uuid.New(), Email: "other@example.com"}
	outcome, err = f.gate.Check(context.Background(), "tok", other)
	require.NoError(t, err)
	require.Equal(t, StateSignup, outcome.State)

	// A consumed token stays invalid regardless of the session.
	f.invites.byToken["tok"].Status = invites.StatusAccepted
	outcome, err = f.gate.Check(context.Background(), "tok", ident)
	require.NoError(t, err)
	require.Equal(t, StateInvalid, outcome.State)
}

func TestBind_EmailMismatchIsNonFatal(t *testing.T) {
	f := newFixture()
	invite := f.addInvite("tok", "invited@example.com", identity.RoleAdmin)

	ident := identity.Identity{UserID: uuid.New(), Email: "someoneelse@example.com", Role: identity.RoleViewer}
	_, err := f.gate.Bind(context.Background(), "tok", ident)
	require.ErrorIs(t, err, ErrEmailMismatch)

	// The invite is untouched and still redeemable.
	require.Equal(t, invites.StatusPending, f.invites.byToken["tok"].Status)
	require.Empty(t, f.events)

	// Retrying with the invited address succeeds.
	ident.Email = "invited@example.com"
	outcome, err := f.gate.Bind(context.Background(), "tok", ident)
	require.NoError(t, err)
	require.Equal(t, StateComplete, outcome.State)
	require.Equal(t, invite.ID, outcome.Invite.ID)
}

func TestBind_RoleBoundBeforeAccept(t *testing.T) {
	f := newFixture()
	f.addInvite("tok", "invited@example.com", identity.RoleAdmin)

	ident := identity.Identity{UserID: uuid.New(), Email: "invited@example.com"}
	outcome, err := f.gate.Bind(context.Background(), "tok", ident)
	require.NoError(t, err)

	require.Equal(t, []string{"role:invited@example.com", "accept:invited@example.com"}, f.events)
	require.Equal(t, identity.RoleAdmin, outcome.Identity.Role)
	require.Equal(t, "/admin", outcome.Route)
}

func TestRedeem_SecondAttemptFailsClosed(t *testing.T) {
	f := newFixture()
	f.addInvite("tok", "invited@example.com", identity.RoleViewer)
	ident := identity.Identity{UserID: uuid.New(), Email: "invited@example.com"}

	_, err := f.gate.Bind(context.Background(), "tok", ident)
	require.NoError(t, err)

	_, err = f.gate.Bind(context.Background(), "tok", ident)
	require.ErrorIs(t, err, invites.ErrNotRedeemable)

	outcome, err := f.gate.Check(context.Background(), "tok", nil)
	require.NoError(t, err)
	require.Equal(t, StateInvalid, outcome.State)
}

func TestLoginAndRedeem(t *testing.T) {
	f := newFixture()
	f.addInvite("tok", "known@example.com", identity.RoleViewer)
	f.users.byEmail["known@example.com"] = &identity.User{
		ID: uuid.New(), Email: "known@example.com", Metadata: map[string]interface{}{},
	}
	f.passwordsSet("known@example.com", "correct-password")

	_, err := f.gate.LoginAndRedeem(context.Background(), "tok", "wrong-password")
	require.ErrorIs(t, err, identity.ErrInvalidCredentials)
	require.Equal(t, invites.StatusPending, f.invites.byToken["tok"].Status)

	outcome, err := f.gate.LoginAndRedeem(context.Background(), "tok", "correct-password")
	require.NoError(t, err)
	require.Equal(t, StateComplete, outcome.State)
	require.Equal(t, "/", outcome.Route)
}

func (f *fixture) passwordsSet(email, password string) {
	f.users.passwords[email] = password
}

func TestSignupFlow_WrongCodeThenResendThenVerify(t *testing.T) {
	f := newFixture()
	f.addInvite("tok", "new@example.com", identity.RoleAdmin)

	outcome, err := f.gate.BeginSignup(context.Background(), "tok")
	require.NoError(t, err)
	require.Equal(t, StateOTPPending, outcome.State)
	firstCode := f.codes.byEmail["new@example.com"][0].code

	// Wrong code: flow stays retryable, nothing is consumed or created.
	_, err = f.gate.CompleteSignup(context.Background(), "tok", "New User", "000000")
	require.ErrorIs(t, err, otp.ErrInvalidOrExpired)
	require.Equal(t, invites.StatusPending, f.invites.byToken["tok"].Status)
	require.NotContains(t, f.users.byEmail, "new@example.com")

	// Resend issues a second code without invalidating the first.
	_, err = f.gate.BeginSignup(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, f.codes.byEmail["new@example.com"], 2)

	outcome, err = f.gate.CompleteSignup(context.Background(), "tok", "New User", firstCode)
	require.NoError(t, err)
	require.Equal(t, StateComplete, outcome.State)
	require.Equal(t, identity.RoleAdmin, outcome.Identity.Role)
	require.Equal(t, "/admin", outcome.Route)

	user := f.users.byEmail["new@example.com"]
	require.Equal(t, "New User", user.Name)
	require.Equal(t, "admin", user.Metadata["role"])
	require.Equal(t, invites.StatusAccepted, f.invites.byToken["tok"].Status)
}

func TestCompleteSignup_RouteForScopedInvite(t *testing.T) {
	f := newFixture()
	invite := f.addInvite("tok", "new@example.com", identity.RoleViewer)
	resourceType := invites.ResourceVideo
	resourceID := uuid.New()
	invite.ResourceType = &resourceType
	invite.ResourceID = &resourceID

	_, err := f.gate.BeginSignup(context.Background(), "tok")
	require.NoError(t, err)
	code := f.codes.byEmail["new@example.com"][0].code

	outcome, err := f.gate.CompleteSignup(context.Background(), "tok", "", code)
	require.NoError(t, err)
	require.Equal(t, "/videos/"+resourceID.String(), outcome.Route)
}

func TestBeginSignup_InvalidTokenNeverIssuesCode(t *testing.T) {
	f := newFixture()
	invite := f.addInvite("tok", "late@example.com", identity.RoleViewer)
	invite.ExpiresAt = time.Now().Add(-time.Hour)

	_, err := f.gate.BeginSignup(context.Background(), "tok")
	require.ErrorIs(t, err, invites.ErrNotRedeemable)
	require.Empty(t, f.codes.byEmail["late@example.com"])
}
