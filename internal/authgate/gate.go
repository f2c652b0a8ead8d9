// Package authgate drives the invite redemption flow: the state machine a
// recipient walks through to turn a pending invite into an authorized
// identity. The gate owns ordering (invite validity before any identity
// mutation, role binding before the accept transition) and leaves storage
// atomicity to the invite service's conditional update.
package authgate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/viewdeck/viewdeck/internal/apperrors"
	"github.com/viewdeck/viewdeck/internal/identity"
	"github.com/viewdeck/viewdeck/internal/invites"
	"github.com/viewdeck/viewdeck/internal/otp"
)

// State is the position of a redemption flow.
type State string

const (
	// StateInvalid covers unknown, consumed, revoked, and expired tokens.
	// They are indistinguishable from the outside on purpose.
	StateInvalid State = "invalid"

	// StateBinding means the caller already holds a session for the invited
	// email; redemption needs only the bind step.
	StateBinding State = "binding"

	// StateLogin means the invited email already has an account; the
	// recipient authenticates with their password.
	StateLogin State = "login"

	// StateSignup means no account exists; the recipient self-registers
	// through the OTP path.
	StateSignup State = "signup"

	// StateOTPPending means a code has been issued and awaits verification.
	StateOTPPending State = "otp-pending"

	// StateComplete means the invite was consumed and the role bound.
	StateComplete State = "complete"
)

// ErrEmailMismatch is the non-fatal rejection when an authenticated caller's
// email differs from the invited one. The invite is left untouched.
var ErrEmailMismatch = apperrors.New(apperrors.KindValidation, "email_mismatch", "Email mismatch, please use the invited address")

// InviteStore is the slice of the invite service the gate needs.
type InviteStore interface {
	GetByToken(ctx context.Context, token string) (*invites.Invite, error)
	Accept(ctx context.Context, inviteID uuid.UUID) error
}

// CodeService issues and checks OTP codes.
type CodeService interface {
	RequestCode(ctx context.Context, email string) (*otp.Verification, error)
	VerifyCode(ctx context.Context, email, code string) error
}

// UserDirectory is the slice of the identity service the gate needs.
type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (*identity.User, error)
	SignIn(ctx context.Context, email, password string) (*identity.User, identity.Role, error)
	UpsertFromInvite(ctx context.Context, email, name string, role identity.Role) (*identity.User, error)
	DeriveRoleFor(user *identity.User) identity.Role
}

// Outcome is the result of one step through the gate.
type Outcome struct {
	State  State
	Invite *invites.Invite

	// Identity and Route are set when State is StateComplete.
	Identity *identity.Identity
	Route    string
}

// Gate orchestrates one redemption flow per request. It holds no state
// between steps; every step re-reads the invite so concurrent attempts race
// only on the storage-level conditional update.
type Gate struct {
	invites InviteStore
	codes   CodeService
	users   UserDirectory
}

// NewGate creates a redemption gate.
func NewGate(inviteStore InviteStore, codes CodeService, users UserDirectory) *Gate {
	return &Gate{invites: inviteStore, codes: codes, users: users}
}

// Check resolves a token to the state the recipient should see. Unknown,
// consumed, and expired tokens all land on StateInvalid with no error; the
// caller cannot tell which it was. A caller already authenticated as the
// invited email is told to bind; an authenticated caller with a different
// email falls through to the unauthenticated branches, since only the
// invited address can redeem.
func (g *Gate) Check(ctx context.Context, token string, ident *identity.Identity) (*Outcome, error) {
	invite, err := g.loadRedeemable(ctx, token)
	if err != nil {
		if errors.Is(err, invites.ErrNotRedeemable) {
			return &Outcome{State: StateInvalid}, nil
		}
		return nil, err
	}

	if ident != nil && emailsMatch(ident.Email, invite.Email) {
		return &Outcome{State: StateBinding, Invite: invite}, nil
	}

	_, err = g.users.GetByEmail(ctx, invite.Email)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return &Outcome{State: StateSignup, Invite: invite}, nil
		}
		return nil, err
	}

	return &Outcome{State: StateLogin, Invite: invite}, nil
}

// Bind redeems the invite for an already-authenticated caller. The session
// email must equal the invited email after normalization; a mismatch is
// non-fatal and leaves the invite pending. On match, the role is written to
// the identity first and the invite accepted second, so a crash in between
// leaves a retryable pending invite rather than a consumed one with no role.
func (g *Gate) Bind(ctx context.Context, token string, ident identity.Identity) (*Outcome, error) {
	invite, err := g.loadRedeemable(ctx, token)
	if err != nil {
		return nil, err
	}

	if !emailsMatch(ident.Email, invite.Email) {
		return nil, ErrEmailMismatch
	}

	return g.redeem(ctx, invite, invite.Name)
}

// LoginAndRedeem authenticates the invited email with a password and then
// binds. Invite validity is established before the sign-in call; a failed
// sign-in leaves the flow on the login state with the credential error.
func (g *Gate) LoginAndRedeem(ctx context.Context, token, password string) (*Outcome, error) {
	invite, err := g.loadRedeemable(ctx, token)
	if err != nil {
		return nil, err
	}

	if _, _, err := g.users.SignIn(ctx, invite.Email, password); err != nil {
		return nil, err
	}

	return g.redeem(ctx, invite, invite.Name)
}

// BeginSignup starts the self-registration branch: issue an OTP code for
// the invited email and move to otp-pending. A repeat call (resend) issues
// a fresh code without invalidating earlier ones.
func (g *Gate) BeginSignup(ctx context.Context, token string) (*Outcome, error) {
	invite, err := g.loadRedeemable(ctx, token)
	if err != nil {
		return nil, err
	}

	if _, err := g.codes.RequestCode(ctx, invite.Email); err != nil {
		return nil, err
	}

	return &Outcome{State: StateOTPPending, Invite: invite}, nil
}

// CompleteSignup verifies the OTP code, creates or updates the identity
// with the invite's role and the supplied display name, and consumes the
// invite. A wrong or expired code keeps the flow on otp-pending.
func (g *Gate) CompleteSignup(ctx context.Context, token, name, code string) (*Outcome, error) {
	invite, err := g.loadRedeemable(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := g.codes.VerifyCode(ctx, invite.Email, code); err != nil {
		return nil, err
	}

	if name == "" {
		name = invite.Name
	}
	return g.redeem(ctx, invite, name)
}

// loadRedeemable fetches the invite and applies the lazy validity rule:
// stored status and wall-clock expiry are both evaluated now, at use time.
func (g *Gate) loadRedeemable(ctx context.Context, token string) (*invites.Invite, error) {
	invite, err := g.invites.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !invite.Redeemable(nowUTC()) {
		return nil, invites.ErrNotRedeemable
	}
	return invite, nil
}

// redeem performs the two-step completion shared by every branch: role
// binding, then the atomic pending-to-accepted transition. If the
// conditional update reports no affected row another attempt won the race
// and this one fails closed.
func (g *Gate) redeem(ctx context.Context, invite *invites.Invite, name string) (*Outcome, error) {
	user, err := g.users.UpsertFromInvite(ctx, invite.Email, name, invite.InviteType)
	if err != nil {
		return nil, fmt.Errorf("failed to bind role: %w", err)
	}

	if err := g.invites.Accept(ctx, invite.ID); err != nil {
		return nil, err
	}

	role := g.users.DeriveRoleFor(user)
	ident := identity.Identity{UserID: user.ID, Email: user.Email, Role: role}

	return &Outcome{
		State:    StateComplete,
		Invite:   invite,
		Identity: &ident,
		Route:    routeFor(invite, role),
	}, nil
}

// emailsMatch compares two addresses after normalization; stored values are
// already lowercased but session claims may predate that.
func emailsMatch(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// routeFor decides where a freshly redeemed caller lands: the scoped
// resource when the invite names one, otherwise by role.
func routeFor(invite *invites.Invite, role identity.Role) string {
	if invite.ResourceType != nil && invite.ResourceID != nil {
		return fmt.Sprintf("/%ss/%s", *invite.ResourceType, invite.ResourceID)
	}
	if role == identity.RoleAdmin {
		return "/admin"
	}
	return "/"
}
