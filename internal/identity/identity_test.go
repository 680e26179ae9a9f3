package identity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/crypto/bcrypt"

	"github.com/starford/daybook/internal/apperr"
	"github.com/starford/daybook/internal/testutil"
)

func newDirectory(t *testing.T, opts ...DirectoryOption) *Directory {
	t.Helper()
	opts = append([]DirectoryOption{WithBcryptCost(bcrypt.MinCost)}, opts...)
	return NewDirectory(testutil.TestDB(t), testutil.Quiet(), opts...)
}

func TestParseMethod(t *testing.T) {
	if m, err := ParseMethod(" Email "); err != nil || m != MethodEmail {
		t.Errorf("ParseMethod = %q, %v", m, err)
	}
	if _, err := ParseMethod("local"); err == nil {
		t.Error("local is not a sign-in method")
	}
}

func TestAnonymousSignInIssuesFreshOwner(t *testing.T) {
	d := newDirectory(t)
	ctx := context.Background()

	a, tokA, err := d.SignIn(ctx, MethodAnonymous, Credentials{})
	if err != nil {
		t.Fatal(err)
	}
	b, _, _ := d.SignIn(ctx, MethodAnonymous, Credentials{})
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("anonymous ids %q and %q should be distinct and non-empty", a.ID, b.ID)
	}

	got, err := d.Resolve(ctx, tokA)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(a, got); diff != "" {
		t.Errorf("Resolve (-want +got):\n%s", diff)
	}
}

func TestEmailSignUpAndSignIn(t *testing.T) {
	d := newDirectory(t)
	ctx := context.Background()

	created, _, err := d.SignUp(ctx, Credentials{Email: " Sam@Example.com ", Password: "hunter22"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if created.Email != "sam@example.com" {
		t.Errorf("email = %q", created.Email)
	}

	again, tok, err := d.SignIn(ctx, MethodEmail, Credentials{Email: "sam@example.com", Password: "hunter22"})
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if again.ID != created.ID {
		t.Errorf("owner changed between sign-ins: %q vs %q", created.ID, again.ID)
	}
	if _, err := d.Resolve(ctx, tok); err != nil {
		t.Errorf("Resolve: %v", err)
	}

	if _, _, err := d.SignIn(ctx, MethodEmail, Credentials{Email: "sam@example.com", Password: "wrong-pass"}); !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v", err)
	}
	if _, _, err := d.SignIn(ctx, MethodEmail, Credentials{Email: "nobody@example.com", Password: "hunter22"}); !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Errorf("unknown email err = %v", err)
	}
}

func TestSignUpRejects(t *testing.T) {
	d := newDirectory(t)
	ctx := context.Background()

	if _, _, err := d.SignUp(ctx, Credentials{Email: "not-an-email", Password: "hunter22"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("bad email err = %v", err)
	}
	if _, _, err := d.SignUp(ctx, Credentials{Email: "a@example.com", Password: "short"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("short password err = %v", err)
	}
	if _, _, err := d.SignUp(ctx, Credentials{Email: "a@example.com", Password: "hunter22"}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := d.SignUp(ctx, Credentials{Email: "A@example.com", Password: "hunter22"}); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate err = %v", err)
	}
}

func TestStaticToken(t *testing.T) {
	d := newDirectory(t, WithStaticToken("s3cret", "shared"))
	ctx := context.Background()

	ident, tok, err := d.SignIn(ctx, MethodToken, Credentials{Token: "s3cret"})
	if err != nil {
		t.Fatal(err)
	}
	if ident.ID != "shared" || tok != "s3cret" {
		t.Errorf("ident = %+v, token = %q", ident, tok)
	}
	if _, _, err := d.SignIn(ctx, MethodToken, Credentials{Token: "nope"}); !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Errorf("bad token err = %v", err)
	}
	if got, err := d.Resolve(ctx, "s3cret"); err != nil || got.ID != "shared" {
		t.Errorf("Resolve static = %+v, %v", got, err)
	}
	// Signing out never revokes the configured token.
	_ = d.SignOut(ctx, "s3cret")
	if _, err := d.Resolve(ctx, "s3cret"); err != nil {
		t.Errorf("static token revoked: %v", err)
	}
}

func TestGoogleUnsupported(t *testing.T) {
	d := newDirectory(t)
	if _, _, err := d.SignIn(context.Background(), MethodGoogle, Credentials{}); !errors.Is(err, apperr.ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestWithMethodsRestrictsSignIn(t *testing.T) {
	d := newDirectory(t, WithStaticToken("s3cret", "shared"), WithMethods(MethodToken))
	ctx := context.Background()

	if _, _, err := d.SignIn(ctx, MethodAnonymous, Credentials{}); !errors.Is(err, apperr.ErrUnsupported) {
		t.Errorf("anonymous err = %v, want ErrUnsupported", err)
	}
	if _, _, err := d.SignUp(ctx, Credentials{Email: "sam@example.com", Password: "long enough"}); !errors.Is(err, apperr.ErrUnsupported) {
		t.Errorf("sign up err = %v, want ErrUnsupported", err)
	}
	if _, _, err := d.SignIn(ctx, MethodToken, Credentials{Token: "s3cret"}); err != nil {
		t.Errorf("token sign-in: %v", err)
	}
}

func TestSignOutRevokesAndNotifies(t *testing.T) {
	d := newDirectory(t)
	ctx := context.Background()

	var mu sync.Mutex
	var events []Event
	unsub := d.OnIdentityChange(func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	defer unsub()

	ident, tok, _ := d.SignIn(ctx, MethodAnonymous, Credentials{})
	if err := d.SignOut(ctx, tok); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Resolve(ctx, tok); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("Resolve after sign out = %v", err)
	}
	if err := d.SignOut(ctx, tok); err != nil {
		t.Errorf("second SignOut: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []Event{{Identity: ident, SignedIn: true}, {Identity: ident, SignedIn: false}}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestResolveEmptyToken(t *testing.T) {
	d := newDirectory(t)
	if _, err := d.Resolve(context.Background(), ""); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("err = %v", err)
	}
}

func TestAuthLifecycle(t *testing.T) {
	d := newDirectory(t)
	ctx := context.Background()
	a := NewAuth(d, nil, testutil.Quiet())

	if _, ok := a.CurrentIdentity(); ok {
		t.Fatal("new Auth should be signed out")
	}

	var changes []string
	a.OnIdentityChange(func(prev, next *Identity) {
		switch {
		case prev == nil && next != nil:
			changes = append(changes, "in")
		case prev != nil && next != nil:
			changes = append(changes, "switch")
		case prev != nil && next == nil:
			changes = append(changes, "out")
		}
	})

	first, err := a.SignIn(ctx, MethodAnonymous, Credentials{})
	if err != nil {
		t.Fatal(err)
	}
	if cur, ok := a.CurrentIdentity(); !ok || cur.ID != first.ID {
		t.Errorf("CurrentIdentity = %+v, %v", cur, ok)
	}
	if _, err := a.SignIn(ctx, MethodAnonymous, Credentials{}); err != nil {
		t.Fatal(err)
	}
	if err := a.SignOut(ctx); err != nil {
		t.Fatal(err)
	}
	if err := a.SignOut(ctx); err != nil {
		t.Errorf("SignOut when signed out: %v", err)
	}

	if diff := cmp.Diff([]string{"in", "switch", "out"}, changes); diff != "" {
		t.Errorf("changes (-want +got):\n%s", diff)
	}
}

func TestAuthFailedSignInKeepsIdentity(t *testing.T) {
	d := newDirectory(t)
	a := NewAuth(d, &Local, testutil.Quiet())
	if _, err := a.SignIn(context.Background(), MethodGoogle, Credentials{}); err == nil {
		t.Fatal("expected error")
	}
	if cur, ok := a.CurrentIdentity(); !ok || cur != Local {
		t.Errorf("CurrentIdentity = %+v, %v", cur, ok)
	}
}

// failingRevoke signs in with fresh tokens and cannot revoke them.
type failingRevoke struct {
	n int
}

func (f *failingRevoke) SignIn(_ context.Context, method Method, _ Credentials) (Identity, string, error) {
	f.n++
	return Identity{ID: "user", Method: method}, "token-" + string(rune('a'+f.n)), nil
}

func (f *failingRevoke) SignOut(context.Context, string) error {
	return apperr.ErrUnavailable
}

func TestAuthSignInLogsFailedRevoke(t *testing.T) {
	var logs testutil.LogBuffer
	a := NewAuth(&failingRevoke{}, nil, logs.Logger())
	ctx := context.Background()

	if _, err := a.SignIn(ctx, MethodAnonymous, Credentials{}); err != nil {
		t.Fatal(err)
	}
	if got := logs.Entries(slog.LevelWarn); len(got) != 0 {
		t.Fatalf("first sign-in warned: %v", got)
	}

	if _, err := a.SignIn(ctx, MethodAnonymous, Credentials{}); err != nil {
		t.Fatalf("switching identity should survive a failed revoke: %v", err)
	}
	warns := logs.Entries(slog.LevelWarn)
	if len(warns) != 1 {
		t.Fatalf("warn entries = %d, want 1", len(warns))
	}
	if warns[0]["error"] != apperr.ErrUnavailable.Error() || warns[0]["owner"] != "user" {
		t.Errorf("warn = %v", warns[0])
	}
}
