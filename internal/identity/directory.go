package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/starford/daybook/internal/apperr"
	"github.com/starford/daybook/internal/sqlitedb"
)

// MinPasswordLength is enforced on sign-up.
const MinPasswordLength = 8

// Event reports a sign-in or sign-out.
type Event struct {
	Identity Identity
	SignedIn bool
}

// Directory is the server-side account and session store.
type Directory struct {
	conn        *sql.DB
	logger      *slog.Logger
	staticToken string
	tokenOwner  string
	cost        int
	methods     map[Method]bool // nil allows every method

	mu        sync.Mutex
	listeners map[int]func(Event)
	nextID    int
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithStaticToken accepts token as a credential for the "token" method. All
// holders of the token share the owner id.
func WithStaticToken(token, owner string) DirectoryOption {
	return func(d *Directory) {
		d.staticToken = token
		d.tokenOwner = owner
	}
}

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) DirectoryOption {
	return func(d *Directory) { d.cost = cost }
}

// WithMethods restricts sign-in to methods. Sign-up needs MethodEmail.
func WithMethods(methods ...Method) DirectoryOption {
	return func(d *Directory) {
		d.methods = make(map[Method]bool, len(methods))
		for _, m := range methods {
			d.methods[m] = true
		}
	}
}

func (d *Directory) allows(m Method) bool {
	return d.methods == nil || d.methods[m]
}

// NewDirectory returns a Directory backed by db.
func NewDirectory(db *sqlitedb.DB, logger *slog.Logger, opts ...DirectoryOption) *Directory {
	d := &Directory{
		conn:       db.Conn(),
		logger:     logger,
		tokenOwner: "token",
		cost:       bcrypt.DefaultCost,
		listeners:  make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnIdentityChange registers fn for sign-in and sign-out events.
func (d *Directory) OnIdentityChange(fn func(Event)) (unsubscribe func()) {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		delete(d.listeners, id)
		d.mu.Unlock()
	}
}

func (d *Directory) emit(ev Event) {
	d.mu.Lock()
	fns := make([]func(Event), 0, len(d.listeners))
	for _, fn := range d.listeners {
		fns = append(fns, fn)
	}
	d.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validateCredentials(email, password string) error {
	err := validation.Errors{
		"email":    validation.Validate(email, validation.Required, is.EmailFormat),
		"password": validation.Validate(password, validation.Required, validation.Length(MinPasswordLength, 0)),
	}.Filter()
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrValidation, err)
	}
	return nil
}

// SignUp creates an email account and signs it in.
func (d *Directory) SignUp(ctx context.Context, creds Credentials) (Identity, string, error) {
	if !d.allows(MethodEmail) {
		return Identity{}, "", fmt.Errorf("identity: sign up: %w", apperr.ErrUnsupported)
	}
	email := normalizeEmail(creds.Email)
	if err := validateCredentials(email, creds.Password); err != nil {
		return Identity{}, "", fmt.Errorf("identity: sign up: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), d.cost)
	if err != nil {
		return Identity{}, "", fmt.Errorf("identity: hash password: %w", err)
	}

	ident := Identity{ID: uuid.NewString(), Method: MethodEmail, Email: email}
	_, err = d.conn.ExecContext(ctx,
		`INSERT INTO accounts (id, email, password_hash, created_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)`,
		ident.ID, email, string(hash))
	if err != nil {
		return Identity{}, "", fmt.Errorf("identity: sign up %s: %w", email, sqlitedb.Classify(err))
	}

	d.logger.Info("identity: account created", slog.String("owner", ident.ID))
	return d.startSession(ctx, ident)
}

// SignIn establishes an identity with method and returns a session token.
func (d *Directory) SignIn(ctx context.Context, method Method, creds Credentials) (Identity, string, error) {
	if !d.allows(method) {
		return Identity{}, "", fmt.Errorf("identity: sign in with %s: %w", method, apperr.ErrUnsupported)
	}
	switch method {
	case MethodAnonymous:
		return d.startSession(ctx, Identity{ID: uuid.NewString(), Method: MethodAnonymous})

	case MethodEmail:
		return d.signInEmail(ctx, creds)

	case MethodToken:
		if d.staticToken == "" || creds.Token != d.staticToken {
			return Identity{}, "", fmt.Errorf("identity: sign in: %w", apperr.ErrInvalidCredentials)
		}
		ident := Identity{ID: d.tokenOwner, Method: MethodToken}
		d.emit(Event{Identity: ident, SignedIn: true})
		return ident, d.staticToken, nil

	case MethodGoogle:
		return Identity{}, "", fmt.Errorf("identity: sign in with %s: %w", method, apperr.ErrUnsupported)
	}
	return Identity{}, "", fmt.Errorf("identity: sign in with %q: %w", method, apperr.ErrUnsupported)
}

func (d *Directory) signInEmail(ctx context.Context, creds Credentials) (Identity, string, error) {
	email := normalizeEmail(creds.Email)
	var id, hash string
	err := d.conn.QueryRowContext(ctx,
		`SELECT id, password_hash FROM accounts WHERE email = ?`, email).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		// Same answer as a wrong password.
		return Identity{}, "", fmt.Errorf("identity: sign in: %w", apperr.ErrInvalidCredentials)
	}
	if err != nil {
		return Identity{}, "", fmt.Errorf("identity: sign in: %w", sqlitedb.Classify(err))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(creds.Password)); err != nil {
		return Identity{}, "", fmt.Errorf("identity: sign in: %w", apperr.ErrInvalidCredentials)
	}
	return d.startSession(ctx, Identity{ID: id, Method: MethodEmail, Email: email})
}

func (d *Directory) startSession(ctx context.Context, ident Identity) (Identity, string, error) {
	token := uuid.NewString()
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO sessions (token, owner, method, email, created_at) VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		token, ident.ID, string(ident.Method), ident.Email)
	if err != nil {
		return Identity{}, "", fmt.Errorf("identity: start session: %w", sqlitedb.Classify(err))
	}
	d.emit(Event{Identity: ident, SignedIn: true})
	return ident, token, nil
}

// Resolve returns the identity holding token.
func (d *Directory) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, apperr.ErrUnauthorized
	}
	if d.staticToken != "" && token == d.staticToken {
		return Identity{ID: d.tokenOwner, Method: MethodToken}, nil
	}

	var ident Identity
	var method string
	err := d.conn.QueryRowContext(ctx,
		`SELECT owner, method, email FROM sessions WHERE token = ?`, token).Scan(&ident.ID, &method, &ident.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return Identity{}, apperr.ErrUnauthorized
	}
	if err != nil {
		return Identity{}, fmt.Errorf("identity: resolve: %w", err)
	}
	ident.Method = Method(method)
	return ident, nil
}

// SignOut ends the session behind token. Unknown tokens are ignored.
func (d *Directory) SignOut(ctx context.Context, token string) error {
	ident, err := d.Resolve(ctx, token)
	if errors.Is(err, apperr.ErrUnauthorized) {
		return nil
	}
	if err != nil {
		return err
	}
	if ident.Method != MethodToken {
		if _, err := d.conn.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
			return fmt.Errorf("identity: sign out: %w", err)
		}
	}
	d.emit(Event{Identity: ident, SignedIn: false})
	return nil
}
