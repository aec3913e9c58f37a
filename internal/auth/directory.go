package auth

import (
	"context"
	"strings"

	"myauth/internal/model"
)

type DirectoryStore interface {
	UpsertUser(ctx context.Context, email string, role model.Role) (string, error)
	CountUsersByRole(ctx context.Context, role model.Role) (int, error)
}

// Directory decides which role a verified email gets and keeps the
// first-admin bootstrap rule. The allowlist is injected configuration,
// matched case-insensitively.
type Directory struct {
	store         DirectoryStore
	allowlist     map[string]struct{}
	fallbackAdmin string
}

func NewDirectory(store DirectoryStore, adminEmails []string, fallbackAdmin string) *Directory {
	allowlist := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		allowlist[strings.ToLower(strings.TrimSpace(email))] = struct{}{}
	}
	return &Directory{
		store:         store,
		allowlist:     allowlist,
		fallbackAdmin: strings.ToLower(strings.TrimSpace(fallbackAdmin)),
	}
}

func (d *Directory) IsPrivilegedEmail(email string) bool {
	_, ok := d.allowlist[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// UpsertUser records a successful authentication for email and returns
// the user id. Allowlisted emails get the admin role; the store's upsert
// never downgrades an existing role.
func (d *Directory) UpsertUser(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	role := model.RoleUser
	if d.IsPrivilegedEmail(email) {
		role = model.RoleAdmin
	}
	return d.store.UpsertUser(ctx, email, role)
}

// EnsureFirstAdmin upserts the fallback admin when no admin exists yet.
// Once any admin exists it is a no-op, so repeated and concurrent calls
// are safe; the count-then-upsert race is harmless because the upsert is
// idempotent per email.
func (d *Directory) EnsureFirstAdmin(ctx context.Context) error {
	count, err := d.store.CountUsersByRole(ctx, model.RoleAdmin)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err = d.store.UpsertUser(ctx, d.fallbackAdmin, model.RoleAdmin)
	return err
}
