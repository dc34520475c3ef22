// Package auth supplies the identity of the person recording attendance.
//
// Authentication itself happens elsewhere. This package only carries the result:
// a stable user id that becomes the recorder part of every session identifier.
package auth

import (
	"context"
	"errors"
	"strings"
)

// ErrNoIdentity is returned when no stable user id is available.
var ErrNoIdentity = errors.New("no authenticated user")

// Identity is an authenticated recorder.
type Identity struct {
	UserID      string
	DisplayName string
	Role        string
}

// Provider resolves the current identity.
type Provider interface {
	Identity(ctx context.Context) (*Identity, error)
}

// StaticProvider always returns the same identity. An empty UserID means signed out.
type StaticProvider struct {
	ID Identity
}

// NewStaticProvider creates a provider for a fixed user.
func NewStaticProvider(userID, displayName, role string) *StaticProvider {
	return &StaticProvider{ID: Identity{
		UserID:      strings.TrimSpace(userID),
		DisplayName: displayName,
		Role:        role,
	}}
}

// Identity implements Provider.
func (p *StaticProvider) Identity(ctx context.Context) (*Identity, error) {
	if p == nil || p.ID.UserID == "" {
		return nil, ErrNoIdentity
	}
	id := p.ID
	return &id, nil
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity attaches an identity to ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns the identity attached with WithIdentity, if any.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil && id.UserID != ""
}

// ContextProvider resolves the identity from the call's context, falling back to
// Fallback when none is attached.
type ContextProvider struct {
	Fallback Provider
}

// Identity implements Provider.
func (p ContextProvider) Identity(ctx context.Context) (*Identity, error) {
	if id, ok := FromContext(ctx); ok {
		return id, nil
	}
	if p.Fallback != nil {
		return p.Fallback.Identity(ctx)
	}
	return nil, ErrNoIdentity
}
