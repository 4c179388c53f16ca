// Package context carries the identity of the request in flight and the roles
// resolved for its principal.
package context

import (
	"context"
	"slices"
)

type contextKey int

const (
	requestKey contextKey = iota
	rolesKey
)

// Request identifies one call. Principal is empty for anonymous callers.
type Request struct {
	ID        string
	Session   string
	Principal string
}

func WithRequest(ctx context.Context, req Request) context.Context {
	return context.WithValue(ctx, requestKey, req)
}

// RequestFrom returns the request on ctx, or the zero Request.
func RequestFrom(ctx context.Context) Request {
	req, _ := ctx.Value(requestKey).(Request)
	return req
}

func GetRequestID(ctx context.Context) string {
	return RequestFrom(ctx).ID
}

func GetSessionID(ctx context.Context) string {
	return RequestFrom(ctx).Session
}

func GetPrincipal(ctx context.Context) string {
	return RequestFrom(ctx).Principal
}

// SetRoles stores the role names resolved for the principal.
func SetRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, rolesKey, roles)
}

// GetRoles returns the role names on the context, never nil.
func GetRoles(ctx context.Context) []string {
	roles, _ := ctx.Value(rolesKey).([]string)
	if roles == nil {
		return []string{}
	}
	return roles
}

func HasRole(ctx context.Context, role string) bool {
	return slices.Contains(GetRoles(ctx), role)
}
