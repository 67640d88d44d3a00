// Package query wraps the bridge reads as go-command queries.
package query

import (
	"context"

	"github.com/goliatone/go-whatsapp-bridge/core"
)

type InstallationResolver interface {
	ResolveInstallation(ctx context.Context, id core.Identifier) (core.Installation, error)
}

type InstallationLister interface {
	ListActive(ctx context.Context) ([]core.Installation, error)
	ListAll(ctx context.Context) ([]core.Installation, error)
}

type TokenReader interface {
	GetValidAccessToken(ctx context.Context, resourceID string) (string, error)
}

type GetInstallationQuery struct {
	resolver InstallationResolver
}

func NewGetInstallationQuery(resolver InstallationResolver) *GetInstallationQuery {
	return &GetInstallationQuery{resolver: resolver}
}

func (q *GetInstallationQuery) Query(ctx context.Context, msg GetInstallationMessage) (core.Installation, error) {
	if q == nil || q.resolver == nil {
		return core.Installation{}, queryDependencyError("query: installation resolver is required")
	}
	return q.resolver.ResolveInstallation(ctx, msg.Identifier)
}

type ListInstallationsQuery struct {
	lister InstallationLister
}

func NewListInstallationsQuery(lister InstallationLister) *ListInstallationsQuery {
	return &ListInstallationsQuery{lister: lister}
}

func (q *ListInstallationsQuery) Query(ctx context.Context, msg ListInstallationsMessage) ([]core.Installation, error) {
	if q == nil || q.lister == nil {
		return nil, queryDependencyError("query: installation lister is required")
	}
	if msg.ActiveOnly {
		return q.lister.ListActive(ctx)
	}
	return q.lister.ListAll(ctx)
}

// GetAccessTokenQuery returns a live access token for a tenant, refreshing
// through the service when the stored one has expired.
type GetAccessTokenQuery struct {
	reader TokenReader
}

func NewGetAccessTokenQuery(reader TokenReader) *GetAccessTokenQuery {
	return &GetAccessTokenQuery{reader: reader}
}

func (q *GetAccessTokenQuery) Query(ctx context.Context, msg GetAccessTokenMessage) (string, error) {
	if q == nil || q.reader == nil {
		return "", queryDependencyError("query: token reader is required")
	}
	return q.reader.GetValidAccessToken(ctx, msg.ResourceID)
}
