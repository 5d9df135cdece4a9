package service

import (
	"github.com/finbook/finbook/internal/domain"
)

// Authorizer decides whether a caller may operate on an account. It is a
// pure check: an account is accessible iff its organization matches the
// caller's organization, or its user matches the caller's user. No other
// combination grants access.
type Authorizer struct{}

// NewAuthorizer creates the ownership authorizer.
func NewAuthorizer() *Authorizer {
	return &Authorizer{}
}

// Authorize returns nil when scope may operate on acct, or *domain.ErrForbidden.
// The stored owner fields are trusted as-is; exactly one of them is expected
// to be set by the account-management collaborator.
func (a *Authorizer) Authorize(acct *domain.FinanceAccount, scope domain.CallerScope) error {
	if acct.OrganizationID != "" && acct.OrganizationID == scope.OrganizationID {
		return nil
	}
	if acct.UserID != "" && acct.UserID == scope.UserID {
		return nil
	}
	return &domain.ErrForbidden{AccountID: acct.ID}
}
