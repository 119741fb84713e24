package service

import (
	"context"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
)

// patchCurrent re-reads the account by email and applies the patch built by
// fn in one transaction. The store is the source of truth for every check
// fn makes; u is only used to find the row.
func patchCurrent(
	ctx context.Context,
	st store.Store,
	u domain.User,
	fn func(current domain.User) (domain.UserPatch, error),
) (domain.User, error) {
	var (
		updated domain.User
		inner   error
	)
	err := st.WithTx(ctx, func(tx store.Tx) error {
		current, err := tx.Users().GetUserByEmail(ctx, u.Email)
		if err != nil {
			inner = storeErr(err)
			return inner
		}
		patch, err := fn(current)
		if err != nil {
			inner = err
			return inner
		}
		updated, err = tx.Users().UpdateUser(ctx, current.ID, patch)
		if err != nil {
			inner = storeErr(err)
			return inner
		}
		return nil
	})
	switch {
	case inner != nil:
		return domain.User{}, inner
	case err != nil:
		// begin or commit
		return domain.User{}, storeErr(err)
	}
	return updated, nil
}
