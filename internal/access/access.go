// Package access decides who may use the gated bot features.
package access

import (
	"context"
	"fmt"
)

// AdminStore is the live admin list.
type AdminStore interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
	AdminIDs(ctx context.Context) ([]int64, error)
}

// Policy combines the configured super-admin with the stored admins.
// Every check queries the store; nothing is cached.
type Policy struct {
	superAdmin int64
	admins     AdminStore
}

// New builds a policy. superAdmin is always authorized.
func New(superAdmin int64, admins AdminStore) *Policy {
	return &Policy{superAdmin: superAdmin, admins: admins}
}

// SuperAdmin returns the configured super-admin id.
func (p *Policy) SuperAdmin() int64 { return p.superAdmin }

// IsSuperAdmin gates the admin management dialogue.
func (p *Policy) IsSuperAdmin(_ context.Context, userID int64) (bool, error) {
	return userID != 0 && userID == p.superAdmin, nil
}

// IsAuthorized reports whether userID is the super-admin or a stored admin.
func (p *Policy) IsAuthorized(ctx context.Context, userID int64) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	if userID == p.superAdmin {
		return true, nil
	}
	if p.admins == nil {
		return false, nil
	}
	ok, err := p.admins.IsAdmin(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("access: check %d: %w", userID, err)
	}
	return ok, nil
}

// Recipients returns every distinct admin identity, super-admin first.
func (p *Policy) Recipients(ctx context.Context) ([]int64, error) {
	var stored []int64
	if p.admins != nil {
		ids, err := p.admins.AdminIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("access: list admins: %w", err)
		}
		stored = ids
	}
	seen := make(map[int64]struct{}, len(stored)+1)
	out := make([]int64, 0, len(stored)+1)
	add := func(id int64) {
		if id == 0 {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	add(p.superAdmin)
	for _, id := range stored {
		add(id)
	}
	return out, nil
}
