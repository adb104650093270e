package access_test

import (
	"context"
	"testing"

	"github.com/m3rciful/communitybot/internal/access"
	"github.com/m3rciful/communitybot/internal/store/storetest"
)

func TestIsAuthorizedSeesAdminsAddedLater(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	p := access.New(1, s)

	if ok, _ := p.IsAuthorized(ctx, 1); !ok {
		t.Fatalf("super-admin must always be authorized")
	}
	if ok, _ := p.IsAuthorized(ctx, 7); ok {
		t.Fatalf("unknown user authorized")
	}
	if err := s.AddAdmin(ctx, 7); err != nil {
		t.Fatalf("add: %v", err)
	}
	if ok, _ := p.IsAuthorized(ctx, 7); !ok {
		t.Fatalf("admin added after start must be authorized immediately")
	}
	if err := s.RemoveAdmin(ctx, 7); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if ok, _ := p.IsAuthorized(ctx, 7); ok {
		t.Fatalf("removed admin still authorized")
	}
	if ok, _ := p.IsSuperAdmin(ctx, 7); ok {
		t.Fatalf("regular user reported as super-admin")
	}
}

func TestRecipientsAreDistinct(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	for _, id := range []int64{1, 2, 3} {
		_ = s.AddAdmin(ctx, id)
	}
	got, err := access.New(1, s).Recipients(ctx)
	if err != nil {
		t.Fatalf("recipients: %v", err)
	}
	if len(got) != 3 || got[0] != 1 {
		t.Fatalf("recipients = %v, want super-admin once plus 2 and 3", got)
	}
}
