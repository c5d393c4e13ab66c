package ws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/statusdeck/statusdeck/internal/auth"
	"github.com/statusdeck/statusdeck/internal/models"
	"go.uber.org/zap"
)

const handlerTestSecret = "handler-test-secret"

// fakeUserRepo scripts the admission lookup.
type fakeUserRepo struct {
	getByIDFn func(ctx context.Context, id uuid.UUID) (*models.User, error)
}

func (f *fakeUserRepo) Create(context.Context, uuid.UUID, string, string, string, string) (*models.User, error) {
	return nil, nil
}

func (f *fakeUserRepo) GetByEmail(context.Context, string) (*models.User, error) {
	return nil, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return f.getByIDFn(ctx, id)
}

func newTestHandler(users *fakeUserRepo) *Handler {
	return NewHandler(newTestHub(), users, handlerTestSecret, nil, zap.NewNop())
}

func signedToken(t *testing.T, userID, orgID uuid.UUID) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, orgID, "ops@example.com", models.RoleEditor, handlerTestSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return token
}

func TestResolveClaimsBindsToCurrentUserRow(t *testing.T) {
	userID := uuid.New()
	tokenOrg := uuid.New()
	currentOrg := uuid.New() // user was reassigned after the token was minted

	h := newTestHandler(&fakeUserRepo{
		getByIDFn: func(_ context.Context, id uuid.UUID) (*models.User, error) {
			if id != userID {
				t.Fatalf("lookup for user %s, want %s", id, userID)
			}
			return &models.User{ID: userID, OrganizationID: currentOrg, Role: models.RoleAdmin}, nil
		},
	})

	claims := h.resolveClaims(context.Background(), signedToken(t, userID, tokenOrg))
	if claims == nil {
		t.Fatalf("resolveClaims() = nil, want staff claims")
	}
	if claims.OrganizationID != currentOrg {
		t.Fatalf("OrganizationID = %s, want the user row's current org %s", claims.OrganizationID, currentOrg)
	}
	if claims.Role != models.RoleAdmin {
		t.Fatalf("Role = %q, want the user row's current role", claims.Role)
	}
}

func TestResolveClaimsDeletedUserDemotedToViewer(t *testing.T) {
	h := newTestHandler(&fakeUserRepo{
		getByIDFn: func(context.Context, uuid.UUID) (*models.User, error) {
			return nil, nil
		},
	})

	if claims := h.resolveClaims(context.Background(), signedToken(t, uuid.New(), uuid.New())); claims != nil {
		t.Fatalf("resolveClaims() for a deleted user = %+v, want nil", claims)
	}
}

func TestResolveClaimsUserWithoutTenantDemotedToViewer(t *testing.T) {
	userID := uuid.New()
	h := newTestHandler(&fakeUserRepo{
		getByIDFn: func(context.Context, uuid.UUID) (*models.User, error) {
			return &models.User{ID: userID, OrganizationID: uuid.Nil, Role: models.RoleEditor}, nil
		},
	})

	if claims := h.resolveClaims(context.Background(), signedToken(t, userID, uuid.New())); claims != nil {
		t.Fatalf("resolveClaims() for a tenantless user = %+v, want nil", claims)
	}
}

func TestResolveClaimsLookupFailureDemotedToViewer(t *testing.T) {
	h := newTestHandler(&fakeUserRepo{
		getByIDFn: func(context.Context, uuid.UUID) (*models.User, error) {
			return nil, errors.New("conn refused")
		},
	})

	if claims := h.resolveClaims(context.Background(), signedToken(t, uuid.New(), uuid.New())); claims != nil {
		t.Fatalf("resolveClaims() after a lookup failure = %+v, want nil", claims)
	}
}

func TestResolveClaimsBadTokenDemotedToViewer(t *testing.T) {
	h := newTestHandler(&fakeUserRepo{
		getByIDFn: func(context.Context, uuid.UUID) (*models.User, error) {
			t.Fatalf("lookup must not run for an unverifiable token")
			return nil, nil
		},
	})

	if claims := h.resolveClaims(context.Background(), "not-a-jwt"); claims != nil {
		t.Fatalf("resolveClaims() for a garbage token = %+v, want nil", claims)
	}
	if claims := h.resolveClaims(context.Background(), ""); claims != nil {
		t.Fatalf("resolveClaims() for an empty token = %+v, want nil", claims)
	}
}
