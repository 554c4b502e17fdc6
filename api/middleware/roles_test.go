package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger/pkg/enums"
)

type stubPermissions struct {
	allowed bool
	err     error
	calls   int
}

func (s *stubPermissions) UserHasPermission(context.Context, uuid.UUID, enums.Permission) (bool, error) {
	s.calls++
	return s.allowed, s.err
}

func guardedRequest(userID string, role enums.MemberRole) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/adjust", nil)
	ctx := WithUserID(req.Context(), userID)
	ctx = WithRole(ctx, string(role))
	return req.WithContext(ctx)
}

func TestRequirePermission(t *testing.T) {
	tests := []struct {
		name      string
		userID    string
		role      enums.MemberRole
		checker   *stubPermissions
		want      int
		wantCalls int
	}{
		{"member allowed", uuid.NewString(), enums.MemberRoleStaff, &stubPermissions{allowed: true}, http.StatusOK, 1},
		{"membership revoked", uuid.NewString(), enums.MemberRoleStaff, &stubPermissions{allowed: false}, http.StatusForbidden, 1},
		{"viewer short-circuits", uuid.NewString(), enums.MemberRoleViewer, &stubPermissions{allowed: true}, http.StatusForbidden, 0},
		{"anonymous", "", enums.MemberRoleOwner, &stubPermissions{allowed: true}, http.StatusUnauthorized, 0},
		{"lookup failure", uuid.NewString(), enums.MemberRoleOwner, &stubPermissions{err: errors.New("db down")}, http.StatusServiceUnavailable, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequirePermission(tt.checker, nil, enums.PermissionInventoryWrite)(okHandler())
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, guardedRequest(tt.userID, tt.role))
			if resp.Code != tt.want {
				t.Fatalf("expected %d got %d", tt.want, resp.Code)
			}
			if tt.checker.calls != tt.wantCalls {
				t.Fatalf("expected %d membership lookups got %d", tt.wantCalls, tt.checker.calls)
			}
		})
	}
}
