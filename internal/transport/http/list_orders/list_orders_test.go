package listorders

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/user"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/auth"
	"github.com/stretchr/testify/assert"
)

type stubService struct {
	limit, offset int
}

func (s *stubService) ListOrders(_ context.Context, _ *user.User, limit, offset int) ([]order.Order, error) {
	s.limit, s.offset = limit, offset

	return []order.Order{}, nil
}

func TestListOrders(t *testing.T) {
	tests := []struct {
		query      string
		status     int
		wantLimit  int
		wantOffset int
	}{
		{"", http.StatusOK, maxLimit, 0},
		{"?limit=5&offset=10", http.StatusOK, 5, 10},
		{"?limit=5000", http.StatusOK, maxLimit, 0},
		{"?limit=-1", http.StatusBadRequest, 0, 0},
		{"?limit=abc", http.StatusBadRequest, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			svc := &stubService{}
			req := httptest.NewRequest(http.MethodGet, "/api/orders"+tt.query, nil)
			req = req.WithContext(auth.WithUser(req.Context(), &user.User{ID: 1}))
			rec := httptest.NewRecorder()

			ListOrders(rec, req, svc)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.wantLimit, svc.limit)
			assert.Equal(t, tt.wantOffset, svc.offset)
		})
	}
}
