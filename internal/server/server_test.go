package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/account"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/auth"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/export"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/lifecycle"
	mock_server "gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/server/mocks"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage"
)

type testServer struct {
	server   *Server
	engine   *mock_server.MockLifecycle
	accounts *mock_server.MockAccounts
	tokens   *mock_server.MockTokenParser
	reports  *mock_server.MockReports
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctrl := gomock.NewController(t)

	ts := &testServer{
		engine:   mock_server.NewMockLifecycle(ctrl),
		accounts: mock_server.NewMockAccounts(ctrl),
		tokens:   mock_server.NewMockTokenParser(ctrl),
		reports:  mock_server.NewMockReports(ctrl),
	}
	logger := zaptest.NewLogger(t)
	ts.server = New(ts.engine, ts.accounts, ts.tokens, ts.reports,
		WithLogger(logger),
		WithAccessLog(NewAccessLogManager(1, 5, 10*time.Millisecond, logger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	ts.server.AccessLog.Start(ctx)
	t.Cleanup(func() {
		ts.server.AccessLog.Shutdown(context.Background())
		cancel()
	})
	return ts
}

var (
	donorActor = lifecycle.DonorActor{
		User:  &storage.User{ID: 1, Email: "donor@example.com", Role: storage.RoleDonor, Active: true},
		Donor: &storage.Donor{ID: 10, UserID: 1},
	}
	orgActor = lifecycle.OrganizationActor{
		User:         &storage.User{ID: 2, Email: "org@example.com", Role: storage.RoleOrganization, Active: true},
		Organization: &storage.Organization{ID: 20, UserID: 2, Name: "Banco Norte"},
	}
)

func withActor(r *http.Request, actor lifecycle.Actor) *http.Request {
	return r.WithContext(auth.WithActor(r.Context(), actor))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestHandleCreateDonation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name           string
		body           string
		setupMocks     func()
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "successful creation",
			body: `{"food_type":"Pan","quantity":"12.5","unit":"kg","expires_on":"2025-04-01","description":"Pan del dia"}`,
			setupMocks: func() {
				ts.engine.EXPECT().
					Create(gomock.Any(), donorActor, gomock.Any()).
					DoAndReturn(func(_ context.Context, _ lifecycle.Actor, in lifecycle.DonationInput) (*storage.Donation, error) {
						assert.Equal(t, "Pan", in.FoodType)
						assert.True(t, decimal.RequireFromString("12.5").Equal(in.Quantity))
						assert.Equal(t, storage.UnitKilograms, in.Unit)
						require.NotNil(t, in.ExpiresOn)
						assert.Equal(t, "2025-04-01", in.ExpiresOn.Format(dateLayout))
						return &storage.Donation{ID: 5, FoodType: in.FoodType, Status: storage.StatusPending}, nil
					})
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "invalid request body",
			body:           `{"food_type":`,
			setupMocks:     func() {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "invalid_body",
		},
		{
			name:           "bad expiry date",
			body:           `{"food_type":"Pan","quantity":1,"unit":"kg","expires_on":"01/04/2025"}`,
			setupMocks:     func() {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "invalid_expires_on",
		},
		{
			name: "validation error from engine",
			body: `{"food_type":"Pan","quantity":0,"unit":"kg"}`,
			setupMocks: func() {
				ts.engine.EXPECT().
					Create(gomock.Any(), donorActor, gomock.Any()).
					Return(nil, apperr.Validation("quantity_not_positive", "quantity must be greater than zero"))
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "quantity_not_positive",
		},
		{
			name: "internal error hides cause",
			body: `{"food_type":"Pan","quantity":3,"unit":"kg"}`,
			setupMocks: func() {
				ts.engine.EXPECT().
					Create(gomock.Any(), donorActor, gomock.Any()).
					Return(nil, apperr.Internal("failed to create donation", errors.New("connection refused")))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   "internal",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMocks()

			req := httptest.NewRequest(http.MethodPost, "/donations", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			req = withActor(req, donorActor)
			rr := httptest.NewRecorder()

			ts.server.handleCreateDonation(rr, req)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			if tc.expectedCode == "" {
				assert.Contains(t, rr.Body.String(), `"id":5`)
				return
			}
			body := decodeError(t, rr)
			assert.Equal(t, tc.expectedCode, body.Code)
			assert.NotContains(t, body.Error, "connection refused")
		})
	}
}

func TestHandleEditAndCancel(t *testing.T) {
	ts := newTestServer(t)

	t.Run("edit", func(t *testing.T) {
		ts.engine.EXPECT().
			Edit(gomock.Any(), donorActor, int64(5), gomock.Any()).
			Return(&storage.Donation{ID: 5, FoodType: "Arroz"}, nil)

		req := httptest.NewRequest(http.MethodPut, "/donations/5", strings.NewReader(`{"food_type":"Arroz","quantity":2,"unit":"kg"}`))
		req = mux.SetURLVars(withActor(req, donorActor), map[string]string{"id": "5"})
		rr := httptest.NewRecorder()

		ts.server.handleEditDonation(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"food_type":"Arroz"`)
	})

	t.Run("cancel not pending", func(t *testing.T) {
		ts.engine.EXPECT().
			Cancel(gomock.Any(), donorActor, int64(6)).
			Return(nil, apperr.State("not_pending", "donation is in_transit, only pending donations can change"))

		req := httptest.NewRequest(http.MethodPost, "/donations/6/cancel", nil)
		req = mux.SetURLVars(withActor(req, donorActor), map[string]string{"id": "6"})
		rr := httptest.NewRecorder()

		ts.server.handleCancelDonation(rr, req)
		assert.Equal(t, http.StatusConflict, rr.Code)
		body := decodeError(t, rr)
		assert.Equal(t, apperr.KindState, body.Kind)
		assert.Equal(t, "not_pending", body.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/donations/x/cancel", nil)
		req = mux.SetURLVars(withActor(req, donorActor), map[string]string{"id": "x"})
		rr := httptest.NewRecorder()

		ts.server.handleCancelDonation(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "invalid_id", decodeError(t, rr).Code)
	})
}

func TestHandleAcceptDonation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name           string
		body           string
		setupMocks     func()
		expectedStatus int
	}{
		{
			name: "empty body",
			body: "",
			setupMocks: func() {
				ts.engine.EXPECT().
					Accept(gomock.Any(), orgActor, int64(9), lifecycle.AcceptInput{}).
					Return(&lifecycle.Acceptance{Donation: &storage.Donation{ID: 9, Status: storage.StatusInTransit}}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "with reception details",
			body: `{"responsible_name":"Marta Diaz","comments":"porteria"}`,
			setupMocks: func() {
				ts.engine.EXPECT().
					Accept(gomock.Any(), orgActor, int64(9), lifecycle.AcceptInput{ResponsibleName: "Marta Diaz", Comments: "porteria"}).
					Return(&lifecycle.Acceptance{Donation: &storage.Donation{ID: 9, Status: storage.StatusInTransit}}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "already claimed",
			body: "",
			setupMocks: func() {
				ts.engine.EXPECT().
					Accept(gomock.Any(), orgActor, int64(9), lifecycle.AcceptInput{}).
					Return(nil, apperr.State("already_claimed", "donation was already accepted by an organization"))
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "malformed body",
			body:           `{"comments":`,
			setupMocks:     func() {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMocks()

			req := httptest.NewRequest(http.MethodPost, "/donations/9/accept", strings.NewReader(tc.body))
			req = mux.SetURLVars(withActor(req, orgActor), map[string]string{"id": "9"})
			rr := httptest.NewRecorder()

			ts.server.handleAcceptDonation(rr, req)
			assert.Equal(t, tc.expectedStatus, rr.Code)
		})
	}
}

func TestHandleTracking(t *testing.T) {
	ts := newTestServer(t)

	t.Run("missing donation redirects to list", func(t *testing.T) {
		ts.engine.EXPECT().
			Track(gomock.Any(), donorActor, int64(404)).
			Return(nil, apperr.NotFound("donation_not_found", "donation 404 not found"))

		req := httptest.NewRequest(http.MethodGet, "/donations/404/tracking", nil)
		req = mux.SetURLVars(withActor(req, donorActor), map[string]string{"id": "404"})
		rr := httptest.NewRecorder()

		ts.server.handleTracking(rr, req)
		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/donations", rr.Header().Get("Location"))
	})

	t.Run("view", func(t *testing.T) {
		ts.engine.EXPECT().
			Track(gomock.Any(), orgActor, int64(3)).
			Return(&lifecycle.TrackingView{
				Donation:  &storage.Donation{ID: 3, Status: storage.StatusInTransit},
				Events:    []*storage.TrackingEvent{{ID: 1, Status: storage.TrackingInTransit, Location: "Centro Norte"}},
				Remaining: 30 * time.Second,
			}, nil)

		req := httptest.NewRequest(http.MethodGet, "/donations/3/tracking", nil)
		req = mux.SetURLVars(withActor(req, orgActor), map[string]string{"id": "3"})
		rr := httptest.NewRecorder()

		ts.server.handleTracking(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"location":"Centro Norte"`)
	})

	t.Run("not the receiver", func(t *testing.T) {
		ts.engine.EXPECT().
			Track(gomock.Any(), orgActor, int64(4)).
			Return(nil, apperr.Permission("not_receiver", "donation was not received by this organization"))

		req := httptest.NewRequest(http.MethodGet, "/donations/4/tracking", nil)
		req = mux.SetURLVars(withActor(req, orgActor), map[string]string{"id": "4"})
		rr := httptest.NewRecorder()

		ts.server.handleTracking(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestHandleExport(t *testing.T) {
	ts := newTestServer(t)

	t.Run("donor is rejected", func(t *testing.T) {
		req := withActor(httptest.NewRequest(http.MethodGet, "/donations/export", nil), donorActor)
		rr := httptest.NewRecorder()

		ts.server.handleExport(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("unknown status", func(t *testing.T) {
		req := withActor(httptest.NewRequest(http.MethodGet, "/donations/export?status=lost", nil), orgActor)
		rr := httptest.NewRecorder()

		ts.server.handleExport(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "invalid_status", decodeError(t, rr).Code)
	})

	t.Run("completed donations by default", func(t *testing.T) {
		ts.reports.EXPECT().
			ReceivedReport(gomock.Any(), int64(20), storage.StatusDelivered).
			Return(nil, nil)

		req := withActor(httptest.NewRequest(http.MethodGet, "/donations/export", nil), orgActor)
		rr := httptest.NewRecorder()

		ts.server.handleExport(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("all lifts the status filter", func(t *testing.T) {
		ts.reports.EXPECT().
			ReceivedReport(gomock.Any(), int64(20), storage.DonationStatus("")).
			Return(nil, nil)

		req := withActor(httptest.NewRequest(http.MethodGet, "/donations/export?status=all", nil), orgActor)
		rr := httptest.NewRecorder()

		ts.server.handleExport(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("workbook", func(t *testing.T) {
		ts.reports.EXPECT().
			ReceivedReport(gomock.Any(), int64(20), storage.StatusDelivered).
			Return([]*storage.ReportRow{{
				DonationID: 3,
				FoodType:   "Leche",
				Quantity:   decimal.NewFromInt(10),
				Unit:       storage.UnitLiters,
				DonorName:  "Ana Soto",
				ReceivedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
				Status:     storage.StatusDelivered,
			}}, nil)

		req := withActor(httptest.NewRequest(http.MethodGet, "/donations/export?status=delivered", nil), orgActor)
		rr := httptest.NewRecorder()

		ts.server.handleExport(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, export.ContentType, rr.Header().Get("Content-Type"))
		assert.Contains(t, rr.Header().Get("Content-Disposition"), export.FileName(20))

		f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
		require.NoError(t, err)
		defer f.Close()
		rows, err := f.GetRows(export.SheetName)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "Leche", rows[1][1])
	})
}

func TestHandleAccountRoutes(t *testing.T) {
	ts := newTestServer(t)

	t.Run("register", func(t *testing.T) {
		ts.accounts.EXPECT().
			Register(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req account.RegisterRequest) (*storage.User, error) {
				assert.Equal(t, storage.RoleOrganization, req.Type)
				assert.Equal(t, "Banco Norte", req.OrgName)
				return &storage.User{ID: 2, Email: req.Email, Role: req.Type}, nil
			})

		body := `{"type":"organization","email":"org@example.com","password":"supersecret","firstName":"Marta","lastName":"Diaz","orgName":"Banco Norte","orgType":"collector","orgCity":"Talca"}`
		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
		rr := httptest.NewRecorder()

		ts.server.handleRegister(rr, req)
		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.NotContains(t, rr.Body.String(), "supersecret")
	})

	t.Run("login rejected", func(t *testing.T) {
		ts.accounts.EXPECT().
			Login(gomock.Any(), account.LoginRequest{Email: "org@example.com", Password: "wrong-one", Remember: true}).
			Return(nil, apperr.Unauthenticated("invalid_credentials", "invalid email or password"))

		req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"email":"org@example.com","password":"wrong-one","remember":true}`))
		rr := httptest.NewRecorder()

		ts.server.handleLogin(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "invalid email or password", decodeError(t, rr).Error)
	})

	t.Run("logout", func(t *testing.T) {
		ts.accounts.EXPECT().Logout(gomock.Any(), orgActor).Return(nil)

		req := withActor(httptest.NewRequest(http.MethodDelete, "/sessions", nil), orgActor)
		rr := httptest.NewRecorder()

		ts.server.handleLogout(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestRouter_Authentication(t *testing.T) {
	ts := newTestServer(t)
	router := ts.server.Router()

	t.Run("health is public", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.NotEmpty(t, rr.Header().Get(requestIDHeader))
	})

	t.Run("missing token", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/donations", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "missing_token", decodeError(t, rr).Code)
	})

	t.Run("expired token", func(t *testing.T) {
		ts.tokens.EXPECT().
			Parse("stale").
			Return(nil, apperr.Unauthenticated("token_expired", "session expired, log in again"))

		req := httptest.NewRequest(http.MethodGet, "/donations", nil)
		req.Header.Set("Authorization", "Bearer stale")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "token_expired", decodeError(t, rr).Code)
	})

	t.Run("valid token reaches handler with actor", func(t *testing.T) {
		claims := &auth.Claims{
			RegisteredClaims: jwt.RegisteredClaims{ID: "s-1", Subject: "1"},
			Role:             storage.RoleDonor,
		}
		ts.tokens.EXPECT().Parse("good").Return(claims, nil)
		ts.accounts.EXPECT().Authenticate(gomock.Any(), claims).Return(donorActor, nil)
		ts.engine.EXPECT().
			Mine(gomock.Any(), donorActor).
			Return([]*storage.Donation{{ID: 5}}, nil)

		req := httptest.NewRequest(http.MethodGet, "/donations", nil)
		req.Header.Set("Authorization", "Bearer good")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"id":5`)
	})

	t.Run("available is not shadowed by the id route", func(t *testing.T) {
		claims := &auth.Claims{
			RegisteredClaims: jwt.RegisteredClaims{ID: "s-2", Subject: "2"},
			Role:             storage.RoleOrganization,
		}
		ts.tokens.EXPECT().Parse("org").Return(claims, nil)
		ts.accounts.EXPECT().Authenticate(gomock.Any(), claims).Return(orgActor, nil)
		ts.engine.EXPECT().Available(gomock.Any(), orgActor).Return([]*storage.Donation{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/donations/available", nil)
		req.Header.Set("Authorization", "bearer org")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestRouter_LogoutEndsSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	logger := zaptest.NewLogger(t)
	store := storage.NewMemoryStorage()
	tokens := auth.NewTokenIssuer("router-secret", nil)
	accounts := account.NewService(store, tokens, account.WithLogger(logger))
	engine := mock_server.NewMockLifecycle(ctrl)

	srv := New(engine, accounts, tokens, mock_server.NewMockReports(ctrl),
		WithLogger(logger),
		WithAccessLog(NewAccessLogManager(1, 5, 10*time.Millisecond, logger)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	srv.AccessLog.Start(ctx)
	t.Cleanup(func() {
		srv.AccessLog.Shutdown(context.Background())
		cancel()
	})
	router := srv.Router()

	call := func(method, path, token, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	rr := call(http.MethodPost, "/users", "", `{"type":"donor","email":"luz@example.com","password":"supersecret",`+
		`"firstName":"Luz","lastName":"Mora","donationType":"restaurant","city":"Lima"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = call(http.MethodPost, "/sessions", "", `{"email":"luz@example.com","password":"supersecret"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var session account.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &session))
	require.NotEmpty(t, session.Token)

	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/me", session.Token, "").Code)
	require.Equal(t, http.StatusOK, call(http.MethodDelete, "/sessions", session.Token, "").Code)

	rr = call(http.MethodGet, "/me", session.Token, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "session_revoked", decodeError(t, rr).Code)

	rr = call(http.MethodPost, "/donations", session.Token, `{"food_type":"Pan","quantity":"3","unit":"kg"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestDecodeBody_Limit(t *testing.T) {
	ts := newTestServer(t)

	t.Run("oversized body", func(t *testing.T) {
		body := `{"food_type":"` + strings.Repeat("a", maxBodyBytes) + `","quantity":"1","unit":"kg"}`
		req := withActor(httptest.NewRequest(http.MethodPost, "/donations", strings.NewReader(body)), donorActor)
		rr := httptest.NewRecorder()

		ts.server.handleCreateDonation(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "body_too_large", decodeError(t, rr).Code)
	})

	t.Run("oversized accept body", func(t *testing.T) {
		body := `{"comments":"` + strings.Repeat("a", maxBodyBytes) + `"}`
		req := withActor(httptest.NewRequest(http.MethodPost, "/donations/7/accept", strings.NewReader(body)), orgActor)
		req = mux.SetURLVars(req, map[string]string{"id": "7"})
		rr := httptest.NewRecorder()

		ts.server.handleAcceptDonation(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "body_too_large", decodeError(t, rr).Code)
	})

	t.Run("empty body", func(t *testing.T) {
		req := withActor(httptest.NewRequest(http.MethodPost, "/donations", strings.NewReader("")), donorActor)
		rr := httptest.NewRecorder()

		ts.server.handleCreateDonation(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "invalid_body", decodeError(t, rr).Code)
	})
}
