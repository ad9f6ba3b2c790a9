package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/account"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/auth"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/export"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/lifecycle"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage"
)

const (
	dateLayout = "2006-01-02"
	// maxBodyBytes caps JSON request bodies.
	maxBodyBytes = 1 << 20
	// exportAllStatuses disables the status filter of the export.
	exportAllStatuses = "all"
)

var (
	errInvalidBody  = apperr.Validation("invalid_body", "invalid request body")
	errBodyTooLarge = apperr.Validation("body_too_large", fmt.Sprintf("request body exceeds %d bytes", maxBodyBytes))
)

type donationRequest struct {
	FoodType    string          `json:"food_type"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        storage.Unit    `json:"unit"`
	ExpiresOn   string          `json:"expires_on"`
	Description string          `json:"description"`
}

func (req donationRequest) input() (lifecycle.DonationInput, error) {
	in := lifecycle.DonationInput{
		FoodType:    req.FoodType,
		Quantity:    req.Quantity,
		Unit:        req.Unit,
		Description: req.Description,
	}
	if req.ExpiresOn != "" {
		date, err := time.Parse(dateLayout, req.ExpiresOn)
		if err != nil {
			return in, apperr.Validation("invalid_expires_on", "expires_on must use YYYY-MM-DD")
		}
		in.ExpiresOn = &date
	}
	return in, nil
}

type acceptRequest struct {
	ResponsibleName string `json:"responsible_name"`
	Comments        string `json:"comments"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return errBodyTooLarge
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: %w", errInvalidBody, io.EOF)
		}
		return errInvalidBody
	}
	return nil
}

func donationID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid_id", "donation id must be a positive integer")
	}
	return id, nil
}

func actorOf(r *http.Request) (lifecycle.Actor, error) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		return nil, apperr.Unauthenticated("missing_token", "authentication required")
	}
	return actor, nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req account.RegisterRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, err)
		return
	}

	user, err := s.accounts.Register(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req account.LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, err)
		return
	}

	session, err := s.accounts.Login(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := s.accounts.Logout(r.Context(), actor); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		respondError(w, err)
		return
	}
	dashboard, err := s.accounts.Dashboard(r.Context(), actor)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dashboard)
}

func (s *Server) handleCreateDonation(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var req donationRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	in, err := req.input()
	if err != nil {
		respondError(w, err)
		return
	}

	donation, err := s.engine.Create(r.Context(), actor, in)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, donation)
}

func (s *Server) handleEditDonation(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		respondError(w, err)
		return
	}
	id, err := donationID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var req donationRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	in, err := req.input()
	if err != nil {
		respondError(w, err)
		return
	}

	donation, err := s.engine.Edit(r.Context(), actor, id, in)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, donation)
}

func (s *Server) handleCancelDonation(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		respondError(w, err)
		return
	}
	id, err := donationID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	donation, err := s.engine.Cancel(r.Context(), actor, id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, donation)
}

func (s *Server) handleAcceptDonation(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		respondError(w, err)
		return
	}
	id, err := donationID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	// The body is optional.
	var req acceptRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, err)
		return
	}

	acceptance, err := s.engine.Accept(r.Context(), actor, id, lifecycle.AcceptInput{
		ResponsibleName: req.ResponsibleName,
		Comments:        req.Comments,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, acceptance)
}

func (s *Server) handleListDonations(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		respondError(w, err)
		return
	}
	donations, err := s.engine.Mine(r.Context(), actor)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, donations)
}

func (s *Server) handleAvailableDonations(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		respondError(w, err)
		return
	}
	donations, err := s.engine.Available(r.Context(), actor)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, donations)
}

// handleTracking sends callers back to their donation list when the donation
// does not exist.
func (s *Server) handleTracking(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		respondError(w, err)
		return
	}
	id, err := donationID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	view, err := s.engine.Track(r.Context(), actor, id)
	if apperr.KindOf(err) == apperr.KindNotFound {
		http.Redirect(w, r, "/donations", http.StatusSeeOther)
		return
	}
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		respondError(w, err)
		return
	}
	id, err := donationID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	entries, err := s.engine.History(r.Context(), actor, id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		respondError(w, err)
		return
	}
	org, ok := actor.(lifecycle.OrganizationActor)
	if !ok {
		respondError(w, apperr.Permission("wrong_role", "only organizations can export received donations"))
		return
	}

	// Completed donations by default; status=all lifts the filter.
	status := storage.StatusDelivered
	switch q := r.URL.Query().Get("status"); q {
	case "":
	case exportAllStatuses:
		status = ""
	default:
		status = storage.DonationStatus(q)
		if !status.Valid() {
			respondError(w, apperr.Validation("invalid_status", "unknown donation status "+strconv.Quote(q)))
			return
		}
	}

	rows, err := s.reports.ReceivedReport(r.Context(), org.Organization.ID, status)
	if err != nil {
		s.logger.Error("failed to build export", zap.Int64("organization_id", org.Organization.ID), zap.Error(err))
		respondError(w, apperr.Internal("failed to build export", err))
		return
	}

	var buf bytes.Buffer
	if err := export.WriteReceived(&buf, rows); err != nil {
		s.logger.Error("failed to render export", zap.Int64("organization_id", org.Organization.ID), zap.Error(err))
		respondError(w, apperr.Internal("failed to render export", err))
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(org.Organization.ID)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn("failed to stream export", zap.Error(err))
	}
}
