package api

import (
	"net/http"

	"github.com/Kerhoff/wishpool/internal/commitment"
	"github.com/Kerhoff/wishpool/internal/models"
	"github.com/Kerhoff/wishpool/internal/service"
)

type claimRequest struct {
	GiftID int64 `json:"giftId"`
}

type reservationResponse struct {
	Reservation *models.Reservation `json:"reservation"`
}

type contributeRequest struct {
	GiftID int64 `json:"giftId"`
	Amount int64 `json:"amount"`
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request, actorID int64) {
	var req claimRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondInvalid(w, r, commitment.OpClaim, err.Error())
		return
	}
	if req.GiftID <= 0 {
		s.respondInvalid(w, r, commitment.OpClaim, "giftId is required")
		return
	}

	res, err := s.svc.Attempt(r.Context(), service.Request{
		Kind:    service.KindReservation,
		GiftID:  req.GiftID,
		ActorID: actorID,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, reservationResponse{Reservation: res.Reservation})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request, actorID int64) {
	id, err := pathID(r)
	if err != nil {
		s.respondInvalid(w, r, commitment.OpCancel, err.Error())
		return
	}

	if err := s.svc.CancelReservation(r.Context(), id, actorID); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request, actorID int64) {
	var req contributeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondInvalid(w, r, commitment.OpContribute, err.Error())
		return
	}
	if req.GiftID <= 0 {
		s.respondInvalid(w, r, commitment.OpContribute, "giftId is required")
		return
	}

	res, err := s.svc.Attempt(r.Context(), service.Request{
		Kind:    service.KindContribution,
		GiftID:  req.GiftID,
		ActorID: actorID,
		Amount:  req.Amount,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, res.Contribution)
}

func (s *Server) handleGiftStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondInvalid(w, r, "status", err.Error())
		return
	}
	viewerID, err := s.optionalActor(r)
	if err != nil {
		s.respondError(w, r, commitment.Wrap(commitment.KindAuthFailure, "auth", err))
		return
	}

	st, err := s.svc.GiftStatus(r.Context(), id, viewerID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}
