package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/punchamoorthee/chargeops/internal/auth"
	"github.com/punchamoorthee/chargeops/internal/domain"
	"github.com/punchamoorthee/chargeops/internal/models"
	"github.com/punchamoorthee/chargeops/internal/service"
)

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decode(r, &req); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	user, err := h.svc.Users.Register(r.Context(), service.Registration{
		Name:     req.Name,
		TaxID:    req.TaxID,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, models.NewUserResponse(user))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decode(r, &req); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	token, user, err := h.svc.Users.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		User:      models.NewUserResponse(user),
	})
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	account, err := h.svc.Users.Balance(r.Context(), userID)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.NewAccountResponse(account))
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	var req models.DepositRequest
	if err := decode(r, &req); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	account, err := h.svc.Deposit.Deposit(r.Context(), userID, req.Amount)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.NewAccountResponse(account))
}

func (h *Handler) CreateCharge(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	var req models.CreateChargeRequest
	if err := decode(r, &req); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	charge, err := h.svc.Issuance.Create(r.Context(), userID, req.RecipientTaxID, req.Amount, req.Description)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/charges/%d", charge.ID))
	respondWithJSON(w, http.StatusCreated, models.NewChargeResponse(charge))
}

func (h *Handler) ListSent(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.svc.Query.ListSent)
}

func (h *Handler) ListReceived(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.svc.Query.ListReceived)
}

type lister func(ctx context.Context, userID int64, status domain.ChargeStatus) ([]domain.Charge, error)

func (h *Handler) list(w http.ResponseWriter, r *http.Request, fn lister) {
	userID, _ := auth.UserID(r.Context())
	filter := models.ChargeFilter{Status: r.URL.Query().Get("status")}
	if err := models.Validate(filter); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	charges, err := fn(r.Context(), userID, domain.ChargeStatus(filter.Status))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.NewChargeList(charges))
}

func (h *Handler) PayWithBalance(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	var req models.PayBalanceRequest
	if err := decode(r, &req); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	charge, err := h.svc.Payment.PayWithBalance(r.Context(), userID, req.ChargeID)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.NewChargeResponse(charge))
}

func (h *Handler) PayWithCard(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	var req models.PayCardRequest
	if err := decode(r, &req); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	charge, err := h.svc.Payment.PayWithCard(r.Context(), userID, service.CardPayment{
		ChargeID: req.ChargeID,
		Number:   req.CardNumber,
		Expiry:   req.Expiry,
		CVV:      req.CVV,
	})
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.NewChargeResponse(charge))
}

func (h *Handler) CancelCharge(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.respondDomainError(w, r, domain.ErrInvalidInput)
		return
	}
	charge, err := h.svc.Cancellation.Cancel(r.Context(), userID, id)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.NewChargeResponse(charge))
}
