package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/teftar/api/middleware"
	"github.com/teftar/api/models"
	"github.com/teftar/api/repositories"
	"github.com/teftar/api/utils"
	"go.uber.org/zap"
)

const msgClientNotFound = "Client not found"

// CreateClientRequest represents a request to create a client
type CreateClientRequest struct {
	ClientType   models.ClientType   `json:"client_type" validate:"required,oneof=company person"`
	CompanyName  *string             `json:"company_name,omitempty"`
	PersonName   *string             `json:"person_name,omitempty"`
	Email        *string             `json:"email,omitempty" validate:"omitempty,email"`
	PhoneNumbers models.PhoneNumbers `json:"phone_numbers,omitempty" validate:"omitempty,dive"`
	Country      *string             `json:"country,omitempty"`
	AddressLine1 *string             `json:"address_line1,omitempty"`
	AddressLine2 *string             `json:"address_line2,omitempty"`
	City         *string             `json:"city,omitempty"`
	Province     *string             `json:"province,omitempty"`
	PostalCode   *string             `json:"postal_code,omitempty"`
}

// UpdateClientRequest represents a partial update. Absent fields are kept.
type UpdateClientRequest struct {
	ClientType   *models.ClientType   `json:"client_type,omitempty" validate:"omitempty,oneof=company person"`
	CompanyName  *string              `json:"company_name,omitempty"`
	PersonName   *string              `json:"person_name,omitempty"`
	Email        *string              `json:"email,omitempty" validate:"omitempty,email"`
	PhoneNumbers *models.PhoneNumbers `json:"phone_numbers,omitempty" validate:"omitempty,dive"`
	Country      *string              `json:"country,omitempty"`
	AddressLine1 *string              `json:"address_line1,omitempty"`
	AddressLine2 *string              `json:"address_line2,omitempty"`
	City         *string              `json:"city,omitempty"`
	Province     *string              `json:"province,omitempty"`
	PostalCode   *string              `json:"postal_code,omitempty"`
}

// ClientHandler handles client-related HTTP requests
type ClientHandler struct {
	clientRepo repositories.ClientRepository
	logger     *zap.Logger
}

// NewClientHandler creates a new ClientHandler
func NewClientHandler(clientRepo repositories.ClientRepository, logger *zap.Logger) *ClientHandler {
	return &ClientHandler{
		clientRepo: clientRepo,
		logger:     logger,
	}
}

// HandleListClients handles GET /clients
func (h *ClientHandler) HandleListClients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.owner(w, r)
	if !ok {
		return
	}

	clients, err := h.clientRepo.List(ctx, userID)
	if err != nil {
		h.logger.Error("failed to fetch clients",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to fetch clients")
		return
	}

	_ = utils.WriteOK(w, clients)
}

// HandleCreateClient handles POST /clients
func (h *ClientHandler) HandleCreateClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req CreateClientRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	client := models.NewClient(userID, req.ClientType)
	client.CompanyName = req.CompanyName
	client.PersonName = req.PersonName
	client.Email = req.Email
	if req.PhoneNumbers != nil {
		client.PhoneNumbers = req.PhoneNumbers
	}
	client.Country = req.Country
	client.AddressLine1 = req.AddressLine1
	client.AddressLine2 = req.AddressLine2
	client.City = req.City
	client.Province = req.Province
	client.PostalCode = req.PostalCode

	if err := h.clientRepo.Create(ctx, client); err != nil {
		h.logger.Error("failed to create client",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to create client")
		return
	}

	h.logger.Info("client created",
		zap.String("client_id", client.ID.String()),
		zap.String("user_id", userID.String()))

	_ = utils.WriteCreated(w, client)
}

// HandleGetClient handles GET /clients/{id}
func (h *ClientHandler) HandleGetClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.owner(w, r)
	if !ok {
		return
	}
	id, ok := h.clientID(w, r)
	if !ok {
		return
	}

	client, err := h.clientRepo.GetByID(ctx, id, userID)
	if err != nil {
		h.repoError(w, r, err, "Failed to fetch client")
		return
	}

	_ = utils.WriteOK(w, client)
}

// HandleUpdateClient handles PUT /clients/{id}
func (h *ClientHandler) HandleUpdateClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.owner(w, r)
	if !ok {
		return
	}
	id, ok := h.clientID(w, r)
	if !ok {
		return
	}

	var req UpdateClientRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	client, err := h.clientRepo.Update(ctx, id, userID, models.ClientPatch{
		ClientType:   req.ClientType,
		CompanyName:  req.CompanyName,
		PersonName:   req.PersonName,
		Email:        req.Email,
		PhoneNumbers: req.PhoneNumbers,
		Country:      req.Country,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		City:         req.City,
		Province:     req.Province,
		PostalCode:   req.PostalCode,
	})
	if err != nil {
		h.repoError(w, r, err, "Failed to update client")
		return
	}

	_ = utils.WriteOK(w, client)
}

// HandleDeleteClient handles DELETE /clients/{id}
func (h *ClientHandler) HandleDeleteClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.owner(w, r)
	if !ok {
		return
	}
	id, ok := h.clientID(w, r)
	if !ok {
		return
	}

	if err := h.clientRepo.Delete(ctx, id, userID); err != nil {
		h.repoError(w, r, err, "Failed to delete client")
		return
	}

	utils.WriteNoContent(w)
}

// owner returns the authenticated account. Routes are mounted behind the
// gate, so a missing identity is a wiring fault.
func (h *ClientHandler) owner(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID := middleware.GetUserIDFromContext(r.Context())
	if userID == uuid.Nil {
		h.logger.Error("missing identity in context",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())))
		_ = utils.WriteUnauthorized(w, "Missing authorization header")
		return uuid.Nil, false
	}
	return userID, true
}

func (h *ClientHandler) clientID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid client ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *ClientHandler) repoError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if errors.Is(err, repositories.ErrNotFound) {
		_ = utils.WriteNotFound(w, msgClientNotFound)
		return
	}
	h.logger.Error(message,
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.Error(err))
	_ = utils.WriteInternalServerError(w, message)
}
