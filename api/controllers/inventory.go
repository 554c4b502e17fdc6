package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger/api/middleware"
	"github.com/angelmondragon/stockledger/api/responses"
	"github.com/angelmondragon/stockledger/api/validators"
	"github.com/angelmondragon/stockledger/internal/inventory"
	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
	"github.com/angelmondragon/stockledger/pkg/logger"
)

const (
	defaultInventoryPageSize = 20
	maxInventoryPageSize     = 100
	maxNotesLength           = 500
	maxSearchLength          = 120
)

type initializeRequest struct {
	ProductVariantID  string `json:"productVariantId" validate:"required,uuid"`
	Quantity          int    `json:"quantity" validate:"gte=0,max=2147483647"`
	LowStockThreshold int    `json:"lowStockThreshold" validate:"gte=0,max=2147483647"`
	TrackInventory    *bool  `json:"trackInventory"`
	AllowBackorder    bool   `json:"allowBackorder"`
}

type settingsRequest struct {
	LowStockThreshold *int  `json:"lowStockThreshold" validate:"omitempty,gte=0,max=2147483647"`
	TrackInventory    *bool `json:"trackInventory"`
	AllowBackorder    *bool `json:"allowBackorder"`
}

type adjustRequest struct {
	ProductVariantID string                 `json:"productVariantId" validate:"required,uuid"`
	QuantityChange   int                    `json:"quantityChange" validate:"ne=0,min=-2147483647,max=2147483647"`
	Reason           enums.AdjustmentReason `json:"reason" validate:"required,adjustment_reason"`
	Notes            *string                `json:"notes" validate:"omitempty,max=500"`
	UserID           *string                `json:"userId" validate:"omitempty,uuid"`
}

type quantityRequest struct {
	ProductVariantID string `json:"productVariantId" validate:"required,uuid"`
	Quantity         int    `json:"quantity" validate:"gt=0,max=2147483647"`
}

type adjustResponse struct {
	StockRecord *models.StockRecord     `json:"stockRecord"`
	Adjustment  *models.StockAdjustment `json:"adjustment"`
}

// InventoryList returns a filtered, sorted page of stock records with catalog labels.
func InventoryList(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.ParseQueryInt(r, "page", 1, 1, 100000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultInventoryPageSize, 1, maxInventoryPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lowOnly, err := validators.ParseQueryBool(r, "lowStockOnly")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		outOnly, err := validators.ParseQueryBool(r, "outOfStockOnly")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := r.URL.Query()
		result, err := svc.List(r.Context(), inventory.ListInput{
			Search:         validators.SanitizeString(query.Get("search"), maxSearchLength),
			LowStockOnly:   lowOnly,
			OutOfStockOnly: outOnly,
			SortBy:         strings.TrimSpace(query.Get("sortBy")),
			SortOrder:      strings.TrimSpace(query.Get("sortOrder")),
			Page:           page,
			Limit:          limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePaged(w, result.Data, result.Total, result.Page, result.Limit, result.TotalPages)
	}
}

func InventoryLowStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := svc.LowStock(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, records)
	}
}

func InventoryGetByVariant(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		variantID, err := validators.ParseUUIDParam(r, "variantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := svc.GetByVariant(r.Context(), variantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

// InventoryAvailability answers whether ?quantity=N can be claimed right now.
func InventoryAvailability(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		variantID, err := validators.ParseUUIDParam(r, "variantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if strings.TrimSpace(r.URL.Query().Get("quantity")) == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "quantity is required").WithDetails(map[string]any{"field": "quantity"}))
			return
		}
		qty, err := validators.ParseQueryInt(r, "quantity", 0, 1, 1_000_000_000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CheckAvailability(r.Context(), variantID, qty)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func InventoryInitialize(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body initializeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		variantID, err := validators.ParseUUIDField(body.ProductVariantID, "productVariantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		track := true
		if body.TrackInventory != nil {
			track = *body.TrackInventory
		}
		record, err := svc.Initialize(r.Context(), inventory.InitializeInput{
			VariantID:         variantID,
			Quantity:          body.Quantity,
			LowStockThreshold: body.LowStockThreshold,
			TrackInventory:    track,
			AllowBackorder:    body.AllowBackorder,
			ActorID:           actorPointer(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}

func InventoryUpdateSettings(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		variantID, err := validators.ParseUUIDParam(r, "variantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body settingsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := svc.UpdateSettings(r.Context(), inventory.UpdateSettingsInput{
			VariantID:         variantID,
			LowStockThreshold: body.LowStockThreshold,
			TrackInventory:    body.TrackInventory,
			AllowBackorder:    body.AllowBackorder,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

// InventoryAdjust applies a signed quantity change. userId defaults to the caller.
func InventoryAdjust(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body adjustRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		variantID, err := validators.ParseUUIDField(body.ProductVariantID, "productVariantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor := actorPointer(r)
		if body.UserID != nil {
			id, err := validators.ParseUUIDField(*body.UserID, "userId")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			actor = &id
		}
		var notes *string
		if body.Notes != nil {
			if trimmed := validators.SanitizeString(*body.Notes, maxNotesLength); trimmed != "" {
				notes = &trimmed
			}
		}

		record, adjustment, err := svc.Adjust(r.Context(), inventory.AdjustInput{
			VariantID:      variantID,
			QuantityChange: body.QuantityChange,
			Reason:         body.Reason,
			Notes:          notes,
			ActorID:        actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, adjustResponse{StockRecord: record, Adjustment: adjustment})
	}
}

func InventoryReserve(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body quantityRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variantID, err := validators.ParseUUIDField(body.ProductVariantID, "productVariantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := svc.Reserve(r.Context(), inventory.ReserveInput{
			VariantID: variantID,
			Quantity:  body.Quantity,
			ActorID:   actorPointer(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

func InventoryRelease(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body quantityRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variantID, err := validators.ParseUUIDField(body.ProductVariantID, "productVariantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := svc.Release(r.Context(), inventory.ReleaseInput{
			VariantID: variantID,
			Quantity:  body.Quantity,
			ActorID:   actorPointer(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

func InventoryHistory(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recordID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParseQueryInt(r, "page", 1, 1, 100000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultInventoryPageSize, 1, maxInventoryPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.History(r.Context(), recordID, page, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePaged(w, result.Data, result.Total, result.Page, result.Limit, result.TotalPages)
	}
}

func actorPointer(r *http.Request) *uuid.UUID {
	id, ok := middleware.ActorIDFromContext(r.Context())
	if !ok {
		return nil
	}
	return &id
}
