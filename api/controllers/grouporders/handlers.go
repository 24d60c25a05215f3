package grouporders

import (
	"context"
	"net/http"
	"strings"

	"github.com/supplylink/groupbuy-backend/api/responses"
	"github.com/supplylink/groupbuy-backend/api/validators"
	internal "github.com/supplylink/groupbuy-backend/internal/grouporders"
	pkgerrors "github.com/supplylink/groupbuy-backend/pkg/errors"
	"github.com/supplylink/groupbuy-backend/pkg/logger"
	"github.com/supplylink/groupbuy-backend/pkg/pagination"
)

// Create opens a new group order owned by the authenticated vendor.
func Create(svc internal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := vendorIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createGroupOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Create(r.Context(), req.toInput(vendorID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

// Detail returns the full snapshot of one group order.
func Detail(svc internal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// Recommended lists open orders the authenticated vendor could join.
func Recommended(svc internal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := vendorIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))

		list, err := svc.ListOpenFor(r.Context(), vendorID, pagination.Params{
			Limit:  limit,
			Cursor: cursor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Join commits the authenticated vendor's items to an order.
func Join(svc internal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := vendorIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req joinGroupOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Join(r.Context(), req.toInput(orderID, vendorID))
		writeOutcome(r.Context(), logg, w, dto, err)
	}
}

// Leave removes the authenticated vendor's commitment from an order.
func Leave(svc internal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := vendorIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Leave(r.Context(), orderID, vendorID)
		writeOutcome(r.Context(), logg, w, dto, err)
	}
}

// Close lets the creator close their order ahead of expiry.
func Close(svc internal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := vendorIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Close(r.Context(), orderID, vendorID)
		writeOutcome(r.Context(), logg, w, dto, err)
	}
}

// Deliver marks a confirmed order as delivered.
func Deliver(svc internal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := vendorIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.MarkDelivered(r.Context(), orderID, vendorID)
		writeOutcome(r.Context(), logg, w, dto, err)
	}
}

// writeOutcome writes either the success envelope or a rejection that carries
// the current order snapshot in the error details, so clients can re-render
// without a second fetch.
func writeOutcome(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, dto *internal.GroupOrderDTO, err error) {
	if err == nil {
		responses.WriteSuccess(w, dto)
		return
	}
	if typed := pkgerrors.As(err); typed != nil && dto != nil {
		// Rebuild rather than annotate: rejection reasons are shared
		// sentinels and must stay immutable.
		err = pkgerrors.New(typed.Code(), typed.Message()).WithDetails(map[string]any{"order": dto})
	}
	responses.WriteError(ctx, logg, w, err)
}
