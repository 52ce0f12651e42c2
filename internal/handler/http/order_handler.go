package httphandler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/Farkhat1984/leema-react-sub002/internal/domain"
	"github.com/Farkhat1984/leema-react-sub002/internal/usecase"
	"github.com/Farkhat1984/leema-react-sub002/pkg/authctx"
	"github.com/Farkhat1984/leema-react-sub002/pkg/response"
	"github.com/Farkhat1984/leema-react-sub002/pkg/smsgateway"
)

type OrderHandler struct {
	orders *usecase.OrderUsecase
	ledger *usecase.NotificationUsecase
}

func NewOrderHandler(orders *usecase.OrderUsecase, ledger *usecase.NotificationUsecase) *OrderHandler {
	return &OrderHandler{orders: orders, ledger: ledger}
}

type statusUpdateRequest struct {
	TargetStatus string `json:"target_status"`
	domain.TransitionPayload
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	target := domain.OrderStatus(req.TargetStatus)
	if !target.Valid() {
		response.Error(w, http.StatusBadRequest, "unknown target_status")
		return
	}

	updated, err := h.orders.Advance(r.Context(), authctx.ShopID(r.Context()), id, target, req.TransitionPayload)
	if err != nil {
		fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, updated)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.orders.Get(r.Context(), authctx.ShopID(r.Context()), id)
	if err != nil {
		fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, o)
}

func (h *OrderHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}

	// Ownership check rides on the order read.
	if _, err := h.orders.Get(r.Context(), authctx.ShopID(r.Context()), id); err != nil {
		fail(w, err)
		return
	}

	items, err := h.ledger.ListByOrder(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, items)
}

func (h *OrderHandler) SendManual(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var body struct {
		MessageText string `json:"message_text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.MessageText == "" {
		response.Error(w, http.StatusBadRequest, "message_text is required")
		return
	}

	o, err := h.orders.Get(r.Context(), authctx.ShopID(r.Context()), id)
	if err != nil {
		fail(w, err)
		return
	}

	n, err := h.ledger.SendManual(r.Context(), o, body.MessageText)
	if err != nil {
		fail(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, n)
}

func (h *OrderHandler) RetryNotification(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	n, err := h.ledger.Retry(r.Context(), authctx.ShopID(r.Context()), id)
	if err != nil {
		fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, n)
}

// SMSDeliveryCallback receives provider delivery reports. The provider is
// outside our auth; a malformed report is answered with 400 and otherwise
// ignored.
func (h *OrderHandler) SMSDeliveryCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "unreadable body")
		return
	}
	rep, err := smsgateway.ParseDeliveryReport(body)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.ledger.HandleDeliveryReport(r.Context(), rep); err != nil {
		fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"ack": rep.MessageID})
}
