package httphandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Farkhat1984/leema-react-sub002/internal/usecase"
	"github.com/Farkhat1984/leema-react-sub002/pkg/authctx"
	"github.com/Farkhat1984/leema-react-sub002/pkg/response"
	"github.com/Farkhat1984/leema-react-sub002/pkg/xerrors"
)

type IntegrationHandler struct {
	uc     *usecase.IntegrationUsecase
	orders *usecase.OrderUsecase
	sync   *usecase.SyncUsecase
}

func NewIntegrationHandler(uc *usecase.IntegrationUsecase, orders *usecase.OrderUsecase, sync *usecase.SyncUsecase) *IntegrationHandler {
	return &IntegrationHandler{uc: uc, orders: orders, sync: sync}
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, xerrors.ErrInvalidTransition),
		errors.Is(err, xerrors.ErrIllegalStatusEdge),
		errors.Is(err, xerrors.ErrInvalidInterval),
		errors.Is(err, xerrors.ErrTemplateRender),
		errors.Is(err, xerrors.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, xerrors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, xerrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, xerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, xerrors.ErrAlreadySyncing),
		errors.Is(err, xerrors.ErrSyncInProgress),
		errors.Is(err, xerrors.ErrNotificationImmutable):
		return http.StatusConflict
	case errors.Is(err, xerrors.ErrTooSoon):
		return http.StatusTooManyRequests
	case errors.Is(err, xerrors.ErrRemoteRejected):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func fail(w http.ResponseWriter, err error) {
	response.Error(w, statusFor(err), err.Error())
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *IntegrationHandler) Create(w http.ResponseWriter, r *http.Request) {
	shopID := authctx.ShopID(r.Context())

	var p usecase.CreateIntegrationParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	created, err := h.uc.Create(r.Context(), shopID, p)
	if err != nil {
		fail(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, created)
}

func (h *IntegrationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid integration id")
		return
	}

	integ, err := h.uc.Get(r.Context(), authctx.ShopID(r.Context()), id)
	if err != nil {
		fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, integ)
}

func (h *IntegrationHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.uc.List(r.Context(), authctx.ShopID(r.Context()))
	if err != nil {
		fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, items)
}

func (h *IntegrationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid integration id")
		return
	}

	var p usecase.UpdateIntegrationParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	updated, err := h.uc.Update(r.Context(), authctx.ShopID(r.Context()), id, p)
	if err != nil {
		fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, updated)
}

func (h *IntegrationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid integration id")
		return
	}

	if err := h.uc.Delete(r.Context(), authctx.ShopID(r.Context()), id); err != nil {
		fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// TriggerSync accepts the job and returns immediately; completion is
// reported over the websocket event channel.
func (h *IntegrationHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid integration id")
		return
	}

	var body struct {
		Force bool `json:"force"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	runID, err := h.sync.Trigger(r.Context(), authctx.ShopID(r.Context()), id, body.Force)
	if err != nil {
		fail(w, err)
		return
	}
	response.JSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (h *IntegrationHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid integration id")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, err := h.orders.ListByIntegration(r.Context(), authctx.ShopID(r.Context()), id, limit, offset)
	if err != nil {
		fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, items)
}
