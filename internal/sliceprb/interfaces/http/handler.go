package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"oran-rapps/internal/actuation/nssmf"
	"oran-rapps/internal/observability/logging"
	"oran-rapps/internal/observability/metrics"
	"oran-rapps/internal/reconcile"
)

// NotificationPath is where the NSSMF posts file-ready notifications.
const NotificationPath = "/handleFileReadyNotification"

// Trigger runs one guarded reconciliation cycle.
type Trigger interface {
	RunOnce(ctx context.Context) (reconcile.Outcome, error)
}

// NotificationHandler turns file-ready notifications into cycles.
type NotificationHandler struct {
	trigger Trigger
	logger  *zap.SugaredLogger
}

// NewNotificationHandler constructs the handler.
func NewNotificationHandler(trigger Trigger, logger *zap.SugaredLogger) (*NotificationHandler, error) {
	if trigger == nil {
		return nil, errors.New("notification handler: nil trigger")
	}
	return &NotificationHandler{trigger: trigger, logger: logging.OrNop(logger)}, nil
}

type response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ServeHTTP serves POST /handleFileReadyNotification. Each accepted
// notification runs at most one cycle; a busy loop answers "skipped".
func (h *NotificationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil || len(raw) == 0 {
		metrics.IncNotification("invalid")
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Message: "invalid JSON payload"})
		return
	}
	var notification nssmf.FileReadyNotification
	if err := remarshal(raw, &notification); err != nil {
		metrics.IncNotification("invalid")
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Message: "invalid notification: " + err.Error()})
		return
	}
	h.logger.Infow("file ready notification received",
		"notification_id", notification.NotificationHeader.NotificationID,
		"notification_type", notification.NotificationHeader.NotificationType,
		"files", len(notification.FileInfoList))

	outcome, err := h.trigger.RunOnce(context.WithoutCancel(r.Context()))
	if err != nil {
		metrics.IncNotification(metrics.ResultError)
		h.logger.Errorw("cycle triggered by notification failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, response{Status: "error", Message: "inference failed: " + err.Error()})
		return
	}
	if outcome == reconcile.OutcomeSkipped {
		metrics.IncNotification(metrics.ResultSkipped)
		writeJSON(w, http.StatusOK, response{Status: "skipped", Message: "previous cycle still running"})
		return
	}
	metrics.IncNotification(metrics.ResultSuccess)
	writeJSON(w, http.StatusOK, response{Status: "success", Message: "notification received and inference triggered"})
}

func remarshal(raw map[string]json.RawMessage, out any) error {
	payload, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, out)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
