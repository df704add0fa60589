package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/harrierhq/harrier/internal/domain"
)

// CheckRequest asks the worker pool to run one transaction through the
// detection pipeline. Published on TopicCheckRequested.
type CheckRequest struct {
	OrgID       string                    `json:"orgId"`
	TraceID     string                    `json:"traceId,omitempty"`
	CountryCode string                    `json:"countryCode,omitempty"`
	Transaction domain.TransactionRequest `json:"transaction"`
}

// CheckCompleted carries a finished check result. Published on
// TopicCheckCompleted for every processed check.
type CheckCompleted struct {
	OrgID   string                  `json:"orgId"`
	TraceID string                  `json:"traceId,omitempty"`
	Result  domain.FraudCheckResult `json:"result"`
}

// AlertRaised notifies downstream consumers that a check produced fraud
// signals. Published on TopicAlertRaised.
type AlertRaised struct {
	OrgID             string              `json:"orgId"`
	TransactionID     string              `json:"transactionId"`
	RecommendedAction domain.Action       `json:"recommendedAction"`
	Alerts            []domain.FraudAlert `json:"alerts"`
}

// CheckRequestHandler processes one decoded check request.
type CheckRequestHandler func(ctx context.Context, req CheckRequest) error

// PublishCheckRequest queues a transaction for async checking.
func PublishCheckRequest(ctx context.Context, b domain.EventBus, req CheckRequest) error {
	if req.OrgID == "" {
		return fmt.Errorf("orgID is required")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal check request: %w", err)
	}
	return b.Publish(ctx, req.OrgID, domain.TopicCheckRequested, payload)
}

// SubscribeCheckRequests joins the named queue group for pending checks,
// so a pool of workers shares the load without double-processing. An
// empty OrgID or TraceID in the request falls back to the envelope's.
func SubscribeCheckRequests(ctx context.Context, b domain.EventBus, orgID, group string, handler CheckRequestHandler) (domain.Subscription, error) {
	return b.QueueSubscribe(ctx, orgID, domain.TopicCheckRequested, group, func(ctx context.Context, msg *domain.Message) error {
		var req CheckRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return fmt.Errorf("malformed check request %s: %w", msg.ID, err)
		}
		if req.OrgID == "" {
			req.OrgID = msg.OrgID
		}
		if req.TraceID == "" {
			req.TraceID = msg.ID
		}
		return handler(ctx, req)
	})
}

// PublishCheckCompleted announces a finished check on the org's
// completed topic.
func PublishCheckCompleted(ctx context.Context, b domain.EventBus, traceID string, result *domain.FraudCheckResult) error {
	payload, err := json.Marshal(CheckCompleted{
		OrgID:   result.OrgID,
		TraceID: traceID,
		Result:  *result,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal check completion: %w", err)
	}
	return b.Publish(ctx, result.OrgID, domain.TopicCheckCompleted, payload)
}

// PublishAlertRaised announces a check that produced fraud signals.
func PublishAlertRaised(ctx context.Context, b domain.EventBus, result *domain.FraudCheckResult) error {
	payload, err := json.Marshal(AlertRaised{
		OrgID:             result.OrgID,
		TransactionID:     result.TransactionID,
		RecommendedAction: result.RecommendedAction,
		Alerts:            result.Alerts,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal alert notification: %w", err)
	}
	return b.Publish(ctx, result.OrgID, domain.TopicAlertRaised, payload)
}
