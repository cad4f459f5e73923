package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/vendor-desk/internal/chat"
	"github.com/spec-kit/vendor-desk/internal/events"
)

// ProvisioningMetrics counts provisioning failures.
type ProvisioningMetrics interface {
	RecordProvisioningFailure()
}

// ProvisioningService creates chat identities for new vendors.
type ProvisioningService struct {
	transport chat.Transport
	metrics   ProvisioningMetrics
	logger    *zap.Logger
}

// NewProvisioningService creates the service.
func NewProvisioningService(transport chat.Transport, metrics ProvisioningMetrics, logger *zap.Logger) *ProvisioningService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProvisioningService{transport: transport, metrics: metrics, logger: logger}
}

// HandleVendorCreated registers the vendor from a vendor_created event with
// the chat service. Failures are logged and counted; login repairs them.
func (p *ProvisioningService) HandleVendorCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.VendorCreatedPayload)
	if !ok {
		return fmt.Errorf("vendor_created: unexpected payload %T", event.Payload)
	}

	if err := p.transport.CreateUser(ctx, vendorChatUser(payload.UID, payload.Name, payload.Email)); err != nil {
		if p.metrics != nil {
			p.metrics.RecordProvisioningFailure()
		}
		p.logger.Error("provision vendor chat identity",
			zap.String("vendor_uid", payload.UID),
			zap.String("source", payload.Source),
			zap.Error(err))
		return err
	}
	p.logger.Info("vendor chat identity provisioned", zap.String("vendor_uid", payload.UID))
	return nil
}

func vendorChatUser(uid, name, email string) chat.User {
	return chat.User{
		UID:      uid,
		Name:     name,
		Role:     chat.RoleVendor,
		Metadata: map[string]string{"email": email},
	}
}
