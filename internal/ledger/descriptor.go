package ledger

import (
	"fmt"

	"github.com/svirmi/gift-ledger/internal/model"
)

const (
	StatusTypePayment    = "paymentStatus"
	StatusTypeDelivery   = "deliveryStatus"
	statusTypeSettlement = "settlementStatus"
)

// OperationFor maps a wire descriptor to the operation it requests. A
// cancellation must spell out Canceled for both dimensions.
func OperationFor(d model.StatusDescriptor) (Operation, error) {
	if d.ID == "" {
		return "", fmt.Errorf("descriptor is missing id: %w", model.ErrValidation)
	}

	if d.NewStatus == model.StatusCanceled {
		if d.PaymentStatus != model.StatusCanceled || d.DeliveryStatus != model.StatusCanceled {
			return "", fmt.Errorf("transaction %s: cancel must set both paymentStatus and deliveryStatus to Canceled: %w",
				d.ID, model.ErrValidation)
		}
		return OpCancel, nil
	}

	switch d.StatusType {
	case StatusTypePayment, statusTypeSettlement:
		if d.NewStatus == model.StatusCompleted {
			return OpPay, nil
		}
	case StatusTypeDelivery:
		if d.NewStatus == model.StatusCompleted || d.NewStatus == model.StatusDelivered {
			return OpDeliver, nil
		}
	default:
		return "", fmt.Errorf("transaction %s: unknown statusType %q: %w", d.ID, d.StatusType, model.ErrValidation)
	}

	return "", fmt.Errorf("transaction %s: %s cannot be set to %q: %w",
		d.ID, d.StatusType, d.NewStatus, model.ErrValidation)
}

// DescriptorFor builds the wire descriptor requesting op on id.
func DescriptorFor(id string, op Operation) model.StatusDescriptor {
	switch op {
	case OpDeliver:
		return model.StatusDescriptor{ID: id, StatusType: StatusTypeDelivery, NewStatus: model.StatusCompleted}
	case OpCancel:
		return model.StatusDescriptor{
			ID:             id,
			StatusType:     StatusTypePayment,
			NewStatus:      model.StatusCanceled,
			PaymentStatus:  model.StatusCanceled,
			DeliveryStatus: model.StatusCanceled,
		}
	default:
		return model.StatusDescriptor{ID: id, StatusType: StatusTypePayment, NewStatus: model.StatusCompleted}
	}
}
