package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
)

// Dispatcher writes inbox notifications of a single type.
type Dispatcher struct {
	repo Repository
	kind enums.NotificationType
}

// NewDispatcher binds a repository to the notification type it will emit.
func NewDispatcher(repo Repository, kind enums.NotificationType) (*Dispatcher, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if !kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid notification type %q", kind))
	}
	return &Dispatcher{repo: repo, kind: kind}, nil
}

// Send stores one notification in the recipient's inbox.
func (d *Dispatcher) Send(ctx context.Context, recipientID uuid.UUID, title, message string, metadata map[string]any) error {
	if recipientID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}
	if title == "" || message == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "title and message are required")
	}

	var raw json.RawMessage
	if len(metadata) > 0 {
		encoded, err := json.Marshal(metadata)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode notification metadata")
		}
		raw = encoded
	}

	notification := &models.Notification{
		UserID:   recipientID,
		Type:     d.kind,
		Title:    title,
		Message:  message,
		Metadata: raw,
	}
	if err := d.repo.Create(ctx, notification); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	return nil
}
