package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"kitchen-backend/internal/models"
	"kitchen-backend/internal/repository"
)

// Actor is the authenticated user a change is attributed to.
type Actor struct {
	UserID uint
	Name   string
}

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

type LogOptions struct {
	EntityType  string
	EntityID    string
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// WriteLog stores one change entry. The actor is taken from ctx when present.
func WriteLog(ctx context.Context, repo repository.AuditRepository, opts LogOptions) error {
	// jsonb columns need the JSON literal null, not an empty string.
	beforeStr := "null"
	afterStr := "null"

	if opts.Before != nil {
		if b, err := json.Marshal(opts.Before); err == nil {
			beforeStr = string(b)
		}
	}
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterStr = string(b)
		}
	}

	entry := models.AuditLog{
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  beforeStr,
		AfterData:   afterStr,
	}
	if a, ok := ActorFrom(ctx); ok {
		uid := a.UserID
		entry.UserID = &uid
		entry.UserName = a.Name
	} else {
		entry.UserName = "system"
	}

	if err := repo.Create(ctx, &entry); err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}
	return nil
}
