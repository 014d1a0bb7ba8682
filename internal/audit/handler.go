package audit

import (
	"encoding/json"
	"strconv"

	"kitchen-backend/internal/apperr"
	"kitchen-backend/internal/models"
	"kitchen-backend/internal/pagination"
	"kitchen-backend/internal/repository"

	"github.com/gofiber/fiber/v2"
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	UserID      *uint              `json:"user_id"`
	UserName    string             `json:"user_name"`
	EntityType  string             `json:"entity_type"`
	EntityID    string             `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
	BeforeData  any                `json:"before_data"`
	AfterData   any                `json:"after_data"`
}

// GET /api/admin/audit-logs?entity_type=ingredient&entity_id=FLR-1&user_id=1
func ListAuditLogsHandler(repo repository.AuditRepository, maxLimit int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := pagination.FromQuery(c, maxLimit)
		if err != nil {
			return err
		}

		f := repository.AuditFilter{
			EntityType: c.Query("entity_type"),
			EntityID:   c.Query("entity_id"),
		}
		if s := c.Query("user_id"); s != "" {
			uid, err := strconv.ParseUint(s, 10, 64)
			if err != nil || uid == 0 {
				return apperr.Validation("user_id must be a positive integer")
			}
			u := uint(uid)
			f.UserID = &u
		}

		logs, total, err := repo.List(c.UserContext(), f, p)
		if err != nil {
			return apperr.Upstream("listing audit logs", err)
		}

		res := make([]AuditLogResponse, 0, len(logs))
		for _, l := range logs {
			res = append(res, AuditLogResponse{
				ID:          l.ID,
				CreatedAt:   l.CreatedAt.Format("2006-01-02 15:04:05"),
				UserID:      l.UserID,
				UserName:    l.UserName,
				EntityType:  l.EntityType,
				EntityID:    l.EntityID,
				Action:      l.Action,
				Description: l.Description,
				BeforeData:  rawJSON(l.BeforeData),
				AfterData:   rawJSON(l.AfterData),
			})
		}
		return c.JSON(pagination.NewEnvelope(res, p, total))
	}
}

func rawJSON(s string) any {
	if s == "" || s == "null" {
		return nil
	}
	return json.RawMessage(s)
}
