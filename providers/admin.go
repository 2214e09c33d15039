package providers

import (
	"encoding/json"
	"errors"
	"sort"

	"github.com/gofiber/fiber/v3"
	"github.com/orchestra-mcp/notify/src/service"
	"github.com/orchestra-mcp/notify/src/types"
)

// publishRequest is the body of POST /api/tenants/:tenant/events.
type publishRequest struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

func (r *Relay) handleListClients(c fiber.Ctx) error {
	ids := r.service.ConnectedClients()
	infos := make([]types.ClientInfo, 0, len(ids))
	for _, id := range ids {
		if info, err := r.service.ClientInfo(id); err == nil {
			infos = append(infos, *info)
		}
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ConnectedAt.Before(infos[j].ConnectedAt)
	})
	return c.JSON(fiber.Map{
		"clients": infos,
		"count":   len(infos),
	})
}

func (r *Relay) handleListTenants(c fiber.Ctx) error {
	tenants := r.service.Tenants()
	result := make([]fiber.Map, 0, len(tenants))
	for id, count := range tenants {
		result = append(result, fiber.Map{
			"tenant":  id,
			"sockets": count,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i]["tenant"].(string) < result[j]["tenant"].(string)
	})
	return c.JSON(fiber.Map{"tenants": result, "count": len(result)})
}

func (r *Relay) handlePublish(c fiber.Ctx) error {
	tenant := c.Params("tenant")

	var req publishRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_body",
			"message": err.Error(),
		})
	}

	if err := r.service.Publish(tenant, req.Event, req.Payload); err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, service.ErrInvalidMessage) {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{
			"error":   "publish_failed",
			"message": err.Error(),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"published": true,
		"tenant":    tenant,
		"event":     req.Event,
	})
}
