// Copyright 2026 OtaFlux Authors.
// SPDX-License-Identifier: AGPL-3.0

// Package webhook implements the Webhook Ingress Adapter: translating a
// Harbor-shaped artifact-push event into a Firmware Manager refresh.
package webhook

import (
	"context"
	"encoding/json"
	"path"

	"github.com/go-logr/logr"

	"github.com/otaflux/otaflux/internal/firmware"
)

// pushEventType is the only event `type` value the Adapter acts on; every
// other value is acknowledged without side effects, per spec.md §4.6.
const pushEventType = "PUSH_ARTIFACT"

// payload mirrors just the fields of a Harbor webhook body OtaFlux reads.
// It is decoded loosely with encoding/json, the teacher's preference for
// informal upstream inputs, rather than against a generated schema.
type payload struct {
	Type      string `json:"type"`
	EventData struct {
		Repository struct {
			Name string `json:"name"`
		} `json:"repository"`
		Resources []struct {
			Tag string `json:"tag"`
		} `json:"resources"`
	} `json:"event_data"`
}

// Refresher is the subset of internal/manager.Manager the Adapter
// depends on.
type Refresher interface {
	Refresh(ctx context.Context, device firmware.DeviceId, tag string) (*firmware.Entry, error)
}

// Handler parses webhook bodies and drives Refresher.Refresh.
type Handler struct {
	refresher Refresher
	log       logr.Logger
}

// New constructs a Handler.
func New(refresher Refresher, log logr.Logger) *Handler {
	return &Handler{refresher: refresher, log: log}
}

// Handle parses body and, for a push event, calls Refresh. It returns
// ok=false only when body could not be parsed at all — every other
// outcome (wrong event type, refresh failure) is acknowledged, per
// spec.md §4.6's "always 200 except on parse failure" contract.
func (h *Handler) Handle(ctx context.Context, body []byte) (ok bool) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		h.log.V(1).Info("webhook body did not parse as JSON", "error", err.Error())
		return false
	}

	if p.Type != pushEventType {
		h.log.V(1).Info("ignoring non-push webhook event", "type", p.Type)
		return true
	}

	device := firmware.DeviceId(path.Base(p.EventData.Repository.Name))
	var tag string
	if len(p.EventData.Resources) > 0 {
		tag = p.EventData.Resources[0].Tag
	}

	if _, err := h.refresher.Refresh(ctx, device, tag); err != nil {
		h.log.Error(err, "refresh from webhook failed", "device", device, "tag", tag)
	}
	return true
}
