// Copyright 2026 OtaFlux Authors.
// SPDX-License-Identifier: AGPL-3.0

package webhook

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	. "github.com/onsi/gomega"

	"github.com/otaflux/otaflux/internal/firmware"
)

type fakeRefresher struct {
	calls  int
	device firmware.DeviceId
	tag    string
	entry  *firmware.Entry
	err    error
}

func (f *fakeRefresher) Refresh(_ context.Context, device firmware.DeviceId, tag string) (*firmware.Entry, error) {
	f.calls++
	f.device, f.tag = device, tag
	return f.entry, f.err
}

const pushBody = `{
	"type": "PUSH_ARTIFACT",
	"event_data": {
		"repository": {"name": "fw-esp32-sensor"},
		"resources": [{"tag": "0.2.0"}]
	}
}`

func TestHandler_PushEventTriggersRefresh(t *testing.T) {
	g := NewWithT(t)
	r := &fakeRefresher{entry: &firmware.Entry{}}
	h := New(r, logr.Discard())

	ok := h.Handle(context.Background(), []byte(pushBody))
	g.Expect(ok).To(BeTrue())
	g.Expect(r.calls).To(Equal(1))
	g.Expect(r.device).To(Equal(firmware.DeviceId("fw-esp32-sensor")))
	g.Expect(r.tag).To(Equal("0.2.0"))
}

func TestHandler_NonPushEventIsIgnored(t *testing.T) {
	g := NewWithT(t)
	r := &fakeRefresher{}
	h := New(r, logr.Discard())

	ok := h.Handle(context.Background(), []byte(`{"type": "DELETE_ARTIFACT"}`))
	g.Expect(ok).To(BeTrue())
	g.Expect(r.calls).To(Equal(0))
}

func TestHandler_MalformedBodyFailsParse(t *testing.T) {
	g := NewWithT(t)
	r := &fakeRefresher{}
	h := New(r, logr.Discard())

	ok := h.Handle(context.Background(), []byte(`not json`))
	g.Expect(ok).To(BeFalse())
	g.Expect(r.calls).To(Equal(0))
}

func TestHandler_RefreshFailureStillAcknowledges(t *testing.T) {
	g := NewWithT(t)
	r := &fakeRefresher{err: firmware.NewNoFirmwareError("fw-esp32-sensor")}
	h := New(r, logr.Discard())

	ok := h.Handle(context.Background(), []byte(pushBody))
	g.Expect(ok).To(BeTrue())
	g.Expect(r.calls).To(Equal(1))
}
