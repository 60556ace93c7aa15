package fixtures

import (
	es "github.com/terraskye/eventsourcing-core"
)

// ShippingRequested is recorded by ShippingProcess before it asks for shipping.
type ShippingRequested struct {
	CartID string `json:"cartId"`
}

// ShippingProcess ships every confirmed cart once.
type ShippingProcess struct {
	es.ProcessManagerBase

	Requested bool
}

func NewShippingProcess(id string) *ShippingProcess {
	return &ShippingProcess{ProcessManagerBase: es.NewProcessManagerBase(id)}
}

func (p *ShippingProcess) OnCartConfirmed(e CartConfirmed) {
	if p.Requested {
		return
	}
	p.Requested = true
	p.EnqueueEvent(ShippingRequested{CartID: e.CartID})
	p.ScheduleCommand(ShipCart{CartID: e.CartID})
}
