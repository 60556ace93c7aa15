package fixtures

import (
	"errors"

	es "github.com/terraskye/eventsourcing-core"
)

type CartStatus int

const (
	CartEmpty CartStatus = iota
	CartOpen
	CartConfirmedStatus
)

var ErrCartClosed = errors.New("cart is not open")

// Cart is a small event-sourced aggregate used across package tests.
type Cart struct {
	es.AggregateBase

	ClientID string
	Status   CartStatus
	Items    int
}

// NewCart opens a cart, raising CartOpened.
func NewCart(id, clientID string) *Cart {
	c := &Cart{AggregateBase: es.NewAggregateBase(id)}
	es.Enqueue(c, CartOpened{CartID: id, ClientID: clientID})
	return c
}

// BlankCart is the replay factory.
func BlankCart() *Cart {
	return &Cart{}
}

func (c *Cart) AddProduct(productID string, quantity int) error {
	if c.Status != CartOpen {
		return ErrCartClosed
	}
	es.Enqueue(c, ProductAdded{CartID: c.AggregateID(), ProductID: productID, Quantity: quantity})
	return nil
}

func (c *Cart) Confirm() error {
	if c.Status != CartOpen {
		return ErrCartClosed
	}
	es.Enqueue(c, CartConfirmed{CartID: c.AggregateID()})
	return nil
}

func (c *Cart) Apply(event es.Event) {
	switch e := event.(type) {
	case CartOpened:
		c.SetAggregateID(e.CartID)
		c.ClientID = e.ClientID
		c.Status = CartOpen
	case ProductAdded:
		c.Items += e.Quantity
	case CartConfirmed:
		c.Status = CartConfirmedStatus
	}
}

// CartState is the state of the cart decider.
type CartState struct {
	Open      bool
	Confirmed bool
	Items     int
}

// CartDecider decides cart commands without an aggregate object.
var CartDecider = es.Decider[CartState, es.Command, es.Event]{
	Decide: func(command es.Command, state CartState) ([]es.Event, error) {
		switch c := command.(type) {
		case OpenCart:
			if state.Open {
				return nil, errors.New("cart already opened")
			}
			return []es.Event{CartOpened{CartID: c.CartID, ClientID: c.ClientID}}, nil
		case AddProduct:
			if !state.Open || state.Confirmed {
				return nil, ErrCartClosed
			}
			return []es.Event{ProductAdded{CartID: c.CartID, ProductID: c.ProductID, Quantity: c.Quantity}}, nil
		case ConfirmCart:
			if !state.Open || state.Confirmed {
				return nil, ErrCartClosed
			}
			return []es.Event{CartConfirmed{CartID: c.CartID}}, nil
		}
		return nil, nil
	},
	Evolve: func(state CartState, event es.Event) CartState {
		switch e := event.(type) {
		case CartOpened:
			state.Open = true
		case ProductAdded:
			state.Items += e.Quantity
		case CartConfirmed:
			state.Confirmed = true
		}
		return state
	},
	InitialState: func() CartState { return CartState{} },
}
