package fixtures

import (
	"fmt"
)

// CartOpened is the creation event of the Cart test aggregate.
type CartOpened struct {
	CartID   string `json:"cartId"`
	ClientID string `json:"clientId"`
}

type ProductAdded struct {
	CartID    string `json:"cartId"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type CartConfirmed struct {
	CartID string `json:"cartId"`
}

// CartShipped leaves the process through an ExternalEventProducer.
type CartShipped struct {
	CartID string `json:"cartId"`
}

func (CartShipped) ExternalEvent() {}

// UnknownEvent is not handled by any test aggregate.
type UnknownEvent struct {
	Note string `json:"note"`
}

// ProductAddedBuilder provides a fluent API for constructing test events.
type ProductAddedBuilder struct {
	cartID    string
	productID string
	quantity  int
}

// NewProductAdded creates a new ProductAddedBuilder with sensible defaults.
func NewProductAdded() *ProductAddedBuilder {
	return &ProductAddedBuilder{
		cartID:    "cart-1",
		productID: "product",
		quantity:  1,
	}
}

func (b *ProductAddedBuilder) WithCartID(id string) *ProductAddedBuilder {
	b.cartID = id
	return b
}

func (b *ProductAddedBuilder) WithQuantity(q int) *ProductAddedBuilder {
	b.quantity = q
	return b
}

func (b *ProductAddedBuilder) Build() ProductAdded {
	return ProductAdded{CartID: b.cartID, ProductID: b.productID, Quantity: b.quantity}
}

// BuildN creates n events with sequential product ids.
func (b *ProductAddedBuilder) BuildN(n int) []any {
	events := make([]any, n)
	for i := 0; i < n; i++ {
		events[i] = ProductAdded{
			CartID:    b.cartID,
			ProductID: fmt.Sprintf("%s-%d", b.productID, i+1),
			Quantity:  b.quantity,
		}
	}
	return events
}
