package fixtures

type OpenCart struct {
	CartID   string
	ClientID string
}

func (c OpenCart) AggregateID() string { return c.CartID }

type AddProduct struct {
	CartID    string
	ProductID string
	Quantity  int
}

func (c AddProduct) AggregateID() string { return c.CartID }

type ConfirmCart struct {
	CartID string
}

func (c ConfirmCart) AggregateID() string { return c.CartID }

// UnhandledCommand has no handler anywhere.
type UnhandledCommand struct{}

// ShipCart is scheduled by ShippingProcess once a cart is confirmed.
type ShipCart struct {
	CartID string
}

func (c ShipCart) AggregateID() string { return c.CartID }
