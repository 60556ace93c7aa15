package fixtures

type GetCart struct {
	CartID string
}

type ListCarts struct {
	ClientID string
}

type CartSummary struct {
	CartID    string
	Items     int
	Confirmed bool
}
