package engine

// OrderListener is notified of everything that happens to an order it owns.
// The competitor state machine and the market-events reader both implement
// this interface: the former for client orders, the latter for the
// synthetic orders it scripts against the book.
type OrderListener interface {
	// OnOrderPlaced fires when an order rests in the book with no fill yet
	// having occurred. A partially-filled order never gets this callback;
	// its first callback is OnOrderFilled, which already carries enough
	// information for an order-status reply.
	OnOrderPlaced(order *Order)
	// OnOrderFilled fires once per matched price level touched by this
	// order, carrying the price/volume/fee of that specific fill.
	OnOrderFilled(order *Order, price int64, volume uint32, fee int64)
	// OnOrderAmended fires when an order's volume is reduced in place,
	// carrying the volume removed from the book.
	OnOrderAmended(order *Order, removedVolume uint32)
	// OnOrderCancelled fires when an order's full remaining volume is
	// pulled from the book, including the residual cancel of a
	// fill-and-kill order and a no-liquidity fill-and-kill insert.
	// removedVolume is the volume that was resting immediately before the
	// cancel (order.Remaining is already zero by the time this fires).
	OnOrderCancelled(order *Order, removedVolume uint32)
}

// Order is a single resting or transient instruction against one of the two
// books. ClientOrderID is the identity supplied by the owning competitor
// (or, for synthetic orders, assigned by the market-events reader); it is
// never reassigned by the book.
type Order struct {
	ClientOrderID uint32
	Instrument    Instrument
	Side          Side
	Lifespan      Lifespan
	Price         int64
	Volume        uint32
	Remaining     uint32
	Fees          int64

	listener OrderListener
}

// NewOrder constructs an order ready for Insert. Remaining starts equal to
// Volume.
func NewOrder(listener OrderListener, coid uint32, instrument Instrument, side Side, lifespan Lifespan, price int64, volume uint32) *Order {
	return &Order{
		ClientOrderID: coid,
		Instrument:    instrument,
		Side:          side,
		Lifespan:      lifespan,
		Price:         price,
		Volume:        volume,
		Remaining:     volume,
		listener:      listener,
	}
}

// Filled reports whether the order has no remaining volume.
func (o *Order) Filled() bool {
	return o.Remaining == 0
}
