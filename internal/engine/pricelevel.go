package engine

// priceLevel is a FIFO queue of resting orders at one price, plus a cached
// aggregate of their remaining volume so top-of-book reporting is O(1).
type priceLevel struct {
	price  int64
	orders []*Order
	volume uint32
}

func newPriceLevel(price int64) *priceLevel {
	return &priceLevel{price: price}
}

func (l *priceLevel) push(order *Order) {
	l.orders = append(l.orders, order)
	l.volume += order.Remaining
}

// dropFront removes n fully-consumed orders from the front of the queue.
func (l *priceLevel) dropFront(n int) {
	l.orders = l.orders[n:]
}

func (l *priceLevel) empty() bool {
	return len(l.orders) == 0
}

// remove deletes a specific order from the level (used by amend/cancel of a
// resting order that is not at the head of the queue) and adjusts the
// cached aggregate by delta.
func (l *priceLevel) remove(order *Order, delta uint32) {
	for i, o := range l.orders {
		if o == order {
			l.orders = append(l.orders[:i], l.orders[i+1:]...)
			break
		}
	}
	l.volume -= delta
}
