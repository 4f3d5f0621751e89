package producer

// Model is a value that can be produced. Key returns the value encoded
// as the routing key of the message.
//
// The payload of the message is the model itself, unless the model
// also implements Payloader.
type Model interface {
	Key() interface{}
}

// Payloader is implemented by models whose payload differs from the
// model itself. A nil payload produces a message without value.
type Payloader interface {
	Payload() (interface{}, error)
}

// Pair is a model made of a key and a payload.
//
//	p.Produce(ctx, "orders", producer.Pair{"order-created", order})
type Pair [2]interface{}

// Key returns the first element of the pair.
func (p Pair) Key() interface{} { return p[0] }

// Payload returns the second element of the pair.
func (p Pair) Payload() (interface{}, error) { return p[1], nil }

// Keyed returns a model with the given key and payload.
func Keyed(key, payload interface{}) Model {
	return Pair{key, payload}
}

func payloadOf(m Model) (interface{}, error) {
	if p, ok := m.(Payloader); ok {
		return p.Payload()
	}
	return m, nil
}
