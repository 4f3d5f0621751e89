package message

// Option is a function type that receives a pointer to a Message and
// modifies it in place. Options are intended to customize a message
// before sending it. You can do this either by passing them as
// parameters to the New function, or by calling them directly against
// a Message.
type Option func(*Message)

// Header is an Option that adds a custom header to the message. You
// may pass as many Header options to New as you wish. If multiple
// Header's are defined for the same key, the value of the last one
// past to New will be the value that appears on the Message.
func Header(k, v string) Option {
	return func(m *Message) {
		if m.Headers == nil {
			m.Headers = make(map[string]string)
		}
		m.Headers[k] = v
	}
}

// Key is an Option that replaces the encoded key of the message.
func Key(key []byte) Option {
	return func(m *Message) {
		m.Key = key
	}
}

// ID is an Option that replaces the generated unique ID of the
// message, keeping the Message-Id header in sync.
func ID(id string) Option {
	return func(m *Message) {
		m.ID = id
		Header(HeaderID, id)(m)
	}
}
