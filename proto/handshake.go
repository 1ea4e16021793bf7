package proto

import "fmt"

// HandshakeMessage wraps one handshake flight. Exactly one of its fields is
// set: ClientHello for message 1, ServerHello for message 2 and ClientFinish
// for message 3.
type HandshakeMessage struct {
	ClientHello  *ClientHello
	ServerHello  *ServerHello
	ClientFinish *ClientFinish
}

// ClientHello carries the initiator's ephemeral key.
type ClientHello struct {
	Ephemeral []byte
}

// ServerHello carries the responder's ephemeral key, its encrypted static key
// and its encrypted payload (the server certificate).
type ServerHello struct {
	Ephemeral []byte
	Static    []byte
	Payload   []byte
}

// ClientFinish carries the initiator's encrypted static key and its encrypted
// ClientPayload.
type ClientFinish struct {
	Static  []byte
	Payload []byte
}

// Marshal encodes m.
func (m *HandshakeMessage) Marshal() []byte {
	var b []byte
	if m.ClientHello != nil {
		b = appendMessage(b, 2, true, m.ClientHello.marshal())
	}
	if m.ServerHello != nil {
		b = appendMessage(b, 3, true, m.ServerHello.marshal())
	}
	if m.ClientFinish != nil {
		b = appendMessage(b, 4, true, m.ClientFinish.marshal())
	}
	return b
}

// UnmarshalHandshakeMessage decodes a HandshakeMessage. Unknown fields are
// ignored.
func UnmarshalHandshakeMessage(b []byte) (*HandshakeMessage, error) {
	fields, err := parseFields(b)
	if err != nil {
		return nil, err
	}
	m := &HandshakeMessage{}
	for _, f := range fields {
		var body []byte
		switch f.num {
		case 2, 3, 4:
			if body, err = f.bytesValue(); err != nil {
				return nil, err
			}
		default:
			continue
		}
		switch f.num {
		case 2:
			m.ClientHello = &ClientHello{}
			err = m.ClientHello.unmarshal(body)
		case 3:
			m.ServerHello = &ServerHello{}
			err = m.ServerHello.unmarshal(body)
		case 4:
			m.ClientFinish = &ClientFinish{}
			err = m.ClientFinish.unmarshal(body)
		}
		if err != nil {
			return nil, fmt.Errorf("handshake message field %d: %w", f.num, err)
		}
	}
	return m, nil
}

func (m *ClientHello) marshal() []byte {
	return appendBytes(nil, 1, m.Ephemeral)
}

func (m *ClientHello) unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if f.num == 1 {
			if m.Ephemeral, err = f.bytesValue(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *ServerHello) marshal() []byte {
	b := appendBytes(nil, 1, m.Ephemeral)
	b = appendBytes(b, 2, m.Static)
	return appendBytes(b, 3, m.Payload)
}

func (m *ServerHello) unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		switch f.num {
		case 1:
			m.Ephemeral, err = f.bytesValue()
		case 2:
			m.Static, err = f.bytesValue()
		case 3:
			m.Payload, err = f.bytesValue()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *ClientFinish) marshal() []byte {
	b := appendBytes(nil, 1, m.Static)
	return appendBytes(b, 2, m.Payload)
}

func (m *ClientFinish) unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		switch f.num {
		case 1:
			m.Static, err = f.bytesValue()
		case 2:
			m.Payload, err = f.bytesValue()
		}
		if err != nil {
			return err
		}
	}
	return nil
}
