// Package transport carries binary nodes over an encrypted, framed stream.
//
// # Layers
//
// A FrameSocket splits any io.ReadWriteCloser into frames, each a 3-byte
// big-endian length followed by the body:
//
//	fs := transport.NewFrameSocket(conn, 0)
//
// Handshake runs Noise XX over the frame socket. The initiator first writes
// the intro header, which both sides also use as the Noise prologue:
//
//	ns, err := transport.Handshake(ctx, fs, transport.HandshakeConfig{
//	    Role:     noise.Initiator,
//	    KeyStore: store,
//	    PeerJID:  server,
//	})
//
// Each handshake flight travels in a proto.HandshakeMessage envelope
// (ClientHello, ServerHello, ClientFinish); set RawMessages to exchange bare
// Noise messages with a plain Noise peer.
//
// The resulting NoiseSocket encrypts each frame with the transport cipher
// states and (un)marshals nodes with the binary package:
//
//	err = ns.SendNode(binary.NewNode("iq", map[string]string{"id": "1"}))
//	for n := range ns.ReadLoop(ctx) {
//	    fmt.Println(n)
//	}
//
// # Failure
//
// A NoiseSocket is poisoned by the first read, write, authentication or
// decoding failure. The stream is closed, the cipher states are wiped, and
// every later call returns ErrConnectionClosed. Err reports the cause. Calls
// interrupted by Close also return ErrConnectionClosed.
//
// # WebSocket
//
// WebSocketConn adapts a gorilla/websocket connection to io.ReadWriteCloser
// so the stack runs over websockets as well as plain streams.
package transport
