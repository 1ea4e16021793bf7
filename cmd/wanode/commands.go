package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/wacore/binary"
	"github.com/opd-ai/wacore/config"
	"github.com/opd-ai/wacore/noise"
	"github.com/opd-ai/wacore/pairing"
	"github.com/opd-ai/wacore/proto"
	"github.com/opd-ai/wacore/store"
	"github.com/opd-ai/wacore/store/boltstore"
	"github.com/opd-ai/wacore/store/sqlstore"
	"github.com/opd-ai/wacore/transport"
	"github.com/opd-ai/wacore/types"
)

func openStore(cfg *config.Config) (*store.Container, error) {
	var (
		backend store.Backend
		err     error
	)
	switch cfg.Store.Backend {
	case config.BackendBolt:
		backend, err = boltstore.Open(cfg.Store.Path)
	case config.BackendSQLite:
		backend, err = sqlstore.Open(cfg.Store.Path)
	default:
		backend = store.NewMemoryStore()
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	return store.New(backend), nil
}

func runKeygen(cfg *config.Config, out io.Writer) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	d, created, err := st.EnsureDevice()
	if err != nil {
		return err
	}
	state := "existing"
	if created {
		state = "new"
	}
	fmt.Fprintf(out, "device:          %s\n", state)
	fmt.Fprintf(out, "noise key:       %x\n", d.NoiseKey.Public)
	fmt.Fprintf(out, "identity key:    %x\n", d.IdentityKey.Public)
	fmt.Fprintf(out, "registration id: %d\n", d.RegistrationID)
	if d.IsRegistered() {
		fmt.Fprintf(out, "jid:             %s\n", d.ID)
	}
	return nil
}

func runQR(ctx context.Context, cfg *config.Config, codes int, out io.Writer) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	d, _, err := st.EnsureDevice()
	if err != nil {
		return err
	}
	session, err := pairing.NewSession(d, codes)
	if err != nil {
		return err
	}
	if codes == 1 {
		fmt.Fprintln(out, session.Codes()[0])
		return nil
	}
	return session.Run(ctx, func(code string, timeout time.Duration) {
		fmt.Fprintf(out, "%s (valid %s)\n", code, timeout)
	})
}

func runDecode(in io.Reader, raw bool, out io.Writer) error {
	text, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	data, err := hex.DecodeString(strings.Join(strings.Fields(string(text)), ""))
	if err != nil {
		return fmt.Errorf("input is not hex: %w", err)
	}

	var n *binary.Node
	if raw {
		n, err = binary.Decode(data)
	} else {
		n, err = binary.Unmarshal(data)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, n.XMLString())
	return nil
}

// clientPayload builds the ClientPayload sent in the final handshake flight:
// a login for a registered device, registration data otherwise.
func clientPayload(d *store.Device) ([]byte, error) {
	p := proto.NewWebClientPayload(d.PushName)
	if d.IsRegistered() {
		user, err := strconv.ParseUint(d.ID.User, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("device jid %s: %w", d.ID, err)
		}
		p.Username = proto.Uint64(user)
		p.Device = proto.Uint32(uint32(d.ID.Device))
		return p.Marshal(), nil
	}
	p.DevicePairingData = proto.NewDevicePairingData(d.RegistrationID, d.IdentityKey.Public, nil)
	return p.Marshal(), nil
}

// runLoopback handshakes two in-memory peers and sends one message node from
// the client to the server. The server key is generated per run, so the
// client neither pins nor remembers it.
func runLoopback(ctx context.Context, cfg *config.Config, out io.Writer) error {
	clientStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer clientStore.Close()
	d, _, err := clientStore.EnsureDevice()
	if err != nil {
		return err
	}
	payload, err := clientPayload(d)
	if err != nil {
		return err
	}

	serverStore := store.New(store.NewMemoryStore())
	if _, _, err := serverStore.EnsureDevice(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Transport.HandshakeTimeout)
	defer cancel()

	a, b := net.Pipe()
	type result struct {
		client *proto.ClientPayload
		node   *binary.Node
		err    error
	}
	done := make(chan result, 1)
	go func() {
		ns, err := transport.Handshake(ctx, transport.NewFrameSocket(b, cfg.Transport.MaxFrameSize), transport.HandshakeConfig{
			Role:     noise.Responder,
			KeyStore: serverStore,
			Payload:  []byte("loopback server"),
		})
		if err != nil {
			done <- result{err: err}
			return
		}
		defer ns.Close()
		cp, err := proto.UnmarshalClientPayload(ns.RemotePayload())
		if err != nil {
			done <- result{err: err}
			return
		}
		n, err := ns.ReceiveNode()
		done <- result{cp, n, err}
	}()

	ns, err := transport.Handshake(ctx, transport.NewFrameSocket(a, cfg.Transport.MaxFrameSize), transport.HandshakeConfig{
		Role:     noise.Initiator,
		KeyStore: clientStore,
		Payload:  payload,
	})
	if err != nil {
		return err
	}
	defer ns.Close()

	fmt.Fprintf(out, "handshake hash: %x\n", ns.HandshakeHash())
	fmt.Fprintf(out, "server payload: %s\n", ns.RemotePayload())

	msg := binary.NewParentNode("message",
		map[string]string{"to": "123@" + types.DefaultUserServer, "id": "1", "type": "text"},
		binary.NewBytesNode("body", nil, []byte("hi")))
	if err := ns.SendNode(msg); err != nil {
		return err
	}

	select {
	case res := <-done:
		if res.err != nil {
			return res.err
		}
		if ua := res.client.UserAgent; ua != nil && ua.AppVersion != nil {
			fmt.Fprintf(out, "client version: %s\n", ua.AppVersion)
		}
		fmt.Fprintln(out, res.node.XMLString())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func runDial(ctx context.Context, cfg *config.Config, out io.Writer) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	d, _, err := st.EnsureDevice()
	if err != nil {
		return err
	}
	payload, err := clientPayload(d)
	if err != nil {
		return err
	}

	hsCtx, cancel := context.WithTimeout(ctx, cfg.Transport.HandshakeTimeout)
	defer cancel()

	conn, err := transport.DialWebSocket(hsCtx, cfg.Transport.Endpoint, cfg.Transport.Origin)
	if err != nil {
		return err
	}
	ns, err := transport.Handshake(hsCtx, transport.NewFrameSocket(conn, cfg.Transport.MaxFrameSize), transport.HandshakeConfig{
		Role:     noise.Initiator,
		KeyStore: st,
		PeerJID:  types.NewJID("", types.DefaultUserServer),
		Payload:  payload,
	})
	if err != nil {
		return err
	}
	defer ns.Close()

	logrus.WithFields(logrus.Fields{
		"function": "runDial",
		"endpoint": cfg.Transport.Endpoint,
	}).Info("Connected")

	for n := range ns.ReadLoop(ctx) {
		fmt.Fprintln(out, n.XMLString())
	}
	if err := ns.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
