package proto

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"strconv"

	"google.golang.org/protobuf/encoding/protowire"
)

// Platform values for UserAgent.Platform.
const (
	PlatformAndroid int32 = 0
	PlatformIOS     int32 = 1
	PlatformWeb     int32 = 14
	PlatformMacOS   int32 = 24
)

// Connection metadata values.
const (
	ConnectTypeCellularUnknown int32 = 0
	ConnectTypeWiFi            int32 = 1

	ConnectReasonPush          int32 = 0
	ConnectReasonUserActivated int32 = 1

	WebSubPlatformBrowser int32 = 0
	WebSubPlatformDarwin  int32 = 1
	WebSubPlatformWin32   int32 = 2

	DNSMethodLookup   int32 = 0
	DNSMethodFallback int32 = 1

	ReleaseChannelRelease int32 = 0
	ReleaseChannelBeta    int32 = 1
)

// KeyTypeDJB prefixes Curve25519 public keys in DevicePairingData.
const KeyTypeDJB = 5

// WebVersion returns the client version advertised by NewWebClientPayload.
func WebVersion() *AppVersion {
	return &AppVersion{
		Primary:    Uint32(2),
		Secondary:  Uint32(3000),
		Tertiary:   Uint32(1012170356),
		Quaternary: Uint32(0),
		Quinary:    Uint32(0),
	}
}

// ClientPayload identifies the client to the server. It travels encrypted in
// ClientFinish.
type ClientPayload struct {
	Username            *uint64
	Passive             *bool
	UserAgent           *UserAgent
	WebInfo             *WebInfo
	PushName            *string
	SessionID           *int32
	ShortConnect        *bool
	ConnectType         *int32
	ConnectReason       *int32
	Shards              []int32
	DNSSource           *DNSSource
	ConnectAttemptCount *uint32
	Device              *uint32
	DevicePairingData   *DevicePairingData
	Product             *int32
	FbCat               []byte
	FbUserAgent         []byte
	Oc                  *bool
}

type UserAgent struct {
	Platform       *int32
	AppVersion     *AppVersion
	ReleaseChannel *int32
	MccMnc         *string
	OSVersion      *string
	Device         *string
	Lc             *string
	Locale         *string
	Manufacturer   *string
	OSBuildNumber  *string
	PhoneID        *string
}

type AppVersion struct {
	Primary    *uint32
	Secondary  *uint32
	Tertiary   *uint32
	Quaternary *uint32
	Quinary    *uint32
}

// String formats the version as dotted decimal, dropping absent trailing
// parts and trailing zeros after the third.
func (v *AppVersion) String() string {
	parts := []*uint32{v.Primary, v.Secondary, v.Tertiary, v.Quaternary, v.Quinary}
	s := ""
	for i, p := range parts {
		if p == nil || (i >= 3 && *p == 0) {
			break
		}
		if i > 0 {
			s += "."
		}
		s += strconv.FormatUint(uint64(*p), 10)
	}
	return s
}

type WebInfo struct {
	RefToken       *string
	Version        *string
	WebSubPlatform *int32
}

type DNSSource struct {
	DNSMethod *int32
	AppCached *bool
}

// DevicePairingData registers a new companion device.
type DevicePairingData struct {
	ERegID      []byte
	EKeyType    []byte
	EIdent      []byte
	ESKeyID     []byte
	ESKeyVal    []byte
	ESKeySig    []byte
	BuildHash   []byte
	DeviceProps []byte
}

// SignedPreKey is the signed prekey advertised at registration.
type SignedPreKey struct {
	ID        uint32
	Public    [32]byte
	Signature [64]byte
}

// NewWebClientPayload returns the payload a browser client sends on connect.
func NewWebClientPayload(pushName string) *ClientPayload {
	version := WebVersion()
	p := &ClientPayload{
		Passive: Bool(false),
		UserAgent: &UserAgent{
			Platform:       Int32(PlatformWeb),
			AppVersion:     version,
			ReleaseChannel: Int32(ReleaseChannelRelease),
			MccMnc:         String("000000"),
			OSVersion:      String("10.15.7"),
			Device:         String("macOS"),
			Lc:             String("US"),
			Locale:         String("en"),
			Manufacturer:   String("Google Chrome"),
			OSBuildNumber:  String("121.0.6167.184"),
		},
		WebInfo: &WebInfo{
			Version:        String(version.String()),
			WebSubPlatform: Int32(WebSubPlatformBrowser),
		},
		SessionID:     Int32(rand.Int31()),
		ShortConnect:  Bool(true),
		ConnectType:   Int32(ConnectTypeWiFi),
		ConnectReason: Int32(ConnectReasonUserActivated),
		DNSSource: &DNSSource{
			DNSMethod: Int32(DNSMethodLookup),
			AppCached: Bool(false),
		},
		ConnectAttemptCount: Uint32(0),
		Device:              Uint32(0),
		Oc:                  Bool(false),
	}
	if pushName != "" {
		p.PushName = String(pushName)
	}
	return p
}

// NewDevicePairingData builds registration data for an unpaired device. The
// signed prekey fields are left out when spk is nil.
func NewDevicePairingData(registrationID uint32, identity [32]byte, spk *SignedPreKey) *DevicePairingData {
	d := &DevicePairingData{
		ERegID:   binary.BigEndian.AppendUint32(nil, registrationID),
		EKeyType: []byte{KeyTypeDJB},
		EIdent:   append([]byte{KeyTypeDJB}, identity[:]...),
	}
	if spk != nil {
		d.ESKeyID = []byte{byte(spk.ID >> 16), byte(spk.ID >> 8), byte(spk.ID)}
		d.ESKeyVal = append([]byte{KeyTypeDJB}, spk.Public[:]...)
		d.ESKeySig = append([]byte(nil), spk.Signature[:]...)
	}
	return d
}

// Marshal encodes p.
func (p *ClientPayload) Marshal() []byte {
	b := appendUint64(nil, 1, p.Username)
	b = appendBool(b, 3, p.Passive)
	if p.UserAgent != nil {
		b = appendMessage(b, 5, true, p.UserAgent.marshal())
	}
	if p.WebInfo != nil {
		b = appendMessage(b, 6, true, p.WebInfo.marshal())
	}
	b = appendString(b, 7, p.PushName)
	b = appendInt32(b, 9, p.SessionID)
	b = appendBool(b, 10, p.ShortConnect)
	b = appendInt32(b, 12, p.ConnectType)
	b = appendInt32(b, 13, p.ConnectReason)
	if len(p.Shards) > 0 {
		var packed []byte
		for _, s := range p.Shards {
			packed = protowire.AppendVarint(packed, uint64(int64(s)))
		}
		b = appendMessage(b, 14, true, packed)
	}
	if p.DNSSource != nil {
		b = appendMessage(b, 15, true, p.DNSSource.marshal())
	}
	b = appendUint32(b, 16, p.ConnectAttemptCount)
	b = appendUint32(b, 18, p.Device)
	if p.DevicePairingData != nil {
		b = appendMessage(b, 19, true, p.DevicePairingData.marshal())
	}
	b = appendInt32(b, 20, p.Product)
	b = appendBytes(b, 21, p.FbCat)
	b = appendBytes(b, 22, p.FbUserAgent)
	return appendBool(b, 23, p.Oc)
}

// UnmarshalClientPayload decodes a ClientPayload. Unknown fields are ignored.
func UnmarshalClientPayload(b []byte) (*ClientPayload, error) {
	fields, err := parseFields(b)
	if err != nil {
		return nil, err
	}
	p := &ClientPayload{}
	for _, f := range fields {
		switch f.num {
		case 1:
			p.Username, err = f.uint64Value()
		case 3:
			p.Passive, err = f.boolValue()
		case 5:
			p.UserAgent = &UserAgent{}
			err = unmarshalEmbedded(f, p.UserAgent.unmarshal)
		case 6:
			p.WebInfo = &WebInfo{}
			err = unmarshalEmbedded(f, p.WebInfo.unmarshal)
		case 7:
			p.PushName, err = f.stringValue()
		case 9:
			p.SessionID, err = f.int32Value()
		case 10:
			p.ShortConnect, err = f.boolValue()
		case 12:
			p.ConnectType, err = f.int32Value()
		case 13:
			p.ConnectReason, err = f.int32Value()
		case 14:
			err = p.appendShards(f)
		case 15:
			p.DNSSource = &DNSSource{}
			err = unmarshalEmbedded(f, p.DNSSource.unmarshal)
		case 16:
			p.ConnectAttemptCount, err = f.uint32Value()
		case 18:
			p.Device, err = f.uint32Value()
		case 19:
			p.DevicePairingData = &DevicePairingData{}
			err = unmarshalEmbedded(f, p.DevicePairingData.unmarshal)
		case 20:
			p.Product, err = f.int32Value()
		case 21:
			p.FbCat, err = f.bytesValue()
		case 22:
			p.FbUserAgent, err = f.bytesValue()
		case 23:
			p.Oc, err = f.boolValue()
		}
		if err != nil {
			return nil, fmt.Errorf("client payload field %d: %w", f.num, err)
		}
	}
	return p, nil
}

// appendShards accepts both packed and unpacked encodings.
func (p *ClientPayload) appendShards(f field) error {
	if f.typ == protowire.VarintType {
		p.Shards = append(p.Shards, int32(f.varint))
		return nil
	}
	if f.typ != protowire.BytesType {
		return f.wrongType()
	}
	b := f.bytes
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidMessage, protowire.ParseError(n))
		}
		p.Shards = append(p.Shards, int32(v))
		b = b[n:]
	}
	return nil
}

func unmarshalEmbedded(f field, fn func([]byte) error) error {
	if f.typ != protowire.BytesType {
		return f.wrongType()
	}
	return fn(f.bytes)
}

func (u *UserAgent) marshal() []byte {
	b := appendInt32(nil, 1, u.Platform)
	if u.AppVersion != nil {
		b = appendMessage(b, 2, true, u.AppVersion.marshal())
	}
	b = appendInt32(b, 3, u.ReleaseChannel)
	b = appendString(b, 4, u.MccMnc)
	b = appendString(b, 5, u.OSVersion)
	b = appendString(b, 6, u.Device)
	b = appendString(b, 7, u.Lc)
	b = appendString(b, 8, u.Locale)
	b = appendString(b, 15, u.Manufacturer)
	b = appendString(b, 16, u.OSBuildNumber)
	return appendString(b, 31, u.PhoneID)
}

func (u *UserAgent) unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		switch f.num {
		case 1:
			u.Platform, err = f.int32Value()
		case 2:
			u.AppVersion = &AppVersion{}
			err = unmarshalEmbedded(f, u.AppVersion.unmarshal)
		case 3:
			u.ReleaseChannel, err = f.int32Value()
		case 4:
			u.MccMnc, err = f.stringValue()
		case 5:
			u.OSVersion, err = f.stringValue()
		case 6:
			u.Device, err = f.stringValue()
		case 7:
			u.Lc, err = f.stringValue()
		case 8:
			u.Locale, err = f.stringValue()
		case 15:
			u.Manufacturer, err = f.stringValue()
		case 16:
			u.OSBuildNumber, err = f.stringValue()
		case 31:
			u.PhoneID, err = f.stringValue()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (v *AppVersion) marshal() []byte {
	b := appendUint32(nil, 1, v.Primary)
	b = appendUint32(b, 2, v.Secondary)
	b = appendUint32(b, 3, v.Tertiary)
	b = appendUint32(b, 4, v.Quaternary)
	return appendUint32(b, 5, v.Quinary)
}

func (v *AppVersion) unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		switch f.num {
		case 1:
			v.Primary, err = f.uint32Value()
		case 2:
			v.Secondary, err = f.uint32Value()
		case 3:
			v.Tertiary, err = f.uint32Value()
		case 4:
			v.Quaternary, err = f.uint32Value()
		case 5:
			v.Quinary, err = f.uint32Value()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *WebInfo) marshal() []byte {
	b := appendString(nil, 1, w.RefToken)
	b = appendString(b, 2, w.Version)
	if w.WebSubPlatform != nil {
		b = appendMessage(b, 3, true, appendInt32(nil, 1, w.WebSubPlatform))
	}
	return b
}

func (w *WebInfo) unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		switch f.num {
		case 1:
			w.RefToken, err = f.stringValue()
		case 2:
			w.Version, err = f.stringValue()
		case 3:
			err = unmarshalEmbedded(f, func(body []byte) error {
				inner, err := parseFields(body)
				if err != nil {
					return err
				}
				for _, g := range inner {
					if g.num == 1 {
						if w.WebSubPlatform, err = g.int32Value(); err != nil {
							return err
						}
					}
				}
				return nil
			})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *DNSSource) marshal() []byte {
	b := appendInt32(nil, 15, d.DNSMethod)
	return appendBool(b, 16, d.AppCached)
}

func (d *DNSSource) unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		switch f.num {
		case 15:
			d.DNSMethod, err = f.int32Value()
		case 16:
			d.AppCached, err = f.boolValue()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *DevicePairingData) marshal() []byte {
	b := appendBytes(nil, 1, d.ERegID)
	b = appendBytes(b, 2, d.EKeyType)
	b = appendBytes(b, 3, d.EIdent)
	b = appendBytes(b, 4, d.ESKeyID)
	b = appendBytes(b, 5, d.ESKeyVal)
	b = appendBytes(b, 6, d.ESKeySig)
	b = appendBytes(b, 7, d.BuildHash)
	return appendBytes(b, 8, d.DeviceProps)
}

func (d *DevicePairingData) unmarshal(b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		switch f.num {
		case 1:
			d.ERegID, err = f.bytesValue()
		case 2:
			d.EKeyType, err = f.bytesValue()
		case 3:
			d.EIdent, err = f.bytesValue()
		case 4:
			d.ESKeyID, err = f.bytesValue()
		case 5:
			d.ESKeyVal, err = f.bytesValue()
		case 6:
			d.ESKeySig, err = f.bytesValue()
		case 7:
			d.BuildHash, err = f.bytesValue()
		case 8:
			d.DeviceProps, err = f.bytesValue()
		}
		if err != nil {
			return err
		}
	}
	return nil
}
