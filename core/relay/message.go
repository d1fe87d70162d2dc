package relay

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/pyropy/qrxfer/core/collector"
	"github.com/pyropy/qrxfer/lib/checksum"
)

var ErrCorruptMessage = errors.New("relay message fingerprint mismatch")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("relay: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("relay: CBOR decoder initialization failed: " + err.Error())
	}
}

// Message is a stored chunk as it travels over the bus.
type Message struct {
	Session     string               `cbor:"1,keyasint"`
	Name        string               `cbor:"2,keyasint"`
	Content     string               `cbor:"3,keyasint"`
	ReceivedAt  int64                `cbor:"4,keyasint"`
	Fingerprint checksum.Fingerprint `cbor:"5,keyasint"`
}

func NewMessage(chunk collector.StoredChunk) Message {
	return Message{
		Session:     chunk.Session,
		Name:        chunk.Name,
		Content:     chunk.Content,
		ReceivedAt:  chunk.ReceivedAt.UnixMilli(),
		Fingerprint: checksum.SumString(chunk.Content),
	}
}

func (m Message) Chunk() collector.StoredChunk {
	return collector.StoredChunk{
		Session:    m.Session,
		Name:       m.Name,
		Content:    m.Content,
		ReceivedAt: time.UnixMilli(m.ReceivedAt).UTC(),
	}
}

func Marshal(m Message) ([]byte, error) {
	return encMode.Marshal(m)
}

// Unmarshal decodes a message and checks its content against the fingerprint.
func Unmarshal(data []byte) (Message, error) {
	var m Message
	if err := decMode.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode relay message: %w", err)
	}

	if checksum.SumString(m.Content) != m.Fingerprint {
		return Message{}, fmt.Errorf("%w: %s/%s", ErrCorruptMessage, m.Session, m.Name)
	}

	return m, nil
}
