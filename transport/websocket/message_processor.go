package websocket

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/entity"
)

// Frame opcodes the server deals with (RFC 6455, section 5.2).
const (
	opcodeText  byte = 0x1
	opcodeClose byte = 0x8
)

// frame represents a WebSocket frame and its metadata.
type frame struct {
	isFin   bool
	opCode  byte
	length  uint64
	payload []byte
}

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Payload - the body shared by requests, replies and pushes.
type Payload struct {
	Session          *entity.Session `json:"session,omitempty"`
	Cell             *int            `json:"cell,omitempty"`
	WinnerStartsNext bool            `json:"winner_starts_next,omitempty"`
	Error            string          `json:"error,omitempty"`
}

// conn - one hijacked client connection. Writes are serialized so a push
// fired from another goroutine never interleaves with a reply.
type conn struct {
	mu    sync.Mutex
	bufrw *bufio.ReadWriter
}

func (that *Server) sendMessage(client *conn, action string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	responseBytes, err := json.Marshal(Message{Action: action, Payload: body})
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	f := frame{
		isFin:   true,
		opCode:  opcodeText,
		length:  uint64(len(responseBytes)),
		payload: responseBytes,
	}

	if err = client.writeFrame(f); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	return nil
}

func (that *Server) sendErrorResponse(client *conn, action, errorMsg string) error {
	if err := that.sendMessage(client, action, Payload{Error: errorMsg}); err != nil {
		return fmt.Errorf("failed to send error response: %w", err)
	}

	return nil
}

// writeFrame - encodes and flushes one unmasked server-to-client frame.
func (that *conn) writeFrame(frameData frame) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	buf := make([]byte, 2)
	buf[0] |= frameData.opCode

	if frameData.isFin {
		buf[0] |= 0x80
	}

	switch {
	case frameData.length < 126:
		buf[1] |= byte(frameData.length)
	case frameData.length < 1<<16:
		buf[1] |= 126
		size := make([]byte, 2)
		binary.BigEndian.PutUint16(size, uint16(frameData.length))
		buf = append(buf, size...) //nolint: makezero // header is sized afterwards
	default:
		buf[1] |= 127
		size := make([]byte, 8)
		binary.BigEndian.PutUint64(size, frameData.length)
		buf = append(buf, size...) //nolint: makezero // header is sized afterwards
	}

	buf = append(buf, frameData.payload...) //nolint: makezero // header is sized afterwards

	if _, err := that.bufrw.Write(buf); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	if err := that.bufrw.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}

	return nil
}

// readRequest - reads one complete client frame and returns its unmasked
// payload. A close frame comes back as io.EOF.
func (that *Server) readRequest(client *conn) ([]byte, error) {
	header, err := readHeader(client.bufrw)
	if err != nil {
		return nil, err
	}

	payload, err := readPayload(client.bufrw, header)
	if err != nil {
		return nil, err
	}

	return payload, nil
}

func readHeader(bufrw *bufio.ReadWriter) ([]byte, error) {
	header := make([]byte, 2)
	if _, err := io.ReadFull(bufrw, header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	return header, nil
}

func readPayload(bufrw *bufio.ReadWriter, header []byte) ([]byte, error) {
	finBit := header[0] >> 7
	opCode := header[0] & 0x0f
	maskBit := header[1] >> 7
	payloadLen := header[1] & 0x7f

	size, err := readPayloadLength(bufrw, payloadLen)
	if err != nil {
		return nil, err
	}

	mask, err := readMask(bufrw, maskBit)
	if err != nil {
		return nil, err
	}

	payload, err := readData(bufrw, size, mask)
	if err != nil {
		return nil, err
	}

	if opCode == opcodeClose {
		return nil, io.EOF
	}

	if finBit != 1 {
		return nil, fmt.Errorf("fragmented frames are not supported")
	}

	return payload, nil
}

func readPayloadLength(bufrw *bufio.ReadWriter, payloadLen byte) (uint64, error) {
	if payloadLen < 126 {
		return uint64(payloadLen), nil
	}

	if payloadLen == 126 {
		length := make([]byte, 2)
		if _, err := io.ReadFull(bufrw, length); err != nil {
			return 0, fmt.Errorf("failed to read payload length: %w", err)
		}

		return uint64(binary.BigEndian.Uint16(length)), nil
	}

	length := make([]byte, 8)
	if _, err := io.ReadFull(bufrw, length); err != nil {
		return 0, fmt.Errorf("failed to read payload length: %w", err)
	}

	return binary.BigEndian.Uint64(length), nil
}

func readMask(bufrw *bufio.ReadWriter, maskBit byte) ([]byte, error) {
	if maskBit == 0 {
		return nil, nil
	}

	mask := make([]byte, 4)
	if _, err := io.ReadFull(bufrw, mask); err != nil {
		return nil, fmt.Errorf("failed to read mask: %w", err)
	}

	return mask, nil
}

func readData(bufrw *bufio.ReadWriter, size uint64, mask []byte) ([]byte, error) {
	payload := make([]byte, size)
	if _, err := io.ReadFull(bufrw, payload); err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	if mask != nil {
		for i := range payload {
			payload[i] ^= mask[i%4]
		}
	}

	return payload, nil
}
