package netproto

import (
	"testing"

	"fenrir/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequestInsertOrder(t *testing.T) {
	buf := make([]byte, InsertOrderBodyLen)
	buf[0], buf[1], buf[2], buf[3] = 0, 0, 0, 42 // coid = 42
	buf[4] = 1                                   // side = buy
	buf[5], buf[6], buf[7], buf[8] = 0, 0, 0, 200 // price = 200
	buf[9], buf[10], buf[11], buf[12] = 0, 0, 0, 7 // volume = 7
	buf[13] = 1                                   // lifespan = good for day

	decoded, err := DecodeRequest(TypeInsertOrder, buf)
	require.NoError(t, err)
	req := decoded.(InsertOrderRequest)
	assert.Equal(t, uint32(42), req.ClientOrderID)
	assert.Equal(t, engine.SideBuy, req.Side)
	assert.Equal(t, int64(200), req.Price)
	assert.Equal(t, uint32(7), req.Volume)
	assert.Equal(t, engine.LifespanGoodForDay, req.Lifespan)
}

func TestDecodeRequestRejectsWrongBodyLength(t *testing.T) {
	_, err := DecodeRequest(TypeInsertOrder, make([]byte, InsertOrderBodyLen-1))
	assert.ErrorIs(t, err, ErrBodyWrongSize)
}

func TestDecodeRequestRejectsUnknownType(t *testing.T) {
	_, err := DecodeRequest(MessageType(200), nil)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDecodeRequestLoginTrimsAtNulByte(t *testing.T) {
	buf := make([]byte, LoginBodyLen)
	copy(buf[0:], "alice")
	copy(buf[nameFieldLen:], "s3cret")

	decoded, err := DecodeRequest(TypeLogin, buf)
	require.NoError(t, err)
	req := decoded.(LoginRequest)
	assert.Equal(t, "alice", req.Name)
	assert.Equal(t, "s3cret", req.Secret)
}

func TestEncodeErrorRoundTripsHeaderAndFields(t *testing.T) {
	frame := EncodeError(7, "bad order")
	require.Len(t, frame, HeaderLen+ErrorBodyLen)
	assert.Equal(t, byte(TypeError), frame[2])

	coid := uint32(frame[3])<<24 | uint32(frame[4])<<16 | uint32(frame[5])<<8 | uint32(frame[6])
	assert.Equal(t, uint32(7), coid)
	assert.Equal(t, "bad order", getFixedString(frame[7:7+errorMessageFieldLen]))
}

func TestEncodeDatagramLayout(t *testing.T) {
	askPx := [5]int64{101, 102, 0, 0, 0}
	askVol := [5]int64{1, 2, 0, 0, 0}
	bidPx := [5]int64{99, 0, 0, 0, 0}
	bidVol := [5]int64{3, 0, 0, 0, 0}

	frame := EncodeDatagram(TypeOrderBookUpdate, engine.InstrumentETF, 5, askPx, askVol, bidPx, bidVol)
	require.Len(t, frame, HeaderLen+DatagramBodyLen)
	assert.Equal(t, byte(TypeOrderBookUpdate), frame[2])
	assert.Equal(t, uint8(1), frame[3]) // ETF wire code
}
