// Package netproto implements the exchange's two wire protocols: the
// framed execution stream (login, order requests, replies) and the
// information datagrams (order-book snapshots, trade ticks).
package netproto

import (
	"encoding/binary"
	"errors"
	"fmt"

	"fenrir/internal/engine"
)

// MessageType is the single byte that follows the 2-byte length in every
// frame header, shared across both wire directions.
type MessageType uint8

const (
	TypeAmendOrder      MessageType = 1
	TypeCancelOrder     MessageType = 2
	TypeError           MessageType = 3
	TypeHedgeFilled     MessageType = 4
	TypeHedgeOrder      MessageType = 5
	TypeInsertOrder     MessageType = 6
	TypeLogin           MessageType = 7
	TypeOrderFilled     MessageType = 8
	TypeOrderStatus     MessageType = 9
	TypeOrderBookUpdate MessageType = 10
	TypeTradeTicks      MessageType = 11
)

const (
	HeaderLen = 3 // uint16 length (total, header included) + uint8 type

	LoginBodyLen        = 100
	InsertOrderBodyLen  = 14
	AmendOrderBodyLen   = 8
	CancelOrderBodyLen  = 4
	HedgeOrderBodyLen   = 13
	ErrorBodyLen        = 54
	HedgeFilledBodyLen  = 12
	OrderFilledBodyLen  = 12
	OrderStatusBodyLen  = 16
	DatagramBodyLen     = 85
	nameFieldLen        = 50
	errorMessageFieldLen = 50
)

var (
	ErrFrameTooShort  = errors.New("declared frame length shorter than the header")
	ErrUnknownType    = errors.New("unknown message type")
	ErrBodyWrongSize  = errors.New("message body has the wrong size for its type")
)

func putHeader(buf []byte, bodyLen int, typ MessageType) {
	binary.BigEndian.PutUint16(buf[0:2], uint16(HeaderLen+bodyLen))
	buf[2] = byte(typ)
}

func sideFromWire(b uint8) engine.Side {
	if b == 1 {
		return engine.SideBuy
	}
	return engine.SideSell
}

func wireLifespan(l engine.Lifespan) uint8 {
	if l == engine.LifespanGoodForDay {
		return 1
	}
	return 0
}

func lifespanFromWire(b uint8) engine.Lifespan {
	if b == 1 {
		return engine.LifespanGoodForDay
	}
	return engine.LifespanFillAndKill
}

func wireInstrument(i engine.Instrument) uint8 {
	if i == engine.InstrumentETF {
		return 1
	}
	return 0
}

func putFixedString(buf []byte, s string) {
	n := copy(buf, s)
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
}

func getFixedString(buf []byte) string {
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n])
}

// -- Client -> exchange requests --

type LoginRequest struct {
	Name   string
	Secret string
}

type InsertOrderRequest struct {
	ClientOrderID uint32
	Side          engine.Side
	Price         int64
	Volume        uint32
	Lifespan      engine.Lifespan
}

type AmendOrderRequest struct {
	ClientOrderID uint32
	NewVolume     uint32
}

type CancelOrderRequest struct {
	ClientOrderID uint32
}

type HedgeOrderRequest struct {
	ClientOrderID uint32
	Side          engine.Side
	Price         int64
	Volume        uint32
}

// DecodeRequest parses a request body given its declared type.
func DecodeRequest(typ MessageType, body []byte) (any, error) {
	switch typ {
	case TypeLogin:
		if len(body) != LoginBodyLen {
			return nil, ErrBodyWrongSize
		}
		return LoginRequest{
			Name:   getFixedString(body[0:nameFieldLen]),
			Secret: getFixedString(body[nameFieldLen : 2*nameFieldLen]),
		}, nil
	case TypeInsertOrder:
		if len(body) != InsertOrderBodyLen {
			return nil, ErrBodyWrongSize
		}
		return InsertOrderRequest{
			ClientOrderID: binary.BigEndian.Uint32(body[0:4]),
			Side:          sideFromWire(body[4]),
			Price:         int64(binary.BigEndian.Uint32(body[5:9])),
			Volume:        binary.BigEndian.Uint32(body[9:13]),
			Lifespan:      lifespanFromWire(body[13]),
		}, nil
	case TypeAmendOrder:
		if len(body) != AmendOrderBodyLen {
			return nil, ErrBodyWrongSize
		}
		return AmendOrderRequest{
			ClientOrderID: binary.BigEndian.Uint32(body[0:4]),
			NewVolume:     binary.BigEndian.Uint32(body[4:8]),
		}, nil
	case TypeCancelOrder:
		if len(body) != CancelOrderBodyLen {
			return nil, ErrBodyWrongSize
		}
		return CancelOrderRequest{
			ClientOrderID: binary.BigEndian.Uint32(body[0:4]),
		}, nil
	case TypeHedgeOrder:
		if len(body) != HedgeOrderBodyLen {
			return nil, ErrBodyWrongSize
		}
		return HedgeOrderRequest{
			ClientOrderID: binary.BigEndian.Uint32(body[0:4]),
			Side:          sideFromWire(body[4]),
			Price:         int64(binary.BigEndian.Uint32(body[5:9])),
			Volume:        binary.BigEndian.Uint32(body[9:13]),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, typ)
	}
}

// -- Exchange -> client replies --

// EncodeError frames an ERROR reply: coid (0 if none applies) plus a
// 50-byte ASCII reason, truncated if necessary.
func EncodeError(coid uint32, reason string) []byte {
	buf := make([]byte, HeaderLen+ErrorBodyLen)
	putHeader(buf, ErrorBodyLen, TypeError)
	binary.BigEndian.PutUint32(buf[3:7], coid)
	putFixedString(buf[7:7+errorMessageFieldLen], reason)
	return buf
}

// EncodeHedgeFilled frames a HEDGE_FILLED reply.
func EncodeHedgeFilled(coid uint32, avgPrice int64, volume uint32) []byte {
	buf := make([]byte, HeaderLen+HedgeFilledBodyLen)
	putHeader(buf, HedgeFilledBodyLen, TypeHedgeFilled)
	binary.BigEndian.PutUint32(buf[3:7], coid)
	binary.BigEndian.PutUint32(buf[7:11], uint32(avgPrice))
	binary.BigEndian.PutUint32(buf[11:15], volume)
	return buf
}

// EncodeOrderFilled frames an ORDER_FILLED reply.
func EncodeOrderFilled(coid uint32, price int64, volume uint32) []byte {
	buf := make([]byte, HeaderLen+OrderFilledBodyLen)
	putHeader(buf, OrderFilledBodyLen, TypeOrderFilled)
	binary.BigEndian.PutUint32(buf[3:7], coid)
	binary.BigEndian.PutUint32(buf[7:11], uint32(price))
	binary.BigEndian.PutUint32(buf[11:15], volume)
	return buf
}

// EncodeOrderStatus frames an ORDER_STATUS reply. Fees are signed.
func EncodeOrderStatus(coid uint32, fillVolume, remainVolume uint32, fees int64) []byte {
	buf := make([]byte, HeaderLen+OrderStatusBodyLen)
	putHeader(buf, OrderStatusBodyLen, TypeOrderStatus)
	binary.BigEndian.PutUint32(buf[3:7], coid)
	binary.BigEndian.PutUint32(buf[7:11], fillVolume)
	binary.BigEndian.PutUint32(buf[11:15], remainVolume)
	binary.BigEndian.PutUint32(buf[15:19], uint32(int32(fees)))
	return buf
}

// EncodeDatagram frames an ORDER_BOOK_UPDATE or TRADE_TICKS datagram: both
// share the same body layout.
func EncodeDatagram(typ MessageType, instrument engine.Instrument, seq uint32, askPx, askVol, bidPx, bidVol [5]int64) []byte {
	buf := make([]byte, HeaderLen+DatagramBodyLen)
	putHeader(buf, DatagramBodyLen, typ)
	buf[3] = wireInstrument(instrument)
	binary.BigEndian.PutUint32(buf[4:8], seq)

	offset := 8
	for _, arr := range [][5]int64{askPx, askVol, bidPx, bidVol} {
		for _, v := range arr {
			binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(v))
			offset += 4
		}
	}
	return buf
}
