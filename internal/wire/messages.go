// Package wire implements the host-facing protocol harness: a fixed-width
// binary framing (grounded on the teacher's internal/net/messages.go) that
// stands in for what, on the real host, would be on-chain transactions
// (spec §6's "host blockchain runtime" collaborator). This is glue around
// the six Market operations, not matching-engine scope.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"clob/internal/common"
)

var (
	ErrInvalidMessageType = errors.New("wire: invalid message type")
	ErrMessageTooShort    = errors.New("wire: message too short")
)

// MessageType identifies the operation a request carries.
type MessageType uint16

const (
	OpDeposit MessageType = iota
	OpWithdraw
	OpPlaceLimitOrder
	OpCancelOrder
	OpConsumeEvents
	OpListMarkets
)

// Request is the parsed form of an inbound message, carrying only the
// fields its MessageType needs.
type Request struct {
	Type MessageType

	Owner string

	// Deposit / Withdraw
	BalanceSide common.BalanceSide
	Amount      uint64

	// PlaceLimitOrder
	OrderSide common.Side
	TIF       common.TimeInForce
	Price     uint64
	Quantity  uint64

	// CancelOrder
	OrderID uint64

	// ConsumeEvents
	Limit       uint8
	MakerOwners []string
}

// ParseMessage decodes a raw frame into a Request. The first two bytes are
// always the MessageType (big-endian), mirroring the teacher's
// parseMessage dispatch in internal/net/messages.go.
func ParseMessage(msg []byte) (Request, error) {
	if len(msg) < 2 {
		return Request{}, ErrMessageTooShort
	}
	typ := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	body := msg[2:]
	switch typ {
	case OpDeposit, OpWithdraw:
		return parseBalanceOp(typ, body)
	case OpPlaceLimitOrder:
		return parsePlaceLimitOrder(body)
	case OpCancelOrder:
		return parseCancelOrder(body)
	case OpConsumeEvents:
		return parseConsumeEvents(body)
	case OpListMarkets:
		return Request{Type: OpListMarkets}, nil
	default:
		return Request{}, ErrInvalidMessageType
	}
}

// parseBalanceOp parses Deposit and Withdraw bodies:
// Side(1) Amount(8) OwnerLen(1) Owner(n).
func parseBalanceOp(typ MessageType, body []byte) (Request, error) {
	const fixed = 1 + 8 + 1
	if len(body) < fixed {
		return Request{}, ErrMessageTooShort
	}
	side := common.BalanceSide(body[0])
	amount := binary.BigEndian.Uint64(body[1:9])
	ownerLen := int(body[9])
	if len(body) < fixed+ownerLen {
		return Request{}, ErrMessageTooShort
	}
	owner := string(body[fixed : fixed+ownerLen])
	return Request{Type: typ, BalanceSide: side, Amount: amount, Owner: owner}, nil
}

// parsePlaceLimitOrder parses:
// Side(1) TIF(1) Price(8) Quantity(8) OwnerLen(1) Owner(n).
func parsePlaceLimitOrder(body []byte) (Request, error) {
	const fixed = 1 + 1 + 8 + 8 + 1
	if len(body) < fixed {
		return Request{}, ErrMessageTooShort
	}
	side := common.Side(body[0])
	tif := common.TimeInForce(body[1])
	price := binary.BigEndian.Uint64(body[2:10])
	qty := binary.BigEndian.Uint64(body[10:18])
	ownerLen := int(body[18])
	if len(body) < fixed+ownerLen {
		return Request{}, ErrMessageTooShort
	}
	owner := string(body[fixed : fixed+ownerLen])
	return Request{Type: OpPlaceLimitOrder, OrderSide: side, TIF: tif, Price: price, Quantity: qty, Owner: owner}, nil
}

// parseCancelOrder parses: Side(1) OrderID(8) OwnerLen(1) Owner(n).
func parseCancelOrder(body []byte) (Request, error) {
	const fixed = 1 + 8 + 1
	if len(body) < fixed {
		return Request{}, ErrMessageTooShort
	}
	side := common.Side(body[0])
	orderID := binary.BigEndian.Uint64(body[1:9])
	ownerLen := int(body[9])
	if len(body) < fixed+ownerLen {
		return Request{}, ErrMessageTooShort
	}
	owner := string(body[fixed : fixed+ownerLen])
	return Request{Type: OpCancelOrder, OrderSide: side, OrderID: orderID, Owner: owner}, nil
}

// parseConsumeEvents parses: Limit(1) NumMakers(1) then, per maker,
// OwnerLen(1) Owner(n).
func parseConsumeEvents(body []byte) (Request, error) {
	if len(body) < 2 {
		return Request{}, ErrMessageTooShort
	}
	limit := body[0]
	numMakers := int(body[1])
	offset := 2
	makers := make([]string, 0, numMakers)
	for i := 0; i < numMakers; i++ {
		if offset >= len(body) {
			return Request{}, ErrMessageTooShort
		}
		ownerLen := int(body[offset])
		offset++
		if len(body) < offset+ownerLen {
			return Request{}, ErrMessageTooShort
		}
		makers = append(makers, string(body[offset:offset+ownerLen]))
		offset += ownerLen
	}
	return Request{Type: OpConsumeEvents, Limit: limit, MakerOwners: makers}, nil
}

// ReportType identifies the kind of message a response carries.
type ReportType uint8

const (
	ReportAck ReportType = iota
	ReportFilled
	ReportError
)

// Report is the wire response for a request: either an ack, a fill
// notification relayed from the sink, or an error.
type Report struct {
	Type     ReportType
	Quantity uint64
	Price    uint64
	Err      string
}

// Serialize encodes a Report as Type(1) Quantity(8) Price(8) ErrLen(2) Err(n).
func (r Report) Serialize() []byte {
	buf := make([]byte, 1+8+8+2+len(r.Err))
	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Quantity)
	binary.BigEndian.PutUint64(buf[9:17], r.Price)
	binary.BigEndian.PutUint16(buf[17:19], uint16(len(r.Err)))
	copy(buf[19:], r.Err)
	return buf
}

func errorReport(err error) Report {
	return Report{Type: ReportError, Err: fmt.Sprintf("%v", err)}
}
