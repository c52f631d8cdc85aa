// Package event defines the typed inbound requests the bank engine accepts.
package event

import "BetBank/internal/ledger"

// RequestType discriminator for request payloads
type RequestType int32

const (
	RequestTypeUnknown RequestType = iota
	RequestTypePlaceBet
	RequestTypeMakeTransaction
	RequestTypeConnect
	RequestTypeDisconnect
	RequestTypeOpenRound
	RequestTypeCloseRound
	RequestTypeEvaluateRound
)

func (rt RequestType) String() string {
	switch rt {
	case RequestTypePlaceBet:
		return "PLACE_BET"
	case RequestTypeMakeTransaction:
		return "MAKE_TRANSACTION"
	case RequestTypeConnect:
		return "CONNECT"
	case RequestTypeDisconnect:
		return "DISCONNECT"
	case RequestTypeOpenRound:
		return "OPEN_ROUND"
	case RequestTypeCloseRound:
		return "CLOSE_ROUND"
	case RequestTypeEvaluateRound:
		return "EVALUATE_ROUND"
	default:
		return "UNKNOWN"
	}
}

// Request is the interface all inbound request payloads implement.
type Request interface {
	RequestType() RequestType
}

// PlaceBet stakes an amount on an outcome tag in the open round. Participant
// is the connection-context identity stamped by the transport, not a payload
// field a client can spoof.
type PlaceBet struct {
	Participant ledger.ParticipantID
	Amount      int64
	OutcomeTag  string
}

func (r *PlaceBet) RequestType() RequestType { return RequestTypePlaceBet }

// MakeTransaction transfers virtual currency between two participants.
type MakeTransaction struct {
	SenderID   ledger.ParticipantID
	ReceiverID ledger.ParticipantID
	Amount     int64
}

func (r *MakeTransaction) RequestType() RequestType { return RequestTypeMakeTransaction }

// Connect registers (or reactivates) a participant.
type Connect struct {
	Participant ledger.ParticipantID
}

func (r *Connect) RequestType() RequestType { return RequestTypeConnect }

// Disconnect marks a participant inactive; history is retained.
type Disconnect struct {
	Participant ledger.ParticipantID
}

func (r *Disconnect) RequestType() RequestType { return RequestTypeDisconnect }

// OpenRound starts the next betting round. Issued by the game host, not by
// participants.
type OpenRound struct{}

func (r *OpenRound) RequestType() RequestType { return RequestTypeOpenRound }

// CloseRound locks the current round against further bets.
type CloseRound struct{}

func (r *CloseRound) RequestType() RequestType { return RequestTypeCloseRound }

// EvaluateRound settles a round against the winning outcome tags. RoundID 0
// targets the current round.
type EvaluateRound struct {
	WinningTags []string
	RoundID     int64
}

func (r *EvaluateRound) RequestType() RequestType { return RequestTypeEvaluateRound }
