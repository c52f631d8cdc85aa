package ingestion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"BetBank/internal/event"
	"BetBank/internal/ledger"
)

// ParseRawRequest converts a RawRequest (JSON bytes + request type string)
// into a typed event.Request. Validation happens here, at the edge, so the
// engine only ever sees well-formed requests.
func ParseRawRequest(raw RawRequest) (event.Request, error) {
	switch raw.RequestType {
	case "PLACE_BET":
		return parsePlaceBet(raw.Data)
	case "MAKE_TRANSACTION":
		return parseMakeTransaction(raw.Data)
	case "CONNECT":
		return parseConnect(raw.Data)
	case "DISCONNECT":
		return parseDisconnect(raw.Data)
	case "ROUND_CONTROL":
		return parseRoundControl(raw.Data)
	default:
		return nil, fmt.Errorf("unknown request type: %s", raw.RequestType)
	}
}

// participantID accepts both JSON numbers and numeric strings, since
// controller clients serialize device ids inconsistently. Everything past
// this point works with the canonical int64 form.
type participantID int64

func (p *participantID) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("participant id %q: %w", data, err)
	}
	*p = participantID(n)
	return nil
}

// --- JSON wire formats ---
// Field names use snake_case to match the controller clients; success_tag is
// the historical name for the outcome tag a bet is placed on.

type placeBetJSON struct {
	ParticipantID participantID `json:"participant_id"`
	Amount        int64         `json:"amount"`
	SuccessTag    string        `json:"success_tag"`
}

func parsePlaceBet(data []byte) (*event.PlaceBet, error) {
	var j placeBetJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PLACE_BET: %w", err)
	}
	if j.ParticipantID <= 0 {
		return nil, fmt.Errorf("parse PLACE_BET: missing participant_id")
	}
	if j.SuccessTag == "" {
		return nil, fmt.Errorf("parse PLACE_BET: missing success_tag")
	}
	return &event.PlaceBet{
		Participant: ledger.ParticipantID(j.ParticipantID),
		Amount:      j.Amount,
		OutcomeTag:  j.SuccessTag,
	}, nil
}

type makeTransactionJSON struct {
	SenderID   participantID `json:"sender_id"`
	ReceiverID participantID `json:"receiver_id"`
	Amount     int64         `json:"amount"`
}

func parseMakeTransaction(data []byte) (*event.MakeTransaction, error) {
	var j makeTransactionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse MAKE_TRANSACTION: %w", err)
	}
	if j.SenderID <= 0 {
		return nil, fmt.Errorf("parse MAKE_TRANSACTION: missing sender_id")
	}
	if j.ReceiverID <= 0 {
		return nil, fmt.Errorf("parse MAKE_TRANSACTION: missing receiver_id")
	}
	return &event.MakeTransaction{
		SenderID:   ledger.ParticipantID(j.SenderID),
		ReceiverID: ledger.ParticipantID(j.ReceiverID),
		Amount:     j.Amount,
	}, nil
}

type presenceJSON struct {
	ParticipantID participantID `json:"participant_id"`
}

func parseConnect(data []byte) (*event.Connect, error) {
	var j presenceJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CONNECT: %w", err)
	}
	if j.ParticipantID <= 0 {
		return nil, fmt.Errorf("parse CONNECT: missing participant_id")
	}
	return &event.Connect{Participant: ledger.ParticipantID(j.ParticipantID)}, nil
}

func parseDisconnect(data []byte) (*event.Disconnect, error) {
	var j presenceJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse DISCONNECT: %w", err)
	}
	if j.ParticipantID <= 0 {
		return nil, fmt.Errorf("parse DISCONNECT: missing participant_id")
	}
	return &event.Disconnect{Participant: ledger.ParticipantID(j.ParticipantID)}, nil
}

type roundControlJSON struct {
	Action      string   `json:"action"`
	WinningTags []string `json:"winning_tags,omitempty"`
	RoundID     int64    `json:"round_id,omitempty"`
}

// parseRoundControl handles the game-host round commands sharing one subject:
// open, close and evaluate.
func parseRoundControl(data []byte) (event.Request, error) {
	var j roundControlJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ROUND_CONTROL: %w", err)
	}

	switch j.Action {
	case "open":
		return &event.OpenRound{}, nil
	case "close":
		return &event.CloseRound{}, nil
	case "evaluate":
		if j.RoundID < 0 {
			return nil, fmt.Errorf("parse ROUND_CONTROL: negative round_id")
		}
		return &event.EvaluateRound{WinningTags: j.WinningTags, RoundID: j.RoundID}, nil
	default:
		return nil, fmt.Errorf("parse ROUND_CONTROL: unknown action %q", j.Action)
	}
}
