package ingestion_test

import (
	"encoding/json"
	"testing"
	"time"

	"BetBank/internal/event"
	"BetBank/internal/ingestion"
)

func rawFromJSON(t *testing.T, requestType string, v interface{}) ingestion.RawRequest {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawRequest{
		Subject:     "test",
		RequestType: requestType,
		Data:        data,
		Timestamp:   time.Now(),
		AckFunc:     func() {},
		NakFunc:     func() {},
	}
}

func TestParsePlaceBet(t *testing.T) {
	payload := map[string]interface{}{
		"participant_id": int64(42),
		"amount":         int64(250),
		"success_tag":    "red",
	}

	req, err := ingestion.ParseRawRequest(rawFromJSON(t, "PLACE_BET", payload))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	bet, ok := req.(*event.PlaceBet)
	if !ok {
		t.Fatalf("expected *event.PlaceBet, got %T", req)
	}
	if bet.Participant != 42 {
		t.Errorf("participant: got %d, want 42", bet.Participant)
	}
	if bet.Amount != 250 {
		t.Errorf("amount: got %d, want 250", bet.Amount)
	}
	if bet.OutcomeTag != "red" {
		t.Errorf("outcome tag: got %s, want red", bet.OutcomeTag)
	}
	if bet.RequestType() != event.RequestTypePlaceBet {
		t.Errorf("request type: got %v, want PlaceBet", bet.RequestType())
	}
}

func TestParsePlaceBetStringParticipantID(t *testing.T) {
	// Some controller clients send device ids as strings.
	payload := map[string]interface{}{
		"participant_id": "42",
		"amount":         int64(250),
		"success_tag":    "red",
	}

	req, err := ingestion.ParseRawRequest(rawFromJSON(t, "PLACE_BET", payload))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if bet := req.(*event.PlaceBet); bet.Participant != 42 {
		t.Errorf("participant: got %d, want 42", bet.Participant)
	}
}

func TestParsePlaceBetMissingFields(t *testing.T) {
	cases := []map[string]interface{}{
		{"amount": int64(250), "success_tag": "red"},
		{"participant_id": int64(42), "amount": int64(250)},
		{"participant_id": "not-a-number", "amount": int64(250), "success_tag": "red"},
	}
	for i, payload := range cases {
		if _, err := ingestion.ParseRawRequest(rawFromJSON(t, "PLACE_BET", payload)); err == nil {
			t.Errorf("case %d: invalid payload accepted", i)
		}
	}
}

func TestParseMakeTransaction(t *testing.T) {
	payload := map[string]interface{}{
		"sender_id":   int64(1),
		"receiver_id": "2",
		"amount":      int64(50),
	}

	req, err := ingestion.ParseRawRequest(rawFromJSON(t, "MAKE_TRANSACTION", payload))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	tx, ok := req.(*event.MakeTransaction)
	if !ok {
		t.Fatalf("expected *event.MakeTransaction, got %T", req)
	}
	if tx.SenderID != 1 || tx.ReceiverID != 2 || tx.Amount != 50 {
		t.Errorf("got (%d, %d, %d), want (1, 2, 50)", tx.SenderID, tx.ReceiverID, tx.Amount)
	}
}

func TestParsePresence(t *testing.T) {
	payload := map[string]interface{}{"participant_id": int64(7)}

	req, err := ingestion.ParseRawRequest(rawFromJSON(t, "CONNECT", payload))
	if err != nil {
		t.Fatalf("parse CONNECT failed: %v", err)
	}
	if c := req.(*event.Connect); c.Participant != 7 {
		t.Errorf("connect participant: got %d, want 7", c.Participant)
	}

	req, err = ingestion.ParseRawRequest(rawFromJSON(t, "DISCONNECT", payload))
	if err != nil {
		t.Fatalf("parse DISCONNECT failed: %v", err)
	}
	if d := req.(*event.Disconnect); d.Participant != 7 {
		t.Errorf("disconnect participant: got %d, want 7", d.Participant)
	}
}

func TestParseRoundControl(t *testing.T) {
	req, err := ingestion.ParseRawRequest(rawFromJSON(t, "ROUND_CONTROL", map[string]interface{}{
		"action": "open",
	}))
	if err != nil {
		t.Fatalf("parse open failed: %v", err)
	}
	if _, ok := req.(*event.OpenRound); !ok {
		t.Fatalf("expected *event.OpenRound, got %T", req)
	}

	req, err = ingestion.ParseRawRequest(rawFromJSON(t, "ROUND_CONTROL", map[string]interface{}{
		"action": "close",
	}))
	if err != nil {
		t.Fatalf("parse close failed: %v", err)
	}
	if _, ok := req.(*event.CloseRound); !ok {
		t.Fatalf("expected *event.CloseRound, got %T", req)
	}

	req, err = ingestion.ParseRawRequest(rawFromJSON(t, "ROUND_CONTROL", map[string]interface{}{
		"action":       "evaluate",
		"winning_tags": []string{"red", "even"},
		"round_id":     int64(3),
	}))
	if err != nil {
		t.Fatalf("parse evaluate failed: %v", err)
	}
	ev, ok := req.(*event.EvaluateRound)
	if !ok {
		t.Fatalf("expected *event.EvaluateRound, got %T", req)
	}
	if ev.RoundID != 3 || len(ev.WinningTags) != 2 {
		t.Fatalf("evaluate = %+v, want round 3 with 2 tags", ev)
	}

	if _, err := ingestion.ParseRawRequest(rawFromJSON(t, "ROUND_CONTROL", map[string]interface{}{
		"action": "explode",
	})); err == nil {
		t.Fatal("unknown round action accepted")
	}
}

func TestParseUnknownRequestType(t *testing.T) {
	raw := rawFromJSON(t, "SELF_DESTRUCT", map[string]interface{}{})
	if _, err := ingestion.ParseRawRequest(raw); err == nil {
		t.Fatal("unknown request type accepted")
	}
}
