package types

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

type sponsorPayload struct {
	SponsorID NullableUUID `json:"sponsor_id"`
}

func TestNullableUUIDValue(t *testing.T) {
	want := uuid.New()
	var got sponsorPayload
	if err := json.Unmarshal([]byte(`{"sponsor_id":"`+want.String()+`"}`), &got); err != nil {
		t.Fatalf("unmarshal value: %v", err)
	}
	if !got.SponsorID.Set || got.SponsorID.Value == nil || *got.SponsorID.Value != want {
		t.Fatalf("expected %s, got %+v", want, got.SponsorID)
	}
}

func TestNullableUUIDNullAndMissing(t *testing.T) {
	var explicit sponsorPayload
	if err := json.Unmarshal([]byte(`{"sponsor_id":null}`), &explicit); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !explicit.SponsorID.Set || explicit.SponsorID.Value != nil {
		t.Fatalf("expected explicit null, got %+v", explicit.SponsorID)
	}

	var missing sponsorPayload
	if err := json.Unmarshal([]byte(`{}`), &missing); err != nil {
		t.Fatalf("unmarshal empty: %v", err)
	}
	if missing.SponsorID.Set {
		t.Fatal("expected missing field to stay unset")
	}
}

func TestNullableUUIDRejectsGarbage(t *testing.T) {
	var got sponsorPayload
	if err := json.Unmarshal([]byte(`{"sponsor_id":"nope"}`), &got); err == nil {
		t.Fatal("expected invalid uuid error")
	}
	if err := json.Unmarshal([]byte(`{"sponsor_id":12}`), &got); err == nil {
		t.Fatal("expected non-string error")
	}
}

func TestNullableUUIDMarshal(t *testing.T) {
	id := uuid.New()
	out, err := json.Marshal(sponsorPayload{SponsorID: NullableUUID{Set: true, Value: &id}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"sponsor_id":"`+id.String()+`"}` {
		t.Fatalf("unexpected json %s", out)
	}
	out, _ = json.Marshal(sponsorPayload{})
	if string(out) != `{"sponsor_id":null}` {
		t.Fatalf("unexpected json %s", out)
	}
}
