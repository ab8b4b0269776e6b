package events

import "testing"

func TestInscriptionIdRoundTrip(t *testing.T) {
	cases := []string{
		"abcd1234i0",
		"0000000000000000000000000000000000000000000000000000000000000000i12",
	}
	for _, s := range cases {
		s := s
		t.Run(s, func(t *testing.T) {
			t.Parallel()
			id, err := ParseInscriptionId(s)
			if err != nil {
				t.Fatalf("ParseInscriptionId(%q): %v", s, err)
			}
			if got := id.String(); got != s {
				t.Fatalf("round trip mismatch: got %q want %q", got, s)
			}
		})
	}
}

func TestParseInscriptionIdMalformed(t *testing.T) {
	if _, err := ParseInscriptionId("no-index-marker"); err == nil {
		t.Fatal("expected error for missing index marker")
	}
	if _, err := ParseInscriptionId("abcdix"); err == nil {
		t.Fatal("expected error for non-numeric index")
	}
}

func TestSatPointRoundTrip(t *testing.T) {
	s := "deadbeef:1:42"
	sp, err := ParseSatPoint(s)
	if err != nil {
		t.Fatalf("ParseSatPoint(%q): %v", s, err)
	}
	if got := sp.String(); got != s {
		t.Fatalf("round trip mismatch: got %q want %q", got, s)
	}
}

func TestParseSatPointMalformed(t *testing.T) {
	cases := []string{"deadbeef:1", "deadbeef:x:0", "deadbeef:1:x"}
	for _, c := range cases {
		if _, err := ParseSatPoint(c); err == nil {
			t.Fatalf("expected error for %q", c)
		}
	}
}

func TestEventRoundTrip(t *testing.T) {
	loc := SatPoint{Outpoint: Outpoint{Txid: "abcd", Vout: 0}, Offset: 0}
	cases := []Event{
		{Kind: KindBlockCommitted, Height: 800000},
		{
			Kind:           KindInscriptionCreated,
			BlockHeight:    800000,
			Charms:         0,
			InscriptionId:  InscriptionId{Txid: "abcd", Index: 0},
			Location:       &loc,
			SequenceNumber: 1,
		},
		{
			Kind:          KindInscriptionTransferred,
			BlockHeight:   800001,
			InscriptionId: InscriptionId{Txid: "abcd", Index: 0},
			NewLocation:   SatPoint{Outpoint: Outpoint{Txid: "beef", Vout: 1}, Offset: 10},
			OldLocation:   loc,
		},
	}

	for _, e := range cases {
		data, err := Serialize(e)
		if err != nil {
			t.Fatalf("Serialize: %v", err)
		}
		got, err := Deserialize(data)
		if err != nil {
			t.Fatalf("Deserialize: %v", err)
		}
		got.Raw = nil
		if got.Kind != e.Kind || got.BlockHeight != e.BlockHeight || got.Height != e.Height {
			t.Fatalf("round trip mismatch: got %+v want %+v", got, e)
		}
		if RoutingKey(e) != string(e.Kind) {
			t.Fatalf("routing key mismatch for %v", e.Kind)
		}
	}
}

func TestDeserializeRejectsMissingType(t *testing.T) {
	if _, err := Deserialize([]byte(`{"garbage": true}`)); err == nil {
		t.Fatal("expected error for missing type discriminator")
	}
}
