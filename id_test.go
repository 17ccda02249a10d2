package uid

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"testing"
)

// TestIDEncodings tests decimal, hex and base62 round trips
func TestIDEncodings(t *testing.T) {
	ids := []ID{1, 42, 34359738368, 1<<63 - 1}

	for _, id := range ids {
		if got, err := ParseString(id.String()); err != nil || got != id {
			t.Errorf("ParseString(%q) = %d, %v, want %d", id.String(), got, err, id)
		}
		if got, err := ParseHex(id.Hex()); err != nil || got != id {
			t.Errorf("ParseHex(%q) = %d, %v, want %d", id.Hex(), got, err, id)
		}
		if got, err := ParseBase62(id.Base62()); err != nil || got != id {
			t.Errorf("ParseBase62(%q) = %d, %v, want %d", id.Base62(), got, err, id)
		}
	}
}

// TestParseBase62Invalid tests rejection of malformed base62 input
func TestParseBase62Invalid(t *testing.T) {
	for _, s := range []string{"", "hello world", "!!!", "zzzzzzzzzzzz", "AzL8n0Y58m7_"} {
		if _, err := ParseBase62(s); !errors.Is(err, ErrInvalidBase62) {
			t.Errorf("ParseBase62(%q) error = %v, want ErrInvalidBase62", s, err)
		}
	}
}

// TestIDJSON tests the string JSON form and numeric fallback
func TestIDJSON(t *testing.T) {
	id := ID(34359738368)

	data, err := json.Marshal(id)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `"34359738368"` {
		t.Errorf("Marshal() = %s, want quoted decimal", data)
	}

	var back ID
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back != id {
		t.Errorf("round trip = %d, want %d", back, id)
	}

	// Bare numbers unmarshal too.
	if err := json.Unmarshal([]byte("12345"), &back); err != nil {
		t.Fatalf("Unmarshal(number) error = %v", err)
	}
	if back != 12345 {
		t.Errorf("Unmarshal(number) = %d, want 12345", back)
	}

	if err := json.Unmarshal([]byte(`"abc"`), &back); err == nil {
		t.Error("Unmarshal of non-numeric string succeeded, want error")
	}
}

// TestIDJSONStruct tests marshaling inside a struct
func TestIDJSONStruct(t *testing.T) {
	type row struct {
		ID   ID     `json:"id"`
		Name string `json:"name"`
	}
	in := row{ID: 987654321, Name: "x"}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out row
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

// TestIDText tests the text codec
func TestIDText(t *testing.T) {
	id := ID(777)
	text, err := id.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var back ID
	if err := back.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if back != id {
		t.Errorf("text round trip = %d, want %d", back, id)
	}
	if err := back.UnmarshalText([]byte("not a number")); err == nil {
		t.Error("UnmarshalText of garbage succeeded, want error")
	}
}

// TestIDSQL tests the sql.Scanner and driver.Valuer implementations
func TestIDSQL(t *testing.T) {
	id := ID(123456789)

	v, err := id.Value()
	if err != nil {
		t.Fatal(err)
	}
	if v != driver.Value(int64(123456789)) {
		t.Errorf("Value() = %v, want int64", v)
	}

	cases := []interface{}{int64(123456789), "123456789", []byte("123456789")}
	for _, c := range cases {
		var back ID
		if err := back.Scan(c); err != nil {
			t.Errorf("Scan(%T) error = %v", c, err)
			continue
		}
		if back != id {
			t.Errorf("Scan(%T) = %d, want %d", c, back, id)
		}
	}

	var back ID
	if err := back.Scan(3.14); err == nil {
		t.Error("Scan(float64) succeeded, want error")
	}
}

// TestIDValid tests the positivity check
func TestIDValid(t *testing.T) {
	if !ID(1).Valid() {
		t.Error("ID(1).Valid() = false")
	}
	if ID(0).Valid() || ID(-1).Valid() {
		t.Error("non-positive id reported valid")
	}
}

// TestIDComponents tests decomposition through the ID type
func TestIDComponents(t *testing.T) {
	raw := LayoutCompact.Allocate(1, 0, 0)
	c, err := ID(raw).Components(LayoutCompact, "2016-05-20")
	if err != nil {
		t.Fatalf("Components() error = %v", err)
	}
	if c == nil || c.DeltaSeconds != 1 || c.WorkerID != 0 || c.Sequence != 0 {
		t.Errorf("Components() = %+v, want (1,0,0)", c)
	}
	if _, err := ID(raw).Components(LayoutCompact, "2999-01-01"); err == nil {
		t.Error("Components() with future epoch succeeded, want error")
	}
}

func BenchmarkIDBase62(b *testing.B) {
	id := ID(1<<62 + 12345)
	for i := 0; i < b.N; i++ {
		_ = id.Base62()
	}
}
