package proto

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeObjectRequest(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"object","uid":"box1","lockid":42,"state":{"x":1}}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	req, ok := msg.(ObjectRequest)
	if !ok {
		t.Fatalf("expected ObjectRequest, got %T", msg)
	}
	if req.UID != "box1" {
		t.Fatalf("unexpected uid %q", req.UID)
	}
	if req.LockID != "42" {
		t.Fatalf("unexpected lockid %q", req.LockID)
	}
	if string(req.State) != `{"x":1}` {
		t.Fatalf("unexpected state %s", req.State)
	}
}

func TestDecodeNumericUIDMatchesStringUID(t *testing.T) {
	numeric, err := Decode([]byte(`{"type":"delete","uid":5}`))
	if err != nil {
		t.Fatalf("decode numeric uid: %v", err)
	}
	text, err := Decode([]byte(`{"type":"delete","uid":"5"}`))
	if err != nil {
		t.Fatalf("decode string uid: %v", err)
	}
	if numeric.(DeleteRequest).UID != text.(DeleteRequest).UID {
		t.Fatalf("expected numeric and string uid to normalise, got %q and %q", numeric.(DeleteRequest).UID, text.(DeleteRequest).UID)
	}
}

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	frames := []string{
		`not json`,
		`{"type":`,
		`["object"]`,
		`{"type":"lock","uid":{"nested":true},"lockid":1}`,
		`{"type":"lock","uid":"a","lockid":[1]}`,
	}
	for _, frame := range frames {
		if _, err := Decode([]byte(frame)); err == nil {
			t.Fatalf("expected %q to be rejected", frame)
		}
	}
}

func TestDecodeReservedAndUnknownTypes(t *testing.T) {
	for _, typ := range []string{TypeSchedule, TypeEvent, TypeWorld, TypeObjectMode, TypeEvaluate, TypeUsers} {
		msg, err := Decode([]byte(`{"type":"` + typ + `","anything":[1,2]}`))
		if err != nil {
			t.Fatalf("reserved type %q rejected: %v", typ, err)
		}
		if _, ok := msg.(Reserved); !ok {
			t.Fatalf("expected Reserved for %q, got %T", typ, msg)
		}
	}

	msg, err := Decode([]byte(`{"foo":1}`))
	if err != nil {
		t.Fatalf("missing type rejected: %v", err)
	}
	if unknown, ok := msg.(Unknown); !ok || unknown.Type != "" {
		t.Fatalf("expected empty Unknown, got %#v", msg)
	}
}

func TestDecodeCalibratePointShapes(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"calibrate","fixedPoints":[{"x":1,"z":2},[3,9,4]],"inputPoints":[[5,6],{"x":7,"y":1,"z":8}]}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	req := msg.(CalibrateRequest)
	want := []Point{{1, 2}, {3, 4}}
	for i, p := range want {
		if req.FixedPoints[i] != p {
			t.Fatalf("fixed point %d = %+v, want %+v", i, req.FixedPoints[i], p)
		}
	}
	if req.InputPoints[0] != (Point{5, 6}) || req.InputPoints[1] != (Point{7, 8}) {
		t.Fatalf("unexpected input points %+v", req.InputPoints)
	}
}

func TestLockIDMarshalling(t *testing.T) {
	var zero LockID
	data, err := json.Marshal(ObjectView{LockID: zero})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"lockid":-1`) {
		t.Fatalf("expected zero lockid to render as -1, got %s", data)
	}

	var decoded struct {
		LockID LockID `json:"lockid"`
	}
	if err := json.Unmarshal([]byte(`{"lockid":"alice"}`), &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.LockID != `"alice"` {
		t.Fatalf("expected string literal preserved, got %s", decoded.LockID)
	}
	if LockIDFromConn(7) != "7" {
		t.Fatalf("unexpected conn lock id %q", LockIDFromConn(7))
	}
}

func TestLockIDCanonicalisesEqualValues(t *testing.T) {
	cases := map[string]LockID{
		`1`:          "1",
		`1.0`:        "1",
		`1e0`:        "1",
		`-1.0`:       Unlocked,
		`-0`:         "0",
		`2.5`:        "2.5",
		`1e21`:       "1e+21",
		`"bob"`:      `"bob"`,
		`"\u0062ob"`: `"bob"`,
	}
	for literal, want := range cases {
		var got LockID
		if err := json.Unmarshal([]byte(literal), &got); err != nil {
			t.Fatalf("unmarshal %s failed: %v", literal, err)
		}
		if got != want {
			t.Fatalf("lockid %s: expected %s, got %s", literal, want, got)
		}
	}

	var sentinel LockID
	if err := json.Unmarshal([]byte(`-1.0`), &sentinel); err != nil || !sentinel.IsUnlocked() {
		t.Fatalf("expected -1.0 to read as unlocked, got %q (%v)", sentinel, err)
	}
	var overflow LockID
	if err := json.Unmarshal([]byte(`1e400`), &overflow); err == nil {
		t.Fatalf("expected out of range lockid to fail, got %q", overflow)
	}
}

func TestUIDCanonicalisesNumbers(t *testing.T) {
	var a, b UID
	if err := json.Unmarshal([]byte(`5.0`), &a); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if err := json.Unmarshal([]byte(`5`), &b); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if a != "5" || a != b {
		t.Fatalf("expected 5.0 and 5 to address one object, got %q and %q", a, b)
	}
}

func TestObjectResultOmitsAbsentFields(t *testing.T) {
	data, err := json.Marshal(ObjectResult{Type: TypeDelete, UID: "box1"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"type":"delete","uid":"box1","success":false}` {
		t.Fatalf("unexpected encoding %s", data)
	}
}

func TestCalibrateResultShapes(t *testing.T) {
	data, _ := json.Marshal(CalibrateFailure())
	if string(data) != `{"type":"calibrate","success":false}` {
		t.Fatalf("unexpected failure encoding %s", data)
	}
	data, _ = json.Marshal(CalibrateSuccess(0, 1.5, 0))
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["x"] != 0.0 || decoded["z"] != 1.5 || decoded["success"] != true {
		t.Fatalf("unexpected success encoding %s", data)
	}
}

func TestSchemaCoversEveryHandledType(t *testing.T) {
	doc := Schema()
	for _, typ := range []string{TypeObject, TypeSpawn, TypeDelete, TypeLock, TypeRelease, TypeActivate, TypeDeactivate, TypeRestart, TypeAvatar, TypeCalibrate} {
		if doc.Inbound[typ] == nil {
			t.Fatalf("missing inbound schema for %q", typ)
		}
	}
	for _, typ := range []string{TypeInitialize, TypeJoin, TypeLeave, TypeTick, TypeClear} {
		if doc.Outbound[typ] == nil {
			t.Fatalf("missing outbound schema for %q", typ)
		}
	}
	if _, err := json.Marshal(doc); err != nil {
		t.Fatalf("schema does not encode: %v", err)
	}
}
