package envelope

import (
	"testing"

	"github.com/goccy/go-json"

	"github.com/aisgo/vlog-gateway/errors"
)

type item struct {
	ID    string  `json:"id"`
	Count FlexInt `json:"count"`
}

func TestDecodeClassifyRead(t *testing.T) {
	cases := []struct {
		name string
		body string
		ok   bool
	}{
		{"empty code with data", `{"code":"","message":"","data":{"id":"a"}}`, true},
		{"zero code with data", `{"code":"0","data":{"id":"a"}}`, true},
		{"numeric zero code", `{"code":0,"data":{"id":"a"}}`, true},
		{"missing code", `{"data":{"id":"a"}}`, true},
		{"failure code with data", `{"code":"1","message":"boom","data":{"id":"a"}}`, false},
		{"200 on read", `{"code":"200","data":{"id":"a"}}`, false},
		{"null data", `{"code":"0","data":null}`, false},
		{"absent data", `{"code":""}`, false},
		{"unknown fields ignored", `{"code":"0","data":{"id":"a","extra":[1,2]},"trace":"x"}`, true},
	}

	for _, tc := range cases {
		env, err := Decode[item]([]byte(tc.body))
		if err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		_, err = env.Payload()
		if (err == nil) != tc.ok {
			t.Fatalf("%s: unexpected classification: err=%v want ok=%v", tc.name, err, tc.ok)
		}
		if err != nil && errors.Code(err) != errors.ErrCodeUpstreamBusiness {
			t.Fatalf("%s: unexpected error code: %v", tc.name, errors.Code(err))
		}
	}
}

func TestClassifyMutationAccepts200(t *testing.T) {
	env, err := Decode[bool]([]byte(`{"code":"200","message":"ok"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := env.Classify(Mutation, false); err != nil {
		t.Fatalf("expected mutation success: %v", err)
	}
	if err := env.Classify(Read, false); err == nil {
		t.Fatalf("expected read classification to reject 200")
	}
	if err := env.Classify(Mutation, true); err == nil {
		t.Fatalf("expected missing data to fail when required")
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, body := range []string{`<html>`, `{"code":`, `[1,2]`, ``} {
		if _, err := Decode[item]([]byte(body)); err == nil {
			t.Fatalf("expected decode error for %q", body)
		} else if errors.Code(err) != errors.ErrCodeDecode {
			t.Fatalf("unexpected code for %q: %v", body, errors.Code(err))
		}
	}
}

func TestFlexInt(t *testing.T) {
	cases := []struct {
		raw   string
		value int64
		valid bool
	}{
		{`17`, 17, true},
		{`"17"`, 17, true},
		{`" 5 "`, 5, true},
		{`17.0`, 17, true},
		{`"2.0"`, 2, true},
		{`null`, 0, false},
		{`""`, 0, false},
		{`"abc"`, 0, false},
		{`{}`, 0, false},
		{`"1e30"`, 0, false},
		{`-1e30`, 0, false},
		{`9.3e18`, 0, false},
		{`"-9.2e18"`, -9200000000000000000, true},
	}
	for _, tc := range cases {
		var f FlexInt
		if err := json.Unmarshal([]byte(tc.raw), &f); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.raw, err)
		}
		if f.Valid != tc.valid || f.Value != tc.value {
			t.Fatalf("unexpected FlexInt for %s: %+v", tc.raw, f)
		}
	}

	out, err := json.Marshal(struct {
		A FlexInt `json:"a"`
		B FlexInt `json:"b"`
	}{A: Int(3)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"a":3,"b":null}` {
		t.Fatalf("unexpected marshal output: %s", out)
	}
}

func TestFlexFloatAndString(t *testing.T) {
	var f FlexFloat
	if err := json.Unmarshal([]byte(`"8.5"`), &f); err != nil || !f.Valid || f.Value != 8.5 {
		t.Fatalf("unexpected FlexFloat: %+v err=%v", f, err)
	}

	var s FlexString
	if err := json.Unmarshal([]byte(`200`), &s); err != nil || s != "200" {
		t.Fatalf("unexpected FlexString: %q err=%v", s, err)
	}
	var empty FlexString
	if err := json.Unmarshal([]byte(`null`), &empty); err != nil || empty != "" {
		t.Fatalf("unexpected FlexString for null: %q err=%v", empty, err)
	}
}
