package util

import (
	"math"
	"testing"
	"time"
)

func TestHashKeyNormalisesNumbers(t *testing.T) {
	if HashKey(14) != HashKey(14.0) || HashKey(int64(14)) != HashKey(uint8(14)) {
		t.Errorf("Numbers with the same value should have the same key")
	}
	if HashKey(14) == HashKey("14") {
		t.Errorf("Strings and numbers must not collide")
	}

	now := time.UnixMilli(1700000000000)
	if HashKey(now) != HashKey(now.Add(time.Microsecond)) {
		t.Errorf("Dates should be normalised to epoch milliseconds")
	}
	if HashKey(now) == HashKey(float64(now.UnixMilli())) {
		t.Errorf("Dates must not collide with numbers")
	}

	// non comparable values must not panic when used as map keys
	m := map[interface{}]int{}
	m[HashKey([]interface{}{"a", 1})] = 1
	m[HashKey([]interface{}{"a", 1})]++
	if len(m) != 1 || m[HashKey([]interface{}{"a", 1})] != 2 {
		t.Errorf("Equal slices should produce equal keys")
	}
}

func TestOrderKey(t *testing.T) {
	if k, ok := OrderKey(17); !ok || k != 17 {
		t.Errorf("Expected key 17, got %v %v", k, ok)
	}
	ts := time.UnixMilli(1700000000000)
	if k, ok := OrderKey(ts); !ok || k != 1700000000000 {
		t.Errorf("Expected epoch millis, got %v", k)
	}
	if _, ok := OrderKey("abc"); ok {
		t.Errorf("Strings have no order key")
	}
}

func TestDeepCopy(t *testing.T) {
	src := map[string]interface{}{
		"tags":  []interface{}{"a", "b"},
		"inner": map[string]interface{}{"x": 1},
		"ints":  []int{1, 2},
	}
	cp := DeepCopy(src).(map[string]interface{})

	cp["tags"].([]interface{})[0] = "z"
	cp["inner"].(map[string]interface{})["x"] = 2
	cp["ints"].([]int)[0] = 9

	if src["tags"].([]interface{})[0] != "a" || src["inner"].(map[string]interface{})["x"] != 1 || src["ints"].([]int)[0] != 1 {
		t.Errorf("DeepCopy must not share nested values: %v", src)
	}
}

func TestEqual(t *testing.T) {
	if !Equal(1, 1.0) {
		t.Errorf("1 and 1.0 should be equal")
	}
	if Equal(1, "1") {
		t.Errorf("1 and \"1\" should not be equal")
	}
	if !Equal([]interface{}{1, "a"}, []interface{}{1, "a"}) {
		t.Errorf("Equal slices should be equal")
	}
}

func TestHashKeyKeepsIntegerPrecision(t *testing.T) {
	if HashKey(int64(9007199254740992)) == HashKey(int64(9007199254740993)) {
		t.Errorf("Integers above 2^53 must keep distinct keys")
	}
	if HashKey(uint64(math.MaxUint64)) == HashKey(uint64(math.MaxUint64-1)) {
		t.Errorf("Large unsigned integers must keep distinct keys")
	}
	if HashKey(uint64(5)) != HashKey(int64(5)) || HashKey(float32(5)) != HashKey(5) {
		t.Errorf("Small integers should share a key across types")
	}
	if HashKey(1.5) == HashKey(1) {
		t.Errorf("Fractional floats must not collide with integers")
	}
	if Equal(int64(9007199254740992), int64(9007199254740993)) {
		t.Errorf("Equal must not lose integer precision")
	}
}

func TestHashKeyNaN(t *testing.T) {
	if HashKey(math.NaN()) != HashKey(float32(math.NaN())) {
		t.Errorf("All NaN values should share a key")
	}
	if !Equal(math.NaN(), math.NaN()) {
		t.Errorf("NaN should equal NaN")
	}
}

func TestHashKeyUnambiguous(t *testing.T) {
	cases := [][2]interface{}{
		{[]interface{}{"a b"}, []interface{}{"a", "b"}},
		{[]interface{}{"a,b"}, []interface{}{"a", "b"}},
		{[]interface{}{"1"}, []interface{}{1}},
		{[]interface{}{[]interface{}{"a"}, "b"}, []interface{}{"a", []interface{}{"b"}}},
		{map[string]interface{}{"a": "b:c"}, map[string]interface{}{"a:b": "c"}},
	}
	for _, c := range cases {
		if HashKey(c[0]) == HashKey(c[1]) {
			t.Errorf("%#v and %#v must not share a key", c[0], c[1])
		}
		if Equal(c[0], c[1]) {
			t.Errorf("%#v and %#v must not be equal", c[0], c[1])
		}
	}

	a := map[string]interface{}{"x": 1, "y": []interface{}{"z"}, "w": 2.5}
	b := map[string]interface{}{"w": 2.5, "y": []interface{}{"z"}, "x": int64(1)}
	if HashKey(a) != HashKey(b) || !Equal(a, b) {
		t.Errorf("Maps with equal contents should share a key")
	}
}
