package expr

import (
	"errors"
	"testing"

	"github.com/ValentinKolb/recstore/lib/common"
	"github.com/ValentinKolb/recstore/lib/field"
	"github.com/ValentinKolb/recstore/lib/model"
)

func TestCompileErrors(t *testing.T) {
	for _, src := range []string{"record.", "1 + 2", "'text'"} {
		if _, err := Compile(src); !errors.Is(err, common.ErrConfiguration) {
			t.Errorf("Compile(%q): expected configuration error, got %v", src, err)
		}
	}
}

func TestEval(t *testing.T) {
	x := MustCompile(`record.last == "Doe" && record.age >= 18`)

	cases := []struct {
		data map[string]interface{}
		want bool
	}{
		{map[string]interface{}{"last": "Doe", "age": 30}, true},
		{map[string]interface{}{"last": "Doe", "age": 12}, false},
		{map[string]interface{}{"last": "Roe", "age": 30}, false},
	}
	for _, c := range cases {
		got, err := x.Eval(c.data)
		if err != nil {
			t.Fatalf("Eval(%v) failed: %v", c.data, err)
		}
		if got != c.want {
			t.Errorf("Eval(%v) = %v, expected %v", c.data, got, c.want)
		}
	}

	if _, err := x.Eval(map[string]interface{}{"age": 30}); err == nil {
		t.Error("Missing key should be an evaluation error")
	}
}

func TestMatchRecord(t *testing.T) {
	s, err := model.NewSchema(model.SchemaConfig{Fields: []field.Config{
		{Name: "first", Type: field.TypeString},
		{Name: "secret", Hidden: true},
	}})
	if err != nil {
		t.Fatal(err)
	}
	r, _ := s.New(map[string]interface{}{"first": "Jill", "secret": "s"})

	if !MustCompile(`record.first.startsWith("J")`).Match(r) {
		t.Error("Jill should match startsWith J")
	}
	if !MustCompile(`record.secret == "s"`).Match(r) {
		t.Error("Hidden fields should be visible to expressions")
	}
	if MustCompile(`record.missing == 1`).Match(r) {
		t.Error("Evaluation errors should not match")
	}
}
