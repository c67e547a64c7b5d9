package field

import (
	"errors"
	"strings"
	"testing"

	"github.com/ValentinKolb/recstore/lib/common"
	"github.com/ValentinKolb/recstore/lib/event"
)

func mustField(t *testing.T, cfg Config) (*Field, *event.Recorder) {
	t.Helper()
	rec := &event.Recorder{}
	cfg.Observer = rec
	f, err := New(cfg)
	if err != nil {
		t.Fatalf("New(%s) failed: %v", cfg.Name, err)
	}
	return f, rec
}

func TestDefineConfigurationErrors(t *testing.T) {
	cases := map[string]Config{
		"empty name":          {},
		"pattern on int":      {Name: "a", Type: TypeInt, Pattern: "^1$"},
		"invalid pattern":     {Name: "a", Type: TypeString, Pattern: "("},
		"min greater max":     {Name: "a", Type: TypeInt, Min: Limit(5), Max: Limit(1)},
		"enum and reject":     {Name: "a", Enum: []interface{}{1}, Reject: []interface{}{2}},
		"default wrong type":  {Name: "a", Type: TypeInt, Default: "x"},
		"virtual default":     {Name: "a", Default: 1, Compute: func(func(string) interface{}) interface{} { return nil }},
		"depends not virtual": {Name: "a", DependsOn: []string{"b"}},
		"rule without check":  {Name: "a", Rules: []Rule{{Name: "broken"}}},
	}
	for name, cfg := range cases {
		if _, err := Define(cfg); !errors.Is(err, common.ErrConfiguration) {
			t.Errorf("%s: expected configuration error, got %v", name, err)
		}
	}
}

func TestDefaultValue(t *testing.T) {
	f, _ := mustField(t, Config{Name: "count", Type: TypeInt, Default: 3})
	if f.Value() != 3 {
		t.Errorf("Expected default 3, got %v", f.Value())
	}
	if f.IsSet() || f.Modified() {
		t.Error("Fresh field should be unset and unmodified")
	}
}

func TestSetEmitsUpdate(t *testing.T) {
	f, rec := mustField(t, Config{Name: "name", Type: TypeString})
	if err := f.Set("John"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if f.Value() != "John" || !f.Modified() {
		t.Errorf("Expected modified value John, got %v", f.Value())
	}

	evs := rec.Events()
	if len(evs) != 1 || evs[0].Type != event.FieldUpdate {
		t.Fatalf("Expected one field.update, got %v", rec.Types())
	}
	d := evs[0].Delta.(event.FieldDelta)
	if d.Field != "name" || d.Old != nil || d.New != "John" {
		t.Errorf("Unexpected delta %+v", d)
	}
}

func TestValidationRollback(t *testing.T) {
	f, rec := mustField(t, Config{Name: "age", Type: TypeInt, Min: Limit(0), Max: Limit(150)})
	if err := f.Set(42); err != nil {
		t.Fatalf("Set(42) failed: %v", err)
	}

	err := f.Set(200)
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if f.Value() != 42 {
		t.Errorf("Value should be unchanged after a failed Set, got %v", f.Value())
	}
	if rec.Count(event.FieldUpdate) != 1 {
		t.Errorf("Failed Set must not emit field.update, got %v", rec.Types())
	}

	if err := f.Set("old"); !errors.Is(err, common.ErrValidation) {
		t.Errorf("Expected type violation, got %v", err)
	}
}

func TestAggregatedRuleFailures(t *testing.T) {
	f, _ := mustField(t, Config{
		Name:    "code",
		Type:    TypeString,
		Pattern: "^[a-z]+$",
		Max:     Limit(3),
		Rules: []Rule{Predicate("no-x", func(v interface{}) bool {
			return !strings.Contains(v.(string), "X")
		})},
	})
	err := f.Set("ABXDE")
	if err == nil {
		t.Fatal("Expected error")
	}
	for _, rule := range []string{"pattern", "range", "no-x"} {
		if !strings.Contains(err.Error(), rule) {
			t.Errorf("Error should mention rule %q: %v", rule, err)
		}
	}
}

func TestRequired(t *testing.T) {
	f, _ := mustField(t, Config{Name: "email", Type: TypeString, Required: true})
	if err := f.Set(""); !errors.Is(err, common.ErrValidation) {
		t.Errorf("Empty string should fail required rule, got %v", err)
	}
	if err := f.Set(nil); !errors.Is(err, common.ErrValidation) {
		t.Errorf("nil should fail required rule, got %v", err)
	}
	if err := f.Set("a@b.c"); err != nil {
		t.Errorf("Valid value rejected: %v", err)
	}
}

func TestEnumAndReject(t *testing.T) {
	enum, _ := mustField(t, Config{Name: "color", Enum: []interface{}{"red", "green"}})
	if err := enum.Set("blue"); err == nil {
		t.Error("blue should not be accepted by enum")
	}
	if err := enum.Set("red"); err != nil {
		t.Errorf("red should be accepted: %v", err)
	}

	reject, _ := mustField(t, Config{Name: "n", Type: TypeInt, Reject: []interface{}{13}})
	if err := reject.Set(int64(13)); err == nil {
		t.Error("13 should be rejected regardless of the integer type")
	}
}

func TestAllowInvalid(t *testing.T) {
	f, rec := mustField(t, Config{Name: "n", Type: TypeInt, Max: Limit(10), AllowInvalid: true})

	if err := f.Set(20); err != nil {
		t.Fatalf("AllowInvalid field should store invalid values, got %v", err)
	}
	if f.Valid() || f.Err() == nil || f.Value() != 20 {
		t.Errorf("Field should hold invalid value 20 (valid=%v err=%v)", f.Valid(), f.Err())
	}
	if err := f.Set(5); err != nil {
		t.Fatal(err)
	}
	if !f.Valid() {
		t.Error("Field should be valid again")
	}

	want := []event.Type{event.FieldInvalid, event.FieldUpdate, event.FieldValid, event.FieldUpdate}
	got := rec.Types()
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestTransform(t *testing.T) {
	f, _ := mustField(t, Config{Name: "tag", Type: TypeString, Transform: func(v interface{}) interface{} {
		return strings.ToLower(v.(string))
	}})
	_ = f.Set("GoLang")
	if f.Value() != "golang" {
		t.Errorf("Expected transformed value, got %v", f.Value())
	}
}

func TestIdentifierWriteOnce(t *testing.T) {
	f, _ := mustField(t, Config{Name: "id", ID: true})
	if err := f.Set("a"); err != nil {
		t.Fatal(err)
	}
	if err := f.Set("b"); !errors.Is(err, common.ErrReadOnly) {
		t.Errorf("Second assignment should fail with ErrReadOnly, got %v", err)
	}
	if f.Value() != "a" {
		t.Errorf("Identifier changed to %v", f.Value())
	}
}

func TestUndoRedoTruncation(t *testing.T) {
	f, _ := mustField(t, Config{Name: "v", Type: TypeInt})
	for _, v := range []int{1, 2, 3} {
		_ = f.Set(v)
	}

	if !f.Undo() || f.Value() != 2 {
		t.Fatalf("Undo should restore 2, got %v", f.Value())
	}
	if !f.Undo() || f.Value() != 1 {
		t.Fatalf("Undo should restore 1, got %v", f.Value())
	}
	if !f.Redo() || f.Value() != 2 {
		t.Fatalf("Redo should restore 2, got %v", f.Value())
	}

	// a fresh write discards 3
	_ = f.Set(9)
	if f.CanRedo() {
		t.Error("Redo history should be truncated after a write")
	}
	hist := f.History()
	want := []interface{}{nil, 1, 2, 9}
	if len(hist) != len(want) {
		t.Fatalf("Expected history %v, got %v", want, hist)
	}
	for i := range want {
		if hist[i] != want[i] {
			t.Errorf("History[%d]: expected %v, got %v", i, want[i], hist[i])
		}
	}

	// undo back to the unset state
	for f.Undo() {
	}
	if f.IsSet() {
		t.Errorf("Field should be unset after undoing every write, got %v", f.Value())
	}
}

func TestUndoAfterInit(t *testing.T) {
	f, _ := mustField(t, Config{Name: "v"})
	_ = f.Init("initial")
	_ = f.Set("changed")
	if !f.Undo() || f.Value() != "initial" {
		t.Errorf("Undo should restore the initial value, got %v", f.Value())
	}
}

func TestHideUnhide(t *testing.T) {
	f, rec := mustField(t, Config{Name: "secret"})
	f.Hide()
	f.Hide()
	f.Unhide()
	if rec.Count(event.FieldHide) != 1 || rec.Count(event.FieldUnhide) != 1 {
		t.Errorf("Expected one hide and one unhide event, got %v", rec.Types())
	}
}

func TestVirtualField(t *testing.T) {
	values := map[string]interface{}{"first": "John", "last": "Doe"}
	calls := 0
	f, rec := mustField(t, Config{
		Name:      "full",
		DependsOn: []string{"first", "last"},
		Compute: func(get func(string) interface{}) interface{} {
			calls++
			return get("first").(string) + " " + get("last").(string)
		},
	})
	f.SetResolver(func(name string) interface{} { return values[name] })

	if f.Value() != "John Doe" || f.Value() != "John Doe" {
		t.Errorf("Unexpected computed value %v", f.Value())
	}
	if calls != 1 {
		t.Errorf("Computed value should be cached, computed %d times", calls)
	}
	if err := f.Set("x"); !errors.Is(err, common.ErrReadOnly) {
		t.Errorf("Virtual fields must be read-only, got %v", err)
	}

	values["first"] = "Jill"
	f.Invalidate()
	if f.Value() != "Jill Doe" {
		t.Errorf("Expected recomputed value, got %v", f.Value())
	}
	if rec.Count(event.FieldUpdate) != 1 {
		t.Errorf("Invalidate should emit one update, got %v", rec.Types())
	}
}

func TestReset(t *testing.T) {
	f, rec := mustField(t, Config{Name: "n", Default: 0})
	_ = f.Set(5)
	f.Reset()
	if f.IsSet() || f.Modified() || f.Value() != 0 {
		t.Errorf("Reset should restore the unset state, got %v", f.Value())
	}
	if f.CanUndo() {
		t.Error("Reset should clear the audit log")
	}
	if rec.Count(event.FieldUpdate) != 2 {
		t.Errorf("Expected two updates, got %v", rec.Types())
	}
}

func TestCloneIsIndependent(t *testing.T) {
	f, _ := mustField(t, Config{Name: "tags", Type: TypeSlice})
	_ = f.Set([]interface{}{"a"})
	c := f.Clone()
	_ = f.Managed().Append("b")

	if c.Managed().Len() != 1 {
		t.Errorf("Clone should not see changes of the original, got %v", c.Value())
	}
}
