package field

import (
	"fmt"
	"github.com/ValentinKolb/recstore/lib/common"
	"github.com/ValentinKolb/recstore/lib/event"
	"github.com/hashicorp/go-multierror"
	"github.com/lni/dragonboat/v4/logger"
	"regexp"
)

var plog = logger.GetLogger("field")

// defaultLogSize is the number of audit entries kept per field if Config.LogSize is 0
const defaultLogSize = 10

// Config is the user supplied configuration of a field
type Config struct {
	Name     string      // Name of the field (required)
	Type     Type        // Declared type (default TypeAny)
	Default  interface{} // Value returned while the field is unset
	Required bool        // nil and "" are rejected
	Hidden   bool        // Omitted from serialisation unless requested
	ID       bool        // The field is the identifier of the record (write once)

	Pattern string        // Regular expression, only valid for TypeString
	Min     *float64      // Minimum value (numbers) or length (strings, slices, maps)
	Max     *float64      // Maximum value (numbers) or length (strings, slices, maps)
	Enum    []interface{} // Allowed values
	Reject  []interface{} // Rejected values (mutually exclusive with Enum)
	Rules   []Rule        // Custom rules, run after the built-in ones

	AllowInvalid bool                            // Store values even if rules fail (field becomes invalid)
	Transform    func(v interface{}) interface{} // Applied after validation, before storage
	LogSize      int                             // Audit log size (0 = default, <0 = disabled)

	// Compute makes the field virtual: its value is derived from other fields of the
	// record. The cached value is invalidated whenever one of DependsOn changes.
	Compute   func(get func(name string) interface{}) interface{}
	DependsOn []string

	// Observer receives the events of standalone fields. Fields that belong to a record
	// report to the record instead.
	Observer event.Observer
}

// Definition is the validated, immutable form of a Config
type Definition struct {
	cfg   Config
	rules []Rule
}

// Define validates cfg and compiles its rule list.
// Invalid combinations return an error with code common.ErrCConfiguration.
func Define(cfg Config) (*Definition, error) {
	if cfg.Name == "" {
		return nil, common.NewError(common.ErrCConfiguration, "field name must not be empty")
	}

	var rules []Rule
	if cfg.Required {
		rules = append(rules, requiredRule())
	}
	if cfg.Type != TypeAny {
		rules = append(rules, typeRule(cfg.Type))
	}

	// pattern
	if cfg.Pattern != "" {
		if cfg.Type != TypeString {
			return nil, common.Errorf(common.ErrCConfiguration, cfg.Name, "pattern is only valid for string fields (type is %s)", cfg.Type)
		}
		re, err := regexp.Compile(cfg.Pattern)
		if err != nil {
			return nil, common.Wrap(common.ErrCConfiguration, cfg.Name, "invalid pattern", err)
		}
		rules = append(rules, patternRule(re))
	}

	// range
	if cfg.Min != nil && cfg.Max != nil && *cfg.Min > *cfg.Max {
		return nil, common.Errorf(common.ErrCConfiguration, cfg.Name, "min (%v) is greater than max (%v)", *cfg.Min, *cfg.Max)
	}
	if cfg.Min != nil || cfg.Max != nil {
		switch cfg.Type {
		case TypeBool, TypeTime:
			return nil, common.Errorf(common.ErrCConfiguration, cfg.Name, "min/max are not valid for %s fields", cfg.Type)
		}
		rules = append(rules, rangeRule(cfg.Min, cfg.Max))
	}

	// enum / reject
	if len(cfg.Enum) > 0 && len(cfg.Reject) > 0 {
		return nil, common.Errorf(common.ErrCConfiguration, cfg.Name, "enum and reject are mutually exclusive")
	}
	if len(cfg.Enum) > 0 {
		cfg.Enum = append([]interface{}(nil), cfg.Enum...)
		rules = append(rules, enumRule(cfg.Enum))
	}
	if len(cfg.Reject) > 0 {
		cfg.Reject = append([]interface{}(nil), cfg.Reject...)
		rules = append(rules, rejectRule(cfg.Reject))
	}

	for i, r := range cfg.Rules {
		if r.Check == nil {
			return nil, common.Errorf(common.ErrCConfiguration, cfg.Name, "rule %d (%s) has no check function", i, r.Name)
		}
	}
	rules = append(rules, cfg.Rules...)

	// virtual fields
	if cfg.Compute != nil {
		if cfg.Default != nil || cfg.Transform != nil || cfg.ID {
			return nil, common.Errorf(common.ErrCConfiguration, cfg.Name, "virtual fields cannot have a default, a transformer or be an identifier")
		}
	} else if len(cfg.DependsOn) > 0 {
		return nil, common.Errorf(common.ErrCConfiguration, cfg.Name, "dependencies are only valid for virtual fields")
	}

	// the default must have the declared type
	if cfg.Default != nil && !cfg.Type.Check(cfg.Default) {
		return nil, common.Errorf(common.ErrCConfiguration, cfg.Name, "default %v is not of type %s", cfg.Default, cfg.Type)
	}

	return &Definition{cfg: cfg, rules: rules}, nil
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

func (d *Definition) Name() string             { return d.cfg.Name }
func (d *Definition) Type() Type               { return d.cfg.Type }
func (d *Definition) Default() interface{}     { return d.cfg.Default }
func (d *Definition) Required() bool           { return d.cfg.Required }
func (d *Definition) Hidden() bool             { return d.cfg.Hidden }
func (d *Definition) IsID() bool               { return d.cfg.ID }
func (d *Definition) IsVirtual() bool          { return d.cfg.Compute != nil }
func (d *Definition) DependsOn() []string      { return append([]string(nil), d.cfg.DependsOn...) }
func (d *Definition) AllowInvalid() bool       { return d.cfg.AllowInvalid }
func (d *Definition) Observer() event.Observer { return d.cfg.Observer }

// Config returns a copy of the configuration the definition was created from
func (d *Definition) Config() Config {
	return d.cfg
}

// Rules returns the names of the compiled rules in evaluation order
func (d *Definition) Rules() []string {
	names := make([]string, len(d.rules))
	for i, r := range d.rules {
		names[i] = r.Name
	}
	return names
}

// Validate runs every rule against v and returns the aggregated failures (nil if v is valid)
func (d *Definition) Validate(v interface{}) error {
	var result *multierror.Error
	for _, r := range d.rules {
		if err := r.Check(v); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", r.Name, err))
			// a missing value makes every other rule meaningless
			if r.Name == "required" && err == errRequired {
				break
			}
		}
	}
	return result.ErrorOrNil()
}

// Instance creates a new, unset field of this definition
func (d *Definition) Instance() *Field {
	return &Field{
		def:      d,
		hidden:   d.cfg.Hidden,
		valid:    true,
		observer: d.cfg.Observer,
	}
}

// WithName returns a copy of the definition with a different name
func (d *Definition) WithName(name string) *Definition {
	cp := *d
	cp.cfg.Name = name
	return &cp
}
