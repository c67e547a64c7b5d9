package model

import "github.com/ValentinKolb/recstore/lib/util"

// DataOptions controls the serialisation of records
type DataOptions struct {
	Include []string          // Fields to include even if hidden (with Strict: the only fields)
	Strict  bool              // Only serialise the fields in Include
	Exclude []string          // Fields to omit
	Remap   map[string]string // Field name -> output key (overrides the schema remapping)
	Hidden  bool              // Include hidden fields
}

func toSet(names []string) map[string]struct{} {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// ToData serialises the record to a map. Relationship fields are serialised recursively
// (nested records as maps, collections as lists of maps). Values are deep copies.
func (r *Record) ToData(opts DataOptions) map[string]interface{} {
	include, exclude := toSet(opts.Include), toSet(opts.Exclude)
	// nested records use the visibility settings but not the field selection
	nestedOpts := DataOptions{Hidden: opts.Hidden}

	out := make(map[string]interface{}, len(r.fields))
	for _, f := range r.fields {
		name := f.Name()
		if _, ok := exclude[name]; ok {
			continue
		}
		_, included := include[name]
		if opts.Strict && len(include) > 0 && !included {
			continue
		}
		if f.Hidden() && !opts.Hidden && !included {
			continue
		}

		key := r.schema.outboundName(name)
		if k, ok := opts.Remap[name]; ok {
			key = k
		}

		value := f.Value()
		if f.Definition().IsID() {
			value = r.ID()
		}
		switch v := value.(type) {
		case *Record:
			out[key] = v.ToData(nestedOpts)
		case Collection:
			out[key] = v.Data(nestedOpts)
		default:
			out[key] = util.DeepCopy(v)
		}
	}
	return out
}

// Data serialises the record with hidden fields omitted
func (r *Record) Data() map[string]interface{} {
	return r.ToData(DataOptions{})
}
