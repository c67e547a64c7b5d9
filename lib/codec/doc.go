// Package codec provides dataset serialization for snapshots and the command line tools.
// A dataset is a list of serialised records ([]map[string]interface{}).
//
// Implementations:
//
//   - jsonCodecImpl: JSON encoding, human-readable and the default for files. Numbers are
//     decoded as float64, dates as RFC 3339 strings.
//
//   - gobCodecImpl: Go's gob encoding, keeps Go types (int, time.Time) intact and is the
//     default for in-memory snapshots.
//
//   - yamlCodecImpl: YAML encoding (gopkg.in/yaml.v3), used for hand-written datasets.
//
// Thread Safety:
//
//	All codecs are stateless and safe for concurrent use.
package codec
