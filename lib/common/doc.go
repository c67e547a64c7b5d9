// Package common contains the pieces shared by every recstore package:
//
//   - Error: the error type returned by all constructors and validating operations.
//     Each error carries an ErrCode so callers can match the category with errors.Is
//     against the sentinels ErrConfiguration, ErrValidation, ErrReservedName and ErrReadOnly.
//   - Logging: a logger factory that plugs into dragonboat's logger registry.
//     Packages obtain their logger with logger.GetLogger(name) and InitLoggers
//     configures the level of all recstore loggers at once.
//
// Error policy:
//   - Structural and configuration problems fail fast at construction time (ErrConfiguration, ErrReservedName).
//   - Value assignments that violate field rules return ErrValidation, but only when
//     the field disallows invalid values.
//   - Per-operation problems on a live store (unknown record, missing index value ...) are
//     logged as warnings and reported through nil/false return values instead of errors.
package common
