package varfont

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Errors returned by this package wrap one of these and can be tested with errors.Is.
var (
	ErrTruncatedData        = errors.New("truncated data")
	ErrOffsetOverflow       = errors.New("offset overflow")
	ErrUnsupportedVersion   = errors.New("unsupported version")
	ErrAxisNotFound         = errors.New("axis not found")
	ErrOutOfRange           = errors.New("out of range")
	ErrInconsistentTopology = errors.New("inconsistent topology")
	ErrNoDefaultMaster      = errors.New("no default master")

	// ErrInvalidFontData is returned if the font is malformed.
	ErrInvalidFontData = errors.New("invalid font data")
	// ErrExceedsMemory is returned if a table would decompress beyond MaxMemory.
	ErrExceedsMemory = errors.New("memory limit exceeded")
)

// CodecError is returned by the encoders and decoders of tables and records.
type CodecError struct {
	Err      error
	Table    string // table tag or record name
	Field    string
	Offset   int64
	Expected int64 // expected byte count or offset limit
	Actual   int64
	Version  uint32 // raw version tag for ErrUnsupportedVersion
}

func (e *CodecError) Error() string {
	var sb strings.Builder
	if e.Table != "" {
		sb.WriteString(e.Table)
		if e.Field != "" {
			sb.WriteString(".")
			sb.WriteString(e.Field)
		}
		sb.WriteString(": ")
	}
	sb.WriteString(e.Err.Error())
	switch {
	case errors.Is(e.Err, ErrUnsupportedVersion):
		fmt.Fprintf(&sb, " 0x%08X", e.Version)
	case errors.Is(e.Err, ErrTruncatedData):
		fmt.Fprintf(&sb, " at offset %d: need %d bytes, have %d", e.Offset, e.Expected, e.Actual)
	case errors.Is(e.Err, ErrOffsetOverflow):
		fmt.Fprintf(&sb, ": offset %d exceeds %d", e.Actual, e.Expected)
	}
	return sb.String()
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

func errTruncated(table, field string, offset, expected, actual int64) error {
	return &CodecError{
		Err:      ErrTruncatedData,
		Table:    table,
		Field:    field,
		Offset:   offset,
		Expected: expected,
		Actual:   actual,
	}
}

func errVersion(table string, version uint32) error {
	return &CodecError{
		Err:     ErrUnsupportedVersion,
		Table:   table,
		Version: version,
	}
}

// CompileStep is a stage of a variable font compilation.
type CompileStep int

// see CompileStep
const (
	StepValidate CompileStep = iota
	StepRegions
	StepDeltas
	StepStore
	StepEmit
)

func (step CompileStep) String() string {
	switch step {
	case StepValidate:
		return "validate"
	case StepRegions:
		return "regions"
	case StepDeltas:
		return "deltas"
	case StepStore:
		return "store"
	case StepEmit:
		return "emit"
	}
	return fmt.Sprintf("step(%d)", int(step))
}

// CompileError aborts a compilation. It names the step and, when known, the offending glyph or axis.
type CompileError struct {
	Step  CompileStep
	Glyph string
	Axis  string
	Err   error
}

func (e *CompileError) Error() string {
	var sb strings.Builder
	sb.WriteString("compile ")
	sb.WriteString(e.Step.String())
	if e.Glyph != "" {
		fmt.Fprintf(&sb, " glyph %q", e.Glyph)
	}
	if e.Axis != "" {
		fmt.Fprintf(&sb, " axis %q", e.Axis)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Err.Error())
	return sb.String()
}

func (e *CompileError) Unwrap() error {
	return e.Err
}
