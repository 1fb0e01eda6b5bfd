package config

import (
	"bytes"
	"encoding/json"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE []byte

// Error codes reported by LoadError.
const (
	ErrCodeNotFound    = "CONFIG_NOT_FOUND"
	ErrCodeParse       = "CONFIG_PARSE"
	ErrCodeValidation  = "CONFIG_INVALID"
	ErrCodeUnsupported = "CONFIG_UNSUPPORTED"
)

// LoadError describes why an options file could not be loaded.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsLoadError reports whether err is a LoadError with the given code.
func IsLoadError(err error, code string) bool {
	var le *LoadError
	return errors.As(err, &le) && le.Code == code
}

// Load reads recording options from a .yaml, .yml or .cue file. Fields the
// file omits keep their Default() values. The result is normalized.
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Options{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("options file not found: %s", path)}
		}
		return Options{}, fmt.Errorf("read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".cue":
		return ParseCUE(data, path)
	default:
		return Options{}, &LoadError{Code: ErrCodeUnsupported, Message: fmt.Sprintf("unsupported options file extension: %s", path)}
	}
}

// ParseYAML decodes options from YAML. Unknown keys are rejected.
func ParseYAML(data []byte) (Options, error) {
	opts := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil {
		// An empty document leaves the defaults in place.
		if errors.Is(err, io.EOF) {
			return opts.Normalize(), nil
		}
		return Options{}, &LoadError{Code: ErrCodeParse, Message: err.Error()}
	}
	if opts.WriteKeepTime < 0 {
		return Options{}, &LoadError{Code: ErrCodeValidation, Message: "write_keep_time must be >= 0"}
	}
	if opts.Video.FPS > MaxVideoFPS {
		return Options{}, &LoadError{Code: ErrCodeValidation, Message: fmt.Sprintf("video.fps must be <= %d", MaxVideoFPS)}
	}
	return opts.Normalize(), nil
}

// ParseCUE evaluates data against the embedded #Options schema. filename
// is used only for error positions.
func ParseCUE(data []byte, filename string) (Options, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Options{}, fmt.Errorf("compile options schema: %w", err)
	}

	file := ctx.CompileBytes(data, cue.Filename(filename))
	if err := file.Err(); err != nil {
		return Options{}, cueLoadError(ErrCodeParse, err)
	}

	value := schema.LookupPath(cue.ParsePath("#Options")).Unify(file)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return Options{}, cueLoadError(ErrCodeValidation, err)
	}

	raw, err := value.MarshalJSON()
	if err != nil {
		return Options{}, cueLoadError(ErrCodeValidation, err)
	}
	opts := Default()
	if err := json.Unmarshal(raw, &opts); err != nil {
		return Options{}, &LoadError{Code: ErrCodeParse, Message: err.Error()}
	}
	return opts.Normalize(), nil
}

func cueLoadError(code string, err error) *LoadError {
	le := &LoadError{Code: code, Message: err.Error()}
	if errs := cueerrors.Errors(err); len(errs) > 0 {
		le.Message = errs[0].Error()
		le.Pos = errs[0].Position()
	}
	return le
}
