package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/danmuck/tdproto/internal/protocol/value"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

// ValidationError names one rejected entry.
type ValidationError struct {
	Section string
	Name    string
	Reason  string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("schema: %s %q: %s", e.Section, e.Name, e.Reason)
}

// Is makes every ValidationError match ErrInvalid.
func (e ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// Validate checks field and message tables. All problems are reported
// together; the result unwraps with multierr.Errors.
func Validate(fields map[string]Field, protos map[string]Proto) error {
	log.Debug().Int("fields", len(fields)).Int("protos", len(protos)).Msg("schema.Validate")
	var errs error

	names := sortedKeys(fields)
	owner := make(map[uint16]string, len(fields))
	for _, name := range names {
		f := fields[name]
		if strings.TrimSpace(name) == "" {
			errs = multierr.Append(errs, ValidationError{"field", name, "empty name"})
		}
		if f.Index == 0 {
			errs = multierr.Append(errs, ValidationError{"field", name, "index 0 is reserved for the nil marker"})
		}
		if prev, dup := owner[f.Index]; dup {
			errs = multierr.Append(errs, ValidationError{
				"field", name, fmt.Sprintf("index %d already used by %q", f.Index, prev),
			})
		} else {
			owner[f.Index] = name
		}
		if err := checkTypeName(f.Pattern); err != "" {
			errs = multierr.Append(errs, ValidationError{"field", name, err})
		}
	}

	for _, name := range sortedKeys(protos) {
		p := protos[name]
		if strings.TrimSpace(name) == "" {
			errs = multierr.Append(errs, ValidationError{"proto", name, "empty name"})
		}
		if len(name) > 0xffff {
			errs = multierr.Append(errs, ValidationError{"proto", name, "name longer than 65535 bytes"})
		}
		for i, arg := range p.Args {
			if err := checkTypeName(arg); err != "" {
				errs = multierr.Append(errs, ValidationError{"proto", name, fmt.Sprintf("arg %d: %s", i, err)})
			}
		}
	}

	if errs != nil {
		log.Error().Err(errs).Int("problems", len(multierr.Errors(errs))).Msg("schema.Validate rejected")
		return errs
	}
	log.Debug().Msg("schema.Validate ok")
	return nil
}

func checkTypeName(name string) string {
	code, ok := value.LookupName(name)
	if !ok {
		return fmt.Sprintf("unknown type %q", name)
	}
	if code == value.CodeNil {
		return "nil is not a usable type"
	}
	return ""
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
