package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/CompassSecurity/codechecker/pkg/checker/types"
	"github.com/perimeterx/marshmallow"
	"github.com/tidwall/gjson"
)

// ErrInvalidOptions is returned when the top level configuration cannot be decoded.
var ErrInvalidOptions = errors.New("invalid checker options")

// DefaultOptions returns the empty configuration: no risky strings, an empty allow-list
// and the default domain pattern.
func DefaultOptions() types.Options {
	return types.Options{
		RiskyStringCheck:       []string{},
		AllowedDomainResources: []string{},
		ExcludeModules:         []string{},
		DomainMode:             types.DomainModeExtract,
		Phase:                  types.PhaseDeferred,
	}
}

// ParseOptions decodes a JSON options document. An empty document yields DefaultOptions.
// The second return value lists keys that are not recognized options, sorted.
func ParseOptions(raw string) (types.Options, []string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" {
		return DefaultOptions(), nil, nil
	}

	opts := DefaultOptions()
	unknown, err := marshmallow.Unmarshal([]byte(trimmed), &opts, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return types.Options{}, nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	// marshmallow leaves named string types untouched, the modes are read separately.
	domainMode, err := stringOption(trimmed, "domainMode", string(opts.DomainMode))
	if err != nil {
		return types.Options{}, nil, err
	}
	phase, err := stringOption(trimmed, "phase", string(opts.Phase))
	if err != nil {
		return types.Options{}, nil, err
	}
	opts.DomainMode = types.DomainMode(domainMode)
	opts.Phase = types.Phase(phase)

	if err := validateModes(opts); err != nil {
		return types.Options{}, nil, err
	}

	keys := make([]string, 0, len(unknown))
	for key := range unknown {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return opts, keys, nil
}

func stringOption(doc string, key string, fallback string) (string, error) {
	value := gjson.Get(doc, key)
	switch value.Type {
	case gjson.Null:
		return fallback, nil
	case gjson.String:
		return value.Str, nil
	default:
		return "", fmt.Errorf("%w: %s must be a string, got %s", ErrInvalidOptions, key, value.Raw)
	}
}

func validateModes(opts types.Options) error {
	switch opts.DomainMode {
	case "", types.DomainModeExtract, types.DomainModeMatch:
	default:
		return fmt.Errorf("%w: unknown domainMode %q (expected %q or %q)", ErrInvalidOptions, opts.DomainMode, types.DomainModeExtract, types.DomainModeMatch)
	}

	switch opts.Phase {
	case "", types.PhaseDeferred, types.PhaseImmediate:
	default:
		return fmt.Errorf("%w: unknown phase %q (expected %q or %q)", ErrInvalidOptions, opts.Phase, types.PhaseDeferred, types.PhaseImmediate)
	}

	return nil
}
