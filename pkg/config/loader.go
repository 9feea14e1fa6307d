package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/CompassSecurity/codechecker/pkg/checker/rules"
	"github.com/CompassSecurity/codechecker/pkg/checker/types"
	"github.com/CompassSecurity/codechecker/pkg/httpclient"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"
)

// EnvOptions names the environment variable holding a JSON options document.
const EnvOptions = "CODECHECKER_OPTIONS"

// ErrOptionsKeyNotFound is returned when the selected key does not exist in an options document.
var ErrOptionsKeyNotFound = errors.New("options key not found")

// OptionsSource lists where checker options may come from. The first non-empty source
// wins in the order Inline, File, URL. Without any, the EnvOptions variable is used
// and finally the default options.
type OptionsSource struct {
	Inline string
	File   string
	URL    string
	// Key is a gjson path selecting the options object inside a File or URL document,
	// e.g. "codeChecker" for a package.json.
	Key string
}

func LoadOptions(ctx context.Context, src OptionsSource) (types.Options, []string, error) {
	switch {
	case strings.TrimSpace(src.Inline) != "":
		log.Debug().Msg("Using inline checker options")
		return rules.ParseOptions(src.Inline)
	case src.File != "":
		log.Debug().Str("file", src.File).Str("key", src.Key).Msg("Loading checker options from file")
		return LoadOptionsFile(src.File, src.Key)
	case src.URL != "":
		log.Debug().Str("url", src.URL).Str("key", src.Key).Msg("Loading checker options from URL")
		return LoadOptionsURL(ctx, src.URL, src.Key)
	}

	if raw, ok := OptionsFromEnv(); ok {
		log.Debug().Str("env", EnvOptions).Msg("Using checker options from environment")
		return rules.ParseOptions(raw)
	}

	return rules.DefaultOptions(), nil, nil
}

// OptionsFromEnv returns the raw options document from the environment, if set.
func OptionsFromEnv() (string, bool) {
	raw, ok := os.LookupEnv(EnvOptions)
	if !ok || strings.TrimSpace(raw) == "" {
		return "", false
	}
	return raw, true
}

// LoadOptionsFile reads a .json, .json5, .yaml or .yml options document.
func LoadOptionsFile(file string, key string) (types.Options, []string, error) {
	// #nosec G304 - User-provided config path via --config flag
	data, err := os.ReadFile(file)
	if err != nil {
		return types.Options{}, nil, fmt.Errorf("failed reading options file: %w", err)
	}
	return decodeOptionsDocument(file, data, key)
}

// LoadOptionsURL fetches an options document. The document format is derived from the URL path.
func LoadOptionsURL(ctx context.Context, rawURL string, key string) (types.Options, []string, error) {
	if err := ValidateURL(rawURL, "options URL"); err != nil {
		return types.Options{}, nil, err
	}

	client := httpclient.GetHTTPClient(map[string]string{"Accept": "application/json, application/yaml;q=0.9, */*;q=0.8"})
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return types.Options{}, nil, fmt.Errorf("failed creating options request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return types.Options{}, nil, fmt.Errorf("failed fetching options: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return types.Options{}, nil, fmt.Errorf("failed fetching options from %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Options{}, nil, fmt.Errorf("failed reading options response: %w", err)
	}

	parsed, _ := url.Parse(rawURL)
	return decodeOptionsDocument(parsed.Path, body, key)
}

func decodeOptionsDocument(name string, data []byte, key string) (types.Options, []string, error) {
	jsonData, err := toJSON(name, data)
	if err != nil {
		return types.Options{}, nil, fmt.Errorf("%w: %s: %w", rules.ErrInvalidOptions, name, err)
	}

	if key != "" {
		if !gjson.ValidBytes(jsonData) {
			return types.Options{}, nil, fmt.Errorf("%w: %s is not valid JSON", rules.ErrInvalidOptions, name)
		}
		result := gjson.GetBytes(jsonData, key)
		if !result.Exists() {
			return types.Options{}, nil, fmt.Errorf("%w: %q in %s", ErrOptionsKeyNotFound, key, name)
		}
		jsonData = []byte(result.Raw)
	}

	return rules.ParseOptions(string(jsonData))
}

// toJSON converts YAML and JSON5 documents by file extension. The JSON5 decoder accepts
// comments, unquoted keys and trailing commas but only double quoted strings.
func toJSON(name string, data []byte) ([]byte, error) {
	var doc interface{}

	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	case ".json5":
		if err := json5.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	default:
		return data, nil
	}

	return json.Marshal(doc)
}
