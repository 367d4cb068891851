package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	gosync "sync"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/tidwall/gjson"
)

// journeyNamePattern matches custom API unique names such as msdynmkt_Journey1.
var journeyNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// JourneyConfig is the journey trigger detail stored in the environment variable.
type JourneyConfig struct {
	AnalyticsID string `json:"analyticsGuid"`
	JourneyName string `json:"cjoName"`
}

// ResolveJourneyConfig looks up schemaName and decodes its effective value.
// The first matching definition wins; its override value is used when set,
// otherwise its default value.
func ResolveJourneyConfig(ctx context.Context, fetcher EnvironmentVariableFetcher, schemaName string) (JourneyConfig, error) {
	var result JourneyConfig
	rows, err := fetcher.FetchEnvironmentVariables(ctx, schemaName)
	if err != nil {
		return result, err
	}

	var value string
	found := false
	for _, row := range rows {
		if strings.EqualFold(row.SchemaName, schemaName) {
			value = row.Value
			if value == "" {
				value = row.DefaultValue
			}
			found = true
			break
		}
	}
	if !found {
		return result, &ConfigNotFoundError{SchemaName: schemaName}
	}

	return ParseJourneyConfig(schemaName, value)
}

// ParseJourneyConfig decodes a journey config value such as
// {"analyticsGuid":"G1","cjoName":"Journey1"}.
func ParseJourneyConfig(schemaName string, value string) (JourneyConfig, error) {
	var result JourneyConfig
	parseError := func(cause error) error {
		return &ConfigParseError{SchemaName: schemaName, Value: value, Err: cause}
	}
	if strings.TrimSpace(value) == "" {
		return result, parseError(errors.New("value is empty"))
	}
	if !gjson.Valid(value) || !gjson.Parse(value).IsObject() {
		return result, parseError(errors.New("value is not a JSON object"))
	}
	if err := json.Unmarshal([]byte(value), &result); err != nil {
		return result, parseError(err)
	}
	if result.JourneyName == "" {
		return result, parseError(errors.New("cjoName is required"))
	}
	if !journeyNamePattern.MatchString(result.JourneyName) {
		return result, parseError(fmt.Errorf("cjoName %q is not a valid custom API name", result.JourneyName))
	}
	return result, nil
}

// ProcessEnvironment serves environment variables from the process
// environment for local runs. sce__ConditionalApproveCJODetail is read from
// the variable named by EnvVarNameForSchema.
type ProcessEnvironment struct {
	LookupEnv func(key string) (string, bool)
}

// EnvVarNameForSchema converts a schema name to the SCREAMING_SNAKE_CASE
// process environment variable name holding its value.
func EnvVarNameForSchema(schemaName string) string {
	return strcase.ToScreamingSnake(schemaName)
}

func (p ProcessEnvironment) FetchEnvironmentVariables(ctx context.Context, schemaName string) ([]EnvironmentVariable, error) {
	lookup := p.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, exists := lookup(EnvVarNameForSchema(schemaName))
	if !exists {
		return nil, nil
	}
	return []EnvironmentVariable{{SchemaName: schemaName, DefaultValue: v}}, nil
}

type cachedEnvironmentVariables struct {
	rows    []EnvironmentVariable
	expires time.Time
}

// EnvironmentVariableCache keeps fetched environment variable rows for TTL.
// It is safe for concurrent use across invocations. A zero TTL disables caching.
type EnvironmentVariableCache struct {
	TTL time.Duration
	Now func() time.Time

	mu      gosync.Mutex
	entries map[string]cachedEnvironmentVariables
}

// Wrap returns a fetcher that consults the cache before fetcher.
func (c *EnvironmentVariableCache) Wrap(fetcher EnvironmentVariableFetcher) EnvironmentVariableFetcher {
	if c == nil || c.TTL <= 0 {
		return fetcher
	}
	return cachedFetcher{cache: c, fetcher: fetcher}
}

func (c *EnvironmentVariableCache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

type cachedFetcher struct {
	cache   *EnvironmentVariableCache
	fetcher EnvironmentVariableFetcher
}

func (f cachedFetcher) FetchEnvironmentVariables(ctx context.Context, schemaName string) ([]EnvironmentVariable, error) {
	c := f.cache
	key := strings.ToLower(schemaName)

	c.mu.Lock()
	if v, ok := c.entries[key]; ok && c.now().Before(v.expires) {
		c.mu.Unlock()
		return v.rows, nil
	}
	c.mu.Unlock()

	rows, err := f.fetcher.FetchEnvironmentVariables(ctx, schemaName)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.entries == nil {
		c.entries = make(map[string]cachedEnvironmentVariables)
	}
	c.entries[key] = cachedEnvironmentVariables{rows: rows, expires: c.now().Add(c.TTL)}
	c.mu.Unlock()
	return rows, nil
}
