package trigger

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"go.uber.org/config"
)

const (
	JourneySourceDataverse = "dataverse"
	JourneySourceProcess   = "process"
)

type Config struct {
	API         APISettings
	Opportunity OpportunitySettings
	Journey     JourneySettings
	Dispatch    DispatchSettings
	Webhook     WebhookSettings
	Tracing     TracingSettings
}

type APISettings struct {
	Keys struct {
		Dataverse string
	}
	Endpoints struct {
		Dataverse string
	}
	// Version is the Web API version segment, e.g. "v9.2".
	Version        string
	RecordRequests bool `yaml:"recordRequests"`
}

// OpportunitySettings names the opportunity attributes read from the
// execution context. The previous amount is read from its own column in the
// pre-image, not from the pre-image copy of the new amount.
type OpportunitySettings struct {
	ConditionallyApprovedStatus int    `yaml:"conditionallyApprovedStatus"`
	PreImage                    string `yaml:"preImage"`
	Attributes                  struct {
		ApprovedAmount         string `yaml:"approvedAmount"`
		PreviousApprovedAmount string `yaml:"previousApprovedAmount"`
		ApplicationStatus      string `yaml:"applicationStatus"`
	}
}

type JourneySettings struct {
	// ConfigKey is the schema name of the environment variable holding the journey JSON.
	ConfigKey string `yaml:"configKey"`
	// Source is "dataverse" (environment variable tables) or "process" (OS environment).
	Source   string
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

type DispatchSettings struct {
	Timeout     time.Duration
	Concurrency int
}

type WebhookSettings struct {
	Addr string
	Key  string
}

type TracingSettings struct {
	Enabled     bool
	ServiceName string `yaml:"serviceName"`
	Output      string
}

// Classifier returns the change classifier configured for this deployment.
func (c Config) Classifier() Classifier {
	return Classifier{ConditionallyApprovedStatus: c.Opportunity.ConditionallyApprovedStatus}
}

var (
	apiVersionPattern  = regexp.MustCompile(`^v[0-9]+\.[0-9]+$`)
	logicalNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// Validate checks the settings the notifier cannot run without.
func (c Config) Validate() error {
	var errs []error
	if c.API.Endpoints.Dataverse == "" {
		errs = append(errs, errors.New("dataverse endpoint is required (api.endpoints.dataverse)"))
	} else if u, err := url.Parse(c.API.Endpoints.Dataverse); err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		errs = append(errs, fmt.Errorf("dataverse endpoint %q is not an absolute http(s) URL", c.API.Endpoints.Dataverse))
	}
	if !apiVersionPattern.MatchString(c.API.Version) {
		errs = append(errs, fmt.Errorf("dataverse api version %q must look like v9.2 (api.version)", c.API.Version))
	}
	if c.Opportunity.PreImage == "" {
		errs = append(errs, errors.New("pre-image name is required (opportunity.preImage)"))
	}
	for _, name := range []string{
		c.Opportunity.PreImage,
		c.Opportunity.Attributes.ApprovedAmount,
		c.Opportunity.Attributes.PreviousApprovedAmount,
		c.Opportunity.Attributes.ApplicationStatus,
	} {
		if name != "" && !logicalNamePattern.MatchString(name) {
			errs = append(errs, fmt.Errorf("%q is not a valid logical name (opportunity)", name))
		}
	}
	if c.Opportunity.Attributes.ApprovedAmount == "" ||
		c.Opportunity.Attributes.PreviousApprovedAmount == "" ||
		c.Opportunity.Attributes.ApplicationStatus == "" {
		errs = append(errs, errors.New("all opportunity attribute names are required (opportunity.attributes)"))
	}
	if c.Journey.ConfigKey == "" {
		errs = append(errs, errors.New("journey config key is required (journey.configKey)"))
	}
	switch c.Journey.Source {
	case JourneySourceDataverse, JourneySourceProcess:
	default:
		errs = append(errs, fmt.Errorf("unsupported journey source %q (journey.source)", c.Journey.Source))
	}
	if c.Journey.CacheTTL < 0 {
		errs = append(errs, errors.New("journey cache ttl must not be negative (journey.cacheTTL)"))
	}
	if c.Dispatch.Timeout <= 0 {
		errs = append(errs, errors.New("dispatch timeout must be positive (dispatch.timeout)"))
	}
	if c.Dispatch.Concurrency < 1 {
		errs = append(errs, errors.New("dispatch concurrency must be at least 1 (dispatch.concurrency)"))
	}
	return errors.Join(errs...)
}

type ConfigUnmarshaler interface {
	Unmarshal(sources ...ConfigFile) (Config, error)
}

// YAMLConfigUnmarshaler merges YAML sources in order, later sources
// overriding earlier ones, and expands ${VAR:default} references using LookupEnv.
type YAMLConfigUnmarshaler struct {
	LookupEnv func(key string) (string, bool)
}

func (u YAMLConfigUnmarshaler) Unmarshal(sources ...ConfigFile) (Config, error) {
	var result Config
	var options []config.YAMLOption
	for _, s := range sources {
		if s.Length > 0 {
			options = append(options, config.Source(s.Reader))
		}
	}
	lookup := u.LookupEnv
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	options = append(options, config.Expand(lookup))
	yaml, err := config.NewYAML(options...)
	if err != nil {
		return result, fmt.Errorf("failed to read yaml config %w", err)
	}
	readError := func(key string, cause error) error {
		return fmt.Errorf("failed to read '%s' from yaml config %w", key, cause)
	}
	key := "api"
	err = yaml.Get(key).Populate(&result.API)
	if err != nil {
		return result, readError(key, err)
	}
	key = "opportunity"
	err = yaml.Get(key).Populate(&result.Opportunity)
	if err != nil {
		return result, readError(key, err)
	}
	key = "journey"
	err = yaml.Get(key).Populate(&result.Journey)
	if err != nil {
		return result, readError(key, err)
	}
	key = "dispatch"
	err = yaml.Get(key).Populate(&result.Dispatch)
	if err != nil {
		return result, readError(key, err)
	}
	key = "webhook"
	if yaml.Get(key).HasValue() {
		err = yaml.Get(key).Populate(&result.Webhook)
		if err != nil {
			return result, readError(key, err)
		}
	}
	key = "tracing"
	if yaml.Get(key).HasValue() {
		err = yaml.Get(key).Populate(&result.Tracing)
		if err != nil {
			return result, readError(key, err)
		}
	}
	return result, nil
}
