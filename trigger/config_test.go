package trigger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	config := testConfig(t)
	if config.API.Endpoints.Dataverse != "https://contoso.crm.dynamics.com" || config.API.Keys.Dataverse != "token" {
		t.Errorf("unexpected api settings %+v", config.API)
	}
	if config.API.Version != "v9.2" {
		t.Errorf("Expected v9.2 but have: %s", config.API.Version)
	}
	if config.Opportunity.ConditionallyApprovedStatus != DefaultConditionallyApprovedStatus {
		t.Errorf("Expected status %d but have: %d", DefaultConditionallyApprovedStatus, config.Opportunity.ConditionallyApprovedStatus)
	}
	if config.Opportunity.Attributes.PreviousApprovedAmount != "sce_financial_conditionally_approved_amount" {
		t.Errorf("unexpected attributes %+v", config.Opportunity.Attributes)
	}
	if config.Journey.ConfigKey != "sce__ConditionalApproveCJODetail" || config.Journey.Source != JourneySourceDataverse {
		t.Errorf("unexpected journey settings %+v", config.Journey)
	}
	if config.Dispatch.Timeout != DefaultDispatchTimeout || config.Dispatch.Concurrency != 1 {
		t.Errorf("unexpected dispatch settings %+v", config.Dispatch)
	}
	if config.Webhook.Addr != ":8080" || config.Tracing.Enabled {
		t.Errorf("unexpected webhook/tracing settings %+v %+v", config.Webhook, config.Tracing)
	}
}

func TestLoadConfig_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	overlay := `
opportunity:
  conditionallyApprovedStatus: 100000008
journey:
  source: process
  cacheTTL: 5m
dispatch:
  timeout: 2s
  concurrency: 4
`
	if err := os.WriteFile(path, []byte(overlay), 0o600); err != nil {
		t.Fatal(err)
	}
	config, err := loadConfig(path, func(key string) (string, bool) {
		if key == "DATAVERSE_URL" {
			return "https://contoso.crm.dynamics.com", true
		}
		return "", false
	})
	if err != nil {
		t.Fatal(err)
	}
	if config.Classifier().ConditionallyApprovedStatus != 100000008 {
		t.Errorf("Expected the overlaid status but have: %d", config.Opportunity.ConditionallyApprovedStatus)
	}
	if config.Opportunity.PreImage != "opportunity" {
		t.Errorf("Expected the default pre-image to survive the overlay but have: %q", config.Opportunity.PreImage)
	}
	if config.Journey.Source != JourneySourceProcess || config.Journey.CacheTTL != 5*time.Minute {
		t.Errorf("unexpected journey settings %+v", config.Journey)
	}
	if config.Dispatch.Timeout != 2*time.Second || config.Dispatch.Concurrency != 4 {
		t.Errorf("unexpected dispatch settings %+v", config.Dispatch)
	}
	if config.API.Keys.Dataverse != "" {
		t.Errorf("Expected no token but have: %q", config.API.Keys.Dataverse)
	}
}

func TestLoadConfig_MissingEndpoint(t *testing.T) {
	_, err := loadConfig("", func(string) (string, bool) { return "", false })
	if err == nil || !strings.Contains(err.Error(), "api.endpoints.dataverse") {
		t.Errorf("Expected a missing endpoint error but have: %v", err)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		expect string
	}{
		{"relative endpoint", func(c *Config) { c.API.Endpoints.Dataverse = "contoso.crm.dynamics.com" }, "absolute"},
		{"bad version", func(c *Config) { c.API.Version = "9.2" }, "api.version"},
		{"bad attribute", func(c *Config) { c.Opportunity.Attributes.ApprovedAmount = "sce approved" }, "logical name"},
		{"missing attribute", func(c *Config) { c.Opportunity.Attributes.ApplicationStatus = "" }, "opportunity.attributes"},
		{"missing key", func(c *Config) { c.Journey.ConfigKey = "" }, "journey.configKey"},
		{"bad source", func(c *Config) { c.Journey.Source = "file" }, "journey.source"},
		{"negative ttl", func(c *Config) { c.Journey.CacheTTL = -time.Second }, "journey.cacheTTL"},
		{"zero timeout", func(c *Config) { c.Dispatch.Timeout = 0 }, "dispatch.timeout"},
		{"zero concurrency", func(c *Config) { c.Dispatch.Concurrency = 0 }, "dispatch.concurrency"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			config := testConfig(t)
			tc.modify(&config)
			err := config.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.expect) {
				t.Errorf("Expected an error mentioning %q but have: %v", tc.expect, err)
			}
		})
	}
}
