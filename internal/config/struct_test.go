package config

import (
	"strings"
	"testing"
)

type sampleConfig struct {
	APIKey  string `yaml:"api_key" validate:"required"`
	BaseURL string `yaml:"base_url" validate:"required,url"`
	Mode    string `yaml:"mode" validate:"oneof=webhook polling"`
	Limits  struct {
		Hard  int `yaml:"hard" validate:"gt=0"`
		Split int `yaml:"split" validate:"gt=0,ltfield=Hard"`
	} `yaml:"limits"`
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	valid := sampleConfig{APIKey: "k", BaseURL: "https://example.com", Mode: "webhook"}
	valid.Limits.Hard = 10
	valid.Limits.Split = 5

	if err := ValidateStruct("test.mod", &valid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := valid
	bad.APIKey = ""
	bad.BaseURL = "not a url"
	bad.Mode = "carrier-pigeon"
	bad.Limits.Split = 20

	err := ValidateStruct("test.mod", &bad)
	if err == nil {
		t.Fatal("expected errors")
	}
	msg := err.Error()
	for _, want := range []string{
		"test.mod: api_key is required",
		"base_url must be a valid URL",
		"mode must be one of: webhook polling",
		"limits.split must be less than",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q should contain %q", msg, want)
		}
	}
}
