// Package gemini implements the provider.gemini module, a client for the
// Google Gemini generateContent REST API.
package gemini

import (
	"context"
	"log/slog"

	"github.com/go-resty/resty/v2"
	"gopkg.in/yaml.v3"

	"github.com/gneuro/tgrelay/internal/config"
	"github.com/gneuro/tgrelay/internal/core"
	"github.com/gneuro/tgrelay/internal/provider"
	"github.com/gneuro/tgrelay/internal/security"
)

func init() {
	core.RegisterModule(&Provider{})
}

// Compile-time interface guards.
var (
	_ provider.Provider      = (*Provider)(nil)
	_ provider.HealthChecker = (*Provider)(nil)
	_ core.Module            = (*Provider)(nil)
	_ core.Configurable      = (*Provider)(nil)
	_ core.Provisioner       = (*Provider)(nil)
	_ core.Validator         = (*Provider)(nil)
)

// Provider talks to Gemini as a tgrelay provider module.
type Provider struct {
	config Config
	logger *slog.Logger
	client *resty.Client
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.gemini",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return err
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.logger = ctx.Logger
	p.client = newRestyClient(p.config)
	if r, ok := core.Service[*security.Redactor](ctx, security.RedactorService); ok {
		r.AddLiteral(p.config.APIKey)
	}
	ctx.RegisterService("provider.gemini", p)
	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	if err := config.ValidateStruct("provider.gemini", &p.config); err != nil {
		return err
	}
	return p.config.validateTimeout()
}

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string {
	return p.config.Model
}

// HealthCheck implements provider.HealthChecker by fetching the model
// description, which needs a valid key but costs no tokens.
func (p *Provider) HealthCheck(ctx context.Context) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParam("model", p.config.Model).
		Get("/v1beta/models/{model}")
	if err != nil {
		return mapConnectionError(err)
	}
	return mapHTTPError(resp.StatusCode(), resp.Body())
}
