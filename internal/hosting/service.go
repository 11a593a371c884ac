// internal/hosting/service.go
//
// Domain lifecycle: add, verify, remove.
//
// Context
// -------
// Service combines the provider API with the local site_domains table.  The
// HTTP component has already authenticated the caller and checked the site
// role; Service only enforces that a domain belongs to the site it is
// addressed through.
//
// Workflow
// --------
//  1. Add validates the FQDN, rejects domains owned by another site, calls
//     the provider, reads the DNS config, and upserts the local row.
//  2. Verify re-checks ownership and DNS, then refreshes the row.
//  3. Remove detaches the domain (a provider 404 counts as done) and deletes
//     the row.
//
// Notes
// -----
//   - OnChange fires after every state change so caches keyed by host can
//     drop the domain.
//   - Oxford commas, two spaces after periods.
package hosting

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yanizio/sitebuilder/internal/apperr"
)

// API is the subset of Client the service calls.
type API interface {
	AddDomain(ctx context.Context, domain string) (*ProjectDomain, error)
	VerifyDomain(ctx context.Context, domain string) (*ProjectDomain, error)
	RemoveDomain(ctx context.Context, domain string) error
	Config(ctx context.Context, domain string) (*DomainConfig, error)
}

// Repository is the subset of Store the service calls.
type Repository interface {
	Get(ctx context.Context, domain string) (*Domain, error)
	Upsert(ctx context.Context, d *Domain) error
	Delete(ctx context.Context, domain string) error
}

// Status is the answer returned to domain-management callers.
type Status struct {
	Domain        string         `json:"domain"`
	Verified      bool           `json:"verified"`
	Configured    bool           `json:"configured"`
	Misconfigured bool           `json:"misconfigured"`
	Verification  []Verification `json:"verification,omitempty"`
}

// Service runs the domain lifecycle.
type Service struct {
	api      API
	repo     Repository
	validate *validator.Validate
	OnChange func(domain string)
}

func NewService(api API, repo Repository) *Service {
	return &Service{api: api, repo: repo, validate: validator.New()}
}

// Normalize lower-cases domain and checks it is a bare FQDN.
func (s *Service) Normalize(domain string) (string, error) {
	d := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
	if err := s.validate.Var(d, "required,fqdn,max=253"); err != nil {
		return "", apperr.New(apperr.KindValidation, "hosting.Normalize", "Enter a valid domain name such as www.example.com.")
	}
	return d, nil
}

// Add attaches domain to siteID.
func (s *Service) Add(ctx context.Context, siteID, tenantID, domain string) (*Status, error) {
	d, err := s.Normalize(domain)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.Get(ctx, d)
	switch {
	case err == nil && existing.SiteID != siteID:
		return nil, apperr.New(apperr.KindConflict, "hosting.Add", "This domain is already connected to another site.")
	case err != nil && !apperr.IsKind(err, apperr.KindNotFound):
		return nil, err
	}

	pd, err := s.api.AddDomain(ctx, d)
	if err != nil {
		return nil, err
	}
	st, err := s.refresh(ctx, siteID, tenantID, d, pd)
	if err != nil {
		return nil, err
	}
	zap.S().Infow("custom domain added", "site", siteID, "domain", d, "verified", st.Verified)
	return st, nil
}

// Verify re-checks domain for siteID.
func (s *Service) Verify(ctx context.Context, siteID, tenantID, domain string) (*Status, error) {
	d, err := s.owned(ctx, siteID, domain)
	if err != nil {
		return nil, err
	}
	pd, err := s.api.VerifyDomain(ctx, d)
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, siteID, tenantID, d, pd)
}

// Remove detaches domain from siteID.
func (s *Service) Remove(ctx context.Context, siteID, domain string) (*Status, error) {
	d, err := s.owned(ctx, siteID, domain)
	if err != nil {
		return nil, err
	}
	if err := s.api.RemoveDomain(ctx, d); err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
		return nil, err
	}
	if err := s.repo.Delete(ctx, d); err != nil {
		return nil, err
	}
	s.changed(d)
	zap.S().Infow("custom domain removed", "site", siteID, "domain", d)
	return &Status{Domain: d}, nil
}

// owned normalizes domain and checks the local row belongs to siteID.
// Domains of other sites look missing.
func (s *Service) owned(ctx context.Context, siteID, domain string) (string, error) {
	d, err := s.Normalize(domain)
	if err != nil {
		return "", err
	}
	row, err := s.repo.Get(ctx, d)
	if err != nil {
		return "", err
	}
	if row.SiteID != siteID {
		return "", apperr.New(apperr.KindNotFound, "hosting.owned", "Domain not found.")
	}
	return d, nil
}

func (s *Service) refresh(ctx context.Context, siteID, tenantID, d string, pd *ProjectDomain) (*Status, error) {
	cfg, err := s.api.Config(ctx, d)
	if err != nil {
		return nil, err
	}
	st := &Status{
		Domain:        d,
		Verified:      pd.Verified,
		Configured:    !cfg.Misconfigured,
		Misconfigured: cfg.Misconfigured,
		Verification:  pd.Verification,
	}
	row := &Domain{Domain: d, SiteID: siteID, TenantID: tenantID, Verified: st.Verified, Configured: st.Configured}
	if err := s.repo.Upsert(ctx, row); err != nil {
		return nil, err
	}
	s.changed(d)
	return st, nil
}

func (s *Service) changed(d string) {
	if s.OnChange != nil {
		s.OnChange(d)
	}
}
