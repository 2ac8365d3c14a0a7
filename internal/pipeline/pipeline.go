// Package pipeline defines the table snapshot job: extract a table from the
// source database and upload it to S3 as Parquet, nightly at midnight UTC.
package pipeline

import (
	"fmt"

	"github.com/seantiz/tablesnap/internal/asset"
	"github.com/seantiz/tablesnap/internal/resource"
	"github.com/seantiz/tablesnap/internal/scheduler"
)

// Job and schedule definitions.
const (
	JobName         = "mariadb_to_s3_job"
	NightlyCron     = "0 0 * * *"
	NightlyTimezone = "UTC"
)

// Definitions is the static set of assets, resources, jobs and schedules a
// process serves.
type Definitions struct {
	Assets    []asset.Asset
	Resources []resource.Declaration
	Jobs      []asset.Job
	Schedules []scheduler.Schedule
}

// Option customizes the definitions.
type Option func(*options)

type options struct {
	openStore StoreOpener
}

// WithStoreOpener replaces the S3 client used by the s3 resource.
func WithStoreOpener(open StoreOpener) Option {
	return func(o *options) { o.openStore = open }
}

// Job returns the snapshot job.
func Job() asset.Job {
	return asset.Job{Name: JobName, Selection: []string{AssetExtract, AssetLoad}}
}

// New returns the snapshot definitions.
func New(opts ...Option) Definitions {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	job := Job()
	return Definitions{
		Assets:    []asset.Asset{ExtractAsset(), LoadAsset()},
		Resources: []resource.Declaration{DatabaseResource(), S3Resource(o.openStore)},
		Jobs:      []asset.Job{job},
		Schedules: []scheduler.Schedule{{Job: job, Cron: NightlyCron, Timezone: NightlyTimezone}},
	}
}

// Build validates the definitions and returns the asset graph and resource
// registry. Every resource an asset names must be declared.
func (d Definitions) Build() (*asset.Graph, *resource.Registry, error) {
	g, err := asset.NewGraph(d.Assets...)
	if err != nil {
		return nil, nil, fmt.Errorf("build asset graph: %w", err)
	}
	reg, err := resource.NewRegistry(d.Resources...)
	if err != nil {
		return nil, nil, fmt.Errorf("build resource registry: %w", err)
	}
	for _, a := range g.Assets() {
		for _, name := range a.Resources {
			if !reg.Has(name) {
				return nil, nil, fmt.Errorf("asset %q uses undeclared resource %q", a.Name, name)
			}
		}
	}
	for _, job := range d.Jobs {
		if _, err := g.ResolveOrder(job.Selection); err != nil {
			return nil, nil, fmt.Errorf("job %q: %w", job.Name, err)
		}
	}
	return g, reg, nil
}
