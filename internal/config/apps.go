package config

import (
	"fmt"
	"strings"

	"github.com/user/expdata"
	"github.com/user/expdata/pkg/schema"
	"github.com/user/expdata/pkg/survey"
)

// AppConfig declares one experiment app.
type AppConfig struct {
	Name string `json:"name" yaml:"name"`
	// Fields adds app defined fields to the standard models, keyed by
	// entity (subsession, group, player).
	Fields map[string][]schema.Field `json:"fields" yaml:"fields"`
	Custom []CustomModelConfig       `json:"custom_models" yaml:"custom_models"`
	Survey []survey.Page             `json:"survey" yaml:"survey"`
}

// CustomModelConfig declares a custom model and its export configuration.
type CustomModelConfig struct {
	Name       string         `json:"name" yaml:"name"`
	Table      string         `json:"table" yaml:"table"`
	Fields     []schema.Field `json:"fields" yaml:"fields"`
	ExportData *schema.Conf   `json:"export_data" yaml:"export_data"`
	DataView   *schema.Conf   `json:"data_view" yaml:"data_view"`
}

// Build turns the declaration into a schema.App. Survey questions become
// player fields.
func (a AppConfig) Build() (*schema.App, error) {
	app := schema.NewApp(a.Name)

	if len(a.Survey) > 0 {
		if _, err := survey.Layout(a.Survey); err != nil {
			return nil, fmt.Errorf("app %s: %w", a.Name, err)
		}
		m, err := survey.BuildPlayerModel(a.Name, a.Survey, a.Fields[string(schema.Player)]...)
		if err != nil {
			return nil, fmt.Errorf("app %s: %w", a.Name, err)
		}
		if err := app.SetModel(m); err != nil {
			return nil, fmt.Errorf("app %s: %w", a.Name, err)
		}
	}

	for key, fields := range a.Fields {
		e, err := schema.ParseEntity(key)
		if err != nil {
			return nil, fmt.Errorf("app %s: %w", a.Name, err)
		}
		if e == schema.Player && len(a.Survey) > 0 {
			continue
		}
		if err := app.Extend(e, fields...); err != nil {
			return nil, fmt.Errorf("app %s: %w", a.Name, err)
		}
	}

	for _, c := range a.Custom {
		table := c.Table
		if table == "" {
			table = strings.ToLower(a.Name) + "_" + c.Name
		}
		confs := make(map[expdata.Action]schema.Conf)
		if c.ExportData != nil {
			confs[expdata.ActionExportData] = *c.ExportData
		}
		if c.DataView != nil {
			confs[expdata.ActionDataView] = *c.DataView
		}
		m := &schema.StaticModel{
			M:     &schema.Model{Name: c.Name, Table: table, Fields: c.Fields},
			Confs: confs,
		}
		if err := app.Custom.Register(m); err != nil {
			return nil, fmt.Errorf("app %s: %w", a.Name, err)
		}
	}
	return app, nil
}

// BuildApps builds every configured app in file order.
func (c *Config) BuildApps() ([]*schema.App, error) {
	out := make([]*schema.App, 0, len(c.Apps))
	for _, a := range c.Apps {
		app, err := a.Build()
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	return out, nil
}
