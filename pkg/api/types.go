package api

import (
	"github.com/infradash/templates/pkg/template"
	"time"
)

type Created struct {
	Id      template.PathId  `json:"id" yaml:"id"`
	Version template.Version `json:"version" yaml:"version"`
}

type Versioned struct {
	template.Template `yaml:",inline"`
	Version           template.Version `json:"version" yaml:"version"`
}

type Contents struct {
	Id       template.PathId    `json:"id" yaml:"id"`
	Versions []template.Version `json:"versions" yaml:"versions"`
}

type Ids struct {
	Ids []template.PathId `json:"ids" yaml:"ids"`
}

type Health struct {
	Initialized bool      `json:"initialized" yaml:"initialized"`
	Session     string    `json:"session,omitempty" yaml:"session,omitempty"`
	Started     time.Time `json:"started" yaml:"started"`
	Now         time.Time `json:"now" yaml:"now"`
}

type Error struct {
	Error string `json:"error" yaml:"error"`
}
