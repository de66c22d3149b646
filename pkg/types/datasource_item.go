package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyDatasource        = errors.New("empty datasource reference")
	ErrUnknownDatasourceShape = errors.New("unknown datasource reference shape")
)

// Names, uids and plugin types Grafana reserves for its built-in pseudo data sources.
var (
	builtinNames = map[string]struct{}{
		"-- Grafana --":   {},
		"-- Mixed --":     {},
		"-- Dashboard --": {},
	}
	builtinUIDs = map[string]struct{}{
		"grafana":         {},
		"-- Grafana --":   {},
		"-- Mixed --":     {},
		"-- Dashboard --": {},
	}
	builtinTypes = map[string]struct{}{
		"grafana":    {},
		"datasource": {},
		"dashboard":  {},
	}
)

// DatasourceItem is a normalized data source reference found inside a
// dashboard. It is comparable, two items are the same reference when all
// fields are equal.
type DatasourceItem struct {
	UID  string `json:"uid,omitempty"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
	URL  string `json:"url,omitempty"`
}

// ParseDatasourceItem normalizes the raw value of a "datasource" attribute.
//
// Legacy dashboards reference data sources by bare name, modern ones use an
// object like {"type": "influxdb", "uid": "PDF2762CDFF14A314"}. Any other
// shape is reported as ErrUnknownDatasourceShape.
func ParseDatasourceItem(raw any) (DatasourceItem, error) {
	switch v := raw.(type) {
	case nil:
		return DatasourceItem{}, ErrEmptyDatasource
	case string:
		if v == "" {
			return DatasourceItem{}, ErrEmptyDatasource
		}
		return DatasourceItem{Name: v}, nil
	case DatasourceItem:
		if v == (DatasourceItem{}) {
			return DatasourceItem{}, ErrEmptyDatasource
		}
		return v, nil
	case map[string]any:
		// A nested "datasource" attribute shows up in some migrated
		// dashboards. It is ignored.
		item := DatasourceItem{
			UID:  getString(v, "uid"),
			Name: getString(v, "name"),
			Type: getString(v, "type"),
			URL:  getString(v, "url"),
		}
		if item == (DatasourceItem{}) {
			return DatasourceItem{}, ErrEmptyDatasource
		}
		return item, nil
	}
	return DatasourceItem{}, fmt.Errorf("%w: %T", ErrUnknownDatasourceShape, raw)
}

// IsBuiltin reports whether the reference denotes one of Grafana's virtual
// data sources, which never show up in the data source list.
func (i DatasourceItem) IsBuiltin() bool {
	if _, ok := builtinNames[i.Name]; ok {
		return true
	}
	if _, ok := builtinUIDs[i.UID]; ok {
		return true
	}
	_, ok := builtinTypes[i.Type]
	return ok
}

// IsVariable reports whether the reference points to a template variable
// like "$datasource", "${ds}" or "[[ds]]" instead of a data source.
func (i DatasourceItem) IsVariable() bool {
	return isVariableRef(i.UID) || isVariableRef(i.Name)
}

// Ident is the uid of the reference, falling back to its name.
func (i DatasourceItem) Ident() string {
	if i.UID != "" {
		return i.UID
	}
	return i.Name
}

func (i DatasourceItem) String() string {
	switch {
	case i.UID != "" && i.Name != "":
		return fmt.Sprintf("%s (%s)", i.Name, i.UID)
	case i.UID != "":
		return i.UID
	default:
		return i.Name
	}
}

func isVariableRef(s string) bool {
	return strings.HasPrefix(s, "$") || strings.HasPrefix(s, "[[")
}

// DatasourceRef is the compact descriptor of a reference which did not
// resolve to any known data source. Unset fields render as null.
type DatasourceRef struct {
	Name *string `json:"name" yaml:"name"`
	UID  *string `json:"uid" yaml:"uid"`
	Type *string `json:"type" yaml:"type"`
}

func (i DatasourceItem) Ref() DatasourceRef {
	return DatasourceRef{Name: optional(i.Name), UID: optional(i.UID), Type: optional(i.Type)}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
