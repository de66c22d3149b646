package types

// DataSource is one record of GET /api/datasources. It stays a generic map
// so that full-text search covers every attribute, e.g. "database".
type DataSource map[string]any

func (d DataSource) UID() string  { return getString(d, "uid") }
func (d DataSource) Name() string { return getString(d, "name") }
func (d DataSource) Type() string { return getString(d, "type") }
func (d DataSource) URL() string  { return getString(d, "url") }

func (d DataSource) ID() int64 {
	id, _ := getInt(d, "id")
	return id
}

// Ident is the identifier a data source is indexed by: its uid, or its name
// on Grafana versions which did not assign uids yet.
func (d DataSource) Ident() string {
	if uid := d.UID(); uid != "" {
		return uid
	}
	return d.Name()
}

// SortKey orders data sources by name, falling back to uid.
func (d DataSource) SortKey() string {
	if name := d.Name(); name != "" {
		return name
	}
	return d.UID()
}
