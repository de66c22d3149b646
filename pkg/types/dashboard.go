package types

// Dashboard is the envelope returned by GET /api/dashboards/uid/:uid.
// Both halves are kept as untyped trees so that search and replace see
// every attribute Grafana sent.
type Dashboard struct {
	Dashboard map[string]any `json:"dashboard"`
	Meta      map[string]any `json:"meta"`
}

func (d *Dashboard) UID() string {
	return getString(d.Dashboard, "uid")
}

func (d *Dashboard) ID() int64 {
	id, _ := getInt(d.Dashboard, "id")
	return id
}

func (d *Dashboard) Title() string {
	return getString(d.Dashboard, "title")
}

func (d *Dashboard) Version() int64 {
	v, _ := getInt(d.Dashboard, "version")
	return v
}

// Panels returns the top level panels. Rows may carry nested panels.
func (d *Dashboard) Panels() []any {
	return getList(d.Dashboard, "panels")
}

// Annotations returns annotations.list.
func (d *Dashboard) Annotations() []any {
	return getList(getMap(d.Dashboard, "annotations"), "list")
}

// Templating returns templating.list.
func (d *Dashboard) Templating() []any {
	return getList(getMap(d.Dashboard, "templating"), "list")
}

func (d *Dashboard) Tags() []string {
	var tags []string
	for _, t := range getList(d.Dashboard, "tags") {
		if s, ok := t.(string); ok {
			tags = append(tags, s)
		}
	}
	return tags
}

func (d *Dashboard) Description() string {
	return getString(d.Dashboard, "description")
}

func (d *Dashboard) FolderTitle() string {
	return getString(d.Meta, "folderTitle")
}

func (d *Dashboard) FolderUID() string {
	return getString(d.Meta, "folderUid")
}

// FolderID reports meta.folderId, which older Grafana versions require on update.
func (d *Dashboard) FolderID() (int64, bool) {
	return getInt(d.Meta, "folderId")
}

// URL is the path of the dashboard relative to the Grafana root, e.g. /d/uid/slug.
func (d *Dashboard) URL() string {
	return getString(d.Meta, "url")
}

func (d *Dashboard) Slug() string {
	return getString(d.Meta, "slug")
}

func (d *Dashboard) IsFolder() bool {
	return getBool(d.Meta, "isFolder")
}

// Created and friends are used for the bibliographic block of search reports.
func (d *Dashboard) Created() string   { return getString(d.Meta, "created") }
func (d *Dashboard) CreatedBy() string { return getString(d.Meta, "createdBy") }
func (d *Dashboard) Updated() string   { return getString(d.Meta, "updated") }
func (d *Dashboard) UpdatedBy() string { return getString(d.Meta, "updatedBy") }

// Tree returns the envelope as a generic tree, so that match paths are
// rooted at "dashboard." or "meta.".
func (d *Dashboard) Tree() map[string]any {
	return map[string]any{
		"dashboard": d.Dashboard,
		"meta":      d.Meta,
	}
}

// Summary derives the search listing entry for a dashboard that was fetched
// directly by uid.
func (d *Dashboard) Summary() DashboardSummary {
	folderID, _ := d.FolderID()
	return DashboardSummary{
		ID:          d.ID(),
		UID:         d.UID(),
		Title:       d.Title(),
		URL:         d.URL(),
		Slug:        d.Slug(),
		Type:        "dash-db",
		Tags:        d.Tags(),
		FolderID:    folderID,
		FolderUID:   d.FolderUID(),
		FolderTitle: d.FolderTitle(),
		FolderURL:   getString(d.Meta, "folderUrl"),
	}
}

// DashboardSummary is one hit of GET /api/search.
type DashboardSummary struct {
	ID          int64    `json:"id"`
	UID         string   `json:"uid"`
	Title       string   `json:"title"`
	URI         string   `json:"uri,omitempty"`
	URL         string   `json:"url"`
	Slug        string   `json:"slug,omitempty"`
	Type        string   `json:"type"`
	Tags        []string `json:"tags"`
	IsStarred   bool     `json:"isStarred"`
	FolderID    int64    `json:"folderId,omitempty"`
	FolderUID   string   `json:"folderUid,omitempty"`
	FolderTitle string   `json:"folderTitle,omitempty"`
	FolderURL   string   `json:"folderUrl,omitempty"`
}

// UpdateDashboardRequest is the payload of POST /api/dashboards/db.
type UpdateDashboardRequest struct {
	Dashboard map[string]any `json:"dashboard"`
	FolderID  *int64         `json:"folderId,omitempty"`
	FolderUID string         `json:"folderUid,omitempty"`
	Message   string         `json:"message,omitempty"`
	Overwrite bool           `json:"overwrite"`
}

type UpdateDashboardResponse struct {
	ID      int64  `json:"id"`
	UID     string `json:"uid"`
	URL     string `json:"url"`
	Status  string `json:"status"`
	Version int64  `json:"version"`
	Slug    string `json:"slug"`
}

// DashboardVersion is one entry of the dashboard version history.
type DashboardVersion struct {
	ID            int64  `json:"id"`
	DashboardID   int64  `json:"dashboardId"`
	UID           string `json:"uid,omitempty"`
	ParentVersion int64  `json:"parentVersion"`
	RestoredFrom  int64  `json:"restoredFrom"`
	Version       int64  `json:"version"`
	Created       string `json:"created"`
	CreatedBy     string `json:"createdBy"`
	Message       string `json:"message"`
}
