package types

// Health is the response of GET /api/health.
type Health struct {
	Commit   string `json:"commit"`
	Database string `json:"database"`
	Version  string `json:"version"`
}

type Folder struct {
	ID    int64  `json:"id"`
	UID   string `json:"uid"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

type PluginInfo struct {
	Version string `json:"version"`
	Updated string `json:"updated,omitempty"`
	Author  struct {
		Name string `json:"name"`
		URL  string `json:"url,omitempty"`
	} `json:"author"`
}

// Plugin is one entry of GET /api/plugins.
type Plugin struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	Enabled   bool       `json:"enabled"`
	Pinned    bool       `json:"pinned"`
	Signature string     `json:"signature,omitempty"`
	Category  string     `json:"category,omitempty"`
	Info      PluginInfo `json:"info"`
}

// PluginHealth is the response of GET /api/plugins/:id/health.
type PluginHealth struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NotificationChannel is a legacy alert notification channel.
type NotificationChannel struct {
	ID        int64          `json:"id"`
	UID       string         `json:"uid"`
	Name      string         `json:"name"`
	Type      string         `json:"type"`
	IsDefault bool           `json:"isDefault"`
	Settings  map[string]any `json:"settings,omitempty"`
}

// AdminStats is the response of GET /api/admin/stats. Its fields vary
// across Grafana versions, so it is not typed.
type AdminStats map[string]any
