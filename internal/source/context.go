package source

// Context is supplied once per render by the caller and is immutable for the
// duration of a resolution. UserID has already been authenticated upstream.
type Context struct {
	UserID      string `json:"userId" yaml:"userId" toml:"user_id"`
	ProjectID   string `json:"projectId" yaml:"projectId" toml:"project_id"`
	WorkspaceID string `json:"workspaceId" yaml:"workspaceId" toml:"workspace_id"`
}

// Record is an opaque field->value mapping returned by the store.
type Record map[string]any
