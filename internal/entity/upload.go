package entity

// UploadResult is returned to the caller of an upload.
type UploadResult struct {
	ID         string         `json:"id"`
	Data       map[string]any `json:"data"`
	Confidence float64        `json:"confidence"`
	Provider   string         `json:"provider,omitempty"`
	Duplicate  bool           `json:"duplicate"`
}

// Health is a dependency status snapshot.
type Health struct {
	Status          string `json:"status"`
	DatabaseOK      bool   `json:"database_ok"`
	OllamaAvailable bool   `json:"ollama_available"`
	RemoteEnabled   bool   `json:"remote_enabled"`
}
