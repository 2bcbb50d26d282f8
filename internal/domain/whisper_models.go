package domain

// WhisperModelOption is one whisper.cpp model offered for local
// transcription. Default marks the model installed by the model_path fix.
type WhisperModelOption struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	FileName    string `json:"fileName"`
	SizeLabel   string `json:"sizeLabel,omitempty"`
	Description string `json:"description,omitempty"`
	Default     bool   `json:"default,omitempty"`
	Downloaded  bool   `json:"downloaded"`
	LocalPath   string `json:"localPath,omitempty"`
}
