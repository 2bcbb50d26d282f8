package domain

// RunState tracks each pipeline stage for a single video run.
type RunState string

const (
	RunStateIdle             RunState = "idle"
	RunStateIdentifyingVideo RunState = "identifying_video"
	RunStateFetchingAudio    RunState = "fetching_audio"
	RunStateTranscribing     RunState = "transcribing"
	RunStateSummarizing      RunState = "summarizing"
	RunStateReady            RunState = "ready"
	RunStateError            RunState = "error"
)

// Terminal reports whether no further stage follows within the same run.
func (s RunState) Terminal() bool {
	return s == RunStateReady || s == RunStateError
}

// Provider names accepted in settings.
const (
	ProviderLocal  = "local"
	ProviderRemote = "remote"
)

// Settings contains user-selectable runtime configuration.
type Settings struct {
	Provider  string          `json:"provider" validate:"required,oneof=local remote"`
	ModelPath string          `json:"modelPath"`
	OutputDir string          `json:"outputDir" validate:"required"`
	WorkDir   string          `json:"workDir"`
	Language  string          `json:"language"`
	Format    string          `json:"format" validate:"required,oneof=txt word pdf"`
	LogLevel  string          `json:"logLevel" validate:"omitempty,oneof=debug info warn error"`
	Tools     ToolSettings    `json:"tools"`
	Remote    RemoteSettings  `json:"remote"`
	Summary   SummarySettings `json:"summary"`
}

// ToolSettings holds executable names or paths for external tools.
type ToolSettings struct {
	Ytdlp   string `json:"ytdlp" validate:"required"`
	FFmpeg  string `json:"ffmpeg" validate:"required"`
	Whisper string `json:"whisper" validate:"required"`
}

// RemoteSettings configures the hosted transcription service. APIKey is
// read from the environment and never persisted.
type RemoteSettings struct {
	BaseURL             string `json:"baseUrl" validate:"required,url"`
	APIKey              string `json:"-"`
	PollIntervalSeconds int    `json:"pollIntervalSeconds" validate:"gte=1"`
	MaxWaitMinutes      int    `json:"maxWaitMinutes" validate:"gte=1"`
	SummaryModel        string `json:"summaryModel" validate:"omitempty,oneof=informative conversational catchy"`
	SummaryType         string `json:"summaryType" validate:"omitempty,oneof=bullets bullets_verbose gist headline paragraph"`
}

// SummarySettings configures the local summarizer.
type SummarySettings struct {
	Mode          string `json:"mode" validate:"omitempty,oneof=truncate chunk"`
	MaxInputChars int    `json:"maxInputChars" validate:"gte=1"`
	MaxLength     int    `json:"maxLength" validate:"gte=1"`
	MinLength     int    `json:"minLength" validate:"gte=0,ltefield=MaxLength"`
	Command       string `json:"command,omitempty"`
}

// Run stores the current run identity and lifecycle state.
type Run struct {
	ID        string    `json:"id"`
	URL       string    `json:"url,omitempty"`
	VideoID   string    `json:"videoId,omitempty"`
	State     RunState  `json:"state"`
	ErrorKind ErrorKind `json:"errorKind,omitempty"`
	Message   string    `json:"message,omitempty"`
}
