package domain

import "time"

// Step is a workflow state.
type Step string

// Workflow states. GENERATING and DEPLOYING are transient.
const (
	StepConfig     Step = "CONFIG"
	StepPrompt     Step = "PROMPT"
	StepGenerating Step = "GENERATING"
	StepReview     Step = "REVIEW"
	StepDeploying  Step = "DEPLOYING"
	StepSuccess    Step = "SUCCESS"
)

// Transient reports whether the step only exists while a remote call is in flight.
func (s Step) Transient() bool {
	return s == StepGenerating || s == StepDeploying
}

// Mode selects the generation policy.
type Mode string

// Generation modes.
const (
	ModeGenerate Mode = "generate"
	ModePaste    Mode = "paste"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeGenerate || m == ModePaste
}

// Credentials is the configuration record of a session.
type Credentials struct {
	SourceHostToken    string `json:"githubToken"`
	HostingToken       string `json:"vercelToken,omitempty"`
	SourceHostUsername string `json:"githubUsername"`
	AutoHostingEnabled bool   `json:"useBetaDeploy"`
}

// HasHosting reports whether the automatic hosting step should run.
func (c Credentials) HasHosting() bool {
	return c.AutoHostingEnabled && c.HostingToken != ""
}

// DeploymentResult is produced once per successful deploy.
type DeploymentResult struct {
	RepoURL   string `json:"repoUrl"`
	DeployURL string `json:"deployUrl,omitempty"`
	IsBeta    bool   `json:"isBeta"`
}

// LogType classifies a log entry.
type LogType string

// Log entry types.
const (
	LogInfo    LogType = "info"
	LogSuccess LogType = "success"
	LogError   LogType = "error"
	LogWarning LogType = "warning"
)

// LogEntry is a human-readable progress line shown to the user.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Type      LogType   `json:"type"`
}

// AppState is the full state of one session. Transitions produce a new value.
type AppState struct {
	Step        Step                 `json:"step"`
	Credentials Credentials          `json:"-"`
	Prompt      string               `json:"prompt"`
	Mode        Mode                 `json:"mode"`
	Project     *Project             `json:"project,omitempty"`
	Result      *DeploymentResult    `json:"result,omitempty"`
	History     []SavedProjectRecord `json:"history"`
	Logs        []LogEntry           `json:"logs"`
}

// Clone returns a copy that shares no slices with s.
func (s AppState) Clone() AppState {
	out := s
	out.History = append([]SavedProjectRecord(nil), s.History...)
	out.Logs = append([]LogEntry(nil), s.Logs...)
	if s.Project != nil {
		p := *s.Project
		p.Files = append([]FileEntry(nil), s.Project.Files...)
		out.Project = &p
	}
	if s.Result != nil {
		r := *s.Result
		out.Result = &r
	}
	return out
}
