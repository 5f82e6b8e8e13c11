package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arturoeanton/autodeploy-agent/internal/domain"
	"github.com/arturoeanton/autodeploy-agent/internal/metrics"
	"github.com/arturoeanton/autodeploy-agent/internal/port"
)

// ManualImportURL is where users link a repository by hand when auto-hosting fails.
const ManualImportURL = "https://vercel.com/new"

// Dependencies are the collaborators of an Orchestrator.
type Dependencies struct {
	Generator port.CodeGenerator
	Identity  port.IdentityVerifier
	Publisher port.RepoPublisher
	Sync      port.HistorySync
	Hosting   port.HostingProvider // nil disables auto-hosting
	Local     *LocalState

	// Optional hooks, defaulted by NewOrchestrator.
	RepoSuffix func() int
	Now        func() time.Time
	NewID      func() string
}

func (d *Dependencies) withDefaults() {
	if d.RepoSuffix == nil {
		d.RepoSuffix = func() int { return 1000 + rand.IntN(9000) }
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
}

// LoginRequest carries the login form. Nil optional fields fall back to the
// values stored for the same account.
type LoginRequest struct {
	SourceHostToken    string  `json:"githubToken"`
	HostingToken       *string `json:"vercelToken,omitempty"`
	AutoHostingEnabled *bool   `json:"useBetaDeploy,omitempty"`
}

// Orchestrator drives one session through the deployment workflow.
//
// The state is replaced, never mutated in place. Remote calls of a generate or
// deploy run happen outside the lock while the step is GENERATING or DEPLOYING,
// which rejects every other transition until the run settles.
type Orchestrator struct {
	deps Dependencies
	feed *ActivityFeed

	mu      sync.Mutex
	state   domain.AppState
	syncSeq uint64 // last remote snapshot taken, guarded by mu

	// syncMu serializes remote history writes. syncWritten is the sequence of
	// the newest snapshot stored remotely.
	syncMu      sync.Mutex
	syncWritten uint64

	bg sync.WaitGroup
}

// NewOrchestrator creates an orchestrator in the CONFIG step.
func NewOrchestrator(deps Dependencies) *Orchestrator {
	deps.withDefaults()
	return &Orchestrator{
		deps: deps,
		feed: NewActivityFeed(),
		state: domain.AppState{
			Step:    domain.StepConfig,
			Mode:    domain.ModeGenerate,
			History: []domain.SavedProjectRecord{},
			Logs:    []domain.LogEntry{},
		},
	}
}

// State returns a copy of the current state.
func (o *Orchestrator) State() domain.AppState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// Feed returns the session's activity feed.
func (o *Orchestrator) Feed() *ActivityFeed {
	return o.feed
}

// Wait blocks until background runs and history writes have finished.
func (o *Orchestrator) Wait() {
	o.bg.Wait()
}

// update replaces the state with a modified copy. Caller holds o.mu.
func (o *Orchestrator) update(fn func(s *domain.AppState)) {
	next := o.state.Clone()
	fn(&next)
	if next.Step != o.state.Step {
		metrics.RecordTransition(string(o.state.Step), string(next.Step))
		o.feed.Publish(Event{Kind: EventStep, Step: next.Step})
	}
	o.state = next
}

// addLog appends a user-facing log line. Caller holds o.mu.
func (o *Orchestrator) addLog(message string, typ domain.LogType) {
	entry := domain.LogEntry{
		ID:        o.deps.NewID(),
		Timestamp: o.deps.Now(),
		Message:   message,
		Type:      typ,
	}
	o.update(func(s *domain.AppState) { s.Logs = append(s.Logs, entry) })
	o.feed.Publish(Event{Kind: EventLog, Log: &entry})
}

// logLine is addLog for callers that do not hold the lock.
func (o *Orchestrator) logLine(message string, typ domain.LogType) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.addLog(message, typ)
}

// userMessage renders err the way it is shown in the log.
func userMessage(err error) string {
	var genErr *port.GenerationError
	if errors.As(err, &genErr) && genErr.Message != "" {
		return genErr.Message
	}
	return err.Error()
}

// Login verifies the source-hosting token and moves CONFIG to PROMPT.
func (o *Orchestrator) Login(ctx context.Context, req LoginRequest) (domain.AppState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Step != domain.StepConfig {
		return o.state.Clone(), port.ErrInvalidTransition
	}

	o.addLog("Verifying GitHub credentials...", domain.LogInfo)
	username, err := o.deps.Identity.VerifyToken(ctx, req.SourceHostToken)
	if err != nil {
		var authErr *port.AuthError
		if !errors.As(err, &authErr) {
			err = &port.AuthError{Err: err}
		}
		o.addLog(err.Error(), domain.LogError)
		return o.state.Clone(), err
	}

	creds := domain.Credentials{
		SourceHostToken:    req.SourceHostToken,
		SourceHostUsername: username,
	}
	stored, found, err := o.deps.Local.LoadConfig(ctx, username)
	if err != nil {
		slog.Warn("cannot load stored config", "user", username, "error", err)
	}
	if found {
		creds.HostingToken = stored.HostingToken
		creds.AutoHostingEnabled = stored.AutoHostingEnabled
	}
	if req.HostingToken != nil {
		creds.HostingToken = *req.HostingToken
	}
	if req.AutoHostingEnabled != nil {
		creds.AutoHostingEnabled = *req.AutoHostingEnabled
	}
	if err := o.deps.Local.SaveConfig(ctx, creds); err != nil {
		slog.Warn("cannot persist config", "user", username, "error", err)
	}

	history, err := o.deps.Local.LoadHistory(ctx, username)
	if err != nil {
		slog.Warn("cannot load local history", "user", username, "error", err)
		history = []domain.SavedProjectRecord{}
	}

	o.update(func(s *domain.AppState) {
		s.Credentials = creds
		s.History = history
		s.Step = domain.StepPrompt
	})
	o.addLog(fmt.Sprintf("Hello, %s! Login successful.", username), domain.LogSuccess)
	slog.Info("session logged in", "user", username, "auto_hosting", creds.HasHosting(), "model", o.deps.Generator.ModelName())

	o.bg.Add(1)
	go func() {
		defer o.bg.Done()
		if err := o.SyncHistory(context.Background()); err != nil {
			slog.Warn("background history sync failed", "user", username, "error", err)
		}
	}()

	return o.state.Clone(), nil
}

// Generate runs PROMPT → GENERATING → REVIEW, or back to PROMPT on failure.
func (o *Orchestrator) Generate(ctx context.Context, prompt string, mode domain.Mode) (domain.AppState, error) {
	if err := o.beginGenerate(prompt, mode); err != nil {
		return o.State(), err
	}
	return o.runGenerate(ctx, prompt, o.State().Mode)
}

// StartGenerate checks the transition, enters GENERATING and finishes the run
// in the background.
func (o *Orchestrator) StartGenerate(prompt string, mode domain.Mode) error {
	if err := o.beginGenerate(prompt, mode); err != nil {
		return err
	}
	mode = o.State().Mode
	o.bg.Add(1)
	go func() {
		defer o.bg.Done()
		_, _ = o.runGenerate(context.Background(), prompt, mode)
	}()
	return nil
}

func (o *Orchestrator) beginGenerate(prompt string, mode domain.Mode) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Step != domain.StepPrompt {
		return port.ErrInvalidTransition
	}
	if strings.TrimSpace(prompt) == "" {
		return port.ErrEmptyPrompt
	}
	if !mode.Valid() {
		mode = domain.ModeGenerate
	}

	o.update(func(s *domain.AppState) {
		s.Prompt = prompt
		s.Mode = mode
		s.Project = nil
		s.Result = nil
		s.Step = domain.StepGenerating
	})
	if mode == domain.ModeGenerate {
		o.addLog(fmt.Sprintf("I'm brainstorming code for: %q...", truncate(prompt, 30)), domain.LogInfo)
	} else {
		o.addLog("Analyzing code structure...", domain.LogInfo)
	}
	return nil
}

func (o *Orchestrator) runGenerate(ctx context.Context, prompt string, mode domain.Mode) (domain.AppState, error) {
	project, err := o.deps.Generator.Generate(ctx, prompt, mode)

	o.mu.Lock()
	defer o.mu.Unlock()

	if err != nil {
		slog.Error("generation failed", "user", o.state.Credentials.SourceHostUsername, "mode", mode, "error", err)
		o.addLog(userMessage(err), domain.LogError)
		o.update(func(s *domain.AppState) { s.Step = domain.StepPrompt })
		return o.state.Clone(), err
	}

	o.update(func(s *domain.AppState) {
		s.Project = project
		s.Step = domain.StepReview
	})
	o.addLog(fmt.Sprintf("Prepared %q with %d files.", project.Name, len(project.Files)), domain.LogSuccess)
	o.saveLocked(ctx, project, prompt)
	return o.state.Clone(), nil
}

// Deploy runs REVIEW → DEPLOYING → SUCCESS, or back to REVIEW when the repository
// cannot be created or filled.
func (o *Orchestrator) Deploy(ctx context.Context) (domain.AppState, error) {
	project, creds, err := o.beginDeploy()
	if err != nil {
		return o.State(), err
	}
	return o.runDeploy(ctx, project, creds)
}

// StartDeploy checks the transition, enters DEPLOYING and finishes the run in
// the background.
func (o *Orchestrator) StartDeploy() error {
	project, creds, err := o.beginDeploy()
	if err != nil {
		return err
	}
	o.bg.Add(1)
	go func() {
		defer o.bg.Done()
		_, _ = o.runDeploy(context.Background(), project, creds)
	}()
	return nil
}

func (o *Orchestrator) beginDeploy() (*domain.Project, domain.Credentials, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Step != domain.StepReview {
		return nil, domain.Credentials{}, port.ErrInvalidTransition
	}
	if o.state.Project == nil {
		return nil, domain.Credentials{}, port.ErrNoProject
	}

	o.update(func(s *domain.AppState) {
		s.Result = nil
		s.Step = domain.StepDeploying
	})
	o.addLog("Initiating deployment sequence...", domain.LogWarning)
	return o.state.Clone().Project, o.state.Credentials, nil
}

func (o *Orchestrator) runDeploy(ctx context.Context, project *domain.Project, creds domain.Credentials) (domain.AppState, error) {
	repoName := fmt.Sprintf("%s-%d", project.Name, o.deps.RepoSuffix())

	o.logLine(fmt.Sprintf("1. Creating repository '%s' on GitHub...", repoName), domain.LogInfo)
	repo, err := o.deps.Publisher.CreateRepo(ctx, creds.SourceHostToken, repoName, project.Description)
	if err != nil {
		return o.failDeploy(err)
	}
	o.logLine("GitHub Repository created successfully.", domain.LogSuccess)

	owner, name := repo.Owner, repo.Name
	if owner == "" {
		owner = creds.SourceHostUsername
	}
	if name == "" {
		name = repoName
	}

	o.logLine("2. Uploading source code...", domain.LogInfo)
	progress := func(msg string) { o.logLine(msg, domain.LogInfo) }
	if err := o.deps.Publisher.PushFiles(ctx, creds.SourceHostToken, owner, name, project.Files, progress); err != nil {
		return o.failDeploy(err)
	}
	o.logLine("Source code uploaded.", domain.LogSuccess)

	result := &domain.DeploymentResult{RepoURL: repo.HTMLURL}
	if creds.HasHosting() && o.deps.Hosting != nil {
		o.logLine("3. [Beta] Creating Vercel Project automatically...", domain.LogInfo)
		fullName := repo.FullName
		if fullName == "" {
			fullName = owner + "/" + name
		}
		hp, err := o.deps.Hosting.CreateProject(ctx, creds.HostingToken, name, fullName)
		switch {
		case err != nil:
			slog.Warn("hosting link failed", "repo", fullName, "error", err)
			o.logLine(fmt.Sprintf("[Beta] Auto-deploy failed (%s). Falling back to manual mode.", err.Error()), domain.LogWarning)
			o.logLine("Import the repository manually at "+ManualImportURL, domain.LogWarning)
		case hp != nil && hp.HTMLURL != "":
			result.DeployURL = hp.HTMLURL
			result.IsBeta = true
			o.logLine("[Beta] Project created! Build triggered on Vercel.", domain.LogSuccess)
		}
	} else {
		o.logLine("3. Skipping auto-deploy (Beta disabled or no token).", domain.LogInfo)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.update(func(s *domain.AppState) {
		s.Result = result
		s.Step = domain.StepSuccess
	})
	o.addLog("Deployment complete: "+result.RepoURL, domain.LogSuccess)
	slog.Info("deployment complete", "repo", result.RepoURL, "deploy_url", result.DeployURL)
	return o.state.Clone(), nil
}

func (o *Orchestrator) failDeploy(err error) (domain.AppState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	slog.Error("deployment failed", "user", o.state.Credentials.SourceHostUsername, "error", err)
	o.addLog(userMessage(err), domain.LogError)
	o.update(func(s *domain.AppState) { s.Step = domain.StepReview })
	return o.state.Clone(), err
}

// SaveProject saves the current project to history unless (name, prompt) is already there.
func (o *Orchestrator) SaveProject(ctx context.Context) (domain.AppState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Step == domain.StepConfig || o.state.Step.Transient() {
		return o.state.Clone(), port.ErrInvalidTransition
	}
	if o.state.Project == nil {
		return o.state.Clone(), port.ErrNoProject
	}
	o.saveLocked(ctx, o.state.Project, o.state.Prompt)
	return o.state.Clone(), nil
}

// saveLocked prepends a history record and persists the list. Caller holds o.mu.
func (o *Orchestrator) saveLocked(ctx context.Context, project *domain.Project, prompt string) bool {
	if hasRecord(o.state.History, project.Name, prompt) {
		slog.Warn("project already in history", "project", project.Name)
		o.addLog(fmt.Sprintf("Project %q is already saved.", project.Name), domain.LogWarning)
		return false
	}

	p := *project
	p.Files = append([]domain.FileEntry(nil), project.Files...)
	record := domain.SavedProjectRecord{
		ID:        o.deps.NewID(),
		Timestamp: o.deps.Now().UnixMilli(),
		Prompt:    prompt,
		Project:   p,
	}
	o.update(func(s *domain.AppState) {
		s.History = append([]domain.SavedProjectRecord{record}, s.History...)
	})
	o.addLog(fmt.Sprintf("Project %q saved to history.", project.Name), domain.LogSuccess)
	o.persistHistoryLocked(ctx)
	return true
}

// persistHistoryLocked writes the history locally and pushes it to the sync
// document in the background. Caller holds o.mu.
func (o *Orchestrator) persistHistoryLocked(ctx context.Context) {
	creds := o.state.Credentials
	history := append([]domain.SavedProjectRecord(nil), o.state.History...)

	if err := o.deps.Local.SaveHistory(ctx, creds.SourceHostUsername, history); err != nil {
		slog.Warn("cannot persist local history", "user", creds.SourceHostUsername, "error", err)
	}
	if creds.SourceHostToken == "" {
		return
	}

	seq := o.nextSyncSeqLocked()
	o.bg.Add(1)
	go func() {
		defer o.bg.Done()
		if err := o.writeRemote(context.Background(), creds.SourceHostToken, history, seq); err != nil {
			slog.Warn("history sync failed", "user", creds.SourceHostUsername, "error", err)
		}
	}()
}

// nextSyncSeqLocked numbers a history snapshot for writeRemote. Caller holds o.mu.
func (o *Orchestrator) nextSyncSeqLocked() uint64 {
	o.syncSeq++
	return o.syncSeq
}

// writeRemote stores history in the sync document unless a newer snapshot
// has already been written.
func (o *Orchestrator) writeRemote(ctx context.Context, token string, history []domain.SavedProjectRecord, seq uint64) error {
	o.syncMu.Lock()
	defer o.syncMu.Unlock()

	if seq <= o.syncWritten {
		slog.Debug("stale history snapshot dropped", "seq", seq, "written", o.syncWritten)
		return nil
	}
	if err := o.deps.Sync.Save(ctx, token, history); err != nil {
		return err
	}
	o.syncWritten = seq
	return nil
}

// SyncHistory reconciles the local history with the remote sync document.
func (o *Orchestrator) SyncHistory(ctx context.Context) error {
	o.mu.Lock()
	if o.state.Step == domain.StepConfig {
		o.mu.Unlock()
		return port.ErrInvalidTransition
	}
	token := o.state.Credentials.SourceHostToken
	username := o.state.Credentials.SourceHostUsername
	o.addLog("Syncing projects with GitHub Cloud...", domain.LogInfo)
	o.mu.Unlock()

	remote, found := o.deps.Sync.Load(ctx, token)

	o.mu.Lock()
	if o.state.Credentials.SourceHostUsername != username {
		// logged out while loading
		o.mu.Unlock()
		return nil
	}

	if !found {
		o.addLog("No cloud history found. Creating new sync file...", domain.LogInfo)
		local := append([]domain.SavedProjectRecord(nil), o.state.History...)
		seq := o.nextSyncSeqLocked()
		o.mu.Unlock()
		if len(local) == 0 {
			return nil
		}
		return o.pushSync(ctx, token, local, seq)
	}

	merged := MergeHistory(o.state.History, remote)
	o.update(func(s *domain.AppState) { s.History = merged })
	if err := o.deps.Local.SaveHistory(ctx, username, merged); err != nil {
		slog.Warn("cannot persist local history", "user", username, "error", err)
	}
	o.addLog("History synced successfully.", domain.LogSuccess)
	seq := o.nextSyncSeqLocked()
	o.mu.Unlock()

	// merged holds every remote id, so equal length means nothing was added
	if len(merged) == len(remote) {
		return nil
	}
	return o.pushSync(ctx, token, merged, seq)
}

func (o *Orchestrator) pushSync(ctx context.Context, token string, history []domain.SavedProjectRecord, seq uint64) error {
	if err := o.writeRemote(ctx, token, history, seq); err != nil {
		o.logLine("Failed to sync history.", domain.LogError)
		return err
	}
	return nil
}

// Navigate moves between PROMPT and REVIEW. REVIEW requires a project.
func (o *Orchestrator) Navigate(step domain.Step) (domain.AppState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	cur := o.state.Step
	switch {
	case cur == step && (cur == domain.StepPrompt || cur == domain.StepReview):
	case cur == domain.StepReview && step == domain.StepPrompt:
		o.update(func(s *domain.AppState) { s.Step = domain.StepPrompt })
	case cur == domain.StepPrompt && step == domain.StepReview && o.state.Project != nil:
		o.update(func(s *domain.AppState) { s.Step = domain.StepReview })
	default:
		return o.state.Clone(), port.ErrInvalidTransition
	}
	return o.state.Clone(), nil
}

// Reset starts a new app: back to PROMPT with no project, result, prompt or logs.
func (o *Orchestrator) Reset() (domain.AppState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.state.Step {
	case domain.StepPrompt, domain.StepReview, domain.StepSuccess:
	default:
		return o.state.Clone(), port.ErrInvalidTransition
	}
	o.update(func(s *domain.AppState) {
		s.Step = domain.StepPrompt
		s.Prompt = ""
		s.Project = nil
		s.Result = nil
		s.Logs = []domain.LogEntry{}
	})
	return o.state.Clone(), nil
}

// Logout drops the credentials and all session data and returns to CONFIG.
func (o *Orchestrator) Logout() (domain.AppState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Step.Transient() {
		return o.state.Clone(), port.ErrInvalidTransition
	}
	o.update(func(s *domain.AppState) {
		*s = domain.AppState{
			Step:    domain.StepConfig,
			Mode:    domain.ModeGenerate,
			History: []domain.SavedProjectRecord{},
			Logs:    []domain.LogEntry{},
		}
	})
	return o.state.Clone(), nil
}

// LoadFromHistory opens a saved project for review.
func (o *Orchestrator) LoadFromHistory(id string) (domain.AppState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.state.Step {
	case domain.StepPrompt, domain.StepReview, domain.StepSuccess:
	default:
		return o.state.Clone(), port.ErrInvalidTransition
	}

	var record *domain.SavedProjectRecord
	for i := range o.state.History {
		if o.state.History[i].ID == id {
			record = &o.state.History[i]
			break
		}
	}
	if record == nil {
		return o.state.Clone(), port.ErrRecordNotFound
	}

	p := record.Project
	p.Files = append([]domain.FileEntry(nil), record.Project.Files...)
	prompt := record.Prompt
	o.update(func(s *domain.AppState) {
		s.Prompt = prompt
		s.Project = &p
		s.Result = nil
		s.Step = domain.StepReview
	})
	o.addLog(fmt.Sprintf("Loaded project %q from history.", p.Name), domain.LogInfo)
	return o.state.Clone(), nil
}

// DeleteFromHistory removes a saved record locally and remotely.
func (o *Orchestrator) DeleteFromHistory(ctx context.Context, id string) (domain.AppState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Step == domain.StepConfig {
		return o.state.Clone(), port.ErrInvalidTransition
	}
	history, found := removeRecord(o.state.History, id)
	if !found {
		return o.state.Clone(), port.ErrRecordNotFound
	}
	o.update(func(s *domain.AppState) { s.History = history })
	o.persistHistoryLocked(ctx)
	return o.state.Clone(), nil
}

// UpdateSettings changes the hosting settings. Nil fields are left unchanged.
func (o *Orchestrator) UpdateSettings(ctx context.Context, hostingToken *string, autoHosting *bool) (domain.AppState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Step == domain.StepConfig {
		return o.state.Clone(), port.ErrInvalidTransition
	}
	o.update(func(s *domain.AppState) {
		if hostingToken != nil {
			s.Credentials.HostingToken = *hostingToken
		}
		if autoHosting != nil {
			s.Credentials.AutoHostingEnabled = *autoHosting
		}
	})
	if err := o.deps.Local.SaveConfig(ctx, o.state.Credentials); err != nil {
		return o.state.Clone(), err
	}
	o.addLog("Settings saved.", domain.LogSuccess)
	return o.state.Clone(), nil
}

// LoadTestTemplate puts the hello-world paste blob into the prompt.
func (o *Orchestrator) LoadTestTemplate() (domain.AppState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Step != domain.StepPrompt {
		return o.state.Clone(), port.ErrInvalidTransition
	}
	o.update(func(s *domain.AppState) {
		s.Prompt = TestTemplate()
		s.Mode = domain.ModePaste
	})
	o.addLog("Loaded Test Template (Hello World).", domain.LogSuccess)
	return o.state.Clone(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
